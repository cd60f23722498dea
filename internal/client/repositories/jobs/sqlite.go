package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/dbx"
	"github.com/dmitrijs2005/dulo/internal/timex"
)

// SQLiteRepository implements Repository on a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const columns = `job_id, title, file_type, engine, status, status_message,
	chat_id, download_url, local_path, error, created_at, updated_at`

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.JobRecord) error {
	if rec.JobID == "" {
		return fmt.Errorf("%w: empty job id", common.ErrValidation)
	}
	now := r.now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	query := `INSERT INTO jobs (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE jobs.title END,
			file_type = CASE WHEN excluded.file_type <> '' THEN excluded.file_type ELSE jobs.file_type END,
			engine = CASE WHEN excluded.engine <> '' THEN excluded.engine ELSE jobs.engine END,
			status = CASE WHEN excluded.status <> '' THEN excluded.status ELSE jobs.status END,
			status_message = excluded.status_message,
			chat_id = CASE WHEN excluded.chat_id <> '' THEN excluded.chat_id ELSE jobs.chat_id END,
			download_url = CASE WHEN excluded.download_url <> '' THEN excluded.download_url ELSE jobs.download_url END,
			local_path = CASE WHEN excluded.local_path <> '' THEN excluded.local_path ELSE jobs.local_path END,
			error = excluded.error,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.JobID, rec.Title, string(rec.FileType), rec.Engine, string(rec.Status), rec.StatusMessage,
		rec.ChatID, rec.DownloadURL, rec.LocalPath, rec.Error,
		timex.EpochMillis(created), timex.EpochMillis(updated))
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", rec.JobID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, jobID string) (*models.JobRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM jobs WHERE job_id = ?`, jobID)
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if q.FileType != "" {
		where = append(where, `file_type = ?`)
		args = append(args, string(q.FileType))
	}

	query := `SELECT ` + columns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if q.Order == models.SortAsc {
		query += ` ORDER BY created_at ASC, job_id ASC`
	} else {
		query += ` ORDER BY created_at DESC, job_id DESC`
	}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var result []models.JobRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, jobID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.JobRecord, error) {
	var (
		rec                models.JobRecord
		fileType, status   string
		createdAt, updated int64
	)
	err := s.Scan(&rec.JobID, &rec.Title, &fileType, &rec.Engine, &status, &rec.StatusMessage,
		&rec.ChatID, &rec.DownloadURL, &rec.LocalPath, &rec.Error, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	rec.FileType = models.FileType(fileType)
	rec.Status = models.JobStatus(status)
	rec.CreatedAt = timex.FromEpochMillis(createdAt)
	rec.UpdatedAt = timex.FromEpochMillis(updated)
	return &rec, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
