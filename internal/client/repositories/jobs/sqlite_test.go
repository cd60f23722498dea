package jobs

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dulo/internal/client/migrations"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/common"

	_ "modernc.org/sqlite"
)

func setupRepo(t *testing.T) (*SQLiteRepository, *time.Time) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, "."))

	clock := time.UnixMilli(1_700_000_000_000)
	r := NewSQLiteRepository(db)
	r.now = func() time.Time { return clock }
	return r, &clock
}

func TestUpsert_InsertThenGet(t *testing.T) {
	r, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.JobRecord{
		JobID:    "j1",
		Title:    "receipt.png",
		FileType: models.FileTypePDF,
		Engine:   "tesseract",
		Status:   models.JobQueued,
	}))

	got, err := r.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "receipt.png", got.Title)
	assert.Equal(t, models.FileTypePDF, got.FileType)
	assert.Equal(t, models.JobQueued, got.Status)
	assert.True(t, got.CreatedAt.Equal(*clock))
	assert.True(t, got.UpdatedAt.Equal(*clock))
}

func TestUpsert_MergeKeepsDescriptiveFieldsAndCreatedAt(t *testing.T) {
	r, clock := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.JobRecord{JobID: "j1", Title: "scan.jpg", FileType: models.FileTypeExcel, Status: models.JobQueued}))
	first := *clock
	*clock = clock.Add(time.Minute)

	require.NoError(t, r.Upsert(ctx, &models.JobRecord{
		JobID:       "j1",
		Status:      models.JobDone,
		DownloadURL: "/download/j1.xlsx",
		ChatID:      "c1",
	}))

	got, err := r.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "scan.jpg", got.Title)
	assert.Equal(t, models.FileTypeExcel, got.FileType)
	assert.Equal(t, models.JobDone, got.Status)
	assert.Equal(t, "/download/j1.xlsx", got.DownloadURL)
	assert.Equal(t, "c1", got.ChatID)
	assert.True(t, got.CreatedAt.Equal(first))
	assert.True(t, got.UpdatedAt.Equal(*clock))
}

func TestUpsert_EmptyIDRejected(t *testing.T) {
	r, _ := setupRepo(t)
	err := r.Upsert(context.Background(), &models.JobRecord{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestGet_Missing(t *testing.T) {
	r, _ := setupRepo(t)
	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList_SearchFilterAndOrder(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i, rec := range []models.JobRecord{
		{JobID: "a", Title: "Invoice March", FileType: models.FileTypePDF},
		{JobID: "b", Title: "invoice april", FileType: models.FileTypeExcel},
		{JobID: "c", Title: "Holiday photo", FileType: models.FileTypePDF},
		{JobID: "d", Title: "100%_done", FileType: models.FileTypePDF},
	} {
		rec.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, r.Upsert(ctx, &rec))
	}

	ids := func(recs []models.JobRecord) []string {
		var out []string
		for _, r := range recs {
			out = append(out, r.JobID)
		}
		return out
	}

	all, err := r.List(ctx, models.JobQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(all))

	asc, err := r.List(ctx, models.JobQuery{Order: models.SortAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(asc))

	inv, err := r.List(ctx, models.JobQuery{Search: "INVOICE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(inv))

	pdfInv, err := r.List(ctx, models.JobQuery{Search: "invoice", FileType: models.FileTypePDF})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(pdfInv))

	literal, err := r.List(ctx, models.JobQuery{Search: "%_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(literal))

	limited, err := r.List(ctx, models.JobQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, ids(limited))
}

func TestDelete_Idempotent(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Upsert(ctx, &models.JobRecord{JobID: "x"}))
	require.NoError(t, r.Delete(ctx, "x"))
	require.NoError(t, r.Delete(ctx, "x"))

	_, err := r.Get(ctx, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
