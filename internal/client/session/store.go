package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/dulo/internal/common"
	"github.com/dmitrijs2005/dulo/internal/dbx"
	"github.com/dmitrijs2005/dulo/internal/logging"
	"github.com/dmitrijs2005/dulo/internal/timex"
)

type Store struct {
	db   *sql.DB
	repo metadata.Repository
	log  logging.Logger
}

func NewStore(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, repo: metadata.NewSQLiteRepository(db), log: log}
}

func (s *Store) Token(ctx context.Context) (string, time.Time, error) {
	token, err := s.repo.Get(ctx, common.KeyAccessToken)
	if err != nil {
		return "", time.Time{}, err
	}
	if len(token) == 0 {
		return "", time.Time{}, nil
	}
	raw, err := s.repo.Get(ctx, common.KeyAccessTokenTimestamp)
	if err != nil {
		return "", time.Time{}, err
	}
	var at time.Time
	if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		at = timex.FromEpochMillis(ms)
	}
	return string(token), at, nil
}

// SaveToken writes the token and its timestamp in one transaction. An empty
// token removes both.
func (s *Store) SaveToken(ctx context.Context, token string, at time.Time) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if token == "" {
			return repo.Delete(ctx, common.KeyAccessToken, common.KeyAccessTokenTimestamp)
		}
		if err := repo.Set(ctx, common.KeyAccessToken, []byte(token)); err != nil {
			return err
		}
		ms := strconv.FormatInt(timex.EpochMillis(at), 10)
		return repo.Set(ctx, common.KeyAccessTokenTimestamp, []byte(ms))
	})
}

func (s *Store) RefreshCookie(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, common.KeyRefreshCookie)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *Store) SaveRefreshCookie(ctx context.Context, value string) error {
	if value == "" {
		return s.repo.Delete(ctx, common.KeyRefreshCookie)
	}
	return s.repo.Set(ctx, common.KeyRefreshCookie, []byte(value))
}

// User returns the cached profile. Unreadable or corrupt entries are
// reported as no user.
func (s *Store) User(ctx context.Context) *models.StoredUser {
	raw, err := s.repo.Get(ctx, common.KeyCurrentUser)
	if err != nil {
		s.log.Warn(ctx, "failed to read current user", "error", err)
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var u models.StoredUser
	if err := json.Unmarshal(raw, &u); err != nil {
		s.log.Warn(ctx, "discarding corrupt current user", "error", err)
		return nil
	}
	return &u
}

// SaveUser caches u. A nil user removes the entry.
func (s *Store) SaveUser(ctx context.Context, u *models.StoredUser) error {
	if u == nil {
		return s.repo.Delete(ctx, common.KeyCurrentUser)
	}
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode current user: %w", err)
	}
	return s.repo.Set(ctx, common.KeyCurrentUser, b)
}

// ClearSession drops the token, its timestamp and the cached user. The
// refresh cookie stays; the backend expires it when it is no longer good.
func (s *Store) ClearSession(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx,
			common.KeyAccessToken, common.KeyAccessTokenTimestamp, common.KeyCurrentUser)
	})
}

// Clear signs out locally: everything ClearSession drops plus the refresh
// cookie. The theme survives.
func (s *Store) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return metadata.NewSQLiteRepository(tx).Delete(ctx,
			common.KeyAccessToken, common.KeyAccessTokenTimestamp,
			common.KeyCurrentUser, common.KeyRefreshCookie)
	})
}

func (s *Store) Theme(ctx context.Context) models.Theme {
	raw, err := s.repo.Get(ctx, common.KeyTheme)
	if err != nil {
		s.log.Warn(ctx, "failed to read theme", "error", err)
		return models.ThemeSystem
	}
	t, _ := models.ParseTheme(string(raw))
	return t
}

func (s *Store) SaveTheme(ctx context.Context, t models.Theme) error {
	if _, ok := models.ParseTheme(string(t)); !ok {
		return fmt.Errorf("%w: unknown theme %q", common.ErrValidation, t)
	}
	return s.repo.Set(ctx, common.KeyTheme, []byte(t))
}
