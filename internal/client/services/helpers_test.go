package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/repositories/jobs"
	"github.com/dmitrijs2005/dulo/internal/client/session"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

type testEnv struct {
	db    *sql.DB
	store *session.Store
	api   *client.APIClient
	jobs  *jobs.SQLiteRepository
	srv   *httptest.Server
}

func newEnv(t *testing.T, h http.Handler) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "dulo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := session.NewStore(db, logging.Nop())
	return &testEnv{
		db:    db,
		store: store,
		api:   client.NewAPIClient(srv.URL, store, client.WithTimeout(5*time.Second)),
		jobs:  jobs.NewSQLiteRepository(db),
		srv:   srv,
	}
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.SaveToken(context.Background(), "tok", time.Now()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
