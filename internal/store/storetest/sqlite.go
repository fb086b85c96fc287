// Package storetest opens throwaway SQLite databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
)

// NewSQLite returns a migrated database in t's temp dir, closed on cleanup.
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := database.Config{
		Driver:   database.DriverSQLite,
		DSN:      database.SQLiteDSN(filepath.Join(t.TempDir(), "library.db")),
		MaxConns: 4,
		Timeout:  5 * time.Second,
	}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.EnsureSchema(context.Background(), db))
	return db
}
