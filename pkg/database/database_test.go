package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Connect(Config{
		Driver:   DriverSQLite,
		DSN:      SQLiteDSN(filepath.Join(t.TempDir(), "nested", "test.db")),
		MaxConns: 2,
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", DriverSQLite)
	t.Setenv("DATABASE_URL", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, SQLiteDSN("library.db"), cfg.DSN)

	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/x")
	cfg = ConfigFromEnv()
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://u:p@db/x", cfg.DSN)
}

func TestInTx(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, InTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`)
		return err
	}))

	boom := errors.New("boom")
	err := InTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('b', '2')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = InTx(ctx, db, func(tx *sqlx.Tx) error {
			_, _ = tx.Exec(`INSERT INTO kv (k, v) VALUES ('c', '3')`)
			panic("bad")
		})
	})

	var keys []string
	require.NoError(t, db.Select(&keys, `SELECT k FROM kv ORDER BY k`))
	assert.Equal(t, []string{"a"}, keys)
}

func TestIsUniqueViolation(t *testing.T) {
	db := openSQLite(t)
	_, err := db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES ('a', '2')`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", err)))

	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES ('b', NULL)`)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err), "not null is a different constraint")

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}

func TestDialectHelpers(t *testing.T) {
	db := openSQLite(t)
	assert.Empty(t, LockClause(db))

	q, args, err := Dialect(db).From("kv").Where(goqu.Ex{"k": "a"}).Prepared(true).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `kv` WHERE (`k` = ?)", q)
	assert.Equal(t, []any{"a"}, args)

	pg := sqlx.NewDb(db.DB, DriverPostgres)
	assert.Equal(t, " FOR UPDATE", LockClause(pg))
	q, _, err = Dialect(pg).From("kv").Where(goqu.Ex{"k": "a"}).Prepared(true).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "kv" WHERE ("k" = $1)`, q)
}

func TestContainsFold(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	_, err := db.ExecContext(ctx, `CREATE TABLE titles (name TEXT NOT NULL)`)
	require.NoError(t, err)
	for _, name := range []string{"snake_case", "100% Go", "Plain Go", `C:\Books`, "Ärger im Paradies"} {
		_, err := db.ExecContext(ctx, `INSERT INTO titles (name) VALUES (?)`, name)
		require.NoError(t, err)
	}

	tests := []struct {
		needle string
		want   []string
	}{
		{"_", []string{"snake_case"}},
		{"%", []string{"100% Go"}},
		{`\`, []string{`C:\Books`}},
		{"GO", []string{"100% Go", "Plain Go"}},
		{"Ärger", []string{"Ärger im Paradies"}},
		{"", []string{"snake_case", "100% Go", "Plain Go", `C:\Books`, "Ärger im Paradies"}},
	}
	for _, tt := range tests {
		t.Run(tt.needle, func(t *testing.T) {
			q, args, err := Dialect(db).From("titles").Select("name").
				Where(ContainsFold(db, "name", tt.needle)).Order(goqu.I("rowid").Asc()).Prepared(true).ToSQL()
			require.NoError(t, err)
			assert.Contains(t, q, `ESCAPE '\'`)
			var got []string
			require.NoError(t, db.SelectContext(ctx, &got, q, args...))
			assert.Equal(t, tt.want, got)
		})
	}

	pg := sqlx.NewDb(db.DB, DriverPostgres)
	_, args, err := Dialect(pg).From("titles").Where(ContainsFold(pg, "name", "Ärger_1")).Prepared(true).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, []any{`%ärger\_1%`}, args)
}
