package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/sampleapp/internal/domain"
	"github.com/mkrupp/sampleapp/internal/infra/database"
	"github.com/mkrupp/sampleapp/internal/infra/database/databasetest"
)

func TestOpen_SQLiteAppliesMigrations(t *testing.T) {
	t.Parallel()

	db := databasetest.NewSQLite(t)
	ctx := context.Background()

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	for _, table := range []string{"users", "sessions"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	// re-running is a no-op
	require.NoError(t, db.Migrate(ctx))
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	t.Parallel()

	db, err := database.Open(context.Background(), database.DatabaseConfig{
		Driver:       "SQLite",
		DSN:          filepath.Join(t.TempDir(), "nested", "dir", "app.db"),
		BusyTimeout:  1000,
		QueryTimeout: 5,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := database.Open(context.Background(), database.DatabaseConfig{Driver: "oracle"})
	require.ErrorIs(t, err, database.ErrUnsupportedDriver)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	db := databasetest.NewSQLite(t)
	ctx := context.Background()

	insert := "INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)"

	_, err := db.ExecContext(ctx, insert, "alice", []byte("x"), 1)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert, "alice", []byte("y"), 2)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.False(t, database.IsUnavailable(err))
	assert.False(t, database.IsUniqueViolation(errors.New("boom")))
}

func TestWrap_DeadlineIsStoreUnavailable(t *testing.T) {
	t.Parallel()

	db := databasetest.NewSQLite(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := db.ExecContext(ctx, "SELECT 1")
	require.Error(t, err)

	wrapped := database.Wrap("select", err)
	assert.ErrorIs(t, wrapped, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
	assert.Contains(t, wrapped.Error(), "select: ")

	assert.NotErrorIs(t, database.Wrap("select", errors.New("syntax")), domain.ErrStoreUnavailable)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	query := "SELECT id FROM users WHERE username = ? AND id > ?"

	sqlite := &database.DB{Driver: database.DriverSQLite}
	assert.Equal(t, query, sqlite.Rebind(query))

	pg := &database.DB{Driver: database.DriverPgx}
	assert.Equal(t, "SELECT id FROM users WHERE username = $1 AND id > $2", pg.Rebind(query))
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	db := &database.DB{QueryTimeout: time.Minute}

	ctx, cancel := db.WithTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	unbounded := &database.DB{}

	ctx, cancel = unbounded.WithTimeout(context.Background())
	defer cancel()

	_, ok = ctx.Deadline()
	assert.False(t, ok)
}

func TestOpen_Postgres(t *testing.T) {
	t.Parallel()

	db := databasetest.NewPostgres(t)

	version, err := db.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}
