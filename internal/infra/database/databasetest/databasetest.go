// Package databasetest opens throwaway migrated databases for tests.
package databasetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mkrupp/sampleapp/internal/infra/database"
)

// PostgresDSNEnv names the variable holding a PostgreSQL DSN for driver tests.
const PostgresDSNEnv = "SAMPLEAPP_TEST_POSTGRES_DSN"

// NewSQLite opens a migrated SQLite database in a temp dir, closed on cleanup.
func NewSQLite(tb testing.TB) *database.DB {
	tb.Helper()

	db, err := database.Open(context.Background(), database.DatabaseConfig{
		Driver:          string(database.DriverSQLite),
		DSN:             filepath.Join(tb.TempDir(), "test.db"),
		BusyTimeout:     5000,
		QueryTimeout:    5,
		MaxOpenConns:    4,
		ConnMaxLifetime: 300,
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	tb.Cleanup(func() { _ = db.Close() })

	return db
}

// NewPostgres opens the database named by SAMPLEAPP_TEST_POSTGRES_DSN and
// empties its tables. The test is skipped when the variable is unset.
func NewPostgres(tb testing.TB) *database.DB {
	tb.Helper()

	dsn, ok := os.LookupEnv(PostgresDSNEnv)
	if !ok || dsn == "" {
		tb.Skipf("%s not set", PostgresDSNEnv)
	}

	db, err := database.Open(context.Background(), database.DatabaseConfig{
		Driver:          string(database.DriverPgx),
		DSN:             dsn,
		QueryTimeout:    5,
		MaxOpenConns:    4,
		ConnMaxLifetime: 300,
	})
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}

	if _, err := db.Exec("TRUNCATE sessions, users RESTART IDENTITY"); err != nil {
		tb.Fatalf("truncate: %v", err)
	}

	tb.Cleanup(func() { _ = db.Close() })

	return db
}
