package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

//go:embed migrations
var migrations embed.FS

func (d Driver) migrationSource() (goose.Dialect, string) {
	if d == DriverPgx {
		return goose.DialectPostgres, "migrations/postgres"
	}

	return goose.DialectSQLite3, "migrations/sqlite"
}

// Migrate applies every pending migration for the connected driver.
func (db *DB) Migrate(ctx context.Context) error {
	log := logging.GetLogger("infra.database.migrate")

	dialect, dir := db.Driver.migrationSource()

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("sub fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("new provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("up: %w", err)
	}

	for _, result := range results {
		log.InfoContext(ctx, "migration applied",
			"version", result.Source.Version,
			"path", result.Source.Path,
			"duration", result.Duration,
		)
	}

	return nil
}

// Version reports the schema version currently applied.
func (db *DB) Version(ctx context.Context) (int64, error) {
	dialect, dir := db.Driver.migrationSource()

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return 0, fmt.Errorf("sub fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db.DB, fsys)
	if err != nil {
		return 0, fmt.Errorf("new provider: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}

	return version, nil
}
