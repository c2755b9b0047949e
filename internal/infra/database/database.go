// Package database opens the relational store shared by the repositories,
// applies the embedded schema migrations and classifies driver errors.
//
// Two drivers are supported: the embedded modernc.org/sqlite engine (default)
// and PostgreSQL through the pgx stdlib driver.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

// Driver names a database/sql driver supported by this package.
type Driver string

const (
	// DriverSQLite selects the embedded SQLite engine. The DSN is a file path.
	DriverSQLite Driver = "sqlite"
	// DriverPgx selects PostgreSQL. The DSN is a libpq connection string or URL.
	DriverPgx Driver = "pgx"
)

// ErrUnsupportedDriver is returned for a driver name other than "sqlite" or "pgx".
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// DatabaseConfig holds configuration for the store connection.
type DatabaseConfig struct {
	// Driver is either "sqlite" or "pgx"
	Driver string `env:"DRIVER" default:"sqlite"`

	// DSN is the SQLite file path or the PostgreSQL connection string
	DSN string `env:"DSN" default:"var/storage/sampleapp.db"`

	// BusyTimeout is how long SQLite waits on a locked database, in milliseconds
	BusyTimeout int64 `env:"BUSY_TIMEOUT" default:"5000"`

	// QueryTimeout bounds every store operation, in seconds
	QueryTimeout int64 `env:"QUERY_TIMEOUT" default:"5"`

	MaxOpenConns    int64 `env:"MAX_OPEN_CONNS" default:"10"`
	ConnMaxLifetime int64 `env:"CONN_MAX_LIFETIME" default:"300"` // seconds
}

// DB is a *sql.DB bound to its driver and the per-operation timeout.
type DB struct {
	*sql.DB

	Driver       Driver
	QueryTimeout time.Duration
}

// Open connects to the configured database, verifies the connection and
// applies all pending migrations.
func Open(ctx context.Context, cfg DatabaseConfig) (_ *DB, err error) {
	log := logging.GetLogger("infra.database").With(
		logging.Group("db", "driver", cfg.Driver),
	)

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "open database failed", "error", err)
		} else {
			log.DebugContext(ctx, "database ready")
		}
	}()

	driver := Driver(strings.ToLower(strings.TrimSpace(cfg.Driver)))

	var dsn string

	switch driver {
	case DriverSQLite:
		if dsn, err = sqliteDSN(cfg); err != nil {
			return nil, err
		}
	case DriverPgx:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	sqlDB, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(int(cfg.MaxOpenConns))
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime * int64(time.Second)))

	db := &DB{
		DB:           sqlDB,
		Driver:       driver,
		QueryTimeout: time.Duration(cfg.QueryTimeout * int64(time.Second)),
	}

	pingCtx, cancel := db.WithTimeout(ctx)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		sqlDB.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		sqlDB.Close()

		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return db, nil
}

func sqliteDSN(cfg DatabaseConfig) (string, error) {
	path := cfg.DSN

	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}

	pragmas := []string{
		"_pragma=busy_timeout(" + strconv.FormatInt(cfg.BusyTimeout, 10) + ")",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + strings.Join(pragmas, "&"), nil
}

// WithTimeout derives a context bounded by the configured query timeout.
// A zero timeout leaves the parent deadline untouched.
func (db *DB) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, db.QueryTimeout)
}

// Rebind rewrites '?' placeholders into the driver's bind syntax.
// Queries passed here must not contain literal question marks.
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPgx {
		return query
	}

	var (
		out strings.Builder
		n   int
	)

	out.Grow(len(query) + 8)

	for i := range len(query) {
		if query[i] != '?' {
			out.WriteByte(query[i])

			continue
		}

		n++
		out.WriteByte('$')
		out.WriteString(strconv.Itoa(n))
	}

	return out.String()
}
