package database

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == DriverSQLite {
		dsn = withTimeFormat(dsn)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.New(err)
	}

	switch driver {
	case DriverSQLite:
		// A single writer avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, xerrors.Newf("setting pragma %q: %w", pragma, err)
			}
		}
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxIdleTime(10 * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, xerrors.New(err)
	}

	return db, nil
}

// withTimeFormat makes the sqlite driver write timestamps in a sortable layout.
func withTimeFormat(dsn string) string {
	if strings.Contains(dsn, "_time_format=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_time_format=sqlite"
}

// Migrate applies all pending migrations for the driver's dialect.
func Migrate(db *sql.DB, driver string, log *slog.Logger) error {
	dialect, dir := "postgres", "migrations/postgres"
	if driver == DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return xerrors.New(err)
	}

	if err := goose.Up(db, dir); err != nil {
		return xerrors.Newf("running migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return xerrors.New(err)
	}
	log.Info("Database schema is up to date", "driver", driver, "version", version)
	return nil
}
