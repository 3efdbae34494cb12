package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "portfolio.db"))
	require.NoError(t, err)
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, Migrate(db, DriverSQLite, logger))
	// Running twice is a no-op.
	require.NoError(t, Migrate(db, DriverSQLite, logger))

	for _, table := range []string{"users", "skills", "certificates", "testimonials", "projects", "blogs"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mongodb", "whatever")
	assert.Error(t, err)
}

func TestWithTimeFormat(t *testing.T) {
	assert.Equal(t, "a.db?_time_format=sqlite", withTimeFormat("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_time_format=sqlite", withTimeFormat("file:a.db?mode=rwc"))
	assert.Equal(t, "a.db?_time_format=sqlite", withTimeFormat("a.db?_time_format=sqlite"))
}
