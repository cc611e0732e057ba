// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/civicdesk/civicdesk/pkg/db"
)

// New returns a private sqlite database with every model migrated. The pool
// is pinned to a single connection so the in-memory database survives and
// concurrent callers serialize the way row locks would on postgres.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), db.GormConfig())
	require.NoError(t, err, "open in-memory db")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, db.Migrate(context.Background(), gdb), "migrate")

	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
