// Package dbtest provides a migrated in-memory database for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskauth/internal/database"
)

// New returns a fresh, migrated in-memory SQLite database that is closed when
// the test finishes.
func New(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}
