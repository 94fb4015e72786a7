// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/reedfamily/rconadmin/internal/db"
)

// SetupTestDB opens a migrated sqlite database in a temp dir and closes it
// when the test ends.
func SetupTestDB(tb testing.TB) *sql.DB {
	tb.Helper()

	conn, err := db.Open(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("opening test db: %v", err)
	}
	tb.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn); err != nil {
		tb.Fatalf("running migrations: %v", err)
	}
	return conn
}
