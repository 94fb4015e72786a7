package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "rconadmin.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn))
	// Applying twice is a no-op.
	require.NoError(t, Migrate(ctx, conn))

	v, err := Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	for _, table := range []string{"admins", "sessions", "server_groups", "servers", "bans", "admin_logs", "player_counts", "schedules", "backups"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "rconadmin.db"))
	require.NoError(t, err)
	defer conn.Close()

	var on int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)
}
