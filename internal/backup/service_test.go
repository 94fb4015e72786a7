package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedfamily/rconadmin/internal/db"
	"github.com/reedfamily/rconadmin/internal/store"
	"github.com/reedfamily/rconadmin/internal/testutil"
)

func newService(t *testing.T, keep int) *Service {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	s := NewService(conn, filepath.Join(t.TempDir(), "backups"), keep)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func TestCreateAndRestore(t *testing.T) {
	s := newService(t, 0)
	ctx := context.Background()

	_, err := store.NewInventory(s.db).CreateGroup(ctx, "EU")
	require.NoError(t, err)

	b, err := s.Create(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, b.ID, 8)
	assert.Equal(t, "admin", b.CreatedBy)
	assert.Positive(t, b.SizeBytes)
	assert.FileExists(t, filepath.Join(s.dir, b.Filename))
	assert.NoFileExists(t, filepath.Join(s.dir, b.ID+".snapshot"))

	got, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Filename, got.Filename)
	assert.True(t, b.CreatedAt.Equal(got.CreatedAt))

	dest := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, s.Restore(ctx, b.ID, dest))

	restored, err := db.Open(dest)
	require.NoError(t, err)
	defer restored.Close()
	var name string
	require.NoError(t, restored.QueryRow("SELECT name FROM server_groups").Scan(&name))
	assert.Equal(t, "EU", name)

	err = s.Restore(ctx, b.ID, dest)
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestPrune(t *testing.T) {
	s := newService(t, 2)
	ctx := context.Background()

	var created []Backup
	for i := 0; i < 3; i++ {
		b, err := s.Create(ctx, "admin")
		require.NoError(t, err)
		created = append(created, b)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, created[2].ID, list[0].ID)
	assert.Equal(t, created[1].ID, list[1].ID)

	_, err = os.Stat(filepath.Join(s.dir, created[0].Filename))
	assert.True(t, os.IsNotExist(err))
	_, err = s.Get(ctx, created[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newService(t, 0)
	ctx := context.Background()

	b, err := s.Create(ctx, "admin")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, b.ID))

	assert.NoFileExists(t, filepath.Join(s.dir, b.Filename))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, s.Delete(ctx, b.ID), store.ErrNotFound)
}
