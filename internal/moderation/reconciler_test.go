package moderation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedfamily/rconadmin/internal/roster"
	"github.com/reedfamily/rconadmin/internal/steamid"
)

type fakeResolver struct {
	id    steamid.Identity
	err   error
	block bool
}

func (f *fakeResolver) Resolve(ctx context.Context, _ string) (steamid.Identity, error) {
	if f.block {
		<-ctx.Done()
		return steamid.Identity{}, ctx.Err()
	}
	return f.id, f.err
}

type memBans struct {
	mu   sync.Mutex
	recs []BanRecord
	err  error
}

func (m *memBans) InsertBan(_ context.Context, rec BanRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.recs = append(m.recs, rec)
	return int64(len(m.recs)), nil
}

func (m *memBans) stored() []BanRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]BanRecord(nil), m.recs...)
}

func aliceJob(minutes int) BanJob {
	return BanJob{
		ID:              "job-1",
		ServerID:        1,
		ServerName:      "pub #1",
		Actor:           "admin1",
		UserID:          2,
		DurationMinutes: minutes,
		Reason:          "cheating",
		Target:          roster.Target{Name: "Alice", Identity: "STEAM_1:0:123", IP: "1.2.3.4:27005", Strategy: "name-identity-ip"},
		CreatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func startReconciler(t *testing.T, res IdentityResolver, bans BanStore, audit AuditLog, cfg ReconcilerConfig) *Reconciler {
	t.Helper()
	r := NewReconciler(res, bans, audit, cfg)
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
	return r
}

func TestReconcilerStoresResolvedIdentity(t *testing.T) {
	res := &fakeResolver{id: steamid.Identity{ID64: "76561197960265974", ID2: "STEAM_0:0:123", ID3: "[U:1:246]"}}
	bans := &memBans{}
	audit := &memAudit{}
	r := startReconciler(t, res, bans, audit, ReconcilerConfig{})

	r.Submit(aliceJob(60))

	require.Eventually(t, func() bool { return len(audit.recorded()) == 1 }, 2*time.Second, 10*time.Millisecond)
	recs := bans.stored()
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "Alice", rec.Name)
	assert.Equal(t, "STEAM_0:0:123", rec.SteamID)
	assert.Equal(t, "[U:1:246]", rec.SteamID3)
	assert.Equal(t, "76561197960265974", rec.SteamID64)
	assert.Equal(t, "1.2.3.4", rec.IP)
	assert.Equal(t, BanTypeIP, rec.BanType)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "admin1", rec.AdminName)
	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, 60*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))

	entry := audit.recorded()[0]
	assert.Equal(t, "ban_player", entry.Action)
	assert.Equal(t, "Server: pub #1, UserID: 2", entry.Target)
	assert.Equal(t, "Duration: 60, Reason: cheating, Player: Alice (STEAM_1:0:123)", entry.Details)
}

func TestReconcilerResolverFailureKeepsRawIdentity(t *testing.T) {
	res := &fakeResolver{err: errors.New("lookup down")}
	bans := &memBans{}
	r := startReconciler(t, res, bans, &memAudit{}, ReconcilerConfig{})

	r.Submit(aliceJob(0))

	require.Eventually(t, func() bool { return len(bans.stored()) == 1 }, 2*time.Second, 10*time.Millisecond)
	rec := bans.stored()[0]
	assert.Equal(t, "STEAM_1:0:123", rec.SteamID)
	assert.Equal(t, "STEAM_1:0:123", rec.SteamID3)
	assert.Equal(t, "STEAM_1:0:123", rec.SteamID64)
	assert.Nil(t, rec.ExpiresAt)
}

func TestReconcilerAuditsWhenInsertFails(t *testing.T) {
	bans := &memBans{err: errors.New("database is locked")}
	audit := &memAudit{}
	r := startReconciler(t, &fakeResolver{}, bans, audit, ReconcilerConfig{})

	r.Submit(aliceJob(10))

	require.Eventually(t, func() bool { return len(audit.recorded()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, bans.stored())
}

func TestReconcilerTaskTimeout(t *testing.T) {
	bans := &memBans{}
	r := startReconciler(t, &fakeResolver{block: true}, bans, &memAudit{}, ReconcilerConfig{Workers: 1, TaskTimeout: 50 * time.Millisecond})

	r.Submit(aliceJob(10))

	require.Eventually(t, func() bool { return len(bans.stored()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "STEAM_1:0:123", bans.stored()[0].SteamID)
}

func TestReconcilerProcessesManyJobs(t *testing.T) {
	bans := &memBans{}
	r := startReconciler(t, &fakeResolver{}, bans, &memAudit{}, ReconcilerConfig{Workers: 3})

	for i := 0; i < 50; i++ {
		job := aliceJob(i)
		job.UserID = int32(i)
		r.Submit(job)
	}

	require.Eventually(t, func() bool { return len(bans.stored()) == 50 }, 5*time.Second, 10*time.Millisecond)
}

func TestReconcilerStopDropsQueue(t *testing.T) {
	bans := &memBans{}
	r := NewReconciler(&fakeResolver{}, bans, &memAudit{}, ReconcilerConfig{})
	r.Submit(aliceJob(1))
	r.Submit(aliceJob(2))
	assert.Equal(t, 2, r.Pending())

	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, 0, r.Pending())

	r.Submit(aliceJob(3))
	assert.Equal(t, 0, r.Pending())
	assert.Empty(t, bans.stored())
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRecordExpiry(t *testing.T) {
	job := aliceJob(0)
	for _, minutes := range []int{0, 1, 60, 1440, 43200} {
		job.DurationMinutes = minutes
		rec := Record(job, steamid.Identity{})
		if minutes == 0 {
			assert.Nil(t, rec.ExpiresAt)
			continue
		}
		require.NotNil(t, rec.ExpiresAt)
		assert.Equal(t, time.Duration(minutes)*time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))
	}
}

func TestExpiresAtCapsHugeDurations(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, minutes := range []int{MaxBanMinutes, MaxBanMinutes + 1, 200_000_000, math.MaxInt} {
		got := ExpiresAt(created, minutes)
		require.NotNil(t, got)
		assert.True(t, got.After(created), "%d minutes", minutes)
		assert.Equal(t, time.Duration(MaxBanMinutes)*time.Minute, got.Sub(created))
	}
}

func TestRecordPartialIdentity(t *testing.T) {
	rec := Record(aliceJob(0), steamid.Identity{ID64: "76561197960265974"})
	assert.Equal(t, "76561197960265974", rec.SteamID64)
	assert.Equal(t, "STEAM_1:0:123", rec.SteamID)
	assert.Equal(t, "STEAM_1:0:123", rec.SteamID3)
}

func TestStripPort(t *testing.T) {
	assert.Equal(t, "1.2.3.4", StripPort("1.2.3.4:27005"))
	assert.Equal(t, "1.2.3.4", StripPort("1.2.3.4"))
	assert.Equal(t, "0.0.0.0", StripPort(roster.UnknownIP))
}
