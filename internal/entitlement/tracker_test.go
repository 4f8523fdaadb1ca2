package entitlement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T, snapshotPath string) (*Tracker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tr, err := NewTracker(client, snapshotPath)
	require.NoError(t, err)
	return tr, mr
}

func TestTracker_CommitThenCheckLocal(t *testing.T) {
	tr, mr := newTestTracker(t, "")
	ctx := context.Background()

	now := time.Now()
	tr.now = func() time.Time { return now }
	exp := now.Add(2 * time.Hour).UnixMilli()

	require.NoError(t, tr.Commit(ctx, 42, exp))

	// Remote value landed.
	raw, err := mr.Get("entitlements:42")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	st := tr.CheckLocal(42)
	assert.True(t, st.Valid)
	assert.Equal(t, exp, st.ExpiresAt)

	// Past the expiry instant the same entry reads as invalid.
	tr.now = func() time.Time { return time.UnixMilli(exp) }
	st = tr.CheckLocal(42)
	assert.False(t, st.Valid)
	assert.Equal(t, exp, st.ExpiresAt)
}

func TestTracker_CheckLocal_UnknownIdentity(t *testing.T) {
	tr, _ := newTestTracker(t, "")
	st := tr.CheckLocal(999)
	assert.False(t, st.Valid)
	assert.Zero(t, st.ExpiresAt)
}

func TestTracker_Refresh_PullsRemote(t *testing.T) {
	tr, mr := newTestTracker(t, "")
	ctx := context.Background()

	now := time.Now()
	tr.now = func() time.Time { return now }
	exp := now.Add(time.Hour).UnixMilli()

	// Seed the remote value through a separate client.
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, client.Set(ctx, "entitlements:7", exp, 0).Err())

	st, err := tr.Refresh(ctx, 7)
	require.NoError(t, err)
	assert.True(t, st.Valid)
	assert.Equal(t, exp, st.ExpiresAt)

	// Refresh primes the local cache.
	st = tr.CheckLocal(7)
	assert.True(t, st.Valid)
}

func TestTracker_Check_FallsBackToRemote(t *testing.T) {
	tr, mr := newTestTracker(t, "")
	ctx := context.Background()

	now := time.Now()
	tr.now = func() time.Time { return now }
	exp := now.Add(time.Hour).UnixMilli()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, client.Set(ctx, "entitlements:11", exp, 0).Err())

	st, err := tr.Check(ctx, 11)
	require.NoError(t, err)
	assert.True(t, st.Valid)

	// Never-granted identity resolves to not-valid, not an error.
	st, err = tr.Check(ctx, 12)
	require.NoError(t, err)
	assert.False(t, st.Valid)
	assert.Zero(t, st.ExpiresAt)
}

func TestTracker_SnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entitlements.json")

	tr, _ := newTestTracker(t, path)
	ctx := context.Background()

	now := time.Now()
	tr.now = func() time.Time { return now }
	exp := now.Add(3 * time.Hour).UnixMilli()
	require.NoError(t, tr.Commit(ctx, 500, exp))

	// Re-open against the same snapshot, fresh redis: the local copy alone
	// must answer without a remote round trip.
	mr2 := miniredis.RunT(t)
	client2 := redis.NewClient(&redis.Options{Addr: mr2.Addr()})
	defer client2.Close()
	tr2, err := NewTracker(client2, path)
	require.NoError(t, err)
	tr2.now = func() time.Time { return now }

	st := tr2.CheckLocal(500)
	assert.True(t, st.Valid)
	assert.Equal(t, exp, st.ExpiresAt)
}

func TestTracker_CorruptSnapshotStartsCold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entitlements.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	tr, _ := newTestTracker(t, path)
	st := tr.CheckLocal(1)
	assert.False(t, st.Valid)
	assert.Zero(t, st.ExpiresAt)
}

func TestTracker_CommitOverwritesPriorGrant(t *testing.T) {
	tr, _ := newTestTracker(t, "")
	ctx := context.Background()

	now := time.Now()
	tr.now = func() time.Time { return now }

	first := now.Add(time.Hour).UnixMilli()
	second := now.Add(48 * time.Hour).UnixMilli()
	require.NoError(t, tr.Commit(ctx, 3, first))
	require.NoError(t, tr.Commit(ctx, 3, second))

	st := tr.CheckLocal(3)
	assert.True(t, st.Valid)
	assert.Equal(t, second, st.ExpiresAt)
}
