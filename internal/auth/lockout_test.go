package auth

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockout(t *testing.T) (*Lockout, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLockout(client), mr
}

func TestLockout_LocksAtThreshold(t *testing.T) {
	l, _ := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < LockoutThreshold-1; i++ {
		require.NoError(t, l.RecordFailure(ctx, "1.2.3.4"))
		locked, err := l.IsLockedOut(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, locked, "locked before threshold at failure %d", i+1)
	}

	require.NoError(t, l.RecordFailure(ctx, "1.2.3.4"))
	locked, err := l.IsLockedOut(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, locked)

	// A different source stays unaffected.
	locked, err = l.IsLockedOut(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockout_WindowExpires(t *testing.T) {
	l, mr := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < LockoutThreshold; i++ {
		require.NoError(t, l.RecordFailure(ctx, "1.2.3.4"))
	}
	locked, err := l.IsLockedOut(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, locked)

	mr.FastForward(LockoutTTL + 1)
	locked, err = l.IsLockedOut(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockout_ClearResetsCounter(t *testing.T) {
	l, _ := newTestLockout(t)
	ctx := context.Background()

	for i := 0; i < LockoutThreshold-1; i++ {
		require.NoError(t, l.RecordFailure(ctx, "1.2.3.4"))
	}
	l.Clear(ctx, "1.2.3.4")

	// After a successful login the next miss starts a fresh count.
	require.NoError(t, l.RecordFailure(ctx, "1.2.3.4"))
	locked, err := l.IsLockedOut(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)
}
