package bans

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGate(client)
}

func TestGate_DefaultNotBanned(t *testing.T) {
	g := newTestGate(t)
	banned, err := g.IsBanned(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestGate_ToggleFlipsFlag(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	f, err := g.Toggle(ctx, 42)
	require.NoError(t, err)
	assert.True(t, f.Banned)
	assert.Equal(t, "Banned", f.Status)

	banned, err := g.IsBanned(ctx, 42)
	require.NoError(t, err)
	assert.True(t, banned)

	f, err = g.Toggle(ctx, 42)
	require.NoError(t, err)
	assert.False(t, f.Banned)
	assert.Equal(t, "Active", f.Status)

	banned, err = g.IsBanned(ctx, 42)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestGate_ToggleIsPerIdentity(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	_, err := g.Toggle(ctx, 42)
	require.NoError(t, err)

	banned, err := g.IsBanned(ctx, 43)
	require.NoError(t, err)
	assert.False(t, banned, "toggling one identity must not touch another")
}

func TestGate_SubscribeDeliversInitialThenChanges(t *testing.T) {
	g := newTestGate(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, stop, err := g.Subscribe(ctx, 42)
	require.NoError(t, err)
	defer stop()

	select {
	case f := <-ch:
		assert.False(t, f.Banned, "initial state precedes the change stream")
	case <-time.After(2 * time.Second):
		t.Fatal("no initial flag delivered")
	}

	_, err = g.Toggle(ctx, 42)
	require.NoError(t, err)

	select {
	case f := <-ch:
		assert.True(t, f.Banned)
		assert.Equal(t, "Banned", f.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("toggle not delivered to subscriber")
	}
}
