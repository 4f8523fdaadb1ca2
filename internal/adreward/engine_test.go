package adreward

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEngine(client), mr
}

func TestEngine_GrantReward(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	durationMs, err := e.GrantReward(ctx, 42, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10*3_600_000), durationMs)

	count, err := e.ClaimsToday(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEngine_GrantReward_EnforcesDailyCeiling(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.GrantReward(ctx, 42, 1, 2)
	require.NoError(t, err)
	_, err = e.GrantReward(ctx, 42, 1, 2)
	require.NoError(t, err)

	_, err = e.GrantReward(ctx, 42, 1, 2)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// The rejected attempt rolled its increment back.
	count, err := e.ClaimsToday(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestEngine_GrantReward_ConcurrentLastSlot(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	const contenders = 8
	const limit = 3
	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.GrantReward(ctx, 7, 1, limit)
			switch {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, ErrQuotaExceeded):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted.Load())
	count, err := e.ClaimsToday(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestEngine_QuotaResetsAtUTCMidnight(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	e.now = func() time.Time { return day1 }

	_, err := e.GrantReward(ctx, 42, 1, 1)
	require.NoError(t, err)
	_, err = e.GrantReward(ctx, 42, 1, 1)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Ten minutes later it is a new UTC day and the counter reads zero.
	e.now = func() time.Time { return day1.Add(10 * time.Minute) }
	count, err := e.ClaimsToday(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = e.GrantReward(ctx, 42, 1, 1)
	require.NoError(t, err)
}

func TestEngine_ClaimCountersExpire(t *testing.T) {
	e, mr := newTestEngine(t)
	ctx := context.Background()

	_, err := e.GrantReward(ctx, 42, 1, 5)
	require.NoError(t, err)

	mr.FastForward(49 * time.Hour)
	count, err := e.ClaimsToday(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEngine_GrantReward_BadInput(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.GrantReward(ctx, 42, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.GrantReward(ctx, 42, -2, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.GrantReward(ctx, 42, 1, 0)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestEngine_CheckEligibility(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	ok, err := e.CheckEligibility(ctx, 42, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.GrantReward(ctx, 42, 1, 1)
	require.NoError(t, err)

	ok, err = e.CheckEligibility(ctx, 42, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.CheckEligibility(ctx, 42, 0)
	require.NoError(t, err)
	assert.False(t, ok, "feature disabled when the limit is zero")
}
