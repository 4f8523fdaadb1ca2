package adreward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrQuotaExceeded = errors.New("daily ad reward limit reached")
	ErrStore         = errors.New("store unavailable")
	ErrInvalidInput  = errors.New("invalid input")
)

const (
	claimPrefix = "adclaims:"
	// Counters are date-keyed, so they become garbage the moment the UTC day
	// rolls over; keep them around a little longer for the admin view.
	claimTTL = 48 * time.Hour
)

// Engine enforces the daily-bounded ad reward path. One grant consumes one
// daily slot regardless of how many individual ad plays composed the session.
type Engine struct {
	client *redis.Client
	now    func() time.Time
}

func NewEngine(client *redis.Client) *Engine {
	return &Engine{client: client, now: time.Now}
}

func (e *Engine) claimKey(identityID int64) string {
	return fmt.Sprintf("%s%d:%s", claimPrefix, identityID, e.now().UTC().Format("2006-01-02"))
}

// ClaimsToday returns the identity's grant count for the current UTC day.
// A new calendar day always starts at zero: the date is part of the key.
func (e *Engine) ClaimsToday(ctx context.Context, identityID int64) (int, error) {
	val, err := e.client.Get(ctx, e.claimKey(identityID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return val, nil
}

// CheckEligibility reports whether the identity may start a reward session.
func (e *Engine) CheckEligibility(ctx context.Context, identityID int64, dailyLimit int) (bool, error) {
	if dailyLimit <= 0 {
		return false, nil
	}
	count, err := e.ClaimsToday(ctx, identityID)
	if err != nil {
		return false, err
	}
	return count < dailyLimit, nil
}

// GrantReward consumes one daily slot and returns the granted duration in ms.
// The increment and the ceiling check are a single atomic step: INCR first,
// roll back with DECR if the ceiling was crossed. Two concurrent sessions for
// the same identity cannot both land inside the last slot.
func (e *Engine) GrantReward(ctx context.Context, identityID int64, hours float64, dailyLimit int) (int64, error) {
	if hours <= 0 {
		return 0, fmt.Errorf("%w: reward hours must be positive", ErrInvalidInput)
	}
	if dailyLimit <= 0 {
		return 0, ErrQuotaExceeded
	}

	key := e.claimKey(identityID)
	count, err := e.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if count == 1 {
		e.client.Expire(ctx, key, claimTTL)
	}
	if count > int64(dailyLimit) {
		e.client.Decr(ctx, key)
		return 0, ErrQuotaExceeded
	}

	return int64(hours * 3_600_000), nil
}
