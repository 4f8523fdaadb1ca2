package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LockoutTTL       = 15 * time.Minute
	LockoutThreshold = 5
)

// Lockout throttles repeated failed admin logins per source.
type Lockout struct {
	client *redis.Client
}

func NewLockout(client *redis.Client) *Lockout {
	return &Lockout{client: client}
}

// IsLockedOut returns true while the source is in a hard lock window.
func (l *Lockout) IsLockedOut(ctx context.Context, source string) (bool, error) {
	val, err := l.client.Get(ctx, "lockout:"+source).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "locked", nil
}

// RecordFailure increments the failure count and hard-locks at the threshold.
func (l *Lockout) RecordFailure(ctx context.Context, source string) error {
	key := "lockout_count:" + source
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	// Expiry on first failure so the counting window resets itself
	if count == 1 {
		l.client.Expire(ctx, key, LockoutTTL)
	}

	if count >= LockoutThreshold {
		l.client.Set(ctx, "lockout:"+source, "locked", LockoutTTL)
		l.client.Del(ctx, key)
	}
	return nil
}

// Clear resets counters after a successful login.
func (l *Lockout) Clear(ctx context.Context, source string) {
	l.client.Del(ctx, fmt.Sprintf("lockout_count:%s", source))
}
