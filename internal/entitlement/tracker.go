package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStore = errors.New("store unavailable")

const remotePrefix = "entitlements:"

// Status is the answer to "is this identity currently entitled?".
type Status struct {
	Valid     bool
	ExpiresAt int64 // ms since epoch, 0 when never granted
}

// Tracker caches per-identity entitlement windows. The remote store value is
// authoritative; the local cache is a read-through copy refreshed on Commit,
// so boot-time checks need no round trip.
type Tracker struct {
	client *redis.Client
	cache  *localCache
	now    func() time.Time
}

func NewTracker(client *redis.Client, snapshotPath string) (*Tracker, error) {
	cache, err := newLocalCache(snapshotPath)
	if err != nil {
		return nil, err
	}
	return &Tracker{client: client, cache: cache, now: time.Now}, nil
}

// CheckLocal answers from the local cache only. No network dependency.
func (t *Tracker) CheckLocal(identityID int64) Status {
	exp, ok := t.cache.get(identityID)
	if !ok {
		return Status{}
	}
	if t.now().UnixMilli() >= exp {
		return Status{Valid: false, ExpiresAt: exp}
	}
	return Status{Valid: true, ExpiresAt: exp}
}

// Commit persists a freshly granted expiry: remote write first, local cache
// second. Ordering matters — a local commit before server confirmation would
// leave the node claiming access the server never recorded.
func (t *Tracker) Commit(ctx context.Context, identityID, expiresAt int64) error {
	key := remotePrefix + strconv.FormatInt(identityID, 10)
	if err := t.client.Set(ctx, key, expiresAt, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := t.cache.put(identityID, expiresAt); err != nil {
		// The remote write landed; a failed snapshot only costs a
		// round trip on the next cold start.
		return nil
	}
	return nil
}

// Refresh pulls the authoritative remote value into the local cache.
// Used when the cache is cold or suspected stale.
func (t *Tracker) Refresh(ctx context.Context, identityID int64) (Status, error) {
	key := remotePrefix + strconv.FormatInt(identityID, 10)
	raw, err := t.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	exp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("%w: corrupt entitlement for %d", ErrStore, identityID)
	}
	_ = t.cache.put(identityID, exp)
	if t.now().UnixMilli() >= exp {
		return Status{Valid: false, ExpiresAt: exp}, nil
	}
	return Status{Valid: true, ExpiresAt: exp}, nil
}

// Check answers from the local cache, falling back to the remote store when
// the identity has no cached window at all.
func (t *Tracker) Check(ctx context.Context, identityID int64) (Status, error) {
	if exp, ok := t.cache.get(identityID); ok {
		valid := t.now().UnixMilli() < exp
		return Status{Valid: valid, ExpiresAt: exp}, nil
	}
	return t.Refresh(ctx, identityID)
}
