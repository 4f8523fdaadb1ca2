package keys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "keys:"
	indexKey   = "keys:index"
	ChangeChan = "keygate.keys.changed"

	// WATCH conflicts are retried; a loser re-reads and sees isUsed=true,
	// so a handful of rounds is plenty.
	redeemRetries = 8
)

// ChangeNotice is pushed on ChangeChan whenever the key set mutates.
type ChangeNotice struct {
	Op  string `json:"op"` // generated|redeemed|deleted|cleared
	Key string `json:"key,omitempty"`
}

// Registry owns license key records in the entitlement store.
type Registry struct {
	client *redis.Client
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

// Generate mints quantity fresh unused keys of the given duration and writes
// them in one batched update. Returns the key strings in generation order.
func (r *Registry) Generate(ctx context.Context, quantity int, durationMs int64) ([]string, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if durationMs <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	now := time.Now().UnixMilli()
	generated := make([]string, 0, quantity)

	pipe := r.client.Pipeline()
	for i := 0; i < quantity; i++ {
		ks, err := NewKeyString()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		rec := LicenseKey{
			Key:           ks,
			DurationHours: float64(durationMs) / 3_600_000,
			DurationMs:    durationMs,
			CreatedAt:     now,
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		pipe.Set(ctx, keyPrefix+ks, data, 0)
		pipe.SAdd(ctx, indexKey, ks)
		generated = append(generated, ks)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	r.notify(ctx, ChangeNotice{Op: "generated"})
	return generated, nil
}

// Redeem consumes a key for identityID and returns its grant duration in ms.
// At most one Redeem succeeds per key, enforced by a WATCH transaction on the
// record: concurrent redeemers conflict at EXEC, retry, and observe isUsed.
func (r *Registry) Redeem(ctx context.Context, keyString string, identityID int64) (int64, error) {
	ks, err := Normalize(keyString)
	if err != nil {
		return 0, err
	}
	storeKey := keyPrefix + ks

	var durationMs int64
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, storeKey).Result()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}

		var rec LicenseKey
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("%w: corrupt record for %s: %v", ErrStore, ks, err)
		}
		if rec.IsUsed {
			return ErrAlreadyUsed
		}

		rec.IsUsed = true
		rec.UsedBy = identityID
		rec.ActivatedAt = time.Now().UnixMilli()
		durationMs = rec.DurationMs

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, storeKey, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < redeemRetries; i++ {
		err := r.client.Watch(ctx, txf, storeKey)
		if err == nil {
			r.notify(ctx, ChangeNotice{Op: "redeemed", Key: ks})
			return durationMs, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // record touched concurrently, re-read
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyUsed) || errors.Is(err, ErrStore) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return 0, fmt.Errorf("%w: redeem transaction contention on %s", ErrStore, ks)
}

// Delete removes a single key. Deleting a nonexistent key is a no-op.
func (r *Registry) Delete(ctx context.Context, keyString string) error {
	ks, err := Normalize(keyString)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, keyPrefix+ks)
	pipe.SRem(ctx, indexKey, ks)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	r.notify(ctx, ChangeNotice{Op: "deleted", Key: ks})
	return nil
}

// DeleteAll wipes the entire key set. Idempotent.
func (r *Registry) DeleteAll(ctx context.Context) error {
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	pipe := r.client.Pipeline()
	for _, ks := range members {
		pipe.Del(ctx, keyPrefix+ks)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	r.notify(ctx, ChangeNotice{Op: "cleared"})
	return nil
}

// Get fetches a single record without mutating it.
func (r *Registry) Get(ctx context.Context, keyString string) (*LicenseKey, error) {
	ks, err := Normalize(keyString)
	if err != nil {
		return nil, err
	}
	raw, err := r.client.Get(ctx, keyPrefix+ks).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var rec LicenseKey
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt record for %s: %v", ErrStore, ks, err)
	}
	return &rec, nil
}

// List returns every key record, newest first.
func (r *Registry) List(ctx context.Context) ([]LicenseKey, error) {
	members, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	storeKeys := make([]string, len(members))
	for i, ks := range members {
		storeKeys[i] = keyPrefix + ks
	}
	values, err := r.client.MGet(ctx, storeKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	list := make([]LicenseKey, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without record, skip
		}
		var rec LicenseKey
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		list = append(list, rec)
	}

	// Newest first for the dashboard
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt > list[j].CreatedAt })
	return list, nil
}

// Stats returns total and redeemed key counts.
func (r *Registry) Stats(ctx context.Context) (total int, redeemed int, err error) {
	list, err := r.List(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, k := range list {
		if k.IsUsed {
			redeemed++
		}
	}
	return len(list), redeemed, nil
}

// Subscribe streams key-set change notices until the context is cancelled.
// The returned channel closes on teardown.
func (r *Registry) Subscribe(ctx context.Context) (<-chan ChangeNotice, func()) {
	sub := r.client.Subscribe(ctx, ChangeChan)
	out := make(chan ChangeNotice, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var n ChangeNotice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

func (r *Registry) notify(ctx context.Context, n ChangeNotice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	// Best effort; listeners reconcile via List on their next refresh anyway.
	_ = r.client.Publish(ctx, ChangeChan, data).Err()
}
