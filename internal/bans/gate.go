package bans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var ErrStore = errors.New("store unavailable")

const (
	flagPrefix = "bans:"
	chanPrefix = "keygate.bans."
)

// Flag is the stored ban state for one identity.
type Flag struct {
	Banned bool   `json:"banned"`
	Status string `json:"status"` // human-readable label, e.g. "Active"/"Banned"
}

// Gate owns the per-identity ban flag. A banned identity is denied all
// interactions immediately, with higher precedence than any entitlement.
type Gate struct {
	client *redis.Client
}

func NewGate(client *redis.Client) *Gate {
	return &Gate{client: client}
}

func flagKey(identityID int64) string {
	return flagPrefix + strconv.FormatInt(identityID, 10)
}

// IsBanned reads the current flag. Missing flag means not banned.
func (g *Gate) IsBanned(ctx context.Context, identityID int64) (bool, error) {
	raw, err := g.client.Get(ctx, flagKey(identityID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var f Flag
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return false, fmt.Errorf("%w: corrupt ban flag for %d", ErrStore, identityID)
	}
	return f.Banned, nil
}

// Toggle flips the flag (admin only) and broadcasts the change.
// No audit trail here beyond the flag itself; the admin surface records one.
func (g *Gate) Toggle(ctx context.Context, identityID int64) (Flag, error) {
	banned, err := g.IsBanned(ctx, identityID)
	if err != nil {
		return Flag{}, err
	}

	f := Flag{Banned: !banned, Status: "Active"}
	if f.Banned {
		f.Status = "Banned"
	}
	data, err := json.Marshal(f)
	if err != nil {
		return Flag{}, err
	}
	if err := g.client.Set(ctx, flagKey(identityID), data, 0).Err(); err != nil {
		return Flag{}, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if err := g.client.Publish(ctx, chanPrefix+strconv.FormatInt(identityID, 10), data).Err(); err != nil {
		// Subscribers also read the flag on connect, so a lost publish
		// surfaces on their next reconnect.
		return f, nil
	}
	return f, nil
}

// Subscribe delivers the current flag first, then every change, until the
// context is cancelled. The returned cancel must be called when the owning
// view closes to avoid leaking the subscription.
func (g *Gate) Subscribe(ctx context.Context, identityID int64) (<-chan Flag, func(), error) {
	sub := g.client.Subscribe(ctx, chanPrefix+strconv.FormatInt(identityID, 10))

	// Initial state before the change stream.
	banned, err := g.IsBanned(ctx, identityID)
	if err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan Flag, 4)
	initial := Flag{Banned: banned, Status: "Active"}
	if banned {
		initial.Status = "Banned"
	}
	out <- initial

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var f Flag
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}
