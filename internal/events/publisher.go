package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Lifecycle event types published to the bus.
const (
	TypeKeyGenerated    = "key.generated"
	TypeKeyRedeemed     = "key.redeemed"
	TypeRewardGranted   = "reward.granted"
	TypeUserBanned      = "user.banned"
	TypeUserUnbanned    = "user.unbanned"
	TypeSettingsChanged = "settings.changed"
)

// Event is the wire form on the NATS subject.
type Event struct {
	Type       string `json:"type"`
	IdentityID int64  `json:"identity_id,omitempty"`
	Key        string `json:"key,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Count      int    `json:"count,omitempty"`
	At         int64  `json:"at"` // ms since epoch
}

// Publisher pushes lifecycle events to NATS with bounded retry. A nil
// Publisher is a no-op so callers never branch on wiring.
type Publisher struct {
	conn       *nats.Conn
	subject    string
	maxRetries int
}

func NewPublisher(conn *nats.Conn, subject string, maxRetries int) *Publisher {
	if subject == "" {
		subject = "keygate.events"
	}
	return &Publisher{conn: conn, subject: subject, maxRetries: maxRetries}
}

func (p *Publisher) Publish(evt Event) error {
	if p == nil || p.conn == nil {
		return nil
	}
	if evt.At == 0 {
		evt.At = time.Now().UnixMilli()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(p.subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}
