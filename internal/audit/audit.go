package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event is a single admin-action audit entry. Append-only: no update or
// delete methods are exposed.
type Event struct {
	EventID   uuid.UUID       `json:"event_id"` // idempotency key
	Actor     string          `json:"actor"`    // operator name from the admin token
	Action    string          `json:"action"`   // e.g. keys.generate, users.ban
	TargetID  string          `json:"target_id,omitempty"`
	Result    string          `json:"result"` // success/failure
	Reason    string          `json:"reason,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// WriteEvent records one entry. Audit failures are logged, never propagated:
// an unreachable audit table must not fail the admin operation itself.
func (s *Service) WriteEvent(ctx context.Context, evt Event) {
	if s == nil || s.DB == nil {
		return
	}
	if evt.EventID == uuid.Nil {
		evt.EventID = uuid.New()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_events (event_id, actor, action, target_id, result, reason, client_ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`
	_, err := s.DB.ExecContext(ctx, query,
		evt.EventID, evt.Actor, evt.Action, evt.TargetID, evt.Result, evt.Reason, evt.ClientIP, evt.Metadata, evt.CreatedAt,
	)
	if err != nil {
		log.Printf("audit write failed for %s (%s): %v", evt.Action, evt.EventID, err)
	}
}

// Recent returns the newest entries for the admin dashboard.
func (s *Service) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil || s.DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT event_id, actor, action, target_id, result, reason, client_ip, metadata, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var targetID, reason, clientIP sql.NullString
		var meta []byte
		if err := rows.Scan(&e.EventID, &e.Actor, &e.Action, &targetID, &e.Result, &reason, &clientIP, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TargetID = targetID.String
		e.Reason = reason.String
		e.ClientIP = clientIP.String
		e.Metadata = meta
		events = append(events, e)
	}
	return events, rows.Err()
}
