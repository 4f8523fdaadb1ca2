package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/entitlement"
	"github.com/netrixlabs/keygate/internal/events"
	"github.com/netrixlabs/keygate/internal/keys"
	"github.com/netrixlabs/keygate/internal/metrics"
)

// KeyHandler serves the client-side redemption path.
type KeyHandler struct {
	Registry *keys.Registry
	Tracker  *entitlement.Tracker
	Gate     *bans.Gate
	Events   *events.Publisher
	Metrics  *metrics.Collector
}

type redeemRequest struct {
	Key        string `json:"key"`
	IdentityID int64  `json:"identityId"`
}

type redeemResponse struct {
	Success    bool  `json:"success"`
	DurationMs int64 `json:"durationMs"`
	ExpiresAt  int64 `json:"expiresAt"`
}

// Redeem POST /api/v1/keys/redeem
func (h *KeyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityID == 0 {
		h.Metrics.Redemptions.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	// Ban precedence: a flagged identity cannot redeem anything.
	banned, err := h.Gate.IsBanned(r.Context(), req.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	if banned {
		h.Metrics.BanDenials.Inc()
		writeBanned(w)
		return
	}

	durationMs, err := h.Registry.Redeem(r.Context(), req.Key, req.IdentityID)
	if err != nil {
		h.Metrics.Redemptions.WithLabelValues(redeemOutcome(err)).Inc()
		writeError(w, err)
		return
	}

	expiresAt := time.Now().UnixMilli() + durationMs

	// Sequenced after the store confirmed the redemption. The key record
	// already carries the authoritative activatedAt; a failed mirror write
	// only costs a cold-cache refresh later.
	if err := h.Tracker.Commit(r.Context(), req.IdentityID, expiresAt); err != nil {
		log.Printf("entitlement commit failed for %d after redeeming %s: %v", req.IdentityID, req.Key, err)
	}

	h.Metrics.Redemptions.WithLabelValues("success").Inc()
	if err := h.Events.Publish(events.Event{
		Type:       events.TypeKeyRedeemed,
		IdentityID: req.IdentityID,
		DurationMs: durationMs,
	}); err != nil {
		log.Printf("event publish failed: %v", err)
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		Success:    true,
		DurationMs: durationMs,
		ExpiresAt:  expiresAt,
	})
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, keys.ErrNotFound):
		return "not_found"
	case errors.Is(err, keys.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, keys.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// identityParam pulls ?id= from the query string.
func identityParam(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
