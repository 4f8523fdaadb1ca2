package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/netrixlabs/keygate/internal/adreward"
	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/entitlement"
	"github.com/netrixlabs/keygate/internal/events"
	"github.com/netrixlabs/keygate/internal/metrics"
	"github.com/netrixlabs/keygate/internal/settings"
)

// AdHandler serves the free ad-reward entitlement path.
type AdHandler struct {
	Engine   *adreward.Engine
	Sessions *adreward.Sessions
	Tracker  *entitlement.Tracker
	Gate     *bans.Gate
	Settings *settings.Store
	Events   *events.Publisher
	Metrics  *metrics.Collector
}

type eligibilityResponse struct {
	Eligible    bool `json:"eligible"`
	ClaimsToday int  `json:"claimsToday"`
	DailyLimit  int  `json:"dailyLimit"`
	AdsTarget   int  `json:"adsTarget"`
}

// Eligibility GET /api/v1/ads/eligibility?id=123
func (h *AdHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := identityParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	banned, err := h.Gate.IsBanned(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if banned {
		h.Metrics.BanDenials.Inc()
		writeBanned(w)
		return
	}

	cfg, err := h.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	claims, err := h.Engine.ClaimsToday(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eligibilityResponse{
		Eligible:    claims < cfg.DailyAdLimit,
		ClaimsToday: claims,
		DailyLimit:  cfg.DailyAdLimit,
		AdsTarget:   cfg.AdsTarget,
	})
}

type watchRequest struct {
	IdentityID int64 `json:"identityId"`
}

type watchResponse struct {
	Accepted   bool   `json:"accepted"`
	State      string `json:"state"`
	Watched    int    `json:"watched"`
	Target     int    `json:"target"`
	CooldownMs int64  `json:"cooldownMs"`
}

// Watch POST /api/v1/ads/watch
// Records one finished ad play against the identity's server-side session.
// Plays inside the cooldown window are rejected without advancing the count,
// so a client cannot fast-forward the loop.
func (h *AdHandler) Watch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityID == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

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

	cfg, err := h.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	sess := h.Sessions.Acquire(req.IdentityID, cfg.AdsTarget)
	accepted := sess.BeginWatch()
	if accepted {
		sess.RecordWatch()
	}

	state, watched, target, cooldownLeft := sess.Snapshot()
	writeJSON(w, http.StatusOK, watchResponse{
		Accepted:   accepted,
		State:      string(state),
		Watched:    watched,
		Target:     target,
		CooldownMs: cooldownLeft.Milliseconds(),
	})
}

type claimRequest struct {
	IdentityID int64 `json:"identityId"`
}

type claimResponse struct {
	Success    bool  `json:"success"`
	DurationMs int64 `json:"durationMs"`
	ExpiresAt  int64 `json:"expiresAt"`
}

// Claim POST /api/v1/ads/claim
// Consumes one daily ad-reward slot once the server-side session reports the
// target reached. The session is dropped on grant, so the next claim needs a
// fresh watch loop.
func (h *AdHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityID == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

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

	cfg, err := h.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	sess, ok := h.Sessions.Peek(req.IdentityID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "TARGET NOT REACHED"})
		return
	}
	if state, _, _, _ := sess.Snapshot(); state != adreward.StateReady {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "TARGET NOT REACHED"})
		return
	}

	durationMs, err := h.Engine.GrantReward(r.Context(), req.IdentityID, cfg.AdRewardHours, cfg.DailyAdLimit)
	if err != nil {
		h.Metrics.RewardGrants.WithLabelValues(grantOutcome(err)).Inc()
		writeError(w, err)
		return
	}
	h.Sessions.Drop(req.IdentityID)

	expiresAt := time.Now().UnixMilli() + durationMs
	if err := h.Tracker.Commit(r.Context(), req.IdentityID, expiresAt); err != nil {
		log.Printf("entitlement commit failed for %d after ad reward: %v", req.IdentityID, err)
	}

	h.Metrics.RewardGrants.WithLabelValues("success").Inc()
	if err := h.Events.Publish(events.Event{
		Type:       events.TypeRewardGranted,
		IdentityID: req.IdentityID,
		DurationMs: durationMs,
	}); err != nil {
		log.Printf("event publish failed: %v", err)
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Success:    true,
		DurationMs: durationMs,
		ExpiresAt:  expiresAt,
	})
}

func grantOutcome(err error) string {
	if errors.Is(err, adreward.ErrQuotaExceeded) {
		return "quota_exceeded"
	}
	return "error"
}
