package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/entitlement"
	"github.com/netrixlabs/keygate/internal/predict"
	"github.com/netrixlabs/keygate/internal/settings"
	"github.com/netrixlabs/keygate/internal/users"
	"github.com/netrixlabs/keygate/internal/verify"
)

// SessionHandler serves the client-side boot and gated app surface.
type SessionHandler struct {
	Users    *users.Service
	Tracker  *entitlement.Tracker
	Gate     *bans.Gate
	Settings *settings.Store
	Verifier verify.MembershipChecker
}

type helloRequest struct {
	Identity users.Identity `json:"identity"`
}

type helloResponse struct {
	Identity  users.Identity  `json:"identity"`
	Entitled  bool            `json:"entitled"`
	ExpiresAt int64           `json:"expiresAt,omitempty"`
	Banned    bool            `json:"banned"`
	Verified  bool            `json:"verified"`
	Settings  settings.Global `json:"settings"`
}

// Hello POST /api/v1/session/hello
// Records the contact and returns the full access snapshot the front end
// needs to pick its first screen.
func (h *SessionHandler) Hello(w http.ResponseWriter, r *http.Request) {
	var req helloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}
	id := req.Identity
	if id.ID == 0 {
		id = users.Guest()
	}

	h.Users.Touch(r.Context(), id)

	cfg, err := h.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	banned, err := h.Gate.IsBanned(r.Context(), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if banned {
		// Still a full response: the client renders the lockout screen
		// from this snapshot and holds the ban subscription open.
		writeJSON(w, http.StatusOK, helloResponse{
			Identity: id,
			Banned:   true,
			Settings: cfg.Sanitized(),
		})
		return
	}

	status, err := h.Tracker.Check(r.Context(), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	verified := true
	if cfg.StrictMode {
		verified = h.Verifier.IsMember(r.Context(), cfg.BotToken, cfg.ChannelChatID, id.ID)
	}

	writeJSON(w, http.StatusOK, helloResponse{
		Identity:  id,
		Entitled:  status.Valid,
		ExpiresAt: status.ExpiresAt,
		Banned:    false,
		Verified:  verified,
		Settings:  cfg.Sanitized(),
	})
}

// Predict GET /api/v1/predict?id=123
// The gated payload: ban checked first, then the entitlement window.
func (h *SessionHandler) Predict(w http.ResponseWriter, r *http.Request) {
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
		writeBanned(w)
		return
	}

	status, err := h.Tracker.Check(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !status.Valid {
		writeJSON(w, http.StatusPaymentRequired, ErrorResponse{Error: "LICENSE EXPIRED"})
		return
	}

	writeJSON(w, http.StatusOK, predict.Generate(time.Now()))
}
