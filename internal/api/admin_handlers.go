package api

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/netrixlabs/keygate/internal/audit"
	"github.com/netrixlabs/keygate/internal/auth"
	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/events"
	"github.com/netrixlabs/keygate/internal/keys"
	"github.com/netrixlabs/keygate/internal/metrics"
	"github.com/netrixlabs/keygate/internal/middleware"
	"github.com/netrixlabs/keygate/internal/settings"
	"github.com/netrixlabs/keygate/internal/tokens"
	"github.com/netrixlabs/keygate/internal/users"
)

// AdminConfig is the operator credential material from process config.
type AdminConfig struct {
	Operator string
	PINHash  string
}

// AdminHandler is the authenticated operator surface: key management, user
// list with ban toggles, global settings, stats.
type AdminHandler struct {
	Cfg       AdminConfig
	Registry  *keys.Registry
	Gate      *bans.Gate
	Settings  *settings.Store
	Users     *users.Service
	Tokens    *tokens.Manager
	Lockout   *auth.Lockout
	Blacklist auth.TokenBlacklist
	Audit     *audit.Service
	Events    *events.Publisher
	Metrics   *metrics.Collector
}

type loginRequest struct {
	PIN string `json:"pin"`
}

// Login POST /api/v1/admin/login
// The PIN is verified server-side against an argon2id hash; repeated
// failures hard-lock the source address.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	source := clientIP(r)

	locked, err := h.Lockout.IsLockedOut(r.Context(), source)
	if err == nil && locked {
		h.Metrics.AdminLogins.WithLabelValues("locked_out").Inc()
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "LOCKED OUT"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PIN == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	ok, err := auth.CheckPIN(req.PIN, h.Cfg.PINHash)
	if err != nil || !ok {
		_ = h.Lockout.RecordFailure(r.Context(), source)
		h.Metrics.AdminLogins.WithLabelValues("failure").Inc()
		h.Audit.WriteEvent(r.Context(), audit.Event{
			Actor: h.Cfg.Operator, Action: "admin.login", Result: "failure", ClientIP: source,
		})
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "ACCESS DENIED"})
		return
	}

	token, err := h.Tokens.GenerateSessionToken(h.Cfg.Operator)
	if err != nil {
		writeError(w, err)
		return
	}

	h.Lockout.Clear(r.Context(), source)
	h.Metrics.AdminLogins.WithLabelValues("success").Inc()
	h.Audit.WriteEvent(r.Context(), audit.Event{
		Actor: h.Cfg.Operator, Action: "admin.login", Result: "success", ClientIP: source,
	})

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout POST /api/v1/admin/logout — revokes the presented token.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}
	claims, err := h.Tokens.ValidateToken(parts[1])
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "ACCESS DENIED"})
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl > 0 {
		if err := h.Blacklist.AddToBlacklist(r.Context(), claims.ID, ttl); err != nil {
			writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Quantity int `json:"quantity"`
	Days     int `json:"days"`
	Hours    int `json:"hours"`
	Minutes  int `json:"minutes"`
}

// GenerateKeys POST /api/v1/admin/keys
func (h *AdminHandler) GenerateKeys(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	durationMs := int64(req.Days)*24*3_600_000 + int64(req.Hours)*3_600_000 + int64(req.Minutes)*60_000
	generated, err := h.Registry.Generate(r.Context(), req.Quantity, durationMs)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit(r, "keys.generate", "", "success")
	if err := h.Events.Publish(events.Event{Type: events.TypeKeyGenerated, Count: len(generated), DurationMs: durationMs}); err != nil {
		log.Printf("event publish failed: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"keys": generated})
}

type keyView struct {
	keys.LicenseKey
	Remaining string `json:"remaining"`
}

// ListKeys GET /api/v1/admin/keys
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	list, err := h.Registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	views := make([]keyView, 0, len(list))
	redeemed := 0
	for _, k := range list {
		if k.IsUsed {
			redeemed++
		}
		views = append(views, keyView{LicenseKey: k, Remaining: k.RemainingLabel(now)})
	}

	h.Metrics.KeysActive.Set(float64(len(list)))
	h.Metrics.KeysRedeemed.Set(float64(redeemed))

	writeJSON(w, http.StatusOK, map[string]any{"keys": views})
}

// DeleteKey DELETE /api/v1/admin/keys/{key}
func (h *AdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	ks := chi.URLParam(r, "key")
	if err := h.Registry.Delete(r.Context(), ks); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, "keys.delete", ks, "success")
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllKeys DELETE /api/v1/admin/keys
func (h *AdminHandler) DeleteAllKeys(w http.ResponseWriter, r *http.Request) {
	if err := h.Registry.DeleteAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, "keys.delete_all", "", "success")
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.Users.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": records})
}

// ToggleBan POST /api/v1/admin/users/{id}/ban
func (h *AdminHandler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	flag, err := h.Gate.Toggle(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	evtType := events.TypeUserUnbanned
	if flag.Banned {
		evtType = events.TypeUserBanned
	}
	h.audit(r, "users.ban_toggle", strconv.FormatInt(id, 10), "success")
	if err := h.Events.Publish(events.Event{Type: evtType, IdentityID: id}); err != nil {
		log.Printf("event publish failed: %v", err)
	}

	writeJSON(w, http.StatusOK, flag)
}

// GetSettings GET /api/v1/admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Settings.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// Admin view includes the verification credentials.
	writeJSON(w, http.StatusOK, cfg)
}

// SaveSettings PUT /api/v1/admin/settings
func (h *AdminHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.Global
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
		return
	}

	if err := h.Settings.Save(r.Context(), cfg); err != nil {
		h.audit(r, "settings.save", "", "failure")
		writeError(w, err)
		return
	}

	h.audit(r, "settings.save", "", "success")
	if err := h.Events.Publish(events.Event{Type: events.TypeSettingsChanged}); err != nil {
		log.Printf("event publish failed: %v", err)
	}
	writeJSON(w, http.StatusOK, cfg)
}

type statsResponse struct {
	TotalKeys    int `json:"totalKeys"`
	RedeemedKeys int `json:"redeemedKeys"`
	ActiveUsers  int `json:"activeUsers"`
}

// Stats GET /api/v1/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	total, redeemed, err := h.Registry.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.Users.Count(r.Context())
	if err != nil {
		log.Printf("user count failed: %v", err)
	}

	h.Metrics.KeysActive.Set(float64(total))
	h.Metrics.KeysRedeemed.Set(float64(redeemed))
	h.Metrics.UsersSeen.Set(float64(count))

	writeJSON(w, http.StatusOK, statsResponse{
		TotalKeys:    total,
		RedeemedKeys: redeemed,
		ActiveUsers:  count,
	})
}

// AuditLog GET /api/v1/admin/audit
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func (h *AdminHandler) audit(r *http.Request, action, target, result string) {
	actor := h.Cfg.Operator
	if op, ok := middleware.GetOperator(r.Context()); ok {
		actor = op
	}
	h.Audit.WriteEvent(r.Context(), audit.Event{
		Actor:    actor,
		Action:   action,
		TargetID: target,
		Result:   result,
		ClientIP: clientIP(r),
	})
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
