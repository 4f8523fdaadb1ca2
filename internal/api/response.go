package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/netrixlabs/keygate/internal/adreward"
	"github.com/netrixlabs/keygate/internal/bans"
	"github.com/netrixlabs/keygate/internal/entitlement"
	"github.com/netrixlabs/keygate/internal/keys"
	"github.com/netrixlabs/keygate/internal/settings"
)

// ErrorResponse carries the short user-visible status string the front end
// renders directly.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("response encode failed: %v", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses and the short
// status strings the UI shows. Unknown errors surface as SERVER ERROR.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, keys.ErrInvalidInput), errors.Is(err, adreward.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "INVALID INPUT"})
	case errors.Is(err, keys.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "INVALID KEY"})
	case errors.Is(err, keys.ErrAlreadyUsed):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "KEY ALREADY USED"})
	case errors.Is(err, adreward.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "DAILY LIMIT REACHED"})
	case errors.Is(err, settings.ErrConfigMissing):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "CREDENTIALS MISSING"})
	case errors.Is(err, keys.ErrStore), errors.Is(err, adreward.ErrStore),
		errors.Is(err, bans.ErrStore), errors.Is(err, settings.ErrStore),
		errors.Is(err, entitlement.ErrStore):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "SERVER ERROR"})
	default:
		log.Printf("unclassified handler error: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "SERVER ERROR"})
	}
}

func writeBanned(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "ACCESS DENIED"})
}
