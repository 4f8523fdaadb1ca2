package keys

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("key not found")
	ErrAlreadyUsed  = errors.New("key already used")
	ErrStore        = errors.New("store unavailable")
)

// LicenseKey is the stored record for a single redeemable key.
// DurationMs is fixed at creation; IsUsed flips to true exactly once.
type LicenseKey struct {
	Key           string  `json:"key"`
	DurationHours float64 `json:"durationHours"` // display convenience, logic uses DurationMs
	DurationMs    int64   `json:"durationMs"`
	IsUsed        bool    `json:"isUsed"`
	UsedBy        int64   `json:"usedBy,omitempty"`
	CreatedAt     int64   `json:"createdAt"`
	ActivatedAt   int64   `json:"activatedAt,omitempty"`
}

// ExpiresAt returns the absolute expiry for a redeemed key, 0 if unused.
func (k *LicenseKey) ExpiresAt() int64 {
	if !k.IsUsed || k.ActivatedAt == 0 {
		return 0
	}
	return k.ActivatedAt + k.DurationMs
}

// RemainingLabel formats the remaining validity for the admin dashboard.
// Never mutates the record; display-only derivation.
func (k *LicenseKey) RemainingLabel(now time.Time) string {
	if !k.IsUsed || k.ActivatedAt == 0 {
		return "NOT USED"
	}
	diff := k.ExpiresAt() - now.UnixMilli()
	if diff <= 0 {
		return "EXPIRED"
	}
	d := time.Duration(diff) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
