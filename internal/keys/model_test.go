package keys

import (
	"testing"
	"time"
)

func TestLicenseKey_ExpiresAt(t *testing.T) {
	unused := LicenseKey{DurationMs: 1000}
	if got := unused.ExpiresAt(); got != 0 {
		t.Errorf("unused key expiry = %d, want 0", got)
	}

	used := LicenseKey{IsUsed: true, ActivatedAt: 5000, DurationMs: 2000}
	if got := used.ExpiresAt(); got != 7000 {
		t.Errorf("expiry = %d, want 7000", got)
	}
}

func TestLicenseKey_RemainingLabel(t *testing.T) {
	now := time.UnixMilli(1_000_000_000)

	unused := LicenseKey{DurationMs: 1000}
	if got := unused.RemainingLabel(now); got != "NOT USED" {
		t.Errorf("got %q, want NOT USED", got)
	}

	expired := LicenseKey{IsUsed: true, ActivatedAt: now.UnixMilli() - 10_000, DurationMs: 5_000}
	if got := expired.RemainingLabel(now); got != "EXPIRED" {
		t.Errorf("got %q, want EXPIRED", got)
	}

	remainMs := int64(3_600_000 + 25*60_000 + 9_000) // 1h 25m 9s
	active := LicenseKey{IsUsed: true, ActivatedAt: now.UnixMilli(), DurationMs: remainMs}
	if got := active.RemainingLabel(now); got != "1h 25m 9s" {
		t.Errorf("got %q, want 1h 25m 9s", got)
	}
}
