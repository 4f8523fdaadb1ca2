package predict

import (
	"testing"
	"time"
)

func TestPeriod_Format(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 37, 12, 0, time.UTC)
	got := Period(at)
	// 14:37 UTC = minute 877 of the day, period counts from 1.
	want := "20260830100010878"
	if got != want {
		t.Errorf("Period = %s, want %s", got, want)
	}
}

func TestPeriod_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2026, 8, 30, 2, 0, 0, 0, loc) // 21:00 UTC previous day
	got := Period(local)
	if got[:8] != "20260829" {
		t.Errorf("Period must derive from UTC, got %s", got)
	}
}

func TestGenerate_Mapping(t *testing.T) {
	now := time.Now()
	for i := 0; i < 500; i++ {
		r := Generate(now)
		if r.Number < 0 || r.Number > 9 {
			t.Fatalf("number out of range: %d", r.Number)
		}

		wantSize := "Small"
		if r.Number >= 5 {
			wantSize = "Big"
		}
		if r.Size != wantSize {
			t.Errorf("number %d: size %s, want %s", r.Number, r.Size, wantSize)
		}

		switch {
		case r.Number == 0 || r.Number == 5:
			if r.Color != "Violet" {
				t.Errorf("number %d: color %s, want Violet", r.Number, r.Color)
			}
		case r.Number%2 == 1:
			if r.Color != "Green" {
				t.Errorf("number %d: color %s, want Green", r.Number, r.Color)
			}
		default:
			if r.Color != "Red" {
				t.Errorf("number %d: color %s, want Red", r.Number, r.Color)
			}
		}

		if r.Confidence < 88 || r.Confidence > 99 {
			t.Errorf("confidence out of range: %d", r.Confidence)
		}
		if r.Period == "" {
			t.Error("empty period")
		}
	}
}
