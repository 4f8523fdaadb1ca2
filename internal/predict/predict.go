package predict

import (
	"fmt"
	"math/rand"
	"time"
)

// Result is a generated Wingo-style signal. The number is plain randomness;
// size and color follow the fixed mapping the game uses for display.
type Result struct {
	Period     string `json:"period"`
	Number     int    `json:"number"`
	Size       string `json:"size"`  // Small|Big
	Color      string `json:"color"` // Red|Green|Violet
	Confidence int    `json:"confidence"`
}

// Period derives the current one-minute game period from the UTC clock.
func Period(now time.Time) string {
	utc := now.UTC()
	totalMinutes := utc.Hour()*60 + utc.Minute()
	return fmt.Sprintf("%04d%02d%02d10001%04d",
		utc.Year(), int(utc.Month()), utc.Day(), totalMinutes+1)
}

// Generate produces one signal for the current period.
func Generate(now time.Time) Result {
	n := rand.Intn(10)

	size := "Small"
	if n >= 5 {
		size = "Big"
	}

	var color string
	switch {
	case n == 0 || n == 5:
		color = "Violet"
	case n%2 == 1:
		color = "Green"
	default:
		color = "Red"
	}

	return Result{
		Period:     Period(now),
		Number:     n,
		Size:       size,
		Color:      color,
		Confidence: 88 + rand.Intn(12), // displayed range 88-99
	}
}
