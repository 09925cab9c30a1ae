package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for default dates and run timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time in UTC from the package clock.
func Now() time.Time {
	return clock.Now().UTC()
}

// DefaultForecastDate returns yesterday's date (UTC) in YYYYMMDD form. The
// model's input analysis for the current day is usually not yet published.
func DefaultForecastDate() string {
	return FormatDate(Now().AddDate(0, 0, -1))
}

// DefaultRetentionCutoff returns the date 30 days ago (UTC) in YYYYMMDD form.
func DefaultRetentionCutoff() string {
	return FormatDate(Now().AddDate(0, 0, -30))
}
