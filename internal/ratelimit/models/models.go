package models

import (
	"time"
)

// Decision is the outcome of one fixed-window check.
type Decision struct {
	Allowed bool `json:"allowed"`
	Limit   int  `json:"limit"`
	// Count is the number of requests seen in the current window, including this one.
	Count     int       `json:"count"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// RetryAfter is in whole seconds and only set when not allowed.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Window is the per-key counter state: a count of requests since Start.
type Window struct {
	Count int
	Start time.Time
	// Length is the window the counter was opened with, used by sweeps.
	Length time.Duration
}

// Elapsed reports whether now is strictly more than the window length past Start.
func (w Window) Elapsed(now time.Time, length time.Duration) bool {
	return now.Sub(w.Start) > length
}
