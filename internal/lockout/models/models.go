package models

import (
	"strings"
	"time"

	pstrings "gatekeeper/pkg/platform/strings"
)

// Record tracks consecutive failed authentication attempts for one identity+origin pair.
type Record struct {
	Key           string
	Attempts      int
	LockedUntil   *time.Time
	LastFailureAt time.Time
}

// IsLockedAt reports whether the record blocks authentication at now.
func (r Record) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockExpiredAt reports whether the record was locked and the lock has run out.
// Such a record carries no information any more and is discarded.
func (r Record) LockExpiredAt(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// RegisterFailure counts one failed attempt at now. Reaching MaxAttempts locks the record
// until now+LockDuration; every further failure while at or above the threshold pushes the
// lock out again.
func (r *Record) RegisterFailure(now time.Time, cfg Config) {
	r.Attempts++
	r.LastFailureAt = now
	if r.Attempts >= cfg.MaxAttempts {
		until := now.Add(cfg.LockDuration)
		r.LockedUntil = &until
	}
}

// Remaining is the number of failures left before the record locks.
func (r Record) Remaining(cfg Config) int {
	return max(0, cfg.MaxAttempts-r.Attempts)
}

// Status is the answer to "may this identity attempt a credential check right now".
type Status struct {
	Locked           bool
	RemainingSeconds int
}

// Config holds the lockout thresholds.
type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	// IdleTTL drops unlocked records whose last failure is older than this. 0 keeps them
	// until a successful login resets them.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		LockDuration: 15 * time.Minute,
	}
}

// NewKey builds the "identity:origin" key. The identity is trimmed and lowercased so that
// casing variants of an email share one counter.
func NewKey(identity, origin string) string {
	return pstrings.JoinKey(strings.ToLower(strings.TrimSpace(identity)), origin)
}
