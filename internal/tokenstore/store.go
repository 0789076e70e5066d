// Package tokenstore is the process-local, expiring key/value store behind the CSRF guard
// and the one-time token issuers.
//
// Expiry is enforced on every read: an entry whose deadline has passed is never returned,
// and is removed as a side effect of being looked at. Sweep removes the rest in the background.
// An entry is expired once now is at or after its deadline.
package tokenstore

import (
	"context"
	"sync"
	"time"

	"gatekeeper/pkg/requestcontext"
)

// Lookup is the outcome of a read.
type Lookup int

const (
	Absent Lookup = iota
	Found
	Expired
)

func (l Lookup) String() string {
	switch l {
	case Found:
		return "found"
	case Expired:
		return "expired"
	default:
		return "absent"
	}
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Store maps keys to values with a per-entry deadline. It is safe for concurrent use;
// every method is atomic with respect to the others.
type Store[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
}

func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{entries: make(map[K]entry[V])}
}

// Put stores value under key until now+ttl, replacing any previous entry.
func (s *Store[K, V]) Put(ctx context.Context, key K, value V, ttl time.Duration) {
	expiresAt := requestcontext.Now(ctx).Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
}

// Get returns the live value for key.
func (s *Store[K, V]) Get(ctx context.Context, key K) (V, bool) {
	v, l := s.Lookup(ctx, key)
	return v, l == Found
}

// Lookup returns the value for key and whether it was live, expired (and now removed) or absent.
// The value is returned for expired entries so callers can report on them.
func (s *Store[K, V]) Lookup(ctx context.Context, key K) (V, Lookup) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, Absent
	}
	if e.expired(now) {
		delete(s.entries, key)
		return e.value, Expired
	}
	return e.value, Found
}

// Replace removes every entry, live or expired, for which evict returns true and then stores
// value under key, all in one critical section. It returns the number of evicted entries.
func (s *Store[K, V]) Replace(ctx context.Context, key K, value V, ttl time.Duration, evict func(K, V) bool) int {
	expiresAt := requestcontext.Now(ctx).Add(ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if evict(k, e.value) {
			delete(s.entries, k)
			n++
		}
	}
	s.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	return n
}

// Delete removes key and reports whether an entry, live or not, was present.
func (s *Store[K, V]) Delete(_ context.Context, key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// DeleteFunc removes every entry, live or expired, for which match returns true.
func (s *Store[K, V]) DeleteFunc(_ context.Context, match func(K, V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if match(k, e.value) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Find scans for an entry matching match. A live match wins and is returned as Found.
// Expired matches are removed; if only expired matches exist the result is Expired.
// When consume is true the live match is removed in the same critical section.
func (s *Store[K, V]) Find(ctx context.Context, match func(K, V) bool, consume bool) (K, V, Lookup) {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		key    K
		value  V
		result = Absent
	)
	for k, e := range s.entries {
		if !match(k, e.value) {
			continue
		}
		if e.expired(now) {
			delete(s.entries, k)
			if result == Absent {
				key, value, result = k, e.value, Expired
			}
			continue
		}
		key, value, result = k, e.value, Found
		break
	}
	if result == Found && consume {
		delete(s.entries, key)
	}
	return key, value, result
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store[K, V]) Sweep(ctx context.Context) int {
	now := requestcontext.Now(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len counts stored entries, including expired ones not yet swept.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
