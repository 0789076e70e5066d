// Package store holds the in-memory lockout records.
package store

import (
	"context"
	"time"

	"gatekeeper/internal/lockout/models"
	gsync "gatekeeper/pkg/platform/sync"
	"gatekeeper/pkg/requestcontext"
)

// InMemoryStore keeps lockout records in a lock-striped map. Every read-modify-write for a
// key runs inside one shard critical section.
type InMemoryStore struct {
	shards  *gsync.Shards[models.Record]
	idleTTL time.Duration
}

type Option func(*InMemoryStore)

// WithIdleTTL lets Sweep drop unlocked records whose last failure is older than ttl.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{shards: gsync.NewShards[models.Record]()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordFailure counts one failure for key and returns the updated record. A record whose
// lock has already expired is replaced by a fresh one before counting.
func (s *InMemoryStore) RecordFailure(ctx context.Context, key string, cfg models.Config) (models.Record, error) {
	now := requestcontext.Now(ctx)
	var out models.Record
	s.shards.With(key, func(items map[string]models.Record) {
		r, ok := items[key]
		if !ok || r.LockExpiredAt(now) {
			r = models.Record{Key: key}
		}
		r.RegisterFailure(now, cfg)
		items[key] = r
		out = r
	})
	return out, nil
}

// GetActive returns the record for key. A record whose lock has expired is deleted in the
// same critical section and reported as absent.
func (s *InMemoryStore) GetActive(ctx context.Context, key string) (models.Record, bool, error) {
	now := requestcontext.Now(ctx)
	var (
		r  models.Record
		ok bool
	)
	s.shards.With(key, func(items map[string]models.Record) {
		r, ok = items[key]
		if ok && r.LockExpiredAt(now) {
			delete(items, key)
			r, ok = models.Record{}, false
		}
	})
	return r, ok, nil
}

// Delete removes the record for key and reports whether one existed.
func (s *InMemoryStore) Delete(_ context.Context, key string) (bool, error) {
	var existed bool
	s.shards.With(key, func(items map[string]models.Record) {
		_, existed = items[key]
		delete(items, key)
	})
	return existed, nil
}

// Sweep drops records whose lock has expired and, when an idle TTL is set, unlocked records
// that have seen no failure within it.
func (s *InMemoryStore) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	removed := 0
	s.shards.Range(func(items map[string]models.Record) {
		for k, r := range items {
			idle := s.idleTTL > 0 && r.LockedUntil == nil && now.Sub(r.LastFailureAt) >= s.idleTTL
			if r.LockExpiredAt(now) || idle {
				delete(items, k)
				removed++
			}
		}
	})
	return removed, nil
}

func (s *InMemoryStore) Len() int {
	return s.shards.Len()
}
