// Package window holds the fixed-window counters behind the rate limiter.
package window

import (
	"context"
	"time"

	"gatekeeper/internal/ratelimit/models"
	gsync "gatekeeper/pkg/platform/sync"
	"gatekeeper/pkg/requestcontext"
)

// InMemoryWindowStore keeps one counter per key in a lock-striped map. Increment is a
// single critical section on the key's shard, so concurrent requests for the same key
// never under-count.
type InMemoryWindowStore struct {
	shards      *gsync.Shards[models.Window]
	maxPerShard int
}

type Option func(*InMemoryWindowStore)

// WithMaxKeys bounds the number of live windows. When a shard is full, inserting a new
// key evicts the window with the oldest start in that shard. 0 means unbounded.
func WithMaxKeys(n int) Option {
	return func(s *InMemoryWindowStore) {
		if n > 0 {
			s.maxPerShard = (n + gsync.ShardCount - 1) / gsync.ShardCount
		}
	}
}

func NewInMemoryWindowStore(opts ...Option) *InMemoryWindowStore {
	s := &InMemoryWindowStore{shards: gsync.NewShards[models.Window]()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment counts one request for key and returns the resulting window. A missing
// window, or one whose length has strictly elapsed, restarts at count 1 from now.
func (s *InMemoryWindowStore) Increment(ctx context.Context, key string, length time.Duration) (models.Window, error) {
	now := requestcontext.Now(ctx)
	var out models.Window

	s.shards.With(key, func(items map[string]models.Window) {
		w, ok := items[key]
		if !ok || w.Elapsed(now, length) {
			if !ok {
				s.makeRoom(items)
			}
			w = models.Window{Count: 1, Start: now, Length: length}
		} else {
			w.Count++
		}
		items[key] = w
		out = w
	})
	return out, nil
}

func (s *InMemoryWindowStore) makeRoom(items map[string]models.Window) {
	if s.maxPerShard == 0 || len(items) < s.maxPerShard {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, w := range items {
		if !found || w.Start.Before(oldest) {
			oldestKey, oldest, found = k, w.Start, true
		}
	}
	if found {
		delete(items, oldestKey)
	}
}

// Sweep drops every window whose length has elapsed. The next request for such a key
// would have restarted the window anyway, so sweeping never changes a decision.
func (s *InMemoryWindowStore) Sweep(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	removed := 0
	s.shards.Range(func(items map[string]models.Window) {
		for k, w := range items {
			if w.Elapsed(now, w.Length) {
				delete(items, k)
				removed++
			}
		}
	})
	return removed, nil
}

// Len counts live and not-yet-swept windows.
func (s *InMemoryWindowStore) Len() int {
	return s.shards.Len()
}
