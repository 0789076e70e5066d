package sync

import (
	"sync"
)

// ShardCount is the number of lock stripes.
const ShardCount = 32

// Shards is a lock-striped string-keyed map. Each key lives in exactly one shard and all
// access to that shard's map happens under its mutex, so a read-modify-write inside With is
// atomic for the key while unrelated keys proceed in parallel.
type Shards[V any] struct {
	shards [ShardCount]shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// NewShards creates an empty striped map.
func NewShards[V any]() *Shards[V] {
	s := &Shards[V]{}
	for i := range s.shards {
		s.shards[i].items = make(map[string]V)
	}
	return s
}

// With runs fn with exclusive access to the shard that owns key.
// fn may read, insert or delete any entry of that shard; it must not call back into s.
func (s *Shards[V]) With(key string, fn func(items map[string]V)) {
	sh := &s.shards[ShardFor(key)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(sh.items)
}

// Range visits every shard in turn, holding one shard lock at a time.
// The view is not a global snapshot.
func (s *Shards[V]) Range(fn func(items map[string]V)) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		fn(sh.items)
		sh.mu.Unlock()
	}
}

// Len counts entries across all shards.
func (s *Shards[V]) Len() int {
	n := 0
	s.Range(func(items map[string]V) { n += len(items) })
	return n
}

// ShardFor returns the shard index for key. Empty keys map to shard 0.
func ShardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % ShardCount)
}

// hashString is a djb2-style hash giving a good spread for short keys.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
