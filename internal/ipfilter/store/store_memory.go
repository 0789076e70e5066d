package store

import (
	"context"
	"errors"
	"net/netip"
	"sync"

	"gatekeeper/internal/ipfilter/models"
)

var errInvalidPrefix = errors.New("invalid ip prefix")

// InMemoryStore keeps the deny and allow lists. Lists are small and read on every request,
// so a match is a linear scan under a read lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[models.List]map[netip.Prefix]struct{}
}

func New() *InMemoryStore {
	return &InMemoryStore{
		entries: map[models.List]map[netip.Prefix]struct{}{
			models.ListDeny:  {},
			models.ListAllow: {},
		},
	}
}

// Add puts prefix on list. Adding an existing prefix is a no-op.
func (s *InMemoryStore) Add(_ context.Context, list models.List, prefix netip.Prefix) error {
	if !prefix.IsValid() {
		return errInvalidPrefix
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.entries[list]
	if !ok {
		return errors.New("unknown ip list " + string(list))
	}
	entries[prefix.Masked()] = struct{}{}
	return nil
}

// Remove takes prefix off list and reports whether it was there.
func (s *InMemoryStore) Remove(_ context.Context, list models.List, prefix netip.Prefix) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries[list]
	if _, ok := entries[prefix.Masked()]; !ok {
		return false, nil
	}
	delete(entries, prefix.Masked())
	return true, nil
}

// Contains reports whether addr falls inside any prefix on list.
func (s *InMemoryStore) Contains(_ context.Context, list models.List, addr netip.Addr) (bool, error) {
	if !addr.IsValid() {
		return false, nil
	}
	addr = addr.Unmap()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for prefix := range s.entries[list] {
		if prefix.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of prefixes on list.
func (s *InMemoryStore) Count(_ context.Context, list models.List) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[list]), nil
}

// Len returns the number of prefixes on both lists.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entries := range s.entries {
		n += len(entries)
	}
	return n
}
