package cache

import (
	"sync"
	"time"
)

// Entry is a stored fetch result. Entries are replaced wholesale, never
// mutated in place.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Age returns how long ago the entry was stored.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Fresh reports whether the entry is still servable: now - StoredAt < ttl.
func (e Entry[V]) Fresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// MemoryStore is the in-memory entry store behind a Coordinator.
//
// Contract:
// - Concurrency: safe for concurrent use; the lock is held per operation only.
// - Freshness: the store does not judge freshness, callers do.
type MemoryStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

// NewMemoryStore creates an empty store.
func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{entries: make(map[string]Entry[V])}
}

// Get returns the entry for key, fresh or not.
func (s *MemoryStore[V]) Get(key string) (Entry[V], bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

// Set stores e under key, overwriting any prior entry.
func (s *MemoryStore[V]) Set(key string, e Entry[V]) {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Delete removes key. Idempotent.
func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of physically present entries, stale ones included.
func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes every entry that is no longer fresh at now and returns how
// many were removed.
func (s *MemoryStore[V]) Sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !e.Fresh(now, ttl) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
