package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a single windowed counter with its expiry.
type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is a process-local CounterStore. It backs the
// per-user-per-action limiter, where cross-instance consistency is not
// required.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// now is injectable for tests.
	now func() time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Increment bumps the counter for key, creating it with the given TTL if
// absent or expired. Expired entries are evicted opportunistically.
func (s *MemoryCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}

	e, ok := s.entries[key]
	if !ok {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}
