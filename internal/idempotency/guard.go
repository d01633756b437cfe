// Package idempotency provides a process-local, short-TTL claim cache used
// to suppress duplicate work from near-simultaneous retries of the same
// request. It is best-effort only: the durable result store, shared by all
// instances, is the authoritative cross-instance idempotency check.
package idempotency

import (
	"sync"
	"time"
)

// Guard records short-lived claims keyed by request ID. A claim for a key
// can be taken at most once per TTL window.
type Guard struct {
	mu     sync.Mutex
	claims map[string]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// TryClaim records a claim for key lasting ttl and returns true, unless an
// unexpired claim already exists, in which case it returns false and mutates
// nothing. Expired entries are evicted opportunistically first.
func (g *Guard) TryClaim(key string, ttl time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.cleanupLocked(now)

	if expiry, ok := g.claims[key]; ok && now.Before(expiry) {
		return false
	}

	g.claims[key] = now.Add(ttl)
	return true
}

// Exists reports whether an unexpired claim is held for key, without
// mutating anything.
func (g *Guard) Exists(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.claims[key]
	return ok && g.now().Before(expiry)
}

// Release drops the claim for key, letting a retry proceed immediately.
// Used when a claimed request fails before any job exists.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
}

// Cleanup evicts all expired entries. TryClaim already does this
// opportunistically; Cleanup exists for timer-driven sweeps.
func (g *Guard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanupLocked(g.now())
}

func (g *Guard) cleanupLocked(now time.Time) {
	for key, expiry := range g.claims {
		if !now.Before(expiry) {
			delete(g.claims, key)
		}
	}
}

// Size returns the number of entries currently held, expired or not.
func (g *Guard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}
