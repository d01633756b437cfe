// Package ratelimit implements fixed-window request counting. Two limiter
// instances guard the service: a credential-scoped one backed by the shared
// database (consistent across instances) and a per-user-per-action one
// backed by a process-local store, where a slightly generous effective limit
// under horizontal scaling is an accepted tradeoff.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CounterStore increments a windowed counter and returns the new count.
// Implementations must make the first increment of a window set the counter
// and its expiry atomically.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of a limiter check. RetryAfter is non-zero only
// when the request was rejected, and is the remaining life of the current
// window.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter applies a fixed-window limit per subject key. If the counter store
// is unreachable the limiter fails open: the error is logged and the request
// allowed, keeping behavior explicit and consistent across instances.
type Limiter struct {
	name   string
	store  CounterStore
	limit  int64
	window time.Duration
	logger *slog.Logger

	// now is injectable for tests.
	now func() time.Time
}

// NewLimiter creates a limiter named for logging/metrics purposes.
func NewLimiter(name string, store CounterStore, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		name:   name,
		store:  store,
		limit:  int64(limit),
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Name returns the limiter's name for logging and metrics.
func (l *Limiter) Name() string {
	return l.name
}

// Allow counts a request for subject and decides whether it may proceed.
// The window boundary is fixed (now truncated to the window size), so the
// counter resets atomically when a new window starts.
func (l *Limiter) Allow(ctx context.Context, subject string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.window)
	windowEnd := windowStart.Add(l.window)
	key := fmt.Sprintf("%s:%s:%d", l.name, subject, windowStart.Unix())

	count, err := l.store.Increment(ctx, key, windowEnd.Sub(now))
	if err != nil {
		// Fail open: losing rate limiting briefly is preferable to
		// rejecting legitimate traffic on a store outage.
		l.logger.Warn("rate limit counter store unreachable, allowing request",
			"limiter", l.name,
			"error", err)
		return Decision{Allowed: true, Remaining: l.limit}
	}

	if count > l.limit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: windowEnd.Sub(now),
		}
	}

	return Decision{Allowed: true, Remaining: l.limit - count}
}
