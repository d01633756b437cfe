package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/store"
)

// CounterStore implements ratelimit.CounterStore on the shared database, so
// the credential-scoped limiter counts consistently across all server
// instances. The upsert sets the counter and its expiry atomically in a
// single statement.
type CounterStore struct {
	db store.DBTX
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(db store.DBTX) *CounterStore {
	return &CounterStore{db: db}
}

// Increment bumps the windowed counter for key and returns the new count.
// The first increment of a window inserts the row with its expiry; later
// increments within the window bump the count.
func (s *CounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	query := `
		INSERT INTO rate_limit_counters (counter_key, count, expires_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (counter_key)
		DO UPDATE SET count = rate_limit_counters.count + 1
		RETURNING count
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, key, time.Now().UTC().Add(ttl)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count, nil
}

// DeleteExpired removes counters whose window has passed. Window starts are
// baked into the keys, so stale rows are never read again; this is pure
// garbage collection, run from a timer.
func (s *CounterStore) DeleteExpired(ctx context.Context) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_counters WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete expired rate limit counters: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Debug("deleted expired rate limit counters", "count", n)
	}

	return nil
}
