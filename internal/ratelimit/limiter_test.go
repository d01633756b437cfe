package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingStore always errors, simulating an unreachable counter backend.
type failingStore struct{}

func (failingStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to the limit", func(t *testing.T) {
		limiter := NewLimiter("test", NewMemoryCounterStore(), 3, time.Minute, testLogger())

		for i := 0; i < 3; i++ {
			decision := limiter.Allow(ctx, "alice")
			assert.True(t, decision.Allowed, "request %d should be allowed", i+1)
		}
	})

	t.Run("rejects the request over the limit", func(t *testing.T) {
		limiter := NewLimiter("test", NewMemoryCounterStore(), 2, time.Minute, testLogger())

		limiter.Allow(ctx, "alice")
		limiter.Allow(ctx, "alice")

		decision := limiter.Allow(ctx, "alice")
		require.False(t, decision.Allowed)
		assert.Zero(t, decision.Remaining)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, decision.RetryAfter, time.Minute)
	})

	t.Run("subjects are counted independently", func(t *testing.T) {
		limiter := NewLimiter("test", NewMemoryCounterStore(), 1, time.Minute, testLogger())

		assert.True(t, limiter.Allow(ctx, "alice").Allowed)
		assert.False(t, limiter.Allow(ctx, "alice").Allowed)
		assert.True(t, limiter.Allow(ctx, "bob").Allowed)
	})

	t.Run("remaining decreases as the window fills", func(t *testing.T) {
		limiter := NewLimiter("test", NewMemoryCounterStore(), 3, time.Minute, testLogger())

		assert.Equal(t, int64(2), limiter.Allow(ctx, "alice").Remaining)
		assert.Equal(t, int64(1), limiter.Allow(ctx, "alice").Remaining)
		assert.Equal(t, int64(0), limiter.Allow(ctx, "alice").Remaining)
	})

	t.Run("counter resets when a new window starts", func(t *testing.T) {
		store := NewMemoryCounterStore()
		limiter := NewLimiter("test", store, 1, time.Minute, testLogger())

		// Pin both clocks to a window boundary so the test never
		// straddles one.
		base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		current := base
		limiter.now = func() time.Time { return current }
		store.now = func() time.Time { return current }

		assert.True(t, limiter.Allow(ctx, "alice").Allowed)
		assert.False(t, limiter.Allow(ctx, "alice").Allowed)

		current = base.Add(time.Minute + time.Second)
		assert.True(t, limiter.Allow(ctx, "alice").Allowed)
	})

	t.Run("fails open when the store errors", func(t *testing.T) {
		limiter := NewLimiter("test", failingStore{}, 1, time.Minute, testLogger())

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow(ctx, "alice").Allowed)
		}
	})
}

func TestLimiterName(t *testing.T) {
	limiter := NewLimiter("credential", NewMemoryCounterStore(), 1, time.Minute, testLogger())
	assert.Equal(t, "credential", limiter.Name())
}

func TestMemoryCounterStore(t *testing.T) {
	ctx := context.Background()

	t.Run("increments within the TTL", func(t *testing.T) {
		store := NewMemoryCounterStore()

		count, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("expired entries restart from one", func(t *testing.T) {
		store := NewMemoryCounterStore()
		current := time.Now()
		store.now = func() time.Time { return current }

		_, err := store.Increment(ctx, "k", time.Second)
		require.NoError(t, err)

		current = current.Add(2 * time.Second)
		count, err := store.Increment(ctx, "k", time.Second)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
