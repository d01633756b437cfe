package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuardTryClaim(t *testing.T) {
	t.Run("first claim succeeds, duplicate within TTL fails", func(t *testing.T) {
		guard := NewGuard()

		assert.True(t, guard.TryClaim("req-1", time.Minute))
		assert.False(t, guard.TryClaim("req-1", time.Minute))
	})

	t.Run("distinct keys claim independently", func(t *testing.T) {
		guard := NewGuard()

		assert.True(t, guard.TryClaim("req-1", time.Minute))
		assert.True(t, guard.TryClaim("req-2", time.Minute))
	})

	t.Run("claim succeeds again after TTL expiry", func(t *testing.T) {
		guard := NewGuard()
		current := time.Now()
		guard.now = func() time.Time { return current }

		assert.True(t, guard.TryClaim("req-1", 30*time.Second))
		assert.False(t, guard.TryClaim("req-1", 30*time.Second))

		current = current.Add(31 * time.Second)
		assert.True(t, guard.TryClaim("req-1", 30*time.Second))
	})

	t.Run("expired entries are evicted on claim", func(t *testing.T) {
		guard := NewGuard()
		current := time.Now()
		guard.now = func() time.Time { return current }

		guard.TryClaim("old-1", time.Second)
		guard.TryClaim("old-2", time.Second)
		assert.Equal(t, 2, guard.Size())

		current = current.Add(2 * time.Second)
		guard.TryClaim("new", time.Minute)
		assert.Equal(t, 1, guard.Size())
	})
}

func TestGuardExists(t *testing.T) {
	guard := NewGuard()
	current := time.Now()
	guard.now = func() time.Time { return current }

	assert.False(t, guard.Exists("req-1"))

	guard.TryClaim("req-1", time.Minute)
	assert.True(t, guard.Exists("req-1"))

	current = current.Add(2 * time.Minute)
	assert.False(t, guard.Exists("req-1"))
}

func TestGuardRelease(t *testing.T) {
	guard := NewGuard()

	assert.True(t, guard.TryClaim("req-1", time.Minute))
	guard.Release("req-1")
	assert.True(t, guard.TryClaim("req-1", time.Minute))
}

func TestGuardCleanup(t *testing.T) {
	guard := NewGuard()
	current := time.Now()
	guard.now = func() time.Time { return current }

	guard.TryClaim("req-1", time.Second)
	guard.TryClaim("req-2", time.Minute)

	current = current.Add(10 * time.Second)
	guard.Cleanup()

	assert.Equal(t, 1, guard.Size())
	assert.True(t, guard.Exists("req-2"))
}
