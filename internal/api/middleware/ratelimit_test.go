package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/events"
	"github.com/mockmate/eval-api/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.EvaluationEvent
}

func (e *recordingEmitter) EmitEvent(ctx context.Context, event *events.EvaluationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) recorded() []*events.EvaluationEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.EvaluationEvent(nil), e.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withCaller(subject string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.WithCaller(r.Context(), shared.Caller{Name: "tester", Subject: subject})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows under the limit and rejects over it", func(t *testing.T) {
		limiter := ratelimit.NewLimiter("credential", ratelimit.NewMemoryCounterStore(), 2, time.Minute, testLogger())
		mw := NewRateLimitMiddleware(limiter, nil)

		okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := withCaller("subject-a", mw.Limit(okHandler))

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, retryAfter, 1)
		assert.LessOrEqual(t, retryAfter, 60)
	})

	t.Run("subjects are limited independently", func(t *testing.T) {
		limiter := ratelimit.NewLimiter("credential", ratelimit.NewMemoryCounterStore(), 1, time.Minute, testLogger())
		mw := NewRateLimitMiddleware(limiter, nil)

		okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		handlerA := withCaller("subject-a", mw.Limit(okHandler))
		handlerB := withCaller("subject-b", mw.Limit(okHandler))

		rec := httptest.NewRecorder()
		handlerA.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handlerA.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		// A different credential still has its own budget.
		rec = httptest.NewRecorder()
		handlerB.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("publishes a rate-limited event on rejection", func(t *testing.T) {
		limiter := ratelimit.NewLimiter("credential", ratelimit.NewMemoryCounterStore(), 1, time.Minute, testLogger())
		emitter := &recordingEmitter{}
		mw := NewRateLimitMiddleware(limiter, emitter)

		okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler := withCaller("subject-a", mw.Limit(okHandler))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, emitter.recorded(), "allowed requests publish nothing")

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		recorded := emitter.recorded()
		require.Len(t, recorded, 1)
		assert.Equal(t, events.EventRequestRateLimited, recorded[0].Type)

		var payload map[string]string
		require.NoError(t, recorded[0].UnmarshalPayload(&payload))
		assert.Equal(t, "credential", payload["limiter"])
		assert.Equal(t, "subject-a", payload["subject"])
	})

	t.Run("request without caller passes through", func(t *testing.T) {
		limiter := ratelimit.NewLimiter("credential", ratelimit.NewMemoryCounterStore(), 1, time.Minute, testLogger())
		mw := NewRateLimitMiddleware(limiter, nil)

		next := &captureHandler{}
		rec := httptest.NewRecorder()
		mw.Limit(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.True(t, next.called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
