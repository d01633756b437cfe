package middleware

import (
	"net/http"
	"strconv"

	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/events"
	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/platform/metrics"
	"github.com/mockmate/eval-api/internal/ratelimit"
)

// RateLimitMiddleware applies a credential-scoped limiter to every request
// passing through it. It must run after AuthMiddleware so the caller
// identity is present in the context.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	emitter events.EventEmitter
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. The emitter may
// be nil, in which case rejections are only counted, not published.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, emitter events.EventEmitter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, emitter: emitter}
}

// Limit rejects requests over the per-credential budget with 429 and a
// Retry-After header. Requests without a caller identity pass through; the
// auth middleware already rejected unauthenticated traffic.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := shared.CallerFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		decision := m.limiter.Allow(r.Context(), caller.Subject)
		if !decision.Allowed {
			metrics.RecordRateLimited(m.limiter.Name())
			emitRateLimited(r, m.emitter, m.limiter.Name(), caller.Subject)

			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// emitRateLimited publishes a rate-limited lifecycle event. The subject is
// already a credential hash, never the raw credential.
func emitRateLimited(r *http.Request, emitter events.EventEmitter, limiterName, subject string) {
	if emitter == nil {
		return
	}

	event, err := events.NewEvaluationEvent(events.EventRequestRateLimited, map[string]string{
		"limiter": limiterName,
		"subject": subject,
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to build rate-limited event", "error", err)
		return
	}

	if err := emitter.EmitEvent(r.Context(), event); err != nil {
		logger.FromContext(r.Context()).Warn("rate-limited event handler failed", "error", err)
	}
}
