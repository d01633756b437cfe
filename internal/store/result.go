package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/domain"
)

// ResultStore persists completed evaluation outcomes, dual-keyed by request
// ID and job ID. It is the authoritative idempotency check: a stored result
// for a request ID makes any retry of that request a read, not new work.
type ResultStore interface {
	// UpsertResult writes the result for its request ID. The write is
	// atomic per key and idempotent: if a result already exists for the
	// request ID the call is a no-op, so at-least-once delivery from
	// workers is safe.
	UpsertResult(ctx context.Context, result *domain.EvaluationResult) error

	// GetByRequestID returns the stored result for a request ID, or
	// ErrResultNotFound.
	GetByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.EvaluationResult, error)

	// GetByJobID returns the stored result for a job ID, or
	// ErrResultNotFound.
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.EvaluationResult, error)
}
