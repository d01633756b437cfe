package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/store"
)

// ResultStore implements store.ResultStore using PostgreSQL. Results are
// dual-indexed: request_id is the primary key and job_id carries a unique
// index, so lookups by either are single-row reads.
type ResultStore struct {
	db store.DBTX
}

// NewResultStore creates a new ResultStore.
func NewResultStore(db store.DBTX) *ResultStore {
	return &ResultStore{db: db}
}

// UpsertResult writes the result keyed by request ID. ON CONFLICT DO NOTHING
// makes re-deliveries idempotent no-ops: the first write wins and the row is
// never mutated afterwards.
func (s *ResultStore) UpsertResult(ctx context.Context, result *domain.EvaluationResult) error {
	log := logger.FromContext(ctx)

	coaching, err := json.Marshal(result.Coaching)
	if err != nil {
		return fmt.Errorf("failed to encode coaching fields: %w", err)
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO evaluation_results
			(request_id, job_id, score, feedback, coaching, duration_ms, tokens_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`

	_, err = s.db.ExecContext(ctx, query,
		result.RequestID,
		result.JobID,
		result.Score,
		result.Feedback,
		coaching,
		result.DurationMs,
		result.TokensUsed,
		createdAt,
	)
	if err != nil {
		log.Error("failed to upsert evaluation result",
			"request_id", result.RequestID,
			"job_id", result.JobID,
			"error", err)
		return fmt.Errorf("failed to upsert evaluation result: %w", err)
	}

	return nil
}

// GetByRequestID returns the stored result for a request ID.
func (s *ResultStore) GetByRequestID(ctx context.Context, requestID uuid.UUID) (*domain.EvaluationResult, error) {
	return s.getByColumn(ctx, "request_id", requestID)
}

// GetByJobID returns the stored result for a job ID.
func (s *ResultStore) GetByJobID(ctx context.Context, jobID uuid.UUID) (*domain.EvaluationResult, error) {
	return s.getByColumn(ctx, "job_id", jobID)
}

func (s *ResultStore) getByColumn(ctx context.Context, column string, id uuid.UUID) (*domain.EvaluationResult, error) {
	log := logger.FromContext(ctx)

	// column is one of two compile-time constants, never caller input.
	query := fmt.Sprintf(`
		SELECT request_id, job_id, score, feedback, coaching, duration_ms, tokens_used, created_at
		FROM evaluation_results
		WHERE %s = $1
	`, column)

	var (
		result   domain.EvaluationResult
		coaching []byte
	)

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&result.RequestID,
		&result.JobID,
		&result.Score,
		&result.Feedback,
		&coaching,
		&result.DurationMs,
		&result.TokensUsed,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrResultNotFound
		}
		log.Error("failed to query evaluation result",
			"column", column,
			"id", id,
			"error", err)
		return nil, fmt.Errorf("failed to query evaluation result: %w", err)
	}

	if err := json.Unmarshal(coaching, &result.Coaching); err != nil {
		return nil, fmt.Errorf("failed to decode coaching fields: %w", err)
	}

	return &result, nil
}
