package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/job"
	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/store"
)

// JobStore implements the job.Store interface using PostgreSQL.
type JobStore struct {
	db store.DBTX
}

// NewJobStore creates a new JobStore.
func NewJobStore(db store.DBTX) *JobStore {
	return &JobStore{db: db}
}

// SaveJob persists a job row.
func (s *JobStore) SaveJob(ctx context.Context, j *job.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, request_id, payload, state, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.RequestID,
		j.Payload,
		j.State,
		j.FailureReason,
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", j.ID,
			"request_id", j.RequestID,
			"error", err)
		return fmt.Errorf("failed to save job to database: %w", err)
	}

	return nil
}

// UpdateJobState transitions a job's state in the database.
func (s *JobStore) UpdateJobState(ctx context.Context, jobID uuid.UUID, state job.State, failureReason string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET state = $1, failure_reason = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query, state, failureReason, time.Now().UTC(), jobID)
	if err != nil {
		log.Error("failed to update job state",
			"job_id", jobID,
			"state", state,
			"error", err)
		return fmt.Errorf("failed to update job state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no job found with ID to update state", "job_id", jobID)
	}

	return nil
}

// GetJob returns the job row for an ID.
func (s *JobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*job.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, request_id, payload, state, failure_reason, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to query job", "job_id", jobID, "error", err)
		return nil, fmt.Errorf("failed to query job: %w", err)
	}

	return j, nil
}

// GetJobsByState retrieves jobs in the given state, oldest first, optionally
// filtered to those whose last update is older than olderThan.
func (s *JobStore) GetJobsByState(ctx context.Context, state job.State, olderThan time.Duration) ([]*job.Job, error) {
	log := logger.FromContext(ctx)

	var query string
	var args []any

	if olderThan > 0 {
		query = `
			SELECT id, request_id, payload, state, failure_reason, created_at, updated_at
			FROM jobs
			WHERE state = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = []any{state, time.Now().UTC().Add(-olderThan)}
	} else {
		query = `
			SELECT id, request_id, payload, state, failure_reason, created_at, updated_at
			FROM jobs
			WHERE state = $1
			ORDER BY created_at ASC
		`
		args = []any{state}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by state", "state", state, "error", err)
		return nil, fmt.Errorf("failed to query jobs by state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", "state", state, "error", err)
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j             job.Job
		failureReason sql.NullString
	)

	err := row.Scan(
		&j.ID,
		&j.RequestID,
		&j.Payload,
		&j.State,
		&failureReason,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.FailureReason = failureReason.String
	return &j, nil
}
