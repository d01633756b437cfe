package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State represents the point-in-time lifecycle state of a job.
type State string

// Possible job states.
const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state is one a job never leaves.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the persisted unit of background work. The payload is a JSON copy
// of the triggering evaluation request, so any process can reconstruct and
// re-run the work after a crash.
type Job struct {
	ID            uuid.UUID
	RequestID     uuid.UUID
	Payload       []byte
	State         State
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store defines the durable persistence layer for jobs. The queue writes
// through it on enqueue so that a job row exists before any caller proceeds.
type Store interface {
	// SaveJob persists a new job row.
	SaveJob(ctx context.Context, j *Job) error

	// UpdateJobState transitions a job's state, recording a failure reason
	// when the state is failed.
	UpdateJobState(ctx context.Context, jobID uuid.UUID, state State, failureReason string) error

	// GetJob returns the job row for an ID, or store.ErrJobNotFound.
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)

	// GetJobsByState retrieves jobs in the given state. If olderThan is
	// non-zero, only jobs whose last update is older than that duration
	// are returned.
	GetJobsByState(ctx context.Context, state State, olderThan time.Duration) ([]*Job, error)
}
