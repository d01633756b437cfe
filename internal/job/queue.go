package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/platform/metrics"
)

// Common errors returned by the Queue.
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// Queue is a durable multi-consumer work queue. Enqueue persists the job
// through the Store before dispatching it on a buffered channel, so a job row
// exists before the caller proceeds. Live handles are indexed by job ID and
// by request ID; terminal jobs are answered from the store.
type Queue struct {
	store  Store
	jobs   chan *Job
	logger *slog.Logger

	mu          sync.RWMutex
	byJobID     map[uuid.UUID]*Handle
	byRequestID map[uuid.UUID]*Handle
	closed      bool
}

// NewQueue creates a queue with the specified dispatch buffer size.
func NewQueue(store Store, size int, logger *slog.Logger) *Queue {
	return &Queue{
		store:       store,
		jobs:        make(chan *Job, size),
		logger:      logger,
		byJobID:     make(map[uuid.UUID]*Handle),
		byRequestID: make(map[uuid.UUID]*Handle),
	}
}

// Enqueue durably persists a job for the request and makes it visible to
// workers. It returns a live handle, or an error if persistence or dispatch
// failed; a failure here means no job exists and the caller must surface it.
func (q *Queue) Enqueue(ctx context.Context, req *domain.EvaluationRequest) (*Handle, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	now := time.Now().UTC()
	j := &Job{
		ID:        uuid.New(),
		RequestID: req.RequestID,
		Payload:   payload,
		State:     StateWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Durability first: the row is the only record that work was requested.
	if err := q.store.SaveJob(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	h := newHandle(j.ID, j.RequestID, StateWaiting)
	q.register(h)

	select {
	case q.jobs <- j:
		metrics.UpdateQueueDepth(len(q.jobs))
		q.logger.Debug("job enqueued",
			"job_id", j.ID,
			"request_id", j.RequestID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return h, nil
	default:
		// The row would otherwise sit in waiting forever with no worker
		// ever seeing it, so mark it failed before reporting the overload.
		q.unregister(h)
		if uerr := q.store.UpdateJobState(ctx, j.ID, StateFailed, "queue full"); uerr != nil {
			q.logger.Error("failed to mark overflowed job as failed",
				"job_id", j.ID, "error", uerr)
		}
		return nil, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// GetJob returns a handle for the job ID. Live jobs are answered from the
// in-memory index; anything else falls back to the durable store, so any
// process can resolve point-in-time state. Returns store.ErrJobNotFound when
// the job is unknown to both.
func (q *Queue) GetJob(ctx context.Context, jobID uuid.UUID) (*Handle, error) {
	q.mu.RLock()
	h, ok := q.byJobID[jobID]
	q.mu.RUnlock()
	if ok {
		return h, nil
	}

	j, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	snapshot := newHandle(j.ID, j.RequestID, j.State)
	snapshot.failureReason = j.FailureReason
	return snapshot, nil
}

// GetJobByRequestID returns the live handle for a request ID, if this process
// currently has one in flight. Used to short-circuit duplicate submissions
// that lose the idempotency claim.
func (q *Queue) GetJobByRequestID(requestID uuid.UUID) (*Handle, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.byRequestID[requestID]
	return h, ok
}

// Channel exposes the dispatch channel to workers.
func (q *Queue) Channel() <-chan *Job {
	return q.jobs
}

// Recover reloads unfinished jobs from the store after a restart: waiting
// jobs are requeued as-is, jobs stranded in active are reset to waiting and
// requeued. Re-running a job whose result was already committed is harmless
// because the result write is idempotent.
func (q *Queue) Recover(ctx context.Context) error {
	waiting, err := q.store.GetJobsByState(ctx, StateWaiting, 0)
	if err != nil {
		return fmt.Errorf("failed to load waiting jobs: %w", err)
	}

	active, err := q.store.GetJobsByState(ctx, StateActive, 0)
	if err != nil {
		return fmt.Errorf("failed to load active jobs: %w", err)
	}

	q.logger.Info("recovering unfinished jobs",
		"waiting_count", len(waiting),
		"active_count", len(active))

	for _, j := range waiting {
		q.requeue(ctx, j)
	}

	for _, j := range active {
		if err := q.store.UpdateJobState(ctx, j.ID, StateWaiting, ""); err != nil {
			q.logger.Error("failed to reset interrupted job",
				"job_id", j.ID, "error", err)
			continue
		}
		j.State = StateWaiting
		q.requeue(ctx, j)
	}

	return nil
}

// requeue registers a handle for a stored job (reusing the live one if this
// process already tracks it) and pushes the job to the dispatch channel,
// logging (not erroring) when the channel is full; the row stays in waiting
// and the next recovery pass picks it up.
func (q *Queue) requeue(ctx context.Context, j *Job) {
	h, existing := q.lookup(j.ID)
	if !existing {
		h = newHandle(j.ID, j.RequestID, StateWaiting)
		q.register(h)
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueDepth(len(q.jobs))
	default:
		if !existing {
			q.unregister(h)
		}
		q.logger.Error("failed to requeue job, queue is full",
			"job_id", j.ID,
			"request_id", j.RequestID)
	}
}

// Close stops accepting new jobs and closes the dispatch channel.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("job queue closed")
	}
}

// lookup returns the live handle for a job ID, if any.
func (q *Queue) lookup(jobID uuid.UUID) (*Handle, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.byJobID[jobID]
	return h, ok
}

func (q *Queue) register(h *Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.byJobID[h.jobID] = h
	q.byRequestID[h.requestID] = h
}

// unregister removes a handle from both indexes. Called once a job reaches a
// terminal state: the durable store answers for it from then on.
func (q *Queue) unregister(h *Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.byJobID, h.jobID)
	delete(q.byRequestID, h.requestID)
}
