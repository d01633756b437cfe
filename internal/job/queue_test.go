package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRequest() *domain.EvaluationRequest {
	return &domain.EvaluationRequest{
		RequestID:  uuid.New(),
		QuestionID: "q-1",
		Payload: domain.EvaluationPayload{
			Kind: domain.PayloadText,
			Text: "an answer",
		},
		SubmittedAt: time.Now().UTC(),
	}
}

// memJobStore is an in-memory Store for tests.
type memJobStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*Job
	saveErr error
	saves   int
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *memJobStore) SaveJob(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	copied := *j
	s.jobs[j.ID] = &copied
	return nil
}

func (s *memJobStore) UpdateJobState(ctx context.Context, jobID uuid.UUID, state State, failureReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	j.State = state
	j.FailureReason = failureReason
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memJobStore) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *memJobStore) GetJobsByState(ctx context.Context, state State, olderThan time.Duration) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Job
	cutoff := time.Now().UTC().Add(-olderThan)
	for _, j := range s.jobs {
		if j.State != state {
			continue
		}
		if olderThan != 0 && j.UpdatedAt.After(cutoff) {
			continue
		}
		copied := *j
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memJobStore) saved(jobID uuid.UUID) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[jobID]
}

func TestQueueEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the job before dispatch", func(t *testing.T) {
		js := newMemJobStore()
		q := NewQueue(js, 4, testLogger())

		req := testRequest()
		h, err := q.Enqueue(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, h)

		assert.Equal(t, req.RequestID, h.RequestID())
		assert.Equal(t, StateWaiting, h.State())

		row := js.saved(h.ID())
		require.NotNil(t, row, "job row must exist after enqueue")
		assert.Equal(t, StateWaiting, row.State)
		assert.NotEmpty(t, row.Payload)
	})

	t.Run("returns no handle when persistence fails", func(t *testing.T) {
		js := newMemJobStore()
		js.saveErr = errors.New("disk full")
		q := NewQueue(js, 4, testLogger())

		h, err := q.Enqueue(ctx, testRequest())
		require.Error(t, err)
		assert.Nil(t, h)
	})

	t.Run("queue full marks the row failed", func(t *testing.T) {
		js := newMemJobStore()
		q := NewQueue(js, 1, testLogger())

		_, err := q.Enqueue(ctx, testRequest())
		require.NoError(t, err)

		h, err := q.Enqueue(ctx, testRequest())
		require.ErrorIs(t, err, ErrQueueFull)
		assert.Nil(t, h)

		// Exactly one failed row: the overflowed job must not sit in
		// waiting with no worker ever seeing it.
		failed, err := js.GetJobsByState(ctx, StateFailed, 0)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "queue full", failed[0].FailureReason)
	})

	t.Run("refuses after close", func(t *testing.T) {
		q := NewQueue(newMemJobStore(), 1, testLogger())
		q.Close()

		_, err := q.Enqueue(ctx, testRequest())
		assert.ErrorIs(t, err, ErrQueueClosed)
	})
}

func TestQueueGetJob(t *testing.T) {
	ctx := context.Background()

	t.Run("live job answered from the index", func(t *testing.T) {
		q := NewQueue(newMemJobStore(), 4, testLogger())

		h, err := q.Enqueue(ctx, testRequest())
		require.NoError(t, err)

		got, err := q.GetJob(ctx, h.ID())
		require.NoError(t, err)
		assert.Same(t, h, got)
	})

	t.Run("terminal job answered from the store", func(t *testing.T) {
		js := newMemJobStore()
		q := NewQueue(js, 4, testLogger())

		h, err := q.Enqueue(ctx, testRequest())
		require.NoError(t, err)

		require.NoError(t, js.UpdateJobState(ctx, h.ID(), StateFailed, "upstream error"))
		h.fail("upstream error")
		q.unregister(h)

		got, err := q.GetJob(ctx, h.ID())
		require.NoError(t, err)
		assert.Equal(t, StateFailed, got.State())
		assert.Equal(t, "upstream error", got.FailureReason())
	})

	t.Run("unknown job", func(t *testing.T) {
		q := NewQueue(newMemJobStore(), 4, testLogger())

		_, err := q.GetJob(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})
}

func TestQueueGetJobByRequestID(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newMemJobStore(), 4, testLogger())

	req := testRequest()
	h, err := q.Enqueue(ctx, req)
	require.NoError(t, err)

	got, ok := q.GetJobByRequestID(req.RequestID)
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = q.GetJobByRequestID(uuid.New())
	assert.False(t, ok)
}

func TestQueueRecover(t *testing.T) {
	ctx := context.Background()

	t.Run("requeues waiting and resets active jobs", func(t *testing.T) {
		js := newMemJobStore()

		waiting := &Job{ID: uuid.New(), RequestID: uuid.New(), State: StateWaiting, Payload: []byte(`{}`)}
		active := &Job{ID: uuid.New(), RequestID: uuid.New(), State: StateActive, Payload: []byte(`{}`)}
		done := &Job{ID: uuid.New(), RequestID: uuid.New(), State: StateCompleted, Payload: []byte(`{}`)}
		require.NoError(t, js.SaveJob(ctx, waiting))
		require.NoError(t, js.SaveJob(ctx, active))
		require.NoError(t, js.SaveJob(ctx, done))

		q := NewQueue(js, 8, testLogger())
		require.NoError(t, q.Recover(ctx))

		assert.Len(t, q.Channel(), 2)

		row, err := js.GetJob(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, StateWaiting, row.State)

		// Both recovered jobs have live handles again.
		_, ok := q.GetJobByRequestID(waiting.RequestID)
		assert.True(t, ok)
		_, ok = q.GetJobByRequestID(active.RequestID)
		assert.True(t, ok)
	})
}
