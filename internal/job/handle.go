package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WaitState is the outcome of a bounded wait on a job handle.
type WaitState int

// Possible bounded-wait outcomes. A timeout is a first-class value here, not
// an error: the job keeps running and the caller falls back to polling.
const (
	WaitFinished WaitState = iota
	WaitTimedOut
	WaitFailed
)

// WaitOutcome carries the result of Handle.Wait. FailureReason is set only
// when State is WaitFailed.
type WaitOutcome struct {
	State         WaitState
	FailureReason string
}

// Handle is a live view of a queued job. Handles returned by Enqueue track
// the job through the in-process runner; handles reconstructed from the
// store are point-in-time snapshots.
type Handle struct {
	jobID     uuid.UUID
	requestID uuid.UUID

	mu            sync.RWMutex
	state         State
	failureReason string

	// done is closed exactly once, when the job reaches a terminal state.
	done chan struct{}
}

func newHandle(jobID, requestID uuid.UUID, state State) *Handle {
	h := &Handle{
		jobID:     jobID,
		requestID: requestID,
		state:     state,
		done:      make(chan struct{}),
	}
	if state.Terminal() {
		close(h.done)
	}
	return h
}

// ID returns the queue-assigned job identifier.
func (h *Handle) ID() uuid.UUID {
	return h.jobID
}

// RequestID returns the caller-supplied request identifier the job serves.
func (h *Handle) RequestID() uuid.UUID {
	return h.requestID
}

// State returns the job's current state, non-blocking.
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// FailureReason returns the recorded failure reason, empty unless the job
// has failed.
func (h *Handle) FailureReason() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failureReason
}

// Wait blocks until the job reaches a terminal state, the budget elapses, or
// the context is cancelled. Budget expiry and context cancellation both
// surface as WaitTimedOut; the job itself keeps running either way.
func (h *Handle) Wait(ctx context.Context, budget time.Duration) WaitOutcome {
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-h.done:
		return h.terminalOutcome()
	case <-timer.C:
		return WaitOutcome{State: WaitTimedOut}
	case <-ctx.Done():
		return WaitOutcome{State: WaitTimedOut}
	}
}

func (h *Handle) terminalOutcome() WaitOutcome {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state == StateFailed {
		return WaitOutcome{State: WaitFailed, FailureReason: h.failureReason}
	}
	return WaitOutcome{State: WaitFinished}
}

// markActive transitions the handle to active. No-op if already terminal.
func (h *Handle) markActive() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() {
		h.state = StateActive
	}
}

// markWaiting transitions the handle back to waiting (stuck-job reset).
func (h *Handle) markWaiting() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.Terminal() {
		h.state = StateWaiting
	}
}

// complete moves the handle to completed and releases all waiters.
func (h *Handle) complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.state = StateCompleted
	close(h.done)
}

// fail moves the handle to failed with the given reason and releases all
// waiters.
func (h *Handle) fail(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.state = StateFailed
	h.failureReason = reason
	close(h.done)
}
