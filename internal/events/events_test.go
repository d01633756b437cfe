package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluationEvent(t *testing.T) {
	type testPayload struct {
		RequestID uuid.UUID `json:"request_id"`
		JobID     uuid.UUID `json:"job_id"`
	}

	payload := testPayload{
		RequestID: uuid.New(),
		JobID:     uuid.New(),
	}

	event, err := NewEvaluationEvent(EventEvaluationAccepted, payload)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventEvaluationAccepted, event.Type)
	assert.NotNil(t, event.Payload)
	assert.WithinDuration(t, time.Now(), event.OccurredAt, 2*time.Second)

	var decoded testPayload
	err = json.Unmarshal(event.Payload, &decoded)
	require.NoError(t, err)
	assert.Equal(t, payload.RequestID, decoded.RequestID)
	assert.Equal(t, payload.JobID, decoded.JobID)
}

func TestUnmarshalPayload(t *testing.T) {
	event, err := NewEvaluationEvent(EventEvaluationCompleted, map[string]string{"request_id": "abc"})
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, "abc", decoded["request_id"])
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *EvaluationEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *EvaluationEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestEventHandler(t *testing.T) {
	handler := &MockEventHandler{}

	event, err := NewEvaluationEvent(EventEvaluationFailed, map[string]string{"request_id": "abc"})
	require.NoError(t, err)

	err = handler.HandleEvent(context.Background(), event)
	assert.NoError(t, err)
	assert.Equal(t, 1, handler.HandledCount)
	assert.Equal(t, event, handler.LastEvent)

	expectedErr := errors.New("handler error")
	handler.HandlerError = expectedErr
	err = handler.HandleEvent(context.Background(), event)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 2, handler.HandledCount)
}
