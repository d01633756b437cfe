package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Evaluation lifecycle event types.
const (
	// EventEvaluationAccepted is emitted when a request is claimed and queued.
	EventEvaluationAccepted = "evaluation.accepted"

	// EventEvaluationCompleted is emitted when a result is durably stored.
	EventEvaluationCompleted = "evaluation.completed"

	// EventEvaluationFailed is emitted when processing ends in failure.
	EventEvaluationFailed = "evaluation.failed"

	// EventRequestRateLimited is emitted when a caller is turned away by a
	// rate limiter.
	EventRequestRateLimited = "evaluation.rate_limited"
)

// EvaluationEvent represents a lifecycle transition of an evaluation request.
// It carries enough context for analytics sinks without direct dependencies
// on the job or store packages.
type EvaluationEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the EventEvaluation* constants
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// OccurredAt is the timestamp when the event was created
	OccurredAt time.Time `json:"occurred_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *EvaluationEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvaluationEvent creates an EvaluationEvent with the given type and payload.
func NewEvaluationEvent(eventType string, payload interface{}) (*EvaluationEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &EvaluationEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    payloadBytes,
		OccurredAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *EvaluationEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *EvaluationEvent) error
}
