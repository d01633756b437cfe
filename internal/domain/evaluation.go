package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Limits on submitted content. Text answers above the cap are rejected at
// validation time, before any side effect.
const (
	MaxAnswerTextLength = 20000
	MaxAudioURLLength   = 2048
	MaxMetadataEntries  = 16
)

// PayloadKind discriminates the evaluation payload union.
type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadAudio PayloadKind = "audio"
)

// EvaluationPayload is a tagged union: exactly one of Text or AudioURL is
// populated, matching Kind. Workers switch exhaustively on Kind.
type EvaluationPayload struct {
	Kind     PayloadKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	AudioURL string      `json:"audio_url,omitempty"`
}

// Validate checks that exactly one variant is populated and that it matches
// the declared kind.
func (p EvaluationPayload) Validate() error {
	switch p.Kind {
	case PayloadText:
		if p.Text == "" {
			return fmt.Errorf("%w: text payload requires text", ErrValidation)
		}
		if p.AudioURL != "" {
			return fmt.Errorf("%w: text payload must not carry an audio URL", ErrValidation)
		}
		if len(p.Text) > MaxAnswerTextLength {
			return fmt.Errorf("%w: answer text exceeds %d characters", ErrValidation, MaxAnswerTextLength)
		}
	case PayloadAudio:
		if p.AudioURL == "" {
			return fmt.Errorf("%w: audio payload requires an audio URL", ErrValidation)
		}
		if p.Text != "" {
			return fmt.Errorf("%w: audio payload must not carry text", ErrValidation)
		}
		if len(p.AudioURL) > MaxAudioURLLength {
			return fmt.Errorf("%w: audio URL exceeds %d characters", ErrValidation, MaxAudioURLLength)
		}
	default:
		return fmt.Errorf("%w: unknown payload kind %q", ErrValidation, p.Kind)
	}
	return nil
}

// EvaluationRequest is a single logical submission. RequestID is supplied by
// the caller and reused on retry; the request is immutable once accepted.
type EvaluationRequest struct {
	RequestID   uuid.UUID         `json:"request_id"`
	QuestionID  string            `json:"question_id"`
	UserID      uuid.UUID         `json:"user_id,omitempty"`
	Payload     EvaluationPayload `json:"payload"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Validate checks invariants on the request before it touches the queue or
// the result store.
func (r *EvaluationRequest) Validate() error {
	if r.RequestID == uuid.Nil {
		return fmt.Errorf("%w: request ID is required", ErrValidation)
	}
	if r.QuestionID == "" {
		return fmt.Errorf("%w: question ID is required", ErrValidation)
	}
	if len(r.Metadata) > MaxMetadataEntries {
		return fmt.Errorf("%w: metadata exceeds %d entries", ErrValidation, MaxMetadataEntries)
	}
	return r.Payload.Validate()
}

// Coaching holds the structured coaching fields of a completed evaluation.
type Coaching struct {
	Strengths       []string `json:"strengths,omitempty"`
	Improvements    []string `json:"improvements,omitempty"`
	SuggestedAnswer string   `json:"suggested_answer,omitempty"`
}

// EvaluationResult is the durable outcome of an evaluation, dual-keyed by
// request ID and job ID. It is written exactly once by the worker that
// completes the job and never mutated afterwards; re-deliveries are
// idempotent no-ops at the store layer.
type EvaluationResult struct {
	RequestID  uuid.UUID `json:"request_id"`
	JobID      uuid.UUID `json:"job_id"`
	Score      int       `json:"score"`
	Feedback   string    `json:"feedback"`
	Coaching   Coaching  `json:"coaching"`
	DurationMs int64     `json:"duration_ms"`
	TokensUsed int       `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
}
