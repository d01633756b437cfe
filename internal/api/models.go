package api

import (
	"github.com/mockmate/eval-api/internal/domain"
)

// Evaluation status strings exposed to clients.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// PayloadDTO is the wire form of the answer payload union.
type PayloadDTO struct {
	Kind     string `json:"kind"      validate:"required,oneof=text audio"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// EvaluateRequest represents the request body for submitting an answer for
// evaluation. RequestID is caller-supplied and must be reused verbatim on
// retries of the same logical submission.
type EvaluateRequest struct {
	RequestID  string            `json:"request_id"  validate:"required,uuid"`
	QuestionID string            `json:"question_id" validate:"required,min=1"`
	Payload    PayloadDTO        `json:"payload"     validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// CoachingDTO mirrors domain.Coaching on the wire.
type CoachingDTO struct {
	Strengths       []string `json:"strengths,omitempty"`
	Improvements    []string `json:"improvements,omitempty"`
	SuggestedAnswer string   `json:"suggested_answer,omitempty"`
}

// EvaluationResponse is returned when an evaluation finished within the
// synchronous wait budget, or when a stored result answers the request.
// PollAfterMs is always zero here: a completed evaluation needs no further
// polling, and every terminal response shape carries the field.
type EvaluationResponse struct {
	Status      string      `json:"status"`
	RequestID   string      `json:"request_id"`
	JobID       string      `json:"job_id,omitempty"`
	Score       int         `json:"score"`
	Feedback    string      `json:"feedback"`
	Coaching    CoachingDTO `json:"coaching"`
	DurationMs  int64       `json:"duration_ms,omitempty"`
	PollAfterMs int         `json:"poll_after_ms"`
}

// ProcessingResponse is returned with 202 Accepted when the evaluation is
// still running and the client should fall back to polling.
type ProcessingResponse struct {
	Status      string `json:"status"`
	RequestID   string `json:"request_id"`
	JobID       string `json:"job_id"`
	PollURL     string `json:"poll_url"`
	PollAfterMs int    `json:"poll_after_ms"`
}

// FailedResponse is returned when the evaluation ended in failure.
type FailedResponse struct {
	Status      string `json:"status"`
	RequestID   string `json:"request_id,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	PollAfterMs int    `json:"poll_after_ms"`
}

// StatusResponse is returned by the poll endpoint for jobs that are still in
// flight.
type StatusResponse struct {
	Status      string `json:"status"`
	JobID       string `json:"job_id"`
	PollAfterMs int    `json:"poll_after_ms"`
}

// ChecklistProgressRequest represents the request body for recording
// interview-prep checklist progress.
type ChecklistProgressRequest struct {
	ChecklistID string `json:"checklist_id" validate:"required,min=1"`
	ItemID      string `json:"item_id"      validate:"required,min=1"`
	Done        bool   `json:"done"`
}

// resultToResponse converts a stored result into the wire response.
func resultToResponse(result *domain.EvaluationResult) EvaluationResponse {
	return EvaluationResponse{
		Status:    StatusCompleted,
		RequestID: result.RequestID.String(),
		JobID:     result.JobID.String(),
		Score:     result.Score,
		Feedback:  result.Feedback,
		Coaching: CoachingDTO{
			Strengths:       result.Coaching.Strengths,
			Improvements:    result.Coaching.Improvements,
			SuggestedAnswer: result.Coaching.SuggestedAnswer,
		},
		DurationMs: result.DurationMs,
	}
}
