// Package evaluation defines the worker-side collaborator boundary between
// the orchestration layer and the AI backend: the interfaces the runner's
// executor is built from, and the service that dispatches on the payload
// union.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mockmate/eval-api/internal/domain"
)

// Outcome is what an answer evaluator produces before the runner attaches
// job identity and timing.
type Outcome struct {
	Score      int
	Feedback   string
	Coaching   domain.Coaching
	TokensUsed int
}

// AnswerEvaluator scores a textual answer to an interview question.
type AnswerEvaluator interface {
	EvaluateAnswer(ctx context.Context, questionID, answer string) (*Outcome, error)
}

// Transcriber converts a recorded audio answer into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Service implements job.Executor by dispatching exhaustively on the payload
// kind: text answers are scored directly, audio answers are transcribed
// first.
type Service struct {
	evaluator   AnswerEvaluator
	transcriber Transcriber
	logger      *slog.Logger
}

// NewService creates an evaluation service. The transcriber may be nil, in
// which case audio payloads fail with ErrAudioUnsupported.
func NewService(evaluator AnswerEvaluator, transcriber Transcriber, logger *slog.Logger) (*Service, error) {
	if evaluator == nil {
		return nil, ErrNilEvaluator
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &Service{
		evaluator:   evaluator,
		transcriber: transcriber,
		logger:      logger,
	}, nil
}

// Execute runs the evaluation for a request and returns the result to be
// committed by the runner.
func (s *Service) Execute(ctx context.Context, req *domain.EvaluationRequest) (*domain.EvaluationResult, error) {
	var answer string

	switch req.Payload.Kind {
	case domain.PayloadText:
		answer = req.Payload.Text

	case domain.PayloadAudio:
		if s.transcriber == nil {
			return nil, ErrAudioUnsupported
		}
		transcript, err := s.transcriber.Transcribe(ctx, req.Payload.AudioURL)
		if err != nil {
			return nil, fmt.Errorf("failed to transcribe audio answer: %w", err)
		}
		answer = transcript

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPayloadKind, req.Payload.Kind)
	}

	outcome, err := s.evaluator.EvaluateAnswer(ctx, req.QuestionID, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate answer: %w", err)
	}

	s.logger.Debug("evaluation produced",
		"request_id", req.RequestID,
		"question_id", req.QuestionID,
		"score", outcome.Score)

	return &domain.EvaluationResult{
		RequestID:  req.RequestID,
		Score:      outcome.Score,
		Feedback:   outcome.Feedback,
		Coaching:   outcome.Coaching,
		TokensUsed: outcome.TokensUsed,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
