package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"github.com/mockmate/eval-api/internal/config"
	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/evaluation"
	"google.golang.org/genai"
)

// defaultPromptTemplate instructs the model to return the ResponseSchema
// JSON shape. Kept in-binary so the adapter needs no external files.
const defaultPromptTemplate = `You are an experienced interview coach.
Evaluate the candidate's answer to interview question {{.QuestionID}}.

Candidate answer:
{{.Answer}}

Respond with only a JSON object of this exact shape:
{"score": <0-100>, "feedback": "<2-4 sentences>", "strengths": ["..."], "improvements": ["..."], "suggested_answer": "<a stronger answer>"}`

// Evaluator implements evaluation.AnswerEvaluator using Google's Gemini API.
type Evaluator struct {
	logger         *slog.Logger
	config         config.EvalConfig
	promptTemplate *template.Template
	client         *genai.Client
	model          string
}

var _ evaluation.AnswerEvaluator = (*Evaluator)(nil)

// NewEvaluator creates a Gemini-backed answer evaluator.
func NewEvaluator(ctx context.Context, logger *slog.Logger, cfg config.EvalConfig) (*Evaluator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", evaluation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", evaluation.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("evaluation").Parse(defaultPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			evaluation.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			evaluation.ErrInvalidConfig, err)
	}

	return &Evaluator{
		logger:         logger,
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// EvaluateAnswer scores an answer and returns the structured outcome.
func (e *Evaluator) EvaluateAnswer(ctx context.Context, questionID, answer string) (*evaluation.Outcome, error) {
	prompt, err := e.createPrompt(ctx, questionID, answer)
	if err != nil {
		return nil, err
	}

	response, tokens, err := e.callGeminiWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Clamp: models occasionally wander outside the instructed range.
	score := response.Score
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return &evaluation.Outcome{
		Score:    score,
		Feedback: response.Feedback,
		Coaching: domain.Coaching{
			Strengths:       response.Strengths,
			Improvements:    response.Improvements,
			SuggestedAnswer: response.SuggestedAnswer,
		},
		TokensUsed: tokens,
	}, nil
}

// createPrompt renders the evaluation prompt for a question and answer.
func (e *Evaluator) createPrompt(ctx context.Context, questionID, answer string) (string, error) {
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	var promptBuffer bytes.Buffer
	if err := e.promptTemplate.Execute(&promptBuffer, promptData{
		QuestionID: questionID,
		Answer:     answer,
	}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	e.logger.DebugContext(ctx, "evaluation prompt generated",
		"question_id", questionID,
		"prompt_length", promptBuffer.Len())

	return promptBuffer.String(), nil
}

// callGeminiWithRetry calls the Gemini API with exponential backoff and
// jitter for transient errors. Permanent errors (blocked content, malformed
// responses) are returned immediately.
func (e *Evaluator) callGeminiWithRetry(ctx context.Context, prompt string) (*ResponseSchema, int, error) {
	maxRetries := e.config.MaxRetries
	baseDelaySeconds := e.config.RetryDelaySeconds
	if maxRetries < 0 {
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		e.logger.InfoContext(ctx, "making Gemini API call",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		response, tokens, err := e.callGemini(ctx, prompt)
		if err == nil {
			return response, tokens, nil
		}
		lastErr = err

		e.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempt+1,
			"error", err)

		if errors.Is(err, evaluation.ErrContentBlocked) ||
			errors.Is(err, evaluation.ErrInvalidResponse) {
			return nil, 0, err
		}

		if attempt < maxRetries {
			// Exponential backoff with up to one second of jitter.
			delay := time.Duration(float64(baseDelaySeconds)*math.Pow(2, float64(attempt))) * time.Second
			delay += time.Duration(rng.Intn(1000)) * time.Millisecond

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, 0, fmt.Errorf("%w: %v", evaluation.ErrTransientFailure, ctx.Err())
			}
		}
	}

	return nil, 0, fmt.Errorf("%w: %v", evaluation.ErrTransientFailure, lastErr)
}

// callGemini performs a single API call and parses the JSON response.
func (e *Evaluator) callGemini(ctx context.Context, prompt string) (*ResponseSchema, int, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("gemini call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, 0, fmt.Errorf("%w: no content generated", evaluation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, 0, fmt.Errorf("%w", evaluation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, 0, fmt.Errorf("%w: empty content in response", evaluation.ErrInvalidResponse)
	}

	var text string
	for _, part := range candidate.Content.Parts {
		text += part.Text
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse JSON response: %v",
			evaluation.ErrInvalidResponse, err)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &parsed, tokens, nil
}
