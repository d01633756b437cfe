package gemini

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mockmate/eval-api/internal/evaluation"
	"google.golang.org/genai"
)

// maxAudioBytes caps how much recorded audio we will pull down for a single
// transcription.
const maxAudioBytes = 25 << 20

// Transcriber implements evaluation.Transcriber by fetching the recorded
// answer and asking Gemini for a verbatim transcript.
type Transcriber struct {
	logger     *slog.Logger
	client     *genai.Client
	model      string
	httpClient *http.Client
}

var _ evaluation.Transcriber = (*Transcriber)(nil)

// NewTranscriber creates a transcriber sharing the evaluator's Gemini client.
func NewTranscriber(logger *slog.Logger, ev *Evaluator) *Transcriber {
	return &Transcriber{
		logger:     logger,
		client:     ev.client,
		model:      ev.model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Transcribe downloads the audio artifact and returns its transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if audioURL == "" {
		return "", ErrEmptyAudioURL
	}

	data, mimeType, err := t.fetchAudio(ctx, audioURL)
	if err != nil {
		return "", err
	}

	t.logger.DebugContext(ctx, "transcribing audio answer",
		"bytes", len(data),
		"mime_type", mimeType)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("Transcribe this interview answer verbatim. Return only the transcript text."),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", evaluation.ErrTransientFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty transcription response", evaluation.ErrInvalidResponse)
	}

	var transcript string
	for _, part := range resp.Candidates[0].Content.Parts {
		transcript += part.Text
	}

	return transcript, nil
}

func (t *Transcriber) fetchAudio(ctx context.Context, audioURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid audio URL: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to fetch audio: %v", evaluation.ErrTransientFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch audio: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read audio body: %v", evaluation.ErrTransientFailure, err)
	}
	if len(data) > maxAudioBytes {
		return nil, "", fmt.Errorf("audio artifact exceeds %d bytes", maxAudioBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	return data, mimeType, nil
}
