package gemini

import "errors"

// Errors specific to the Gemini adapter.
var (
	// ErrEmptyAnswer is returned when there is no answer text to evaluate.
	ErrEmptyAnswer = errors.New("answer text cannot be empty")

	// ErrEmptyAudioURL is returned when there is no audio URL to transcribe.
	ErrEmptyAudioURL = errors.New("audio URL cannot be empty")
)
