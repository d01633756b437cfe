package evaluation

import "errors"

// Common errors returned by the evaluation package.
var (
	// ErrEvaluationFailed is returned when answer evaluation fails for any
	// general reason.
	ErrEvaluationFailed = errors.New("failed to evaluate answer")

	// ErrInvalidResponse is returned when the model response cannot be
	// parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due
	// to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might
	// resolve on retry.
	ErrTransientFailure = errors.New("transient error during evaluation")

	// ErrInvalidConfig is returned when the evaluator configuration is
	// invalid.
	ErrInvalidConfig = errors.New("invalid evaluator configuration")

	// ErrAudioUnsupported is returned for audio payloads when no
	// transcription backend is configured.
	ErrAudioUnsupported = errors.New("no transcription backend configured")

	// ErrUnknownPayloadKind is returned for payload kinds the worker does
	// not recognize.
	ErrUnknownPayloadKind = errors.New("unknown payload kind")

	// ErrNilEvaluator and ErrNilLogger guard service construction.
	ErrNilEvaluator = errors.New("answer evaluator cannot be nil")
	ErrNilLogger    = errors.New("logger cannot be nil")
)
