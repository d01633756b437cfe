package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. Entity-specific variants below wrap it so callers can match
	// either level.
	ErrNotFound = errors.New("entity not found")

	// ErrResultNotFound indicates that no evaluation result exists for the
	// given request ID or job ID.
	ErrResultNotFound = fmt.Errorf("%w: evaluation result", ErrNotFound)

	// ErrJobNotFound indicates that no job row exists for the given job ID.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
