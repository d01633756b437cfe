package domain

import "errors"

// ErrValidation is the root of all input-validation failures. Handlers map
// anything wrapping it to a 400 response before any side effect occurs.
var ErrValidation = errors.New("invalid input")
