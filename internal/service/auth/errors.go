package auth

import "errors"

// Common authentication errors.
var (
	// ErrInvalidToken is returned when a token is malformed or its
	// signature does not verify.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid is returned when a token's nbf claim is in the
	// future.
	ErrTokenNotYetValid = errors.New("token not yet valid")

	// ErrWrongTokenType is returned when a token of the wrong type is
	// presented (e.g. a refresh token where an access token is expected).
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrInvalidAPIKey is returned when an API key matches no configured
	// service.
	ErrInvalidAPIKey = errors.New("invalid API key")
)
