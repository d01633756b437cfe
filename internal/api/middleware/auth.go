package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/redact"
	"github.com/mockmate/eval-api/internal/service/auth"
)

// AuthMiddleware authenticates requests using either a Bearer JWT (end-user
// traffic) or an X-API-Key header (internal service callers).
type AuthMiddleware struct {
	jwtService auth.JWTService
	apiKeys    auth.APIKeyVerifier
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService, apiKeys auth.APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		apiKeys:    apiKeys,
	}
}

// Authenticate validates the request's credential and adds the caller
// identity to the request context. The rate-limit subject is derived from
// the credential itself, so every distinct token or key gets its own window.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
			m.authenticateAPIKey(w, r, next, apiKey)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		token := parts[1]

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				slog.Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(
					w,
					r,
					http.StatusInternalServerError,
					"Authentication error",
				)
			}
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, claims.UserID)
		ctx = shared.WithCaller(ctx, shared.Caller{
			Name:    claims.UserID.String(),
			Subject: credentialSubject(token),
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateAPIKey resolves an X-API-Key header to a service identity.
func (m *AuthMiddleware) authenticateAPIKey(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	apiKey string,
) {
	if m.apiKeys == nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "API key authentication not enabled")
		return
	}

	service, err := m.apiKeys.VerifyKey(r.Context(), apiKey)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid API key")
		return
	}

	ctx := shared.WithCaller(r.Context(), shared.Caller{
		Name:    service,
		Subject: credentialSubject(apiKey),
	})

	next.ServeHTTP(w, r.WithContext(ctx))
}

// credentialSubject hashes a credential into a stable rate-limit key so raw
// tokens never appear in counter storage or logs.
func credentialSubject(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}
