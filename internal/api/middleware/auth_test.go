package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubJWTService validates a single known token.
type stubJWTService struct {
	validToken string
	userID     uuid.UUID
	err        error
}

func (s *stubJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	return s.validToken, nil
}

func (s *stubJWTService) ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	if tokenString != s.validToken {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: s.userID, TokenType: "access"}, nil
}

// stubAPIKeyVerifier accepts a single known key.
type stubAPIKeyVerifier struct {
	validKey string
	service  string
}

func (s *stubAPIKeyVerifier) VerifyKey(ctx context.Context, key string) (string, error) {
	if key != s.validKey {
		return "", auth.ErrInvalidAPIKey
	}
	return s.service, nil
}

// captureHandler records the request context it was invoked with.
type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticateJWT(t *testing.T) {
	userID := uuid.New()
	jwtSvc := &stubJWTService{validToken: "good-token", userID: userID}
	mw := NewAuthMiddleware(jwtSvc, nil)

	t.Run("valid bearer token", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		require.True(t, next.called)
		assert.Equal(t, http.StatusOK, rec.Code)

		gotUserID, ok := next.ctx.Value(shared.UserIDContextKey).(uuid.UUID)
		require.True(t, ok)
		assert.Equal(t, userID, gotUserID)

		caller, ok := shared.CallerFromContext(next.ctx)
		require.True(t, ok)
		assert.Equal(t, userID.String(), caller.Name)
		// The rate-limit subject is a hash, never the raw credential.
		assert.NotEmpty(t, caller.Subject)
		assert.NotContains(t, caller.Subject, "good-token")
	})

	t.Run("missing header", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("Authorization", "good-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expiredSvc := &stubJWTService{err: auth.ErrExpiredToken}
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		rec := httptest.NewRecorder()

		NewAuthMiddleware(expiredSvc, nil).Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticateAPIKey(t *testing.T) {
	jwtSvc := &stubJWTService{validToken: "good-token", userID: uuid.New()}
	keys := &stubAPIKeyVerifier{validKey: "service-key", service: "web-frontend"}
	mw := NewAuthMiddleware(jwtSvc, keys)

	t.Run("valid API key", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("X-API-Key", "service-key")
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		require.True(t, next.called)
		caller, ok := shared.CallerFromContext(next.ctx)
		require.True(t, ok)
		assert.Equal(t, "web-frontend", caller.Name)
		assert.NotContains(t, caller.Subject, "service-key")
	})

	t.Run("invalid API key", func(t *testing.T) {
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("X-API-Key", "wrong-key")
		rec := httptest.NewRecorder()

		mw.Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("API key auth disabled", func(t *testing.T) {
		disabled := NewAuthMiddleware(jwtSvc, nil)
		next := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/api/evaluate", nil)
		req.Header.Set("X-API-Key", "service-key")
		rec := httptest.NewRecorder()

		disabled.Authenticate(next).ServeHTTP(rec, req)

		assert.False(t, next.called)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestDistinctCredentialsGetDistinctSubjects(t *testing.T) {
	userID := uuid.New()
	jwtSvc := &stubJWTService{validToken: "token-a", userID: userID}
	keys := &stubAPIKeyVerifier{validKey: "key-b", service: "svc"}
	mw := NewAuthMiddleware(jwtSvc, keys)

	subjects := make(map[string]bool)

	next := &captureHandler{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-a")
	mw.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	caller, _ := shared.CallerFromContext(next.ctx)
	subjects[caller.Subject] = true

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "key-b")
	mw.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	caller, _ = shared.CallerFromContext(next.ctx)
	subjects[caller.Subject] = true

	assert.Len(t, subjects, 2)
}
