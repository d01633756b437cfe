package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     strings.Repeat("s", 32),
		TokenLifetime: 60,
	}
}

func TestNewJWTService(t *testing.T) {
	t.Run("rejects short secrets", func(t *testing.T) {
		_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
		assert.Error(t, err)
	})

	t.Run("accepts a 32 character secret", func(t *testing.T) {
		_, err := NewJWTService(testAuthConfig())
		assert.NoError(t, err)
	})
}

func TestJWTRoundTrip(t *testing.T) {
	ctx := context.Background()

	svc, err := NewJWTService(testAuthConfig())
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.GenerateToken(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateTokenFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("garbage token", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		_, err = svc.ValidateToken(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		svc1, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		otherCfg := testAuthConfig()
		otherCfg.JWTSecret = strings.Repeat("x", 32)
		svc2, err := NewJWTService(otherCfg)
		require.NoError(t, err)

		token, err := svc1.GenerateToken(ctx, uuid.New())
		require.NoError(t, err)

		_, err = svc2.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		impl := svc.(*hmacJWTService)
		issued := time.Now()
		impl.timeFunc = func() time.Time { return issued }

		token, err := svc.GenerateToken(ctx, uuid.New())
		require.NoError(t, err)

		// Jump past the lifetime plus the allowed clock skew.
		impl.timeFunc = func() time.Time { return issued.Add(63 * time.Minute) }

		_, err = svc.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("token within clock skew still validates", func(t *testing.T) {
		svc, err := NewJWTService(testAuthConfig())
		require.NoError(t, err)

		impl := svc.(*hmacJWTService)
		issued := time.Now()
		impl.timeFunc = func() time.Time { return issued }

		token, err := svc.GenerateToken(ctx, uuid.New())
		require.NoError(t, err)

		impl.timeFunc = func() time.Time { return issued.Add(61 * time.Minute) }

		_, err = svc.ValidateToken(ctx, token)
		assert.NoError(t, err)
	})
}
