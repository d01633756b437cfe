package auth

import (
	"context"

	"github.com/mockmate/eval-api/internal/platform/logger"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyVerifier resolves an API key to the name of the calling service.
type APIKeyVerifier interface {
	// VerifyKey returns the service name the key belongs to, or
	// ErrInvalidAPIKey.
	VerifyKey(ctx context.Context, key string) (string, error)
}

// bcryptAPIKeyVerifier checks presented keys against bcrypt hashes loaded
// from configuration, keyed by service name.
type bcryptAPIKeyVerifier struct {
	hashes map[string]string
}

// NewBcryptAPIKeyVerifier creates a verifier over the configured
// service-name → bcrypt-hash map.
func NewBcryptAPIKeyVerifier(hashes map[string]string) APIKeyVerifier {
	return &bcryptAPIKeyVerifier{hashes: hashes}
}

// VerifyKey compares the key against every configured hash. The map is
// expected to stay small (a handful of internal callers), so the linear
// scan is fine.
func (v *bcryptAPIKeyVerifier) VerifyKey(ctx context.Context, key string) (string, error) {
	log := logger.FromContext(ctx)

	for service, hash := range v.hashes {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err == nil {
			log.Debug("API key verified", "service", service)
			return service, nil
		}
	}

	return "", ErrInvalidAPIKey
}
