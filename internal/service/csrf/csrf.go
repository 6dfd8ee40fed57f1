// Package csrf implements the single-use CSRF token protocol guarding
// mutations. A token is bound to one user, lives at most an hour, and
// is deleted the moment it matches a request, so each issuance can
// authorize exactly one mutation attempt.
package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/internal/service/crypto"
)

const (
	keyPrefix = "csrf_"
	tokenTTL  = time.Hour
)

var (
	// ErrTokenMissing is returned when the request carries no token.
	ErrTokenMissing = errors.New("csrf token missing")
	// ErrTokenMismatch is returned when the presented token does not
	// match the stored one, or no token is stored for the user.
	ErrTokenMismatch = errors.New("csrf token mismatch")
)

// Service issues and validates per-user mutation tokens.
type Service struct {
	store kv.Store
}

// NewService creates a CSRF service over the given store.
func NewService(store kv.Store) *Service {
	return &Service{store: store}
}

// Issue stores a fresh random token for userID and returns it. Issuing
// replaces any previously stored token for the user.
func (s *Service) Issue(ctx context.Context, userID string) (string, error) {
	token, err := crypto.GenerateRandomString(32)
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, keyPrefix+userID, []byte(token), tokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Drop discards any outstanding token for userID, for logout.
func (s *Service) Drop(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, keyPrefix+userID)
}

// Validate checks the presented token against the stored one for
// userID. On match the stored token is deleted before returning, so a
// second presentation of the same token always fails regardless of
// whether the guarded mutation succeeds. All failures are fail-closed
// and consume nothing.
func (s *Service) Validate(ctx context.Context, userID, presented string) error {
	if presented == "" {
		return ErrTokenMissing
	}

	stored, err := s.store.Get(ctx, keyPrefix+userID)
	if err != nil {
		if err == kv.ErrNotFound {
			return ErrTokenMismatch
		}
		return err
	}

	if subtle.ConstantTimeCompare(stored, []byte(presented)) != 1 {
		return ErrTokenMismatch
	}

	return s.store.Delete(ctx, keyPrefix+userID)
}
