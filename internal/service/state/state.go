// Package state manages single-use OAuth login state values in the
// shared store, so the callback can be served by any instance.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/probsync/probsync/internal/kv"
)

const (
	keyPrefix = "oauth_state_"
	// stateTTL bounds how long a login redirect may stay pending.
	stateTTL = 300 * time.Second

	marker = "valid"
)

// ErrStateNotFound is returned when a state value doesn't exist, has
// expired, or was already consumed.
var ErrStateNotFound = errors.New("state not found")

// Service issues and consumes OAuth state values.
type Service struct {
	store kv.Store
}

// NewService creates a state service over the given store.
func NewService(store kv.Store) *Service {
	return &Service{store: store}
}

// Issue stores a fresh random state value and returns it.
func (s *Service) Issue(ctx context.Context) (string, error) {
	value := uuid.NewString()
	if err := s.store.Set(ctx, keyPrefix+value, []byte(marker), stateTTL); err != nil {
		return "", err
	}
	return value, nil
}

// Consume validates and removes a state value. A state can be consumed
// exactly once; a second call for the same value returns
// ErrStateNotFound.
func (s *Service) Consume(ctx context.Context, value string) error {
	if value == "" {
		return ErrStateNotFound
	}
	_, err := s.store.GetDel(ctx, keyPrefix+value)
	if err == kv.ErrNotFound {
		return ErrStateNotFound
	}
	return err
}
