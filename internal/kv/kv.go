// Package kv provides the shared key-value storage used by the sync
// protocol. The backing store is assumed to be only eventually
// consistent: a write is not guaranteed to be immediately visible to
// every subsequent read. Callers (rate limiter, CSRF service, OAuth
// state) are written to tolerate the resulting races.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// Metadata is the sidecar metadata stored alongside a record value.
type Metadata struct {
	ContentEncoding string `json:"content_encoding,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
}

// Store is the capability interface for the shared store.
//
// Implementations must be safe for concurrent use. They are not
// required to be linearizable; two near-simultaneous GetDel calls on
// the same key may in the worst case both observe the value.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetWithMetadata returns the value and its sidecar metadata.
	// The metadata is never nil when the key exists.
	GetWithMetadata(ctx context.Context, key string) ([]byte, *Metadata, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetWithMetadata stores value and sidecar metadata under key.
	SetWithMetadata(ctx context.Context, key string, value []byte, meta *Metadata, ttl time.Duration) error

	// GetDel returns the value for key and removes it (single use).
	// Returns ErrNotFound if the key does not exist.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error

	// Name returns the store type name.
	Name() string
}
