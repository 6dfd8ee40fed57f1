// Package userdata persists each user's problem-tracking document in
// the shared store, compressed per the codec's storage policy.
package userdata

import (
	"context"
	"errors"
	"regexp"

	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/internal/service/codec"
	"github.com/probsync/probsync/pkg/tracing"
)

// DefaultDocument is the document a user starts with and the document
// returned when no record exists.
const DefaultDocument = `{"problems":{},"deletedIds":[]}`

// ErrInvalidUserID is returned for user ids outside the allowed shape.
// The id is used directly as a store key, so this guards against
// malformed tokens addressing arbitrary keys.
var ErrInvalidUserID = errors.New("invalid user id")

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidateUserID checks the user id against the allowed key shape.
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return ErrInvalidUserID
	}
	return nil
}

// Store reads and writes user documents.
type Store struct {
	kv kv.Store
}

// NewStore creates a document store over the given KV store.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Load returns the user's document as JSON text, defaulting to
// DefaultDocument when no record exists.
func (s *Store) Load(ctx context.Context, userID string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}

	ctx, span := tracing.Start(ctx, "userdata.load")
	defer span.End()
	tracing.SetAttributes(ctx, tracing.AttrUserID.String(userID))

	value, meta, err := s.kv.GetWithMetadata(ctx, userID)
	if err != nil {
		if err == kv.ErrNotFound {
			return DefaultDocument, nil
		}
		return "", err
	}
	return codec.Decompress(value, meta.ContentEncoding), nil
}

// Save overwrites the user's document wholesale, storing the
// compressed form only when it is strictly smaller. Documents never
// expire. The returned encoding is the codec name applied at rest, or
// "raw" when the record was stored uncompressed.
func (s *Store) Save(ctx context.Context, userID, jsonText string) (string, error) {
	if err := ValidateUserID(userID); err != nil {
		return "", err
	}

	ctx, span := tracing.Start(ctx, "userdata.save")
	defer span.End()

	value, meta := codec.EncodeForStorage(jsonText)
	encoding := "raw"
	if meta != nil && meta.ContentEncoding != "" {
		encoding = meta.ContentEncoding
	}
	tracing.SetAttributes(ctx,
		tracing.AttrUserID.String(userID),
		tracing.AttrEncoding.String(encoding),
	)
	return encoding, s.kv.SetWithMetadata(ctx, userID, value, meta, 0)
}

// Provision writes the default document for a first-time user. It is
// idempotent: an existing record is left untouched.
func (s *Store) Provision(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	exists, err := s.kv.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = s.Save(ctx, userID, DefaultDocument)
	return err
}
