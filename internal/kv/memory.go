package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. Suitable for
// single-instance deployments, dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	value     []byte
	meta      *Metadata
	expiresAt time.Time // zero means no expiration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore creates an in-memory store with a background janitor
// for expired entries.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Get returns the value for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// GetWithMetadata returns the value and its sidecar metadata.
func (s *MemoryStore) GetWithMetadata(ctx context.Context, key string) ([]byte, *Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, nil, ErrNotFound
	}
	meta := e.meta
	if meta == nil {
		meta = &Metadata{}
	}
	return e.value, meta, nil
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.SetWithMetadata(ctx, key, value, nil, ttl)
}

// SetWithMetadata stores value and sidecar metadata under key.
func (s *MemoryStore) SetWithMetadata(ctx context.Context, key string, value []byte, meta *Metadata, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	if meta != nil && *meta == (Metadata{}) {
		meta = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memoryEntry{value: value, meta: meta, expiresAt: expiresAt}
	return nil
}

// GetDel returns and removes the value for key.
func (s *MemoryStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, key)
	if e.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Exists reports whether key is present.
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return ok && !e.expired(time.Now()), nil
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Name returns the store type name.
func (s *MemoryStore) Name() string {
	return "memory"
}

// cleanup removes expired entries.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if e.expired(now) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
