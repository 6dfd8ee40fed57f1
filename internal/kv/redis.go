package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// metaSuffix is appended to a record key to form its sidecar metadata
// key. The metadata key carries the same TTL as the record.
const metaSuffix = "#meta"

// RedisStore implements Store on Redis. Suitable for deployments where
// multiple stateless instances share one store.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addresses    []string
	Password     string
	DB           int
	MasterName   string
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

// NewRedisStore creates a Redis-backed store and verifies the
// connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis addresses not configured")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MasterName:   cfg.MasterName,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return data, nil
}

// GetWithMetadata returns the value and its sidecar metadata. A record
// written without metadata yields an empty Metadata.
func (s *RedisStore) GetWithMetadata(ctx context.Context, key string) ([]byte, *Metadata, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	meta := &Metadata{}
	raw, err := s.client.Get(ctx, s.keyPrefix+key+metaSuffix).Bytes()
	if err == nil {
		// Unparseable metadata is treated as absent; the record value
		// is still returned.
		_ = json.Unmarshal(raw, meta)
	} else if err != redis.Nil {
		return nil, nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	return data, meta, nil
}

// Set stores value under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// SetWithMetadata stores value and sidecar metadata under key. The
// metadata key is deleted when meta is nil or empty so a re-written
// record cannot inherit a stale encoding marker.
func (s *RedisStore) SetWithMetadata(ctx context.Context, key string, value []byte, meta *Metadata, ttl time.Duration) error {
	if err := s.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	metaKey := s.keyPrefix + key + metaSuffix
	if meta == nil || *meta == (Metadata{}) {
		if err := s.client.Del(ctx, metaKey).Err(); err != nil {
			return fmt.Errorf("failed to clear metadata: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := s.client.Set(ctx, metaKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

// GetDel atomically returns and removes the value for key. Uses GETDEL
// (Redis 6.2+).
func (s *RedisStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.GetDel(ctx, s.keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get-del key: %w", err)
	}
	return data, nil
}

// Delete removes key and its metadata.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key, s.keyPrefix+key+metaSuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return n > 0, nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Name returns the store type name.
func (s *RedisStore) Name() string {
	return "redis"
}
