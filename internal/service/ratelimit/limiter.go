// Package ratelimit provides sliding-window rate limiting backed by the
// shared key-value store, so the window is counted across all stateless
// instances that share it.
package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/pkg/logger"
)

const keyPrefix = "ratelimit_"

// Config holds a single rate limit configuration.
type Config struct {
	// Max is the number of requests permitted per window.
	Max int `yaml:"max" mapstructure:"max"`
	// Window is the sliding window length.
	Window time.Duration `yaml:"window" mapstructure:"window"`
	// OnLimited, when set, is called for every rejected request.
	OnLimited func() `yaml:"-" mapstructure:"-"`
}

// Limiter applies a sliding-window limit keyed by client identity.
//
// The backing store is only eventually consistent, so two
// near-simultaneous requests may both pass just under the limit; the
// limiter accepts that undercount. On any store error it fails open:
// availability is preferred over strict abuse prevention when the store
// is unhealthy.
type Limiter struct {
	store kv.Store
	cfg   Config
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store kv.Store, cfg Config) *Limiter {
	return &Limiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Config returns a copy of the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// Allow reports whether a request from clientKey may proceed, recording
// the request timestamp when it may.
func (l *Limiter) Allow(ctx context.Context, clientKey string) bool {
	now := l.now()
	nowMs := now.UnixMilli()
	cutoff := nowMs - l.cfg.Window.Milliseconds()
	key := keyPrefix + clientKey

	var timestamps []int64
	data, err := l.store.Get(ctx, key)
	switch {
	case err == nil:
		// An unparseable window is treated as empty.
		if jsonErr := json.Unmarshal(data, &timestamps); jsonErr != nil {
			timestamps = nil
		}
	case err == kv.ErrNotFound:
		// First request in the window.
	default:
		logger.Warn("rate limiter store read failed, failing open",
			zap.String("client_key", clientKey),
			zap.Error(err),
		)
		return true
	}

	pruned := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= l.cfg.Max {
		return false
	}

	pruned = append(pruned, nowMs)
	data, err = json.Marshal(pruned)
	if err == nil {
		err = l.store.Set(ctx, key, data, l.cfg.Window)
	}
	if err != nil {
		logger.Warn("rate limiter store write failed, failing open",
			zap.String("client_key", clientKey),
			zap.Error(err),
		)
	}
	return true
}

// Middleware returns an HTTP middleware that rejects over-limit
// requests with 429 before any other processing.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflights carry no credentials and must always
			// reach the 204 handler; they don't count against the
			// window.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			clientKey := ClientKey(r)
			if !l.Allow(r.Context(), clientKey) {
				if l.cfg.OnLimited != nil {
					l.cfg.OnLimited()
				}
				logger.Warn("rate limit exceeded",
					zap.String("client_key", clientKey),
					zap.String("path", r.URL.Path),
					zap.Int("limit", l.cfg.Max),
				)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the client for rate limiting, preferring the
// edge-provided connecting IP, then the forwarded chain's first hop.
func ClientKey(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	return "unknown"
}
