// Package client is the Go client for the sync protocol: a
// timeout/retry HTTP layer, a single-flight CSRF token cache and the
// login flow coordinator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/probsync/probsync/pkg/logger"
)

const (
	// DefaultTimeout bounds a single attempt end to end.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryDelay is the fixed pause between retries.
	DefaultRetryDelay = time.Second
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the sync service origin, e.g. "https://sync.example.com".
	BaseURL string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries is how many times a transport-level failure is retried.
	// Timeouts and completed responses are never retried.
	Retries int
	// RetryDelay is the fixed pause between retries. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration
	// Token is the bearer session token, for contexts without the
	// session cookie.
	Token string
	// BreakerDisabled turns off the circuit breaker around the
	// transport.
	BreakerDisabled bool
}

// Client calls the sync service with timeout, retry and circuit
// breaker protection.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg: cfg,
		// Per-attempt deadlines come from the request context, not the
		// http.Client timeout, so one struct serves every attempt.
		http: &http.Client{},
	}
	if !cfg.BreakerDisabled {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:     "sync-service",
			Interval: 60 * time.Second,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("service", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return c
}

// Do performs the request with the retry policy:
//   - timeout: the attempt is aborted and a TimeoutError returned,
//     never retried;
//   - transport failure: retried up to Retries times with a fixed
//     delay, then wrapped in RetryExhaustedError;
//   - completed response: returned as-is, whatever the status.
//
// The caller owns the response body.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	attempts := c.cfg.Retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.attempt(ctx, build)
		if err == nil {
			return resp, nil
		}
		if IsTimeout(err) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		logger.Debug("request attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, &RetryExhaustedError{Attempts: attempts, Err: lastErr}
}

// attempt runs one request under its own deadline.
func (c *Client) attempt(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	req, err := build(attemptCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	send := func() (*http.Response, error) { return c.http.Do(req) }

	var resp *http.Response
	if c.breaker != nil {
		resp, err = c.breaker.Execute(send)
	} else {
		resp, err = send()
	}
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Timeout: c.cfg.Timeout}
		}
		return nil, err
	}

	// The body must remain readable after the attempt deadline.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// GetJSON performs a GET and decodes the 2xx response body into out.
// A completed non-2xx response becomes an APIError.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PostJSON serializes body, performs a POST with the given headers and
// decodes the 2xx response into out (skipped when out is nil).
func (c *Client) PostJSON(ctx context.Context, path string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
