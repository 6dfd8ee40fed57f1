package client

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CSRFCache caches the current single-use CSRF token. Concurrent
// callers share one in-flight fetch, so two near-simultaneous
// mutations cannot each mint a token and collide on the server's
// one-match-per-issuance rule.
//
// Tokens are consumed by use: call Invalidate after every POST
// attempt, successful or not, so the next mutation fetches a fresh
// one.
type CSRFCache struct {
	client *Client

	mu    sync.Mutex
	token string

	group singleflight.Group
}

// NewCSRFCache creates a cache fetching tokens through the client.
func NewCSRFCache(c *Client) *CSRFCache {
	return &CSRFCache{client: c}
}

// Token returns the cached token, fetching one if none is cached.
func (c *CSRFCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("csrf", func() (any, error) {
		var resp struct {
			CSRFToken string `json:"csrfToken"`
		}
		if err := c.client.GetJSON(ctx, "/api/user?action=csrf", &resp); err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = resp.CSRFToken
		c.mu.Unlock()
		return resp.CSRFToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Peek returns the cached token without any network activity, for
// contexts where asynchronous work is unsafe. Empty when nothing is
// cached.
func (c *CSRFCache) Peek() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Invalidate drops the cached token. Call it after every mutation
// attempt; the server deletes the stored token on match regardless of
// the mutation's outcome.
func (c *CSRFCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Clear drops the cached token, for logout.
func (c *CSRFCache) Clear() {
	c.Invalidate()
}
