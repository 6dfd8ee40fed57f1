package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// TokenInfo is the session token as returned by the token endpoint.
type TokenInfo struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Syncer is the high-level document sync API: fetch and push the
// user's document with CSRF handling folded in.
type Syncer struct {
	client *Client
	csrf   *CSRFCache
}

// NewSyncer creates a syncer over the client.
func NewSyncer(c *Client) *Syncer {
	return &Syncer{client: c, csrf: NewCSRFCache(c)}
}

// CSRF exposes the token cache, for peeking in unload-style contexts.
func (s *Syncer) CSRF() *CSRFCache {
	return s.csrf
}

// FetchToken retrieves the session token for bearer use. The request
// must carry the session cookie, so this only works from a context
// that shares the browser's cookie jar.
func (s *Syncer) FetchToken(ctx context.Context) (*TokenInfo, error) {
	var info TokenInfo
	if err := s.client.GetJSON(ctx, "/api/auth?action=token", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Fetch returns the user's current document as JSON text.
func (s *Syncer) Fetch(ctx context.Context) (string, error) {
	resp, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, s.client.cfg.BaseURL+"/api/user", nil)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Push overwrites the user's document. A CSRF token is taken from the
// cache (fetching one if needed) and the cache is invalidated after
// the attempt whatever the outcome, because the server consumes the
// token before it even parses the body.
func (s *Syncer) Push(ctx context.Context, document json.RawMessage) error {
	token, err := s.csrf.Token(ctx)
	if err != nil {
		return err
	}
	defer s.csrf.Invalidate()

	return s.client.PostJSON(ctx, "/api/user",
		map[string]string{"X-CSRF-Token": token},
		map[string]json.RawMessage{"data": document},
		nil,
	)
}

// Logout ends the session server-side and clears client state.
func (s *Syncer) Logout(ctx context.Context) error {
	s.csrf.Clear()
	return s.client.GetJSON(ctx, "/api/auth?action=logout", nil)
}
