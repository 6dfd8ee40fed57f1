package idp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// MockProvider implements Provider without an external identity
// provider. Dev mode and tests use it: every code of the form
// "code-<id>" logs in as that user id.
type MockProvider struct {
	mu       sync.Mutex
	profiles map[string]*Profile

	// ExchangeErr and UserInfoErr force failures when set.
	ExchangeErr error
	UserInfoErr error
}

// NewMockProvider creates a mock provider with a default profile.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		profiles: map[string]*Profile{
			"developer": {ID: "developer", Name: "Developer", Email: "dev@example.com"},
		},
	}
}

// AddProfile registers a profile retrievable via code "code-<id>".
func (p *MockProvider) AddProfile(profile *Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[profile.ID] = profile
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// AuthURL generates a local authorization URL carrying the state.
func (p *MockProvider) AuthURL(state string) string {
	return "https://mock.invalid/authorize?state=" + url.QueryEscape(state)
}

// Exchange accepts codes of the form "code-<id>" and returns an access
// token of the form "token-<id>".
func (p *MockProvider) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if p.ExchangeErr != nil {
		return nil, p.ExchangeErr
	}
	var id string
	if _, err := fmt.Sscanf(code, "code-%s", &id); err != nil {
		return nil, fmt.Errorf("%w: unknown code", ErrTokenExchangeFailed)
	}
	return &Tokens{
		AccessToken: "token-" + id,
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

// UserInfo resolves "token-<id>" to the registered profile.
func (p *MockProvider) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	if p.UserInfoErr != nil {
		return nil, p.UserInfoErr
	}
	var id string
	if _, err := fmt.Sscanf(accessToken, "token-%s", &id); err != nil {
		return nil, fmt.Errorf("%w: unknown token", ErrUserInfoFailed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user", ErrUserInfoFailed)
	}
	return profile, nil
}
