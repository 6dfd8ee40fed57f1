// Package idp abstracts the third-party identity provider used for
// login: authorization URL generation, code exchange and profile fetch.
package idp

import (
	"context"
	"errors"
)

var (
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrTokenExchangeFailed   = errors.New("token exchange failed")
	ErrUserInfoFailed        = errors.New("failed to get user info")
	ErrProfileIncomplete     = errors.New("user profile has no id")
)

// Tokens are the provider tokens returned by the code exchange.
type Tokens struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
}

// Profile is the identity returned by the provider's userinfo endpoint.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// DisplayName resolves the name shown to the user, falling back from
// the profile name to the email and finally a generic label.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return "User"
}

// Config holds identity provider configuration.
type Config struct {
	IssuerURL    string   `yaml:"issuer_url" mapstructure:"issuer_url"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url" mapstructure:"redirect_url"`
	Scopes       []string `yaml:"scopes" mapstructure:"scopes"`
}

// Provider is the interface to the identity provider.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// AuthURL generates the authorization URL carrying the given state.
	AuthURL(state string) string

	// Exchange exchanges the authorization code for tokens.
	Exchange(ctx context.Context, code string) (*Tokens, error)

	// UserInfo retrieves the user profile with the access token.
	UserInfo(ctx context.Context, accessToken string) (*Profile, error)
}
