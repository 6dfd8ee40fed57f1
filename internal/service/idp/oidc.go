package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider implements Provider against an OIDC identity provider.
type OIDCProvider struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
}

// NewOIDCProvider creates an OIDC provider. This fetches the discovery
// document, so it needs network access at startup.
func NewOIDCProvider(cfg Config) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, ErrProviderNotConfigured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       cfg.Scopes,
	}

	// The openid scope is required for the userinfo endpoint.
	hasOpenID := false
	for _, s := range oauth2Config.Scopes {
		if s == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		oauth2Config.Scopes = append([]string{oidc.ScopeOpenID}, oauth2Config.Scopes...)
	}

	return &OIDCProvider{
		provider:     provider,
		oauth2Config: oauth2Config,
	}, nil
}

// Name returns the provider name.
func (p *OIDCProvider) Name() string {
	return "oidc"
}

// AuthURL generates the authorization URL carrying the given state.
func (p *OIDCProvider) AuthURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

// Exchange exchanges the authorization code for tokens.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Tokens, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	expiresIn := int64(0)
	if !token.Expiry.IsZero() {
		expiresIn = int64(time.Until(token.Expiry).Seconds())
	}

	return &Tokens{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   expiresIn,
	}, nil
}

// UserInfo retrieves the user profile with the access token.
func (p *OIDCProvider) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}

	return &Profile{
		ID:    claims.Sub,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}
