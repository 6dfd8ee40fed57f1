// Package session manages the stateless browser session: an HS256 JWT
// carried in an HttpOnly cookie, with a bearer header fallback for
// contexts that cannot read cookies (background workers).
package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/probsync/probsync/internal/service/crypto"
)

var (
	// ErrSessionNotFound is returned when the request carries no
	// session credential.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalid is returned when the credential fails
	// verification.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrSessionExpired is returned when the token has expired.
	ErrSessionExpired = errors.New("session expired")
)

// Config holds session cookie configuration.
type Config struct {
	// CookieName is the session cookie name.
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`
	// CookiePath scopes the cookie to the app root.
	CookiePath string `yaml:"cookie_path" mapstructure:"cookie_path"`
	// Secure marks the cookie Secure. Disable only in dev mode.
	Secure bool `yaml:"secure" mapstructure:"secure"`
}

// DefaultConfig returns the production cookie policy.
func DefaultConfig() Config {
	return Config{
		CookieName: "auth_token",
		CookiePath: "/",
		Secure:     true,
	}
}

// Manager issues and verifies sessions.
type Manager struct {
	cfg Config
	jwt *crypto.JWTManager
}

// NewManager creates a session manager signing with the given server
// secret.
func NewManager(cfg Config, signingKey, issuer string) (*Manager, error) {
	jwtManager, err := crypto.NewJWTManager(signingKey, issuer)
	if err != nil {
		return nil, err
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "auth_token"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	return &Manager{cfg: cfg, jwt: jwtManager}, nil
}

// Issue signs a session token for the user, sets the session cookie on
// w, and returns the token.
func (m *Manager) Issue(w http.ResponseWriter, userID, displayName string) (string, error) {
	token, err := m.jwt.Sign(userID, displayName)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     m.cfg.CookiePath,
		MaxAge:   int(m.jwt.TTL().Seconds()),
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	return token, nil
}

// FromRequest extracts and verifies the session credential, trying the
// cookie first, then the Authorization bearer header.
func (m *Manager) FromRequest(r *http.Request) (*crypto.SessionClaims, error) {
	token := m.tokenFromRequest(r)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	return m.verify(token)
}

// FromCookie extracts and verifies the session from the cookie only.
// The token endpoint uses this: a bearer header must not be able to
// mint itself a fresh token.
func (m *Manager) FromCookie(r *http.Request) (*crypto.SessionClaims, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrSessionNotFound
	}
	return m.verify(cookie.Value)
}

// TokenFromCookie verifies the cookie session and also returns the
// raw token, for handing to contexts that cannot read HttpOnly
// cookies themselves.
func (m *Manager) TokenFromCookie(r *http.Request) (string, *crypto.SessionClaims, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return "", nil, ErrSessionNotFound
	}
	claims, err := m.verify(cookie.Value)
	if err != nil {
		return "", nil, err
	}
	return cookie.Value, claims, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.jwt.TTL()
}

func (m *Manager) tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(m.cfg.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (m *Manager) verify(token string) (*crypto.SessionClaims, error) {
	claims, err := m.jwt.Verify(token)
	if err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}
	return claims, nil
}
