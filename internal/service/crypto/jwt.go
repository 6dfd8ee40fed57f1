package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrMissingKey   = errors.New("missing signing key")
)

// sessionTTL is the lifetime of an issued session token.
const sessionTTL = 24 * time.Hour

// JWTManager signs and verifies session tokens with HS256.
type JWTManager struct {
	key    []byte
	issuer string
}

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// NewJWTManager creates a JWT manager. The signing key is the server
// secret; an empty key is a configuration error.
func NewJWTManager(signingKey, issuer string) (*JWTManager, error) {
	if signingKey == "" {
		return nil, ErrMissingKey
	}
	return &JWTManager{key: []byte(signingKey), issuer: issuer}, nil
}

// Sign issues a session token for the given user, valid for 24 hours.
func (m *JWTManager) Sign(userID, displayName string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
			NotBefore: jwt.NewNumericDate(now),
		},
		UserID:      userID,
		DisplayName: displayName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify parses and validates a session token, returning its claims.
// Expiry is strictly enforced.
func (m *JWTManager) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TTL returns the session token lifetime.
func (m *JWTManager) TTL() time.Duration {
	return sessionTTL
}
