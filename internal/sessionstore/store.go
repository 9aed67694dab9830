// Package sessionstore maps browser session IDs to backend bearer tokens.
// Only the token is kept; user and restaurant records are always re-fetched.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotFound is returned when a session has no token or it expired.
var ErrNotFound = errors.New("session not found")

// Store persists session tokens.
type Store interface {
	Get(ctx context.Context, id string) (string, error)
	Put(ctx context.Context, id, token string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// TokenTTL returns the remaining lifetime of token from its exp claim, or def
// when the token is not a JWT or carries no expiry. The signature is not
// checked; the backend remains the authority on validity.
func TokenTTL(token string, def time.Duration) time.Duration {
	return tokenTTLAt(token, def, time.Now())
}

func tokenTTLAt(token string, def time.Duration, now time.Time) time.Duration {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return def
	}
	if claims.ExpiresAt == nil {
		return def
	}
	ttl := claims.ExpiresAt.Time.Sub(now)
	if ttl <= 0 {
		return 0
	}
	return ttl
}
