package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by Claims.Check for tokens past their expiry.
var ErrTokenExpired = errors.New("api token expired")

// Claims are the fields the console reads from a bearer token.
// The server verifies the signature; the client only inspects it.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scope"`
}

// ParseToken decodes token without verifying it.
func ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse api token: %w", err)
	}
	return claims, nil
}

// Check reports ErrTokenExpired when the token expired before now.
func (c *Claims) Check(now time.Time) error {
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, c.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}
