package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of bearer-token claims the client displays.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carried an expiry that is before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the claims of a JWT bearer token without verifying its
// signature. The server remains the only authority on validity; this is used
// to show the session state and to skip requests with an obviously expired
// token. Opaque (non-JWT) tokens return an error.
func Inspect(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	var c Claims
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if iat, err := parsed.Claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
