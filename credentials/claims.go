package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
)

// AccessClaims is what the client can read from an access token. The
// signature is not checked: the client has no key, and the backend remains
// the only authority on whether a token is accepted.
type AccessClaims struct {
	Subject   string
	Email     string
	Name      string
	Role      string
	IsProxy   bool
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// ParseAccessToken decodes the claims of a JWT access token without
// verifying it.
func ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidToken, "parsing access token: %v", err)
	}

	out := &AccessClaims{}
	out.Subject, _ = claims.GetSubject()
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	out.Role, _ = claims["role"].(string)
	out.IsProxy, _ = claims["is_proxy"].(bool)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// Expired reports whether the token is past its exp claim at now, treating it
// as expired skew early. Tokens without exp never expire here.
func (c *AccessClaims) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}
