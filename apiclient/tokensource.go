package apiclient

import (
	"context"
	"time"

	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	"golang.org/x/oauth2"
)

// expirySkew refreshes tokens slightly before their exp claim.
const expirySkew = 30 * time.Second

// TokenSource exposes the stored session as an oauth2.TokenSource, for
// libraries that attach bearer tokens themselves. Each Token call reads the
// store; an expired access token is refreshed through the same single-flight
// path as a 401.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	c := ts.client
	access, err := c.store.Get(ts.ctx, credentials.AccessTokenKey)
	if err != nil {
		return nil, errors.Wrapf(err, "reading access token")
	}
	refresh, err := c.store.Get(ts.ctx, credentials.RefreshTokenKey)
	if err != nil {
		return nil, errors.Wrapf(err, "reading refresh token")
	}
	if access == "" && refresh == "" {
		return nil, ErrNotLoggedIn
	}

	claims, parseErr := credentials.ParseAccessToken(access)
	if access == "" || (parseErr == nil && claims.Expired(c.nowTime(), expirySkew)) {
		access, err = c.refresh(ts.ctx, access)
		if err != nil {
			return nil, err
		}
		claims, parseErr = credentials.ParseAccessToken(access)
	}

	token := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if parseErr == nil {
		token.Expiry = claims.ExpiresAt
	}
	return token, nil
}
