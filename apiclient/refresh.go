package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	pkgerrors "github.com/pkg/errors"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges the stored refresh token for a new pair. It shares the
// exchange with any refresh already in flight.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx, c.currentAccessToken(ctx))
	return err
}

// Logout clears the session and sends the user to login. Safe to call when
// already logged out.
func (c *Client) Logout(ctx context.Context, reason error) {
	c.endSession(ctx, reason)
}

// refresh returns an access token newer than staleToken. Concurrent callers
// join a single exchange. The exchange is detached from ctx so one caller
// giving up does not fail the others; ctx only bounds how long this caller
// waits.
func (c *Client) refresh(ctx context.Context, staleToken string) (string, error) {
	ch := c.flights.DoChan(refreshFlightKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.exchange(rctx, staleToken)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// exchange is the critical section. Holding refreshLock it re-reads the
// store: if the access token is no longer the one that was rejected another
// exchange already rotated the pair and its token is reused.
//
// The session generation is read first. If a logout or login replaces the
// session while the exchange runs, its result is dropped: new tokens are not
// saved and a failure does not end the newer session.
func (c *Client) exchange(ctx context.Context, staleToken string) (string, error) {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	generation := c.currentGeneration()
	current, err := c.store.Get(ctx, credentials.AccessTokenKey)
	if err != nil {
		return "", c.failRefresh(ctx, generation, errors.Wrapf(err, "reading access token"))
	}
	if current != "" && current != staleToken {
		TokenRefreshesTotal.WithLabelValues(RefreshReused).Inc()
		return current, nil
	}

	refreshToken, err := c.store.Get(ctx, credentials.RefreshTokenKey)
	if err != nil {
		return "", c.failRefresh(ctx, generation, errors.Wrapf(err, "reading refresh token"))
	}
	if refreshToken == "" {
		if !c.forceLogout(ctx, generation, ErrNoRefreshToken) {
			return "", c.discardRefresh()
		}
		TokenRefreshesTotal.WithLabelValues(RefreshNoRefreshToken).Inc()
		c.logger.Error().Msg("No refresh token available, logged out")
		return "", ErrNoRefreshToken
	}

	start := time.Now()
	pair, err := c.postRefresh(ctx, refreshToken)
	RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", c.failRefresh(ctx, generation, err)
	}

	saved, err := c.saveRefreshedPair(ctx, generation, pair)
	if err != nil {
		return "", c.failRefresh(ctx, generation, errors.Wrapf(err, "saving refreshed tokens"))
	}
	if !saved {
		return "", c.discardRefresh()
	}
	TokenRefreshesTotal.WithLabelValues(RefreshSuccess).Inc()
	c.logger.Debug().Msg("Access token refreshed")
	return pair.AccessToken, nil
}

func (c *Client) currentGeneration() uint64 {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	return c.generation
}

// saveRefreshedPair writes pair unless the session was ended or replaced
// after generation was read. It reports whether the pair was written.
func (c *Client) saveRefreshedPair(ctx context.Context, generation uint64, pair *tokenPair) (bool, error) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	if c.generation != generation {
		return false, nil
	}
	if err := credentials.SaveTokenPair(ctx, c.store, pair.AccessToken, pair.RefreshToken); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) discardRefresh() error {
	TokenRefreshesTotal.WithLabelValues(RefreshDiscarded).Inc()
	c.logger.Debug().Msg("Session changed during refresh, discarding the result")
	return errors.Wrapf(errors.ErrNotLoggedIn, "session ended during refresh")
}

func (c *Client) failRefresh(ctx context.Context, generation uint64, err error) error {
	refreshErr := &RefreshError{Err: err}
	if !c.forceLogout(ctx, generation, refreshErr) {
		return c.discardRefresh()
	}
	TokenRefreshesTotal.WithLabelValues(RefreshFailure).Inc()
	c.logger.Error().Err(err).Msg("Token refresh failed, logged out")
	return refreshErr
}

// postRefresh calls the refresh endpoint directly. It does not go through
// send: the call carries no bearer token and its failures are never retried.
func (c *Client) postRefresh(ctx context.Context, refreshToken string) (*tokenPair, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "encoding refresh request: %v", err)
	}

	u := c.baseURL.JoinPath(RefreshPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "building refresh request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, c.requestID())

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		RequestsTotal.WithLabelValues(http.MethodPost, "error").Inc()
		return nil, pkgerrors.Wrapf(err, "%s %s", http.MethodPost, RefreshPath)
	}
	resp, err := readResponse(httpResp)
	RequestsTotal.WithLabelValues(http.MethodPost, strconv.Itoa(httpResp.StatusCode)).Inc()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s %s: reading body", http.MethodPost, RefreshPath)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:     http.MethodPost,
			Path:       RefreshPath,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}

	var pair tokenPair
	if err := resp.Decode(&pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, errors.Wrapf(errors.ErrInvalidResponse, "refresh response is missing a token")
	}
	return &pair, nil
}

// forceLogout ends the session the exchange started with. It reports false,
// doing nothing, when that session was already ended or replaced.
func (c *Client) forceLogout(ctx context.Context, generation uint64, reason error) bool {
	c.sessionLock.Lock()
	if c.generation != generation {
		c.sessionLock.Unlock()
		return false
	}
	err := c.clearLocked(ctx)
	c.sessionLock.Unlock()

	ForcedLogoutsTotal.Inc()
	c.afterClear(ctx, err, reason)
	return true
}

// endSession clears the whole session and navigates to login. A failed Clear
// is logged and the redirect still happens.
func (c *Client) endSession(ctx context.Context, reason error) {
	c.sessionLock.Lock()
	err := c.clearLocked(ctx)
	c.sessionLock.Unlock()
	c.afterClear(ctx, err, reason)
}

// clearLocked must be called with sessionLock held.
func (c *Client) clearLocked(ctx context.Context) error {
	c.generation++
	return c.store.Clear(ctx)
}

func (c *Client) afterClear(ctx context.Context, err, reason error) {
	if err != nil {
		c.logger.Error().Err(err).Msg("Clearing credential store")
	}
	c.redirect.RedirectToLogin(ctx, reason)
}
