package apiclient

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithNavigator sets where forced logouts send the user.
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		if n != nil {
			c.navigator = n
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit limits outbound requests. rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRefreshTimeout bounds one refresh-token exchange.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// WithRequestTimeout bounds each attempt of a request. Zero means only the
// caller's context applies.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithUnauthenticatedPaths replaces the path fragments that never carry a
// bearer token.
func WithUnauthenticatedPaths(paths ...string) Option {
	return func(c *Client) {
		c.unauthenticated = paths
	}
}

// WithRefreshExemptPaths replaces the path fragments whose 401 is returned
// to the caller without a refresh attempt. The default exempts only
// MeetingCreatePath.
func WithRefreshExemptPaths(paths ...string) Option {
	return func(c *Client) {
		c.refreshExempt = paths
	}
}

// WithRequestIDFunc sets the generator for X-Request-ID values.
func WithRequestIDFunc(f func() string) Option {
	return func(c *Client) {
		if f != nil {
			c.requestID = f
		}
	}
}

// WithNowTime sets the clock used for token expiry checks (primarily for testing).
func WithNowTime(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.nowTime = now
		}
	}
}
