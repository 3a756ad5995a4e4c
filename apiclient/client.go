// Package apiclient is the HTTP client for the staff API. Every request
// carries the stored access token; a 401 triggers one refresh-token exchange
// shared by all concurrent callers, after which the request is sent again
// exactly once. When the session cannot be refreshed the credential store is
// cleared and the user is sent back to the login screen.
package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Endpoint paths the client treats specially.
const (
	LoginPath         = "/api/v1/auth/login"
	RefreshPath       = "/api/v1/auth/refresh-token"
	LogoutPath        = "/api/v1/auth/logout"
	MeetingCreatePath = "/api/v1/meetings/create"
)

const (
	RequestIDHeader = "X-Request-ID"

	defaultRefreshTimeout = 15 * time.Second
	refreshFlightKey      = "refresh"
)

// Client sends authenticated requests relative to a base URL.
type Client struct {
	baseURL    *url.URL
	store      credentials.Store
	httpClient *http.Client
	navigator  Navigator
	redirect   *LoginRedirect
	logger     zerolog.Logger
	limiter    *rate.Limiter
	requestID  func() string
	nowTime    func() time.Time

	unauthenticated []string
	refreshExempt   []string
	refreshTimeout  time.Duration
	requestTimeout  time.Duration

	flights     singleflight.Group
	refreshLock sync.Mutex // one exchange at a time; the store is re-read under it

	// sessionLock orders whole-session writes: a refreshed pair is only saved
	// if no logout or login bumped generation since the exchange started.
	sessionLock sync.Mutex
	generation  uint64
}

// New creates a Client. baseURL is the API root (API_URL); store holds the
// session the client reads and rotates.
func New(baseURL string, store credentials.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "credential store is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:         u,
		store:           store,
		httpClient:      &http.Client{},
		logger:          log.Logger,
		requestID:       func() string { return uuid.New().String() },
		nowTime:         time.Now,
		unauthenticated: []string{LoginPath, RefreshPath},
		refreshExempt:   []string{MeetingCreatePath},
		refreshTimeout:  defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.navigator == nil {
		c.navigator = LogNavigator{Logger: c.logger, LoginPath: "/staff-login"}
	}
	c.redirect = NewLoginRedirect(c.navigator)
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Store returns the credential store backing the client.
func (c *Client) Store() credentials.Store {
	return c.store
}

// StartSession stores a freshly logged in session and re-arms the login
// redirect. A refresh still in flight for the previous session will not
// overwrite it.
func (c *Client) StartSession(ctx context.Context, session *credentials.Session) error {
	c.sessionLock.Lock()
	c.generation++
	err := credentials.SaveSession(ctx, c.store, session)
	c.sessionLock.Unlock()
	if err != nil {
		return err
	}
	c.redirect.Arm()
	return nil
}

// Do sends req and returns the buffered response. Non-2xx/3xx responses are
// returned as *StatusError.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	p, err := newPendingRequest(req, c.requestID())
	if err != nil {
		return nil, err
	}
	return c.send(ctx, p)
}

// Get decodes the response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put sends body as JSON and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete sends DELETE path and decodes the response into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) call(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// send runs one pass of the pipeline: outbound decoration, the round trip,
// then inbound 401 recovery.
func (c *Client) send(ctx context.Context, p pendingRequest) (*Response, error) {
	resp, sentToken, err := c.roundTrip(ctx, p)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode < http.StatusBadRequest:
		return resp, nil
	case resp.StatusCode == http.StatusUnauthorized && !p.retried && !p.noRefresh && !c.isRefreshExempt(p.path):
		return c.recoverUnauthorized(ctx, p, sentToken)
	default:
		return nil, &StatusError{
			Method:     p.method,
			Path:       p.path,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
		}
	}
}

func (c *Client) recoverUnauthorized(ctx context.Context, p pendingRequest, staleToken string) (*Response, error) {
	c.logger.Debug().
		Str("method", p.method).
		Str("path", p.path).
		Str("request_id", p.requestID).
		Msg("Access token rejected, refreshing")

	token, err := c.refresh(ctx, staleToken)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, p.retry(token))
}

// roundTrip sends p once and returns the response and the access token it
// carried ("" when none).
func (c *Client) roundTrip(ctx context.Context, p pendingRequest) (*Response, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", pkgerrors.Wrapf(err, "%s %s: rate limit", p.method, p.path)
		}
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := p.build(ctx, c.baseURL)
	if err != nil {
		return nil, "", err
	}

	token := ""
	if !c.isUnauthenticated(p.path) {
		token = p.accessToken
		if token == "" {
			token = c.currentAccessToken(ctx)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		RequestsTotal.WithLabelValues(p.method, "error").Inc()
		return nil, token, pkgerrors.Wrapf(err, "%s %s", p.method, p.path)
	}
	resp, err := readResponse(httpResp)
	RequestsTotal.WithLabelValues(p.method, strconv.Itoa(httpResp.StatusCode)).Inc()
	if err != nil {
		return nil, token, pkgerrors.Wrapf(err, "%s %s: reading body", p.method, p.path)
	}
	return resp, token, nil
}

// currentAccessToken never fails: a store error is logged and the request
// goes out without a bearer token.
func (c *Client) currentAccessToken(ctx context.Context) string {
	token, err := c.store.Get(ctx, credentials.AccessTokenKey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Reading access token, sending request without it")
		return ""
	}
	return token
}

func (c *Client) isUnauthenticated(path string) bool {
	return matchesAny(path, c.unauthenticated)
}

func (c *Client) isRefreshExempt(path string) bool {
	return matchesAny(path, c.refreshExempt)
}

func matchesAny(path string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(path, f) {
			return true
		}
	}
	return false
}
