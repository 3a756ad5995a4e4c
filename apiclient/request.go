package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/taxappeal-client/internal/errors"
)

// maxResponseBytes caps how much of a response body is buffered.
const maxResponseBytes = 16 << 20

// Request describes a call relative to the client's base URL.
type Request struct {
	Method string
	Path   string      // e.g. "/api/v1/agenda/"
	Query  url.Values  // optional
	Header http.Header // optional, copied
	Body   any         // JSON encoded unless nil; []byte is sent as is

	// NoRefresh returns a 401 to the caller as a StatusError instead of
	// refreshing, as for the refresh-exempt paths.
	NoRefresh bool
}

// Response is a buffered API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals a JSON body into v. A *string receives the raw body,
// since several endpoints answer with plain text.
func (r *Response) Decode(v any) error {
	if v == nil {
		return nil
	}
	if s, ok := v.(*string); ok {
		*s = string(r.Body)
		return nil
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(errors.ErrInvalidResponse, "decoding body: %v", err)
	}
	return nil
}

// pendingRequest is one logical request travelling through the pipeline.
// It is passed by value: retrying produces a new value with retried set, the
// original is never modified.
type pendingRequest struct {
	method    string
	path      string
	query     string
	header    http.Header
	body      []byte
	requestID string

	noRefresh   bool
	retried     bool
	accessToken string // set on the retry to the token the refresh produced
}

func newPendingRequest(req *Request, requestID string) (pendingRequest, error) {
	if req == nil {
		return pendingRequest{}, errors.Wrapf(errors.ErrInvalidRequest, "nil request")
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(req.Path, "/") {
		return pendingRequest{}, errors.Wrapf(errors.ErrInvalidRequest, "path %q must start with /", req.Path)
	}

	p := pendingRequest{
		method:    method,
		path:      req.Path,
		header:    req.Header.Clone(),
		requestID: requestID,
		noRefresh: req.NoRefresh,
	}
	if p.header == nil {
		p.header = make(http.Header)
	}
	if len(req.Query) > 0 {
		p.query = req.Query.Encode()
	}

	switch body := req.Body.(type) {
	case nil:
	case []byte:
		p.body = body
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return pendingRequest{}, errors.Wrapf(errors.ErrInvalidRequest, "encoding body: %v", err)
		}
		p.body = b
		if p.header.Get("Content-Type") == "" {
			p.header.Set("Content-Type", "application/json")
		}
	}
	if p.header.Get("Accept") == "" {
		p.header.Set("Accept", "application/json")
	}
	if id := p.header.Get(RequestIDHeader); id != "" {
		p.requestID = id
	} else {
		p.header.Set(RequestIDHeader, p.requestID)
	}
	return p, nil
}

// retry returns a copy marked as retried that will carry accessToken.
func (p pendingRequest) retry(accessToken string) pendingRequest {
	p.retried = true
	p.accessToken = accessToken
	p.header = p.header.Clone()
	return p
}

func (p pendingRequest) build(ctx context.Context, base *url.URL) (*http.Request, error) {
	u := base.JoinPath(p.path)
	// JoinPath drops a trailing slash only when the path is empty; keep the
	// caller's spelling since the backend distinguishes "/agenda" and "/agenda/".
	if strings.HasSuffix(p.path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = p.query

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "building %s %s: %v", p.method, p.path, err)
	}
	req.Header = p.header.Clone()
	return req, nil
}

func readResponse(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
