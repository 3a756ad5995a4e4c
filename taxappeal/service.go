// Package taxappeal wraps the staff REST endpoints in typed calls. Every call
// goes through apiclient, so expired sessions are refreshed transparently.
package taxappeal

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/pkg/errors"
)

// Response is the envelope most endpoints wrap their payload in.
type Response[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Page is a page of results as returned by the paged endpoints.
type Page[T any] struct {
	Content       []T `json:"content"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

// Last reports whether this is the final page.
func (p *Page[T]) Last() bool {
	return p.Number >= p.TotalPages-1
}

// PageRequest selects a page. Pages are numbered from zero.
type PageRequest struct {
	Page int
	Size int
}

const defaultPageSize = 5

func (p PageRequest) query() url.Values {
	size := p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	return url.Values{
		"page": {strconv.Itoa(max(p.Page, 0))},
		"size": {strconv.Itoa(size)},
	}
}

// Service exposes the staff endpoints.
type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// getData fetches path and unwraps the Response envelope.
func getData[T any](ctx context.Context, c *apiclient.Client, path string, query url.Values) (T, error) {
	var resp Response[T]
	if err := c.Get(ctx, path, query, &resp); err != nil {
		return resp.Data, err
	}
	return resp.Data, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}

func requireID(name, id string) error {
	if id == "" {
		return errors.Errorf("%s is required", name)
	}
	return nil
}
