// Package fetcher retrieves paginated product catalogs from configured
// storefront endpoints under politeness, caching, and retry constraints.
package fetcher

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// Pagination defaults.
const (
	// DefaultPageSize is the number of products requested per page.
	DefaultPageSize = 50
	// DefaultMaxPages caps pagination against misbehaving endpoints that
	// never signal end-of-results.
	DefaultMaxPages = 200
)

// paginator produces the URL for each successive page of a source's catalog.
// Implementations are stateful and not safe for concurrent use; the pool
// creates one per source per cycle.
type paginator interface {
	// NextURL returns the URL for the next page to fetch, or false when
	// pagination has terminated.
	NextURL() (string, bool)
	// Observe updates pagination state from a successful page body.
	Observe(body []byte) error
}

// newPaginator selects the pagination strategy for the source's platform.
// Shopify and WooCommerce expose page/limit offsets; custom endpoints are
// cursor-driven; anything else falls back to offsets.
func newPaginator(src *domain.Source, pageSize, maxPages int) paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	if src.Platform == domain.PlatformCustom {
		return &cursorPaginator{endpoint: src.Endpoint(), pageSize: pageSize, maxPages: maxPages}
	}
	return &offsetPaginator{endpoint: src.Endpoint(), pageSize: pageSize, maxPages: maxPages}
}

// pageEnvelope is the subset of a catalog page the paginators care about.
type pageEnvelope struct {
	Products   []json.RawMessage `json:"products"`
	NextCursor string            `json:"next_cursor"`
}

// offsetPaginator advances a page counter until a response carries fewer
// products than requested, or the safety cap is reached.
type offsetPaginator struct {
	endpoint string
	pageSize int
	maxPages int
	page     int
	done     bool
}

func (p *offsetPaginator) NextURL() (string, bool) {
	if p.done || p.page >= p.maxPages {
		return "", false
	}
	p.page++
	return withQuery(p.endpoint, map[string]string{
		"page":  strconv.Itoa(p.page),
		"limit": strconv.Itoa(p.pageSize),
	}), true
}

func (p *offsetPaginator) Observe(body []byte) error {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode page envelope: %w", err)
	}
	if len(env.Products) < p.pageSize {
		p.done = true
	}
	return nil
}

// cursorPaginator advances using the cursor token returned in the prior
// response. Termination when no further cursor is returned or the safety
// cap is reached.
type cursorPaginator struct {
	endpoint string
	pageSize int
	maxPages int
	page     int
	cursor   string
	done     bool
}

func (p *cursorPaginator) NextURL() (string, bool) {
	if p.done || p.page >= p.maxPages {
		return "", false
	}
	p.page++

	params := map[string]string{"limit": strconv.Itoa(p.pageSize)}
	if p.cursor != "" {
		params["cursor"] = p.cursor
	}
	return withQuery(p.endpoint, params), true
}

func (p *cursorPaginator) Observe(body []byte) error {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode page envelope: %w", err)
	}
	if env.NextCursor == "" {
		p.done = true
		return nil
	}
	p.cursor = env.NextCursor
	return nil
}

// withQuery appends query parameters to endpoint, preserving any existing ones.
func withQuery(endpoint string, params map[string]string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := parsed.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
