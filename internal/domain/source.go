// Package domain contains the core data model shared by the fetch, validation,
// and persistence stages of the catalog pipeline.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Platform identifies the storefront platform a source runs on.
type Platform string

const (
	// PlatformShopify is a Shopify storefront.
	PlatformShopify Platform = "shopify"
	// PlatformWooCommerce is a WooCommerce storefront.
	PlatformWooCommerce Platform = "woocommerce"
	// PlatformCustom is a storefront with a bespoke products endpoint.
	PlatformCustom Platform = "custom"
	// PlatformOther is a recognised but unclassified storefront.
	PlatformOther Platform = "other"
)

// validPlatforms maps every recognised Platform value to true for O(1) lookup.
var validPlatforms = map[Platform]bool{
	PlatformShopify:     true,
	PlatformWooCommerce: true,
	PlatformCustom:      true,
	PlatformOther:       true,
}

// AllPlatforms returns all valid platform tags.
func AllPlatforms() []Platform {
	return []Platform{PlatformShopify, PlatformWooCommerce, PlatformCustom, PlatformOther}
}

// IsValid reports whether p is a recognised platform tag.
func (p Platform) IsValid() bool {
	return validPlatforms[p]
}

// Source validation errors.
var (
	ErrSourceMissingID      = errors.New("source id is required")
	ErrSourceMissingRoaster = errors.New("roaster id is required")
	ErrSourceInvalidBaseURL = errors.New("source base URL is invalid")
	ErrSourceBadPlatform    = errors.New("source platform is not recognised")
	ErrSourceNotAllowed     = errors.New("source does not permit fetching")
)

// Source is the per-store fetch configuration. It is immutable for the
// duration of a fetch cycle; the configuration store owns its lifecycle.
type Source struct {
	ID            string     `db:"id"              json:"id"`
	RoasterID     string     `db:"roaster_id"      json:"roaster_id"`
	Name          string     `db:"name"            json:"name"`
	BaseURL       string     `db:"base_url"        json:"base_url"`
	Platform      Platform   `db:"platform"        json:"platform"`
	ProductsPath  string     `db:"products_path"   json:"products_path"`
	Allowed       bool       `db:"allowed"         json:"allowed"`
	Enabled       bool       `db:"enabled"         json:"enabled"`
	LastContactAt *time.Time `db:"last_contact_at" json:"last_contact_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"      json:"updated_at"`
}

// Validate checks that the source carries everything the fetcher needs.
func (s *Source) Validate() error {
	if s.ID == "" {
		return ErrSourceMissingID
	}
	if s.RoasterID == "" {
		return ErrSourceMissingRoaster
	}
	if !s.Platform.IsValid() {
		return fmt.Errorf("%w: %q", ErrSourceBadPlatform, s.Platform)
	}
	parsed, err := url.Parse(s.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrSourceInvalidBaseURL, s.BaseURL)
	}
	return nil
}

// Endpoint returns the absolute products endpoint URL for the source.
func (s *Source) Endpoint() string {
	base := strings.TrimRight(s.BaseURL, "/")
	path := s.ProductsPath
	if path == "" {
		path = "/products.json"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// Domain returns the hostname of the source base URL with any "www."
// prefix removed, or "unknown" when the URL cannot be parsed.
func (s *Source) Domain() string {
	parsed, err := url.Parse(s.BaseURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
