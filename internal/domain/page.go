package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RawPage is a single fetched response page. Created by the fetcher pool,
// consumed once by the response store, then immutable.
type RawPage struct {
	SourceID   string            `json:"source_id"`
	RoasterID  string            `json:"roaster_id"`
	Platform   Platform          `json:"platform"`
	PageNumber int               `json:"page_number"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Body       []byte            `json:"-"`
	Headers    map[string]string `json:"headers,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
}

// ContentHash returns the hex SHA-256 digest of the page body.
func (p *RawPage) ContentHash() string {
	return HashBytes(p.Body)
}

// StoredResponse status classifications. Failed fetches are archived under a
// separate classification so they never mix into the valid-data namespace.
const (
	StoreStatusSuccess = "success"
	StoreStatusFailed  = "failed"
)

// StoredResponse is the archive record for one stored raw page.
// Content-addressed: identical payloads map to the same hash and are stored once.
type StoredResponse struct {
	ContentHash  string            `json:"content_hash"`
	Location     string            `json:"location"`
	SourceID     string            `json:"source_id"`
	Platform     Platform          `json:"platform"`
	Status       string            `json:"status"`
	FetchedAt    time.Time         `json:"fetched_at"`
	Deduplicated bool              `json:"deduplicated"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HashBytes returns the hex-encoded SHA-256 of b.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
