// Package ingest drives the fetch, archive, validate, and persist stages of
// one catalog collection cycle.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

// platformPage is the storefront page envelope the builder splits into
// individual product records.
type platformPage struct {
	Products []json.RawMessage `json:"products"`
}

// platformProduct is the subset of a storefront product element mapped into
// the canonical product block. Field names cover the Shopify and
// WooCommerce shapes plus the custom feed format.
type platformProduct struct {
	ID            domain.FlexID     `json:"id"`
	Title         string            `json:"title"`
	Handle        string            `json:"handle"`
	BodyHTML      string            `json:"body_html"`
	Description   string            `json:"description"`
	URL           string            `json:"url"`
	RoastLevel    *string           `json:"roast_level"`
	ProcessMethod *string           `json:"process_method"`
	Variants      []platformVariant `json:"variants"`
	Images        []platformImage   `json:"images"`
}

type platformVariant struct {
	ID        domain.FlexID   `json:"id"`
	Title     string          `json:"title"`
	Price     *domain.Numeric `json:"price"`
	Grams     *domain.Numeric `json:"grams"`
	Available *bool           `json:"available"`
}

type platformImage struct {
	Src string `json:"src"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Builder wraps raw storefront product records into canonical artifact
// payloads, attaching provenance, integrity hashes, and the audit block.
type Builder struct {
	collectedBy string
	newID       func() string
	now         func() time.Time
}

// NewBuilder creates a builder that stamps artifacts with the given
// collector identity.
func NewBuilder(collectedBy string) *Builder {
	return &Builder{
		collectedBy: collectedBy,
		newID:       func() string { return uuid.New().String() },
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Build splits one fetched page into canonical artifact payloads, one per
// product record on the page.
func (b *Builder) Build(page *domain.RawPage, src *domain.Source) ([][]byte, error) {
	var envelope platformPage
	if err := json.Unmarshal(page.Body, &envelope); err != nil {
		return nil, fmt.Errorf("decode catalog page: %w", err)
	}

	rawPayloadHash := page.ContentHash()
	payloads := make([][]byte, 0, len(envelope.Products))

	for i, rawProduct := range envelope.Products {
		payload, err := b.buildOne(rawProduct, page, src, rawPayloadHash)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		payloads = append(payloads, payload)
	}

	return payloads, nil
}

// buildOne maps a single product record into a canonical artifact payload.
func (b *Builder) buildOne(raw json.RawMessage, page *domain.RawPage, src *domain.Source, rawPayloadHash string) ([]byte, error) {
	var pp platformProduct
	if err := json.Unmarshal(raw, &pp); err != nil {
		return nil, fmt.Errorf("decode product record: %w", err)
	}

	product := mapProduct(&pp, src)

	contentHash, err := domain.ComputeContentHash(product)
	if err != nil {
		return nil, err
	}

	artifact := domain.Artifact{
		Source:        src.Platform,
		RoasterDomain: src.Domain(),
		ScrapedAt:     page.FetchedAt,
		Product:       product,
		Normalization: domain.Normalization{
			ContentHash:    contentHash,
			RawPayloadHash: rawPayloadHash,
		},
		CollectorSignals: map[string]any{
			"endpoint_url": page.URL,
			"page_number":  page.PageNumber,
			"http_status":  page.StatusCode,
		},
		Audit: domain.Audit{
			ArtifactID:  b.newID(),
			CreatedAt:   b.now(),
			CollectedBy: b.collectedBy,
		},
	}

	payload, err := json.Marshal(&artifact)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}

	return payload, nil
}

// mapProduct converts a platform product record into the canonical
// product block.
func mapProduct(pp *platformProduct, src *domain.Source) domain.Product {
	description := pp.Description
	if description == "" {
		description = pp.BodyHTML
	}

	sourceURL := pp.URL
	if sourceURL == "" && pp.Handle != "" {
		sourceURL = strings.TrimRight(src.BaseURL, "/") + "/products/" + pp.Handle
	}

	product := domain.Product{
		PlatformProductID: pp.ID,
		Title:             pp.Title,
		Handle:            pp.Handle,
		Description:       description,
		SourceURL:         sourceURL,
	}

	if pp.RoastLevel != nil {
		level := domain.RoastLevel(*pp.RoastLevel)
		product.RoastLevel = &level
	}
	if pp.ProcessMethod != nil {
		method := domain.ProcessMethod(*pp.ProcessMethod)
		product.ProcessMethod = &method
	}

	for _, v := range pp.Variants {
		product.Variants = append(product.Variants, domain.Variant{
			VariantID: v.ID,
			Title:     v.Title,
			Price:     v.Price,
			Grams:     v.Grams,
			InStock:   v.Available,
		})
	}

	for _, img := range pp.Images {
		url := img.Src
		if url == "" {
			url = img.URL
		}
		if url == "" {
			continue
		}
		product.Images = append(product.Images, domain.Image{URL: url, Alt: img.Alt})
	}

	return product
}
