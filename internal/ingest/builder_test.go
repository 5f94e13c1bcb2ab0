package ingest

import (
	"testing"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/persist"
	"github.com/jonesrussell/gocatalog/internal/validator"
)

func fixedBuilder() *Builder {
	b := NewBuilder("gocatalog-test")
	b.newID = func() string { return "artifact-1" }
	b.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 1, 0, time.UTC) }
	return b
}

func builderPage(body string) *domain.RawPage {
	return &domain.RawPage{
		SourceID:   "src-1",
		RoasterID:  "roaster-1",
		Platform:   domain.PlatformShopify,
		PageNumber: 1,
		URL:        "https://example.com/products.json?page=1",
		StatusCode: 200,
		Body:       []byte(body),
		FetchedAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func builderSource() *domain.Source {
	return &domain.Source{
		ID:        "src-1",
		RoasterID: "roaster-1",
		BaseURL:   "https://www.example.com",
		Platform:  domain.PlatformShopify,
	}
}

func TestBuild_ProducesValidArtifacts(t *testing.T) {
	t.Parallel()

	page := builderPage(`{"products":[
		{
			"id": 8231456789,
			"title": "Kayon Mountain",
			"handle": "kayon-mountain",
			"body_html": "<p>Floral and bright.</p>",
			"roast_level": "light",
			"variants": [
				{"id": 42, "title": "250g", "price": "18.00", "grams": 250, "available": true}
			],
			"images": [{"src": "https://example.com/a.jpg", "alt": "bag"}]
		}
	]}`)

	payloads, err := fixedBuilder().Build(page, builderSource())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("Build() produced %d payloads, want 1", len(payloads))
	}

	// Everything the builder emits must survive validation and extraction.
	result := validator.New().Validate(payloads[0])
	if !result.Valid() {
		t.Fatalf("built payload fails validation: %v", result.Errors)
	}

	artifact := result.Artifact
	if artifact.Source != domain.PlatformShopify {
		t.Errorf("Source = %q, want shopify", artifact.Source)
	}
	if artifact.RoasterDomain != "example.com" {
		t.Errorf("RoasterDomain = %q, want example.com", artifact.RoasterDomain)
	}
	if got := string(artifact.Product.PlatformProductID); got != "8231456789" {
		t.Errorf("PlatformProductID = %q, want 8231456789", got)
	}
	if artifact.Product.Description != "<p>Floral and bright.</p>" {
		t.Errorf("Description = %q", artifact.Product.Description)
	}
	if artifact.Product.SourceURL != "https://www.example.com/products/kayon-mountain" {
		t.Errorf("SourceURL = %q", artifact.Product.SourceURL)
	}
	if artifact.Normalization.RawPayloadHash != page.ContentHash() {
		t.Error("RawPayloadHash does not match page hash")
	}
	if artifact.Audit.ArtifactID != "artifact-1" || artifact.Audit.CollectedBy != "gocatalog-test" {
		t.Errorf("audit block = %+v", artifact.Audit)
	}

	if _, err := persist.Extract(artifact); err != nil {
		t.Errorf("built artifact fails extraction: %v", err)
	}
}

func TestBuild_SplitsMultiProductPage(t *testing.T) {
	t.Parallel()

	page := builderPage(`{"products":[
		{"id": "p-1", "title": "One"},
		{"id": "p-2", "title": "Two"},
		{"id": "p-3", "title": "Three"}
	]}`)

	payloads, err := fixedBuilder().Build(page, builderSource())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(payloads) != 3 {
		t.Errorf("Build() produced %d payloads, want 3", len(payloads))
	}
}

func TestBuild_UndecodablePage(t *testing.T) {
	t.Parallel()

	page := builderPage(`<html>definitely not json</html>`)

	if _, err := fixedBuilder().Build(page, builderSource()); err == nil {
		t.Error("Build() accepted an undecodable page")
	}
}

func TestBuild_EmptyPage(t *testing.T) {
	t.Parallel()

	payloads, err := fixedBuilder().Build(builderPage(`{"products":[]}`), builderSource())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(payloads) != 0 {
		t.Errorf("Build() produced %d payloads from empty page, want 0", len(payloads))
	}
}

func TestMapProduct_ImageURLFallback(t *testing.T) {
	t.Parallel()

	pp := &platformProduct{
		ID: "p-1",
		Images: []platformImage{
			{Src: "https://example.com/a.jpg"},
			{URL: "https://example.com/b.jpg"},
			{Alt: "no url at all"},
		},
	}

	product := mapProduct(pp, builderSource())
	if len(product.Images) != 2 {
		t.Fatalf("mapped %d images, want 2", len(product.Images))
	}
	if product.Images[0].URL != "https://example.com/a.jpg" {
		t.Errorf("image 0 URL = %q", product.Images[0].URL)
	}
	if product.Images[1].URL != "https://example.com/b.jpg" {
		t.Errorf("image 1 URL = %q", product.Images[1].URL)
	}
}
