package fetcher

import (
	"testing"

	"github.com/jonesrussell/gocatalog/internal/domain"
)

func TestOffsetPaginator_AdvancesUntilShortPage(t *testing.T) {
	t.Parallel()

	src := &domain.Source{BaseURL: "https://example.com", Platform: domain.PlatformShopify}
	pag := newPaginator(src, 2, 10)

	url, ok := pag.NextURL()
	if !ok {
		t.Fatal("NextURL() terminated before first page")
	}
	if url != "https://example.com/products.json?limit=2&page=1" {
		t.Errorf("first URL = %q", url)
	}

	// Full page: pagination continues.
	if err := pag.Observe([]byte(`{"products":[{"id":1},{"id":2}]}`)); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	url, ok = pag.NextURL()
	if !ok {
		t.Fatal("NextURL() terminated after a full page")
	}
	if url != "https://example.com/products.json?limit=2&page=2" {
		t.Errorf("second URL = %q", url)
	}

	// Short page: done.
	if err := pag.Observe([]byte(`{"products":[{"id":3}]}`)); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if _, ok := pag.NextURL(); ok {
		t.Error("NextURL() continued after a short page")
	}
}

func TestOffsetPaginator_SafetyCap(t *testing.T) {
	t.Parallel()

	src := &domain.Source{BaseURL: "https://example.com", Platform: domain.PlatformShopify}
	pag := newPaginator(src, 1, 3)

	pages := 0
	for {
		_, ok := pag.NextURL()
		if !ok {
			break
		}
		pages++
		// Every page full: the endpoint never signals end-of-results.
		if err := pag.Observe([]byte(`{"products":[{"id":1}]}`)); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}

	if pages != 3 {
		t.Errorf("fetched %d pages, want safety cap of 3", pages)
	}
}

func TestCursorPaginator_FollowsCursor(t *testing.T) {
	t.Parallel()

	src := &domain.Source{
		BaseURL:      "https://example.com",
		Platform:     domain.PlatformCustom,
		ProductsPath: "/api/catalog",
	}
	pag := newPaginator(src, 5, 10)

	url, ok := pag.NextURL()
	if !ok {
		t.Fatal("NextURL() terminated before first page")
	}
	if url != "https://example.com/api/catalog?limit=5" {
		t.Errorf("first URL = %q", url)
	}

	if err := pag.Observe([]byte(`{"products":[{"id":1}],"next_cursor":"abc"}`)); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	url, ok = pag.NextURL()
	if !ok {
		t.Fatal("NextURL() terminated despite cursor")
	}
	if url != "https://example.com/api/catalog?cursor=abc&limit=5" {
		t.Errorf("second URL = %q", url)
	}

	// Empty cursor terminates.
	if err := pag.Observe([]byte(`{"products":[{"id":2}]}`)); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if _, ok := pag.NextURL(); ok {
		t.Error("NextURL() continued without a cursor")
	}
}

func TestPaginator_MalformedEnvelope(t *testing.T) {
	t.Parallel()

	src := &domain.Source{BaseURL: "https://example.com", Platform: domain.PlatformShopify}
	pag := newPaginator(src, 5, 10)

	if _, ok := pag.NextURL(); !ok {
		t.Fatal("NextURL() terminated before first page")
	}
	if err := pag.Observe([]byte(`not json`)); err == nil {
		t.Error("Observe() accepted a malformed envelope")
	}
}

func TestWithQuery_PreservesExistingParams(t *testing.T) {
	t.Parallel()

	got := withQuery("https://example.com/api?token=x", map[string]string{"page": "2"})
	want := "https://example.com/api?page=2&token=x"
	if got != want {
		t.Errorf("withQuery() = %q, want %q", got, want)
	}
}

func TestNewPaginator_PlatformSelection(t *testing.T) {
	t.Parallel()

	offsets := []domain.Platform{domain.PlatformShopify, domain.PlatformWooCommerce, domain.PlatformOther}
	for _, platform := range offsets {
		src := &domain.Source{BaseURL: "https://example.com", Platform: platform}
		if _, ok := newPaginator(src, 5, 10).(*offsetPaginator); !ok {
			t.Errorf("platform %q: want offset pagination", platform)
		}
	}

	src := &domain.Source{BaseURL: "https://example.com", Platform: domain.PlatformCustom}
	if _, ok := newPaginator(src, 5, 10).(*cursorPaginator); !ok {
		t.Error("custom platform: want cursor pagination")
	}
}
