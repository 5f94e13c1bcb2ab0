package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
	"github.com/jonesrussell/gocatalog/internal/persist"
	"github.com/jonesrussell/gocatalog/internal/validator"
)

// fakeFetcher replays prepared pages per source.
type fakeFetcher struct {
	pages    map[string][]*domain.RawPage
	failures map[string]error
}

func (f *fakeFetcher) FetchAll(
	_ context.Context, sources []domain.Source, emit func(*domain.RawPage) error,
) map[string]error {
	failures := make(map[string]error)
	for _, src := range sources {
		// Pages already fetched are handed over even when the source
		// ultimately fails, matching the pool's behavior.
		for _, page := range f.pages[src.ID] {
			if err := emit(page); err != nil {
				failures[src.ID] = err
				break
			}
		}
		if err, ok := f.failures[src.ID]; ok {
			failures[src.ID] = err
		}
	}
	return failures
}

// fakeArchiver records pages and simulates dedup by content hash.
type fakeArchiver struct {
	seen map[string]bool
	err  error
}

func (f *fakeArchiver) Store(_ context.Context, page *domain.RawPage) (*domain.StoredResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	hash := page.ContentHash()
	dup := f.seen[hash]
	f.seen[hash] = true
	return &domain.StoredResponse{ContentHash: hash, Deduplicated: dup}, nil
}

// fakeProducts maps content hashes it has seen to upsert outcomes.
type fakeProducts struct {
	hashes  map[string]string
	upserts int
	err     error
}

func (f *fakeProducts) Upsert(
	_ context.Context, roasterID string, artifact *domain.Artifact, extracted *persist.Extraction,
) (*domain.UpsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.hashes == nil {
		f.hashes = make(map[string]string)
	}
	f.upserts++

	key := roasterID + "|" + string(artifact.Product.PlatformProductID)
	prev, existed := f.hashes[key]
	f.hashes[key] = extracted.ContentHash

	switch {
	case !existed:
		return &domain.UpsertResult{Outcome: domain.UpsertCreated, FirstSeenAt: extracted.CreatedAt}, nil
	case prev != extracted.ContentHash:
		return &domain.UpsertResult{Outcome: domain.UpsertUpdated, FirstSeenAt: extracted.CreatedAt}, nil
	default:
		return &domain.UpsertResult{Outcome: domain.UpsertSkipped, FirstSeenAt: extracted.CreatedAt}, nil
	}
}

// fakeReviews collects review items.
type fakeReviews struct {
	items []*domain.ReviewItem
	err   error
}

func (f *fakeReviews) Insert(_ context.Context, item *domain.ReviewItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

// fakeSources serves a static source list.
type fakeSources struct {
	sources   []domain.Source
	contacted []string
	listErr   error
}

func (f *fakeSources) ListEnabled(context.Context) ([]domain.Source, error) {
	return f.sources, f.listErr
}

func (f *fakeSources) UpdateLastContact(_ context.Context, id string) error {
	f.contacted = append(f.contacted, id)
	return nil
}

func runnerSource() domain.Source {
	return domain.Source{
		ID:        "src-1",
		RoasterID: "roaster-1",
		Name:      "Example Coffee",
		BaseURL:   "https://example.com",
		Platform:  domain.PlatformShopify,
		Allowed:   true,
		Enabled:   true,
	}
}

func runnerPage(pageNumber int, body string) *domain.RawPage {
	return &domain.RawPage{
		SourceID:   "src-1",
		RoasterID:  "roaster-1",
		Platform:   domain.PlatformShopify,
		PageNumber: pageNumber,
		URL:        "https://example.com/products.json",
		StatusCode: 200,
		Body:       []byte(body),
		FetchedAt:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func newTestRunner(fetch Fetcher, arch Archiver, products ProductStore, reviews ReviewSink, sources SourceStore) *Runner {
	return NewRunner(
		fetch, arch, validator.New(), products, reviews, sources,
		NewBuilder("gocatalog-test"), nil, logger.NewNop(),
	)
}

func TestRunCycle_PersistsValidAndRoutesInvalid(t *testing.T) {
	t.Parallel()

	// Three records: two well-formed, one missing its product id.
	body := `{"products":[
		{"id": "p-1", "title": "One"},
		{"id": "p-2", "title": "Two"},
		{"title": "No ID"}
	]}`

	fetch := &fakeFetcher{pages: map[string][]*domain.RawPage{"src-1": {runnerPage(1, body)}}}
	products := &fakeProducts{}
	reviews := &fakeReviews{}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(fetch, &fakeArchiver{}, products, reviews, sources)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.Pages != 1 || stats.Artifacts != 3 {
		t.Errorf("pages = %d, artifacts = %d, want 1 and 3", stats.Pages, stats.Artifacts)
	}
	if stats.Created != 2 {
		t.Errorf("created = %d, want 2", stats.Created)
	}
	if stats.Invalid != 1 || stats.Reviewed != 1 {
		t.Errorf("invalid = %d, reviewed = %d, want 1 and 1", stats.Invalid, stats.Reviewed)
	}
	if len(reviews.items) != 1 {
		t.Fatalf("review queue holds %d items, want 1", len(reviews.items))
	}
	if reviews.items[0].Reason != domain.ReviewReasonValidation {
		t.Errorf("review reason = %q, want validation", reviews.items[0].Reason)
	}
	if len(sources.contacted) != 1 || sources.contacted[0] != "src-1" {
		t.Errorf("contacted = %v, want [src-1]", sources.contacted)
	}
}

func TestRunCycle_RedeliveryIsIdempotent(t *testing.T) {
	t.Parallel()

	body := `{"products":[{"id": "p-1", "title": "One"}]}`
	fetch := &fakeFetcher{pages: map[string][]*domain.RawPage{"src-1": {runnerPage(1, body)}}}
	products := &fakeProducts{}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(fetch, &fakeArchiver{}, products, &fakeReviews{}, sources)

	first, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first RunCycle() error = %v", err)
	}
	second, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle() error = %v", err)
	}

	if first.Created != 1 {
		t.Errorf("first cycle created = %d, want 1", first.Created)
	}
	if second.Created != 0 || second.Skipped != 1 {
		t.Errorf("second cycle created = %d, skipped = %d, want 0 and 1", second.Created, second.Skipped)
	}
	if second.Deduplicated != 1 {
		t.Errorf("second cycle deduplicated = %d, want 1", second.Deduplicated)
	}
}

func TestRunCycle_FailingSourceIsIsolated(t *testing.T) {
	t.Parallel()

	okSrc := runnerSource()
	badSrc := runnerSource()
	badSrc.ID = "src-2"

	body := `{"products":[{"id": "p-1"}]}`
	fetch := &fakeFetcher{
		pages:    map[string][]*domain.RawPage{"src-1": {runnerPage(1, body)}},
		failures: map[string]error{"src-2": errors.New("connect timeout")},
	}
	products := &fakeProducts{}
	sources := &fakeSources{sources: []domain.Source{okSrc, badSrc}}

	runner := newTestRunner(fetch, &fakeArchiver{}, products, &fakeReviews{}, sources)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.FailedSources != 1 {
		t.Errorf("failed sources = %d, want 1", stats.FailedSources)
	}
	if stats.Created != 1 {
		t.Errorf("created = %d, want 1 from the healthy source", stats.Created)
	}
	if len(sources.contacted) != 1 || sources.contacted[0] != "src-1" {
		t.Errorf("contacted = %v, want only the healthy source", sources.contacted)
	}
}

func TestRunCycle_TerminalFailureArchivedWithoutBuilding(t *testing.T) {
	t.Parallel()

	// The fetcher hands over the terminal 502 response before marking the
	// source failed; it is archived for diagnosis, nothing more.
	page := runnerPage(1, `<html>upstream broke</html>`)
	page.StatusCode = 502

	fetch := &fakeFetcher{
		pages:    map[string][]*domain.RawPage{"src-1": {page}},
		failures: map[string]error{"src-1": errors.New("retry attempts exhausted")},
	}
	arch := &fakeArchiver{}
	products := &fakeProducts{}
	reviews := &fakeReviews{}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(fetch, arch, products, reviews, sources)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.FailedPages != 1 || stats.Pages != 0 {
		t.Errorf("failed pages = %d, pages = %d, want 1 and 0", stats.FailedPages, stats.Pages)
	}
	if stats.FailedSources != 1 {
		t.Errorf("failed sources = %d, want 1", stats.FailedSources)
	}
	if len(arch.seen) != 1 {
		t.Errorf("archived %d responses, want the failed one", len(arch.seen))
	}
	if stats.Artifacts != 0 || products.upserts != 0 {
		t.Errorf("artifacts = %d, upserts = %d, want 0 and 0", stats.Artifacts, products.upserts)
	}
	if len(reviews.items) != 0 {
		t.Errorf("review queue holds %d items, want 0", len(reviews.items))
	}
}

func TestRunCycle_UndecodablePageRoutedToReview(t *testing.T) {
	t.Parallel()

	fetch := &fakeFetcher{
		pages: map[string][]*domain.RawPage{"src-1": {runnerPage(1, `<html>oops</html>`)}},
	}
	reviews := &fakeReviews{}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(fetch, &fakeArchiver{}, &fakeProducts{}, reviews, sources)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.FailedSources != 0 {
		t.Errorf("failed sources = %d, want 0 (bad page is not fatal)", stats.FailedSources)
	}
	if len(reviews.items) != 1 {
		t.Fatalf("review queue holds %d items, want 1", len(reviews.items))
	}
	if reviews.items[0].Reason != domain.ReviewReasonValidation {
		t.Errorf("review reason = %q, want validation", reviews.items[0].Reason)
	}
}

func TestRunCycle_PersistenceFailureRoutedToReview(t *testing.T) {
	t.Parallel()

	body := `{"products":[{"id": "p-1"}]}`
	fetch := &fakeFetcher{pages: map[string][]*domain.RawPage{"src-1": {runnerPage(1, body)}}}
	products := &fakeProducts{err: errors.New("deadlock detected")}
	reviews := &fakeReviews{}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(fetch, &fakeArchiver{}, products, reviews, sources)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.Created != 0 {
		t.Errorf("created = %d, want 0", stats.Created)
	}
	if len(reviews.items) != 1 || reviews.items[0].Reason != domain.ReviewReasonPersistence {
		t.Errorf("review items = %v, want one persistence item", reviews.items)
	}
}

func TestRunCycle_ArchiveFailureFailsSource(t *testing.T) {
	t.Parallel()

	body := `{"products":[{"id": "p-1"}]}`
	fetch := &fakeFetcher{pages: map[string][]*domain.RawPage{"src-1": {runnerPage(1, body)}}}
	sources := &fakeSources{sources: []domain.Source{runnerSource()}}

	runner := newTestRunner(
		fetch, &fakeArchiver{err: errors.New("bucket unreachable")},
		&fakeProducts{}, &fakeReviews{}, sources,
	)

	stats, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if stats.FailedSources != 1 {
		t.Errorf("failed sources = %d, want 1", stats.FailedSources)
	}
	if len(sources.contacted) != 0 {
		t.Errorf("contacted = %v, want none", sources.contacted)
	}
}

func TestRunCycle_ListFailure(t *testing.T) {
	t.Parallel()

	runner := newTestRunner(
		&fakeFetcher{}, &fakeArchiver{}, &fakeProducts{}, &fakeReviews{},
		&fakeSources{listErr: errors.New("connection refused")},
	)

	if _, err := runner.RunCycle(context.Background()); err == nil {
		t.Error("RunCycle() error = nil, want list failure")
	}
}
