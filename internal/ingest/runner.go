package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
	"github.com/jonesrussell/gocatalog/internal/persist"
)

// Fetcher drives concurrent page collection across sources.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []domain.Source, emit func(*domain.RawPage) error) map[string]error
}

// Archiver stores raw responses in the content-addressed archive.
type Archiver interface {
	Store(ctx context.Context, page *domain.RawPage) (*domain.StoredResponse, error)
}

// Validator checks a raw artifact payload against the canonical schema.
type Validator interface {
	Validate(payload []byte) *domain.ValidationResult
}

// ProductStore is the persistence gateway for canonical products.
type ProductStore interface {
	Upsert(ctx context.Context, roasterID string, artifact *domain.Artifact, extracted *persist.Extraction) (*domain.UpsertResult, error)
}

// ReviewSink receives artifacts that could not be persisted automatically.
type ReviewSink interface {
	Insert(ctx context.Context, item *domain.ReviewItem) error
}

// SourceStore lists collectable sources and records contact times.
type SourceStore interface {
	ListEnabled(ctx context.Context) ([]domain.Source, error)
	UpdateLastContact(ctx context.Context, id string) error
}

// CycleObserver receives per-record pipeline outcomes.
type CycleObserver interface {
	ObserveValidation(status string)
	ObserveUpsert(outcome string)
	ObserveReview(reason string)
}

// NopCycleObserver discards all observations.
type NopCycleObserver struct{}

func (NopCycleObserver) ObserveValidation(string) {}
func (NopCycleObserver) ObserveUpsert(string)     {}
func (NopCycleObserver) ObserveReview(string)     {}

// CycleStats summarizes one collection cycle. Counters are updated
// concurrently while pages stream in from the fetcher.
type CycleStats struct {
	mu sync.Mutex

	Sources       int           `json:"sources"`
	FailedSources int           `json:"failed_sources"`
	Pages         int           `json:"pages"`
	FailedPages   int           `json:"failed_pages"`
	Deduplicated  int           `json:"deduplicated"`
	Artifacts     int           `json:"artifacts"`
	Invalid       int           `json:"invalid"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Skipped       int           `json:"skipped"`
	Reviewed      int           `json:"reviewed"`
	Elapsed       time.Duration `json:"elapsed"`
}

func (s *CycleStats) add(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

// Runner executes full collection cycles: fetch every enabled source,
// archive each raw page, split pages into artifacts, validate, and upsert.
// Records that cannot be persisted are routed to manual review; a failing
// source never stops the others.
type Runner struct {
	fetcher  Fetcher
	archive  Archiver
	validate Validator
	products ProductStore
	reviews  ReviewSink
	sources  SourceStore
	builder  *Builder
	obs      CycleObserver
	log      logger.Logger
}

// NewRunner wires the pipeline stages together.
func NewRunner(
	fetcher Fetcher,
	archive Archiver,
	validate Validator,
	products ProductStore,
	reviews ReviewSink,
	sources SourceStore,
	builder *Builder,
	obs CycleObserver,
	log logger.Logger,
) *Runner {
	if obs == nil {
		obs = NopCycleObserver{}
	}

	return &Runner{
		fetcher:  fetcher,
		archive:  archive,
		validate: validate,
		products: products,
		reviews:  reviews,
		sources:  sources,
		builder:  builder,
		obs:      obs,
		log:      log,
	}
}

// RunCycle collects every enabled source once and returns cycle totals.
func (r *Runner) RunCycle(ctx context.Context) (*CycleStats, error) {
	started := time.Now()

	sources, err := r.sources.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}

	stats := &CycleStats{Sources: len(sources)}
	if len(sources) == 0 {
		r.log.Info("no enabled sources, nothing to collect")
		stats.Elapsed = time.Since(started)
		return stats, nil
	}

	byID := make(map[string]*domain.Source, len(sources))
	for i := range sources {
		byID[sources[i].ID] = &sources[i]
	}

	r.log.Info("collection cycle started", logger.Int("sources", len(sources)))

	failures := r.fetcher.FetchAll(ctx, sources, func(page *domain.RawPage) error {
		src, ok := byID[page.SourceID]
		if !ok {
			return fmt.Errorf("page for unknown source %s", page.SourceID)
		}
		return r.processPage(ctx, page, src, stats)
	})

	for id, fetchErr := range failures {
		stats.FailedSources++
		r.log.Error("source collection failed",
			logger.String("source_id", id),
			logger.Error(fetchErr))
	}

	for _, src := range sources {
		if _, failed := failures[src.ID]; failed {
			continue
		}
		if err := r.sources.UpdateLastContact(ctx, src.ID); err != nil {
			r.log.Warn("failed to update source contact time",
				logger.String("source_id", src.ID),
				logger.Error(err))
		}
	}

	stats.Elapsed = time.Since(started)
	r.log.Info("collection cycle finished",
		logger.Int("sources", stats.Sources),
		logger.Int("failed_sources", stats.FailedSources),
		logger.Int("pages", stats.Pages),
		logger.Int("artifacts", stats.Artifacts),
		logger.Int("created", stats.Created),
		logger.Int("updated", stats.Updated),
		logger.Int("skipped", stats.Skipped),
		logger.Int("reviewed", stats.Reviewed),
		logger.Duration("elapsed", stats.Elapsed))

	return stats, nil
}

// processPage archives one raw page and runs every product record on it
// through validation and persistence. A page that cannot be archived fails
// its source; a record that cannot be persisted is routed to review and the
// rest of the page continues.
func (r *Runner) processPage(ctx context.Context, page *domain.RawPage, src *domain.Source, stats *CycleStats) error {
	stored, err := r.archive.Store(ctx, page)
	if err != nil {
		return fmt.Errorf("archive page %d: %w", page.PageNumber, err)
	}

	if page.StatusCode != http.StatusOK {
		// Terminal failure handed over by the fetcher: archived under the
		// failed classification for diagnosis, never built into artifacts.
		stats.add(func() { stats.FailedPages++ })
		r.log.Warn("failed response archived",
			logger.String("source_id", src.ID),
			logger.Int("page", page.PageNumber),
			logger.Int("status", page.StatusCode),
			logger.String("location", stored.Location))
		return nil
	}

	stats.add(func() {
		stats.Pages++
		if stored.Deduplicated {
			stats.Deduplicated++
		}
	})

	payloads, err := r.builder.Build(page, src)
	if err != nil {
		// The whole page is undecodable. Keep it out of the pipeline but
		// hand it to review so the malformed response is not lost.
		r.routeReview(ctx, src, domain.ReviewReasonValidation, page.Body, []domain.FieldError{
			{Path: "$", Message: err.Error()},
		}, stats)
		r.log.Warn("undecodable catalog page routed to review",
			logger.String("source_id", src.ID),
			logger.Int("page", page.PageNumber),
			logger.Error(err))
		return nil
	}

	for _, payload := range payloads {
		r.processArtifact(ctx, payload, src, stats)
	}

	return nil
}

// processArtifact validates one artifact payload and persists it, routing
// any failure to manual review.
func (r *Runner) processArtifact(ctx context.Context, payload []byte, src *domain.Source, stats *CycleStats) {
	stats.add(func() { stats.Artifacts++ })

	result := r.validate.Validate(payload)
	r.obs.ObserveValidation(string(result.Status))

	if !result.Valid() {
		stats.add(func() { stats.Invalid++ })
		r.routeReview(ctx, src, domain.ReviewReasonValidation, payload, result.Errors, stats)
		return
	}

	extracted, err := persist.Extract(result.Artifact)
	if err != nil {
		reason := domain.ReviewReasonAudit
		if errors.Is(err, persist.ErrHashIntegrity) {
			reason = domain.ReviewReasonIntegrity
		}
		r.routeReview(ctx, src, reason, payload, []domain.FieldError{
			{Path: "audit", Message: err.Error()},
		}, stats)
		return
	}

	upserted, err := r.products.Upsert(ctx, src.RoasterID, result.Artifact, extracted)
	if err != nil {
		r.routeReview(ctx, src, domain.ReviewReasonPersistence, payload, []domain.FieldError{
			{Path: "$", Message: err.Error()},
		}, stats)
		r.log.Error("product upsert failed",
			logger.String("source_id", src.ID),
			logger.String("artifact_id", extracted.ArtifactID),
			logger.Error(err))
		return
	}

	r.obs.ObserveUpsert(string(upserted.Outcome))
	stats.add(func() {
		switch upserted.Outcome {
		case domain.UpsertCreated:
			stats.Created++
		case domain.UpsertUpdated:
			stats.Updated++
		case domain.UpsertSkipped:
			stats.Skipped++
		}
	})
}

// routeReview records a failed record in the manual review queue. Review
// inserts must not take the pipeline down, so failures are logged loudly
// and the cycle continues.
func (r *Runner) routeReview(ctx context.Context, src *domain.Source, reason domain.ReviewReason, payload []byte, fieldErrors []domain.FieldError, stats *CycleStats) {
	r.obs.ObserveReview(string(reason))

	var encoded []byte
	if len(fieldErrors) > 0 {
		var err error
		encoded, err = json.Marshal(fieldErrors)
		if err != nil {
			encoded = nil
		}
	}

	item := &domain.ReviewItem{
		SourceID:    src.ID,
		RoasterID:   src.RoasterID,
		Reason:      reason,
		FieldErrors: encoded,
		Payload:     payload,
	}

	if err := r.reviews.Insert(ctx, item); err != nil {
		r.log.Error("failed to queue artifact for manual review",
			logger.String("source_id", src.ID),
			logger.String("reason", string(reason)),
			logger.Error(err))
		return
	}

	stats.add(func() { stats.Reviewed++ })
}
