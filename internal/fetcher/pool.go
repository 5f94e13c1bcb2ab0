package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonesrussell/gocatalog/internal/cache"
	"github.com/jonesrussell/gocatalog/internal/domain"
	"github.com/jonesrussell/gocatalog/internal/logger"
)

// Concurrency defaults.
const (
	// DefaultPerSourceLimit bounds concurrent in-flight requests per source.
	DefaultPerSourceLimit = 3
	// DefaultGlobalLimit bounds concurrent connections across all sources.
	DefaultGlobalLimit = 20
	// DefaultRequestTimeout is the per-request timeout.
	DefaultRequestTimeout = 30 * time.Second
	// defaultUserAgent identifies the collector to storefronts.
	defaultUserAgent = "gocatalog/1.0"
)

// maxResponseBodyBytes limits the size of fetched page responses.
const maxResponseBodyBytes = 10 * 1024 * 1024 // 10 MB

// ErrRetriesExhausted is returned when a page request fails on every attempt
// of the backoff schedule.
var ErrRetriesExhausted = errors.New("retry attempts exhausted")

// PermanentError marks a fetch failure that must not be retried, such as a
// non-429 4xx response.
type PermanentError struct {
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent fetch failure: http status %d", e.StatusCode)
}

// Observer receives fetch telemetry. Implemented by the metrics package;
// a no-op implementation is used when metrics are disabled.
type Observer interface {
	PageFetched(sourceID string)
	CacheHit(sourceID string)
	Retry(sourceID string)
	SourceFailed(sourceID string)
}

// NopObserver discards all fetch telemetry.
type NopObserver struct{}

func (NopObserver) PageFetched(string)  {}
func (NopObserver) CacheHit(string)     {}
func (NopObserver) Retry(string)        {}
func (NopObserver) SourceFailed(string) {}

// Config configures the fetcher pool.
type Config struct {
	PerSourceLimit   int           `mapstructure:"per_source_limit"  yaml:"per_source_limit"`
	GlobalLimit      int64         `mapstructure:"global_limit"      yaml:"global_limit"`
	PageSize         int           `mapstructure:"page_size"         yaml:"page_size"`
	MaxPages         int           `mapstructure:"max_pages"         yaml:"max_pages"`
	MaxRetries       int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	PolitenessDelay  time.Duration `mapstructure:"politeness_delay"  yaml:"politeness_delay"`
	PolitenessJitter time.Duration `mapstructure:"politeness_jitter" yaml:"politeness_jitter"`
	UserAgent        string        `mapstructure:"user_agent"        yaml:"user_agent"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.PerSourceLimit <= 0 {
		c.PerSourceLimit = DefaultPerSourceLimit
	}
	if c.GlobalLimit <= 0 {
		c.GlobalLimit = DefaultGlobalLimit
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.PolitenessDelay <= 0 {
		c.PolitenessDelay = DefaultPolitenessDelay
	}
	if c.PolitenessJitter <= 0 {
		c.PolitenessJitter = DefaultPolitenessJitter
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// Pool issues paginated catalog requests per source under per-source and
// global concurrency bounds. Pagination within one source is sequential;
// sources are fetched concurrently via FetchAll.
type Pool struct {
	client *http.Client
	cache  cache.Store
	obs    Observer
	log    logger.Logger
	cfg    Config
	global *semaphore.Weighted
	sleep  sleepFunc
	jitter jitterFunc
}

// NewPool creates a fetcher pool. client may be nil, in which case a default
// client with the configured request timeout is used.
func NewPool(client *http.Client, cacheStore cache.Store, obs Observer, log logger.Logger, cfg Config) *Pool {
	cfg.SetDefaults()

	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if obs == nil {
		obs = NopObserver{}
	}

	return &Pool{
		client: client,
		cache:  cacheStore,
		obs:    obs,
		log:    log,
		cfg:    cfg,
		global: semaphore.NewWeighted(cfg.GlobalLimit),
		sleep:  sleepContext,
		jitter: symmetricJitter,
	}
}

// fetchResult is the outcome of one page request after retries.
type fetchResult struct {
	body       []byte
	statusCode int
	header     http.Header
	fetchedAt  time.Time
}

// FetchAll fetches every source concurrently, invoking emit for each page.
// emit may be called from multiple goroutines and must be safe for
// concurrent use. The returned map holds the error that failed each source;
// sources absent from the map completed cleanly. One bad source never stops
// the others.
func (p *Pool) FetchAll(ctx context.Context, sources []domain.Source, emit func(*domain.RawPage) error) map[string]error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = make(map[string]error)
	)

	for i := range sources {
		src := sources[i]
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.FetchSource(ctx, &src, emit); err != nil {
				mu.Lock()
				failures[src.ID] = err
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return failures
}

// FetchSource fetches every page of one source's catalog in page order,
// invoking emit for each. Pages already emitted remain valid when a later
// page fails. A "not modified" response on the first page terminates the
// source with zero pages emitted.
func (p *Pool) FetchSource(ctx context.Context, src *domain.Source, emit func(*domain.RawPage) error) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if !src.Allowed {
		return domain.ErrSourceNotAllowed
	}

	endpoint := src.Endpoint()
	entry := p.loadCacheEntry(ctx, src.ID, endpoint)
	permits := make(chan struct{}, p.cfg.PerSourceLimit)
	pag := newPaginator(src, p.cfg.PageSize, p.cfg.MaxPages)

	pageNum := 0
	for {
		pageURL, ok := pag.NextURL()
		if !ok {
			break
		}
		pageNum++

		if err := p.sleep(ctx, p.politeness()); err != nil {
			return err
		}

		// Cache validators apply to the whole source: attached on the first
		// page only, and a 304 ends pagination for the cycle.
		var cond *cache.Entry
		if pageNum == 1 {
			cond = entry
		}

		res, err := p.doWithRetry(ctx, src.ID, permits, pageURL, cond)
		if err != nil {
			p.obs.SourceFailed(src.ID)
			if res != nil {
				p.emitFailure(src, pageNum, pageURL, res, emit)
			}
			return fmt.Errorf("page %d: %w", pageNum, err)
		}

		if res.statusCode == http.StatusNotModified {
			p.obs.CacheHit(src.ID)
			p.log.Info("catalog not modified, skipping source",
				logger.String("source_id", src.ID),
				logger.String("endpoint", endpoint),
			)
			return nil
		}

		page := &domain.RawPage{
			SourceID:   src.ID,
			RoasterID:  src.RoasterID,
			Platform:   src.Platform,
			PageNumber: pageNum,
			URL:        pageURL,
			StatusCode: res.statusCode,
			Body:       res.body,
			Headers:    headersOfInterest(res.header),
			FetchedAt:  res.fetchedAt,
		}

		if emitErr := emit(page); emitErr != nil {
			return fmt.Errorf("emit page %d: %w", pageNum, emitErr)
		}
		p.obs.PageFetched(src.ID)

		if pageNum == 1 {
			p.storeCacheEntry(ctx, src.ID, endpoint, res)
		}

		if obsErr := pag.Observe(res.body); obsErr != nil {
			return fmt.Errorf("page %d: %w", pageNum, obsErr)
		}
	}

	p.log.Info("source fetch complete",
		logger.String("source_id", src.ID),
		logger.Int("pages", pageNum),
	)
	return nil
}

// doWithRetry performs one page request under the backoff schedule: the
// initial attempt plus up to MaxRetries retries, delayed 1s/2s/4s/8s/16s
// with jitter. Timeouts, connection errors, 429 and 5xx responses are
// retried; other non-200/304 statuses fail immediately with a
// PermanentError. On failure the terminal response, when one exists, is
// returned alongside the error so the caller can archive it.
func (p *Pool) doWithRetry(
	ctx context.Context,
	sourceID string,
	permits chan struct{},
	pageURL string,
	cond *cache.Entry,
) (*fetchResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := p.doRequest(ctx, permits, pageURL, cond)
		if err == nil {
			switch {
			case res.statusCode == http.StatusOK || res.statusCode == http.StatusNotModified:
				return res, nil
			case res.statusCode == http.StatusTooManyRequests || res.statusCode >= http.StatusInternalServerError:
				err = fmt.Errorf("http status %d", res.statusCode)
			default:
				return res, &PermanentError{StatusCode: res.statusCode}
			}
		}

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt >= p.cfg.MaxRetries {
			return res, fmt.Errorf("%w after %d retries: %w", ErrRetriesExhausted, p.cfg.MaxRetries, err)
		}

		p.obs.Retry(sourceID)
		base := retryDelay(attempt + 1)
		delay := base + p.jitter(time.Duration(float64(base)*retryJitterFraction))
		p.log.Warn("fetch failed, retrying",
			logger.String("source_id", sourceID),
			logger.Int("attempt", attempt+1),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// emitFailure hands the terminal failed response downstream so the archive
// keeps it for diagnosis. The source is failing regardless, so an emit
// error is only logged.
func (p *Pool) emitFailure(
	src *domain.Source,
	pageNum int,
	pageURL string,
	res *fetchResult,
	emit func(*domain.RawPage) error,
) {
	page := &domain.RawPage{
		SourceID:   src.ID,
		RoasterID:  src.RoasterID,
		Platform:   src.Platform,
		PageNumber: pageNum,
		URL:        pageURL,
		StatusCode: res.statusCode,
		Body:       res.body,
		Headers:    headersOfInterest(res.header),
		FetchedAt:  res.fetchedAt,
	}

	if err := emit(page); err != nil {
		p.log.Warn("failed response not handed downstream",
			logger.String("source_id", src.ID),
			logger.Int("page", pageNum),
			logger.Error(err),
		)
	}
}

// doRequest performs a single HTTP GET, holding one per-source permit and
// one global connection slot for its duration.
func (p *Pool) doRequest(
	ctx context.Context,
	permits chan struct{},
	pageURL string,
	cond *cache.Entry,
) (*fetchResult, error) {
	select {
	case permits <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-permits }()

	if err := p.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.global.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, reqErr := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, http.NoBody)
	if reqErr != nil {
		return nil, &PermanentError{StatusCode: 0}
	}

	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if cond != nil {
		if cond.ETag != "" {
			req.Header.Set("If-None-Match", cond.ETag)
		}
		if cond.LastModified != "" {
			req.Header.Set("If-Modified-Since", cond.LastModified)
		}
	}

	resp, doErr := p.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("http fetch: %w", doErr)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	return &fetchResult{
		body:       body,
		statusCode: resp.StatusCode,
		header:     resp.Header,
		fetchedAt:  time.Now().UTC(),
	}, nil
}

// politeness returns the pre-request pause: fixed baseline plus symmetric
// random jitter.
func (p *Pool) politeness() time.Duration {
	d := p.cfg.PolitenessDelay + p.jitter(p.cfg.PolitenessJitter)
	if d < 0 {
		return 0
	}
	return d
}

// loadCacheEntry fetches the cache entry for an endpoint. A missing entry or
// a cache error degrades to an unconditional request.
func (p *Pool) loadCacheEntry(ctx context.Context, sourceID, endpoint string) *cache.Entry {
	if p.cache == nil {
		return nil
	}

	entry, err := p.cache.Get(ctx, sourceID, endpoint)
	if errors.Is(err, cache.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		p.log.Warn("cache lookup failed, fetching unconditionally",
			logger.String("source_id", sourceID),
			logger.Error(err),
		)
		return nil
	}
	return entry
}

// storeCacheEntry records fresh validators after a 200 first-page response.
// The entry stands for the whole catalog: conditional headers go out on page
// one only, and a 304 there terminates the source for the cycle, so
// validators from later pages would never be consulted. Cache write failures
// are logged, not fatal; the worst case is one extra full response next cycle.
func (p *Pool) storeCacheEntry(ctx context.Context, sourceID, endpoint string, res *fetchResult) {
	if p.cache == nil {
		return
	}

	entry := &cache.Entry{
		ETag:         res.header.Get("ETag"),
		LastModified: res.header.Get("Last-Modified"),
		ContentHash:  domain.HashBytes(res.body),
		FetchedAt:    res.fetchedAt,
	}

	if err := p.cache.Put(ctx, sourceID, endpoint, entry); err != nil {
		p.log.Warn("cache update failed",
			logger.String("source_id", sourceID),
			logger.Error(err),
		)
	}
}

// headersOfInterest extracts the response headers retained on a RawPage.
func headersOfInterest(h http.Header) map[string]string {
	keep := map[string]string{}
	for _, name := range []string{"Content-Type", "ETag", "Last-Modified"} {
		if v := h.Get(name); v != "" {
			keep[name] = v
		}
	}
	return keep
}
