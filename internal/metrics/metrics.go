// Package metrics exposes Prometheus instrumentation for the catalog
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// namespace prefixes every metric emitted by the service.
const namespace = "gocatalog"

// Metrics holds the pipeline's Prometheus collectors. It implements the
// fetcher's Observer interface.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched   *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	retries        *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	validations    *prometheus.CounterVec
	upserts        *prometheus.CounterVec
	reviews        *prometheus.CounterVec
}

// New creates and registers the pipeline metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Catalog pages fetched, per source.",
		}, []string{"source_id"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Conditional requests answered with 304 Not Modified, per source.",
		}, []string{"source_id"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried under the backoff schedule, per source.",
		}, []string{"source_id"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Sources whose fetch cycle failed, per source.",
		}, []string{"source_id"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Artifact validation results by status.",
		}, []string{"status"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Product upsert results by outcome.",
		}, []string{"outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_routed_total",
			Help:      "Artifacts routed to manual review by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.pagesFetched,
		m.cacheHits,
		m.retries,
		m.sourceFailures,
		m.validations,
		m.upserts,
		m.reviews,
	)

	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PageFetched implements fetcher.Observer.
func (m *Metrics) PageFetched(sourceID string) {
	m.pagesFetched.WithLabelValues(sourceID).Inc()
}

// CacheHit implements fetcher.Observer.
func (m *Metrics) CacheHit(sourceID string) {
	m.cacheHits.WithLabelValues(sourceID).Inc()
}

// Retry implements fetcher.Observer.
func (m *Metrics) Retry(sourceID string) {
	m.retries.WithLabelValues(sourceID).Inc()
}

// SourceFailed implements fetcher.Observer.
func (m *Metrics) SourceFailed(sourceID string) {
	m.sourceFailures.WithLabelValues(sourceID).Inc()
}

// ObserveValidation counts one validation result.
func (m *Metrics) ObserveValidation(status string) {
	m.validations.WithLabelValues(status).Inc()
}

// ObserveUpsert counts one upsert outcome.
func (m *Metrics) ObserveUpsert(outcome string) {
	m.upserts.WithLabelValues(outcome).Inc()
}

// ObserveReview counts one artifact routed to manual review.
func (m *Metrics) ObserveReview(reason string) {
	m.reviews.WithLabelValues(reason).Inc()
}
