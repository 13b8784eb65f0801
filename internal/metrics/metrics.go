// Package metrics defines the Prometheus collectors docdex records and
// exposes an HTTP handler for scraping.
//
// Every method is safe to call on a nil *Metrics, so components can be
// built without instrumentation in tests and one-shot CLI runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docdex"

// Metrics holds all Prometheus collectors. Each instance owns its own
// registry so tests and multiple indexers never collide.
type Metrics struct {
	Registry *prometheus.Registry

	FilesIndexedTotal  *prometheus.CounterVec
	FilesSkippedTotal  *prometheus.CounterVec
	LossyDecodesTotal  prometheus.Counter
	SnapshotOpsTotal   *prometheus.CounterVec
	ScanDuration       prometheus.Histogram
	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
	Documents          prometheus.Gauge
	Terms              prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_indexed_total",
				Help:      "Files processed by outcome (added, updated, unchanged, removed).",
			},
			[]string{"outcome"},
		),
		FilesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_skipped_total",
				Help:      "Files skipped by reason (unreadable, too_large, ineligible, symlink).",
			},
			[]string{"reason"},
		),
		LossyDecodesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lossy_decodes_total",
				Help:      "Files whose bytes were not valid UTF-8 and were decoded with replacement.",
			},
		),
		SnapshotOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_operations_total",
				Help:      "Snapshot loads and saves by status (ok, missing, corrupt, error).",
			},
			[]string{"op", "status"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Full tree scan duration in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_queries_total",
				Help:      "Search queries by result type (hit, zero_result, empty_query, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search query latency in seconds.",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_cache_lookups_total",
				Help:      "Result cache lookups by outcome (hit, miss).",
			},
			[]string{"outcome"},
		),
		Documents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "documents",
				Help:      "Number of indexed documents.",
			},
		),
		Terms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "terms",
				Help:      "Number of distinct terms in the inverted index.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP API requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP API request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.Registry.MustRegister(
		m.FilesIndexedTotal,
		m.FilesSkippedTotal,
		m.LossyDecodesTotal,
		m.SnapshotOpsTotal,
		m.ScanDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.CacheLookupsTotal,
		m.Documents,
		m.Terms,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler returns an http.Handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// FileIndexed counts one processed file.
func (m *Metrics) FileIndexed(outcome string) {
	if m == nil {
		return
	}
	m.FilesIndexedTotal.WithLabelValues(outcome).Inc()
}

// FileSkipped counts one skipped file.
func (m *Metrics) FileSkipped(reason string) {
	if m == nil {
		return
	}
	m.FilesSkippedTotal.WithLabelValues(reason).Inc()
}

// LossyDecode counts one replacement-character decode.
func (m *Metrics) LossyDecode() {
	if m == nil {
		return
	}
	m.LossyDecodesTotal.Inc()
}

// SnapshotOp counts one snapshot load or save.
func (m *Metrics) SnapshotOp(op, status string) {
	if m == nil {
		return
	}
	m.SnapshotOpsTotal.WithLabelValues(op, status).Inc()
}

// ScanObserved records one full scan.
func (m *Metrics) ScanObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(d.Seconds())
}

// SearchObserved records one query and its latency.
func (m *Metrics) SearchObserved(resultType string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.Observe(d.Seconds())
}

// CacheLookup counts one result cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// SetCorpus publishes the current corpus size.
func (m *Metrics) SetCorpus(documents, terms int) {
	if m == nil {
		return
	}
	m.Documents.Set(float64(documents))
	m.Terms.Set(float64(terms))
}

// HTTPObserved records one HTTP API request.
func (m *Metrics) HTTPObserved(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
