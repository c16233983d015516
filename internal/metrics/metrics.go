// Package metrics provides Prometheus metrics for the diet tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus collectors. A process-wide instance backs
// the package-level record functions.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Ingest pipeline
	billsScraped    prometheus.Counter
	speechesFetched prometheus.Counter
	recordsUpserted *prometheus.CounterVec
	ingestErrors    *prometheus.CounterVec

	// Classification and embedding
	classifications      prometheus.Counter
	classificationErrors prometheus.Counter
	embeddingsIndexed    prometheus.Counter
	embeddingDuration    prometheus.Histogram

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager

// Custom registry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry()

func init() {
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry sets the Prometheus registerer metrics are attached to.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) { m.registry = r }
}

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "diet_tracker",
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.billsScraped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bills_scraped_total",
		Help:      "Total number of bill rows scraped from Diet listing pages",
	})
	m.speechesFetched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "speeches_fetched_total",
		Help:      "Total number of speech records fetched from the minutes API",
	})
	m.recordsUpserted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "records_upserted_total",
			Help:      "Total number of records written to storage by entity",
		},
		[]string{"entity"},
	)
	m.ingestErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "ingest_errors_total",
			Help:      "Total number of ingest failures by stage",
		},
		[]string{"stage"},
	)

	m.classifications = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "classifications_total",
		Help:      "Total number of bills classified into policy categories",
	})
	m.classificationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "classification_errors_total",
		Help:      "Total number of classification failures",
	})
	m.embeddingsIndexed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "embeddings_indexed_total",
		Help:      "Total number of speeches embedded for search",
	})
	m.embeddingDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "embedding_batch_duration_seconds",
		Help:      "Duration of one embedding provider call in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method, and status",
		},
		[]string{"route", "method", "status"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	return m
}

// RecordBillScraped increments the scraped bills counter.
func RecordBillScraped() {
	globalManager.billsScraped.Inc()
}

// RecordSpeechFetched increments the fetched speeches counter.
func RecordSpeechFetched() {
	globalManager.speechesFetched.Inc()
}

// RecordUpsert counts one stored record for the given entity
// (bill, member, speech).
func RecordUpsert(entity string) {
	globalManager.recordsUpserted.WithLabelValues(entity).Inc()
}

// RecordIngestError counts one ingest failure for the given stage.
func RecordIngestError(stage string) {
	globalManager.ingestErrors.WithLabelValues(stage).Inc()
}

// RecordClassification increments the classifications counter.
func RecordClassification() {
	globalManager.classifications.Inc()
}

// RecordClassificationError increments the classification errors counter.
func RecordClassificationError() {
	globalManager.classificationErrors.Inc()
}

// RecordEmbeddingIndexed increments the indexed embeddings counter.
func RecordEmbeddingIndexed() {
	globalManager.embeddingsIndexed.Inc()
}

// RecordEmbeddingDuration records one embedding provider call duration
// in seconds.
func RecordEmbeddingDuration(seconds float64) {
	globalManager.embeddingDuration.Observe(seconds)
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(route, method, status string) {
	globalManager.httpRequests.WithLabelValues(route, method, status).Inc()
}

// RecordHTTPRequestDuration records one request duration in seconds.
func RecordHTTPRequestDuration(route, method string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// Registry returns the registry backing the package-level metrics, for
// mounting the /metrics handler.
func Registry() *prometheus.Registry {
	return customRegistry
}
