// Package metrics bundles Prometheus collectors for the enricher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics registers all collectors on a dedicated registry so tests can
// run side by side without default-registry collisions.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	ItemsEnriched   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// New constructs and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_requests_total",
			Help: "Total outbound requests issued, by price source.",
		},
		[]string{"source"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enricher_request_duration_seconds",
			Help:    "Outbound request latency by price source.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cache_lookups_total",
			Help: "Cache lookups by namespace and outcome (hit/miss).",
		},
		[]string{"namespace", "outcome"},
	)
	itemsEnriched := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_items_total",
			Help: "Items processed by final outcome (priced/failed/skipped).",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_retries_total",
			Help: "Retry attempts by price source.",
		},
		[]string{"source"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_errors_total",
			Help: "Source lookup errors by source and error type.",
		},
		[]string{"source", "error_type"},
	)

	registry.MustRegister(requests, requestDuration, cacheLookups, itemsEnriched, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		CacheLookups:    cacheLookups,
		ItemsEnriched:   itemsEnriched,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest counts one outbound request for a source.
func (m *Metrics) IncRequest(source string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(source).Inc()
}

// ObserveDuration records one request latency for a source.
func (m *Metrics) ObserveDuration(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncCacheLookup counts a cache hit or miss for a namespace.
func (m *Metrics) IncCacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(namespace, outcome).Inc()
}

// IncItem counts one processed item by outcome.
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.ItemsEnriched.WithLabelValues(outcome).Inc()
}

// IncRetries counts one retry attempt for a source.
func (m *Metrics) IncRetries(source string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(source).Inc()
}

// IncError counts one classified error for a source.
func (m *Metrics) IncError(source, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(source, errorType).Inc()
}
