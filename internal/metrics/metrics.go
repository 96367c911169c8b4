package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the collector
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Upstream Fetch Metrics
	FetchRequestsTotal prometheus.CounterVec
	FetchRetriesTotal  prometheus.Counter
	FetchDuration      prometheus.HistogramVec

	// Cache Metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Ingestion Metrics
	CycleDuration       prometheus.Histogram
	VehiclesUpserted    prometheus.Counter
	VehiclesNew         prometheus.Counter
	VehiclesDeactivated prometheus.Counter
	ModelFailuresTotal  prometheus.CounterVec
	ActiveVehicles      prometheus.Gauge
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		// HTTP Metrics
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okasion_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okasion_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "okasion_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		// Upstream Fetch Metrics
		FetchRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okasion_fetch_requests_total",
				Help: "Total upstream fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
		FetchRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "okasion_fetch_retries_total",
				Help: "Total upstream fetch retries after transient failures",
			},
		),
		FetchDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "okasion_fetch_duration_seconds",
				Help:    "Upstream fetch latency in seconds, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),

		// Cache Metrics
		CacheHitsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okasion_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okasion_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),

		// Ingestion Metrics
		CycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "okasion_ingestion_cycle_duration_seconds",
				Help:    "Full ingestion cycle execution time in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		VehiclesUpserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "okasion_vehicles_upserted_total",
				Help: "Total vehicle records written by ingestion cycles",
			},
		),
		VehiclesNew: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "okasion_vehicles_new_total",
				Help: "Total vehicles seen for the first time",
			},
		),
		VehiclesDeactivated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "okasion_vehicles_deactivated_total",
				Help: "Total vehicles marked inactive by reconciliation",
			},
		),
		ModelFailuresTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "okasion_model_failures_total",
				Help: "Per-model fetch or parse failures during ingestion",
			},
			[]string{"model"},
		),
		ActiveVehicles: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "okasion_vehicles_active",
				Help: "Active vehicles observed in the most recent cycle",
			},
		),
	}
}
