package search

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSearchesTotal      = "search_requests_total"
	MetricSearchDuration     = "search_duration_seconds"
	MetricDegradationsTotal  = "search_degradations_total"
	MetricCountCacheOutcomes = "search_count_cache_outcomes_total"
)

// Status constants for search completion.
const (
	StatusOK         = "ok"
	StatusValidation = "validation_error"
	StatusError      = "error"
)

// Count cache outcome constants.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Metrics contains Prometheus metrics for search operations.
// All operations are thread-safe.
type Metrics struct {
	searchesTotal     *prometheus.CounterVec
	searchDuration    *prometheus.HistogramVec
	degradationsTotal *prometheus.CounterVec
	countCacheTotal   *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		searchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchesTotal,
				Help: "Total number of search requests by scope and status",
			},
			[]string{"scope", "status"},
		),
		searchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Histogram of end-to-end search duration in seconds by scope",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"scope"},
		),
		degradationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDegradationsTotal,
				Help: "Total number of indexed-to-substring fallbacks by operation label",
			},
			[]string{"label"},
		),
		countCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCountCacheOutcomes,
				Help: "Total number of count cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.searchesTotal,
		m.searchDuration,
		m.degradationsTotal,
		m.countCacheTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSearch records one completed search request.
func (m *Metrics) ObserveSearch(scope Scope, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(string(scope), status).Inc()
	if status == StatusOK {
		m.searchDuration.WithLabelValues(string(scope)).Observe(elapsed.Seconds())
	}
}

// ObserveDegradation records one indexed-mode failure that fell back.
func (m *Metrics) ObserveDegradation(label string) {
	if m == nil {
		return
	}
	m.degradationsTotal.WithLabelValues(label).Inc()
}

// ObserveCountCache records one count cache lookup outcome.
func (m *Metrics) ObserveCountCache(outcome string) {
	if m == nil {
		return
	}
	m.countCacheTotal.WithLabelValues(outcome).Inc()
}
