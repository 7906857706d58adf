// Package metrics provides Prometheus metrics for the hoopstat pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for one pipeline instance.
// A nil *Manager is valid and records nothing, which keeps call sites free of
// nil checks in components built without metrics.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         *prometheus.Registry

	// Provider fetch metrics
	fetchAttempts  *prometheus.CounterVec
	fetchRetries   prometheus.Counter
	fetchFailures  *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	breakerState   *prometheus.GaugeVec
	breakerChanges *prometheus.CounterVec

	// Cache metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge

	// Pipeline metrics
	validationFailures prometheus.Counter
	pipelineDuration   *prometheus.HistogramVec
	pipelineErrors     *prometheus.CounterVec
	playersEnriched    prometheus.Counter
	refreshRuns        *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// NewManager creates a new metrics manager. Without WithPrometheusRegistry the
// manager registers on a private registry so several managers can coexist in
// one process (tests do this).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hoopstat",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.fetchAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "provider_requests_total",
		Help:        "Provider requests by outcome (success, transient, permanent, rejected)",
		ConstLabels: labels,
	}, []string{"endpoint", "outcome"})

	m.fetchRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "provider_retries_total",
		Help:        "Retries taken by guarded provider calls",
		ConstLabels: labels,
	})

	m.fetchFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "provider_fetch_failures_total",
		Help:        "Fetches that degraded to a sentinel empty record",
		ConstLabels: labels,
	}, []string{"reason"})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "provider_fetch_duration_seconds",
		Help:        "Duration of one guarded fetch including retries",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "circuit_breaker_state",
		Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	}, []string{"breaker"})

	m.breakerChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "circuit_breaker_transitions_total",
		Help:        "Circuit breaker state transitions",
		ConstLabels: labels,
	}, []string{"breaker", "from", "to"})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_hits_total",
		Help:        "Cache lookups that found an entry",
		ConstLabels: labels,
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_misses_total",
		Help:        "Cache lookups that found nothing",
		ConstLabels: labels,
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_evictions_total",
		Help:        "Entries evicted in least-recently-used order",
		ConstLabels: labels,
	})

	m.cacheEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_entries",
		Help:        "Current number of cached entries",
		ConstLabels: labels,
	})

	m.validationFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "validation_failures_total",
		Help:        "Validation runs that produced at least one violation",
		ConstLabels: labels,
	})

	m.pipelineDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "operation_duration_seconds",
		Help:        "Duration of pipeline entry points",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"operation"})

	m.pipelineErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "operation_errors_total",
		Help:        "Pipeline entry points that degraded to an empty result",
		ConstLabels: labels,
	}, []string{"operation"})

	m.playersEnriched = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "players_enriched_total",
		Help:        "Player records enriched with statistical analysis",
		ConstLabels: labels,
	})

	m.refreshRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "refresh_runs_total",
		Help:        "Scheduled watchlist refresh runs by status",
		ConstLabels: labels,
	}, []string{"status"})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_usage_bytes",
		Help:        "Current heap allocation in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutines",
		Help:        "Current number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "gc_pause_milliseconds",
		Help:        "Average GC pause time in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})
}

func (m *Manager) active() bool { return m != nil && m.enabled }

// Provider Metrics Functions.

// RecordProviderRequest counts one provider request attempt by outcome.
func (m *Manager) RecordProviderRequest(endpoint, outcome string) {
	if m.active() {
		m.fetchAttempts.WithLabelValues(endpoint, outcome).Inc()
	}
}

// RecordRetry counts one retry taken by a guarded call.
func (m *Manager) RecordRetry() {
	if m.active() {
		m.fetchRetries.Inc()
	}
}

// RecordFetchFailure counts a fetch that fell back to the sentinel record.
func (m *Manager) RecordFetchFailure(reason string) {
	if m.active() {
		m.fetchFailures.WithLabelValues(reason).Inc()
	}
}

// ObserveFetchDuration records the duration of one guarded fetch.
func (m *Manager) ObserveFetchDuration(seconds float64) {
	if m.active() {
		m.fetchLatency.Observe(seconds)
	}
}

// SetBreakerState records a circuit breaker transition. State names follow
// gobreaker's String(): "closed", "half-open", "open".
func (m *Manager) SetBreakerState(name, from, to string) error {
	value, err := breakerValue(to)
	if err != nil {
		return err
	}
	if m.active() {
		m.breakerState.WithLabelValues(name).Set(value)
		m.breakerChanges.WithLabelValues(name, from, to).Inc()
	}
	return nil
}

func breakerValue(state string) (float64, error) {
	switch state {
	case "closed":
		return 0, nil
	case "half-open":
		return 1, nil
	case "open":
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBreakerState, state)
	}
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func (m *Manager) RecordCacheHit() {
	if m.active() {
		m.cacheHits.Inc()
	}
}

// RecordCacheMiss increments the cache miss counter.
func (m *Manager) RecordCacheMiss() {
	if m.active() {
		m.cacheMisses.Inc()
	}
}

// RecordCacheEviction increments the eviction counter.
func (m *Manager) RecordCacheEviction() {
	if m.active() {
		m.cacheEvictions.Inc()
	}
}

// UpdateCacheEntries sets the current number of cache entries.
func (m *Manager) UpdateCacheEntries(n int) {
	if m.active() {
		m.cacheEntries.Set(float64(n))
	}
}

// Pipeline Metrics Functions.

// RecordValidationFailure counts a validation run with violations.
func (m *Manager) RecordValidationFailure() {
	if m.active() {
		m.validationFailures.Inc()
	}
}

// ObserveOperation records the duration of a pipeline entry point.
func (m *Manager) ObserveOperation(operation string, seconds float64) {
	if m.active() {
		m.pipelineDuration.WithLabelValues(operation).Observe(seconds)
	}
}

// RecordOperationError counts an entry point that degraded to an empty result.
func (m *Manager) RecordOperationError(operation string) {
	if m.active() {
		m.pipelineErrors.WithLabelValues(operation).Inc()
	}
}

// RecordPlayersEnriched adds n to the enriched players counter.
func (m *Manager) RecordPlayersEnriched(n int) {
	if m.active() && n > 0 {
		m.playersEnriched.Add(float64(n))
	}
}

// RecordRefreshRun counts a scheduled refresh by status.
func (m *Manager) RecordRefreshRun(status string) {
	if m.active() {
		m.refreshRuns.WithLabelValues(status).Inc()
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP requests counter.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	if m.active() {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if m.active() {
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func (m *Manager) UpdateSystemMemoryUsage(bytes uint64) {
	if m.active() {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func (m *Manager) UpdateSystemGoroutineCount(count int) {
	if m.active() {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func (m *Manager) RecordSystemGCPauseTime(pauseMs float64) {
	if m.active() {
		m.systemGCPauseTime.Observe(pauseMs)
	}
}

// Registry returns the Prometheus registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}
