// Package metrics provides Prometheus metrics for the points ledger service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ledger and roster activity
	mutations           *prometheus.CounterVec
	rejected            *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	imports             *prometheus.CounterVec
	reloads             *prometheus.CounterVec
	duplicateRequests   prometheus.Counter
	aggregationLatency  *prometheus.HistogramVec

	// State size
	ledgerEvents     prometheus.Gauge
	rosterPlayers    prometheus.Gauge
	rosterActivities prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served on /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fantavacanza",
		subsystem:        "ledger",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.mutations = auto.NewCounterVec(
		m.counterOpts("mutations_total", "Applied ledger and roster mutations by operation"),
		[]string{"operation"},
	)
	m.rejected = auto.NewCounterVec(
		m.counterOpts("rejected_mutations_total", "Mutations refused before touching state, by operation and reason"),
		[]string{"operation", "reason"},
	)
	m.persistenceFailures = auto.NewCounterVec(
		m.counterOpts("persistence_failures_total", "Port calls that failed after the local state was applied"),
		[]string{"operation"},
	)
	m.imports = auto.NewCounterVec(
		m.counterOpts("imports_total", "CSV imports by outcome"),
		[]string{"outcome"},
	)
	m.reloads = auto.NewCounterVec(
		m.counterOpts("reloads_total", "Full reloads from the store by outcome"),
		[]string{"outcome"},
	)
	m.duplicateRequests = auto.NewCounter(
		m.counterOpts("duplicate_requests_total", "Retried submissions answered from the request id cache"),
	)
	m.aggregationLatency = auto.NewHistogramVec(
		m.histogramOpts("aggregation_latency_milliseconds", "Time spent recomputing a view from the ledger"),
		[]string{"view"},
	)

	m.ledgerEvents = auto.NewGauge(m.gaugeOpts("events", "Entries currently in the ledger"))
	m.rosterPlayers = auto.NewGauge(m.gaugeOpts("players", "Players in the roster"))
	m.rosterActivities = auto.NewGauge(m.gaugeOpts("activities", "Activities in the roster"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Error responses by endpoint, method and error code"),
		[]string{"endpoint", "method", "error_type"},
	)
}

func (m *Manager) RecordMutation(operation string) { m.mutations.WithLabelValues(operation).Inc() }

func (m *Manager) RecordRejected(operation, reason string) {
	m.rejected.WithLabelValues(operation, reason).Inc()
}

func (m *Manager) RecordPersistenceFailure(operation string) {
	m.persistenceFailures.WithLabelValues(operation).Inc()
}

func (m *Manager) RecordImport(outcome string) { m.imports.WithLabelValues(outcome).Inc() }

func (m *Manager) RecordReload(outcome string) { m.reloads.WithLabelValues(outcome).Inc() }

func (m *Manager) RecordDuplicateRequest() { m.duplicateRequests.Inc() }

func (m *Manager) RecordAggregationLatency(view string, latencyMs float64) {
	m.aggregationLatency.WithLabelValues(view).Observe(latencyMs)
}

// UpdateState sets the state size gauges.
func (m *Manager) UpdateState(events, players, activities int) {
	m.ledgerEvents.Set(float64(events))
	m.rosterPlayers.Set(float64(players))
	m.rosterActivities.Set(float64(activities))
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func (m *Manager) RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	m.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordMutation increments the applied mutations counter.
func RecordMutation(operation string) { globalManager.RecordMutation(operation) }

// RecordRejected counts a mutation refused for reason (not_permitted, validation, ...).
func RecordRejected(operation, reason string) { globalManager.RecordRejected(operation, reason) }

// RecordPersistenceFailure counts a failed port call.
func RecordPersistenceFailure(operation string) { globalManager.RecordPersistenceFailure(operation) }

// RecordImport counts a CSV import by outcome.
func RecordImport(outcome string) { globalManager.RecordImport(outcome) }

// RecordReload counts a reload by outcome.
func RecordReload(outcome string) { globalManager.RecordReload(outcome) }

// RecordDuplicateRequest counts a retried submission.
func RecordDuplicateRequest() { globalManager.RecordDuplicateRequest() }

// RecordAggregationLatency records the recompute time of a view.
func RecordAggregationLatency(view string, latencyMs float64) {
	globalManager.RecordAggregationLatency(view, latencyMs)
}

// UpdateState sets the state size gauges.
func UpdateState(events, players, activities int) {
	globalManager.UpdateState(events, players, activities)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode)
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.RecordHTTPRequestDuration(endpoint, method, statusCode, duration)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.RecordErrorByEndpoint(endpoint, method, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors to
// the custom registry. It is safe to call more than once.
func RegisterRuntimeCollectors() {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
}
