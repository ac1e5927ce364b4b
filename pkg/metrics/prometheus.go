// Package metrics provides Prometheus metrics for the Echelon training backend.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Session flow
	sessionsStarted      prometheus.Counter
	sessionsCompleted    *prometheus.CounterVec
	completionFailures   *prometheus.CounterVec
	completionLatency    prometheus.Histogram
	creditsAwarded       prometheus.Counter
	experienceAwarded    prometheus.Counter
	ledgerSkips          prometheus.Counter
	leaderboardUpdates   *prometheus.CounterVec
	leaderboardReads     prometheus.Counter
	offlineEstimates     prometheus.Counter
	liveSubscribers      prometheus.Gauge
	livePushes           prometheus.Counter
	livePushDrops        prometheus.Counter
	totalPlayers         prometheus.Gauge
	totalSessions        prometheus.Gauge
	storeOperationTiming *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // metrics must exist before any component records
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "echelon",
		subsystem:        "training",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: buckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place to declare every collector
	m.sessionsStarted = m.counter("sessions_started_total", "Total number of training sessions started")
	m.sessionsCompleted = m.counterVec("sessions_completed_total", "Total number of training sessions completed", "game_type")
	m.completionFailures = m.counterVec("session_completion_failures_total", "Session completions that returned an error", "reason")
	m.completionLatency = m.histogram("session_completion_latency_milliseconds", "End-to-end latency of a session completion", m.histogramBuckets)
	m.creditsAwarded = m.counter("credits_awarded_total", "Credits computed for completed sessions")
	m.experienceAwarded = m.counter("experience_awarded_total", "Experience computed for completed sessions")
	m.ledgerSkips = m.counter("ledger_skips_total", "Ledger updates skipped because the player record was missing")
	m.leaderboardUpdates = m.counterVec("leaderboard_updates_total", "Leaderboard upserts by outcome", "outcome")
	m.leaderboardReads = m.counter("leaderboard_reads_total", "Leaderboard listings served")
	m.offlineEstimates = m.counter("offline_estimates_total", "Client outcomes that fell back to a local reward estimate")
	m.liveSubscribers = m.gauge("live_subscribers", "Open live leaderboard websocket subscriptions")
	m.livePushes = m.counter("live_pushes_total", "Leaderboard snapshots pushed to live subscribers")
	m.livePushDrops = m.counter("live_push_drops_total", "Leaderboard snapshots dropped because a subscriber was slow")
	m.totalPlayers = m.gauge("players", "Number of player records in the store")
	m.totalSessions = m.gauge("sessions", "Number of session records in the store")
	m.storeOperationTiming = m.histogramVec("store_operation_latency_milliseconds", "Latency of backend store operations", "operation")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of requests that ended in an error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Session flow.

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() {
	if globalManager.enabled {
		globalManager.sessionsStarted.Inc()
	}
}

// RecordSessionCompleted records a completion together with its rewards.
func RecordSessionCompleted(gameType string, credits, xp int64) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsCompleted.WithLabelValues(gameType).Inc()
	globalManager.creditsAwarded.Add(float64(credits))
	globalManager.experienceAwarded.Add(float64(xp))
}

// RecordCompletionFailure counts a failed completion by reason.
func RecordCompletionFailure(reason string) {
	if globalManager.enabled {
		globalManager.completionFailures.WithLabelValues(reason).Inc()
	}
}

// RecordCompletionLatency observes completion latency in milliseconds.
func RecordCompletionLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.completionLatency.Observe(latencyMs)
	}
}

// RecordLedgerSkip counts a ledger update skipped for a missing player.
func RecordLedgerSkip() {
	if globalManager.enabled {
		globalManager.ledgerSkips.Inc()
	}
}

// RecordLeaderboardUpdate counts an upsert; outcome is inserted, improved or unchanged.
func RecordLeaderboardUpdate(outcome string) {
	if globalManager.enabled {
		globalManager.leaderboardUpdates.WithLabelValues(outcome).Inc()
	}
}

// RecordLeaderboardRead counts a leaderboard listing.
func RecordLeaderboardRead() {
	if globalManager.enabled {
		globalManager.leaderboardReads.Inc()
	}
}

// RecordOfflineEstimate counts a client-side degraded outcome.
func RecordOfflineEstimate() {
	if globalManager.enabled {
		globalManager.offlineEstimates.Inc()
	}
}

// UpdateLiveSubscribers sets the number of live websocket subscribers.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordLivePush counts snapshots delivered and dropped during one broadcast.
func RecordLivePush(delivered, dropped int) {
	if !globalManager.enabled {
		return
	}
	globalManager.livePushes.Add(float64(delivered))
	globalManager.livePushDrops.Add(float64(dropped))
}

// UpdateStoreTotals sets player and session record gauges.
func UpdateStoreTotals(players, sessions int) {
	globalManager.totalPlayers.Set(float64(players))
	globalManager.totalSessions.Set(float64(sessions))
}

// RecordStoreLatency observes a backend operation latency in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeOperationTiming.WithLabelValues(operation).Observe(latencyMs)
	}
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error for a specific endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an error response.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetRefreshInterval changes how often gauge updaters should run.
// Non-positive values are ignored. Call it before starting updaters.
func SetRefreshInterval(interval time.Duration) {
	WithRefreshInterval(interval)(globalManager)
}

// RefreshInterval reports how often gauge updaters should run.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Totals gathers the custom registry and sums every counter and gauge
// family across its label sets. Histograms are skipped.
func Totals() (map[string]float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	out := make(map[string]float64, len(families))
	for _, f := range families {
		var sum float64
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			default:
				continue
			}
		}
		out[f.GetName()] = sum
	}
	return out, nil
}
