// Package metrics provides Prometheus metrics for the lwwboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Store metrics
	updatesAccepted    prometheus.Counter
	updatesRejected    prometheus.Counter
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram
	playersTotal       prometheus.Gauge
	updatesTotal       prometheus.Gauge
	updatesPerSecond   prometheus.Gauge

	// Connection metrics
	sessionsActive      prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsRejected *prometheus.CounterVec
	handshakeFailures   prometheus.Counter
	sessionDuration     prometheus.Histogram

	// Protocol metrics
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	decodeErrors   *prometheus.CounterVec
	writeFailures  prometheus.Counter
	oversizeFrames prometheus.Counter

	// Reporter metrics
	reporterTicks    prometheus.Counter
	reporterFailures prometheus.Counter

	// HTTP metrics for the admin surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lwwboard",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		constLabels:      map[string]string{},
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.updatesAccepted = auto.NewCounter(m.counterOpts("updates_accepted_total",
		"Score updates applied by the last-write-wins rule"))
	m.updatesRejected = auto.NewCounter(m.counterOpts("updates_rejected_total",
		"Score updates rejected because their timestamp was not newer than the stored one"))
	m.storeUpdateLatency = auto.NewHistogram(m.histogramOpts("store_update_latency_milliseconds",
		"Time spent inside the store for an update", m.histogramBuckets))
	m.storeQueryLatency = auto.NewHistogram(m.histogramOpts("store_query_latency_milliseconds",
		"Time spent inside the store for top-N and lookup queries", m.histogramBuckets))
	m.playersTotal = auto.NewGauge(m.gaugeOpts("players_total",
		"Number of players currently held by the store"))
	m.updatesTotal = auto.NewGauge(m.gaugeOpts("updates_total",
		"Accepted updates since start as sampled by the stats reporter"))
	m.updatesPerSecond = auto.NewGauge(m.gaugeOpts("updates_per_second",
		"Average accepted updates per second since start"))

	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active",
		"Sessions currently registered"))
	m.connectionsAccepted = auto.NewCounter(m.counterOpts("connections_accepted_total",
		"Connections that completed the handshake and were admitted"))
	m.connectionsRejected = auto.NewCounterVec(m.counterOpts("connections_rejected_total",
		"Connections refused before a session started"), []string{"reason"})
	m.handshakeFailures = auto.NewCounter(m.counterOpts("tls_handshake_failures_total",
		"TLS handshakes that failed or timed out"))
	m.sessionDuration = auto.NewHistogram(m.histogramOpts("session_duration_seconds",
		"Lifetime of closed sessions in seconds", prometheus.ExponentialBuckets(0.01, 4, 10)))

	m.requests = auto.NewCounterVec(m.counterOpts("requests_total",
		"Request frames handled by command and response status"), []string{"command", "status"})
	m.requestLatency = auto.NewHistogramVec(m.histogramOpts("request_latency_milliseconds",
		"Latency from frame receipt to response encoding", m.histogramBuckets), []string{"command"})
	m.decodeErrors = auto.NewCounterVec(m.counterOpts("decode_errors_total",
		"Request frames rejected during decoding or validation"), []string{"kind"})
	m.writeFailures = auto.NewCounter(m.counterOpts("write_failures_total",
		"Response writes that failed and closed their session"))
	m.oversizeFrames = auto.NewCounter(m.counterOpts("oversize_frames_total",
		"Sessions closed because a partial frame exceeded the size limit"))

	m.reporterTicks = auto.NewCounter(m.counterOpts("reporter_ticks_total",
		"Stats reporter samples taken"))
	m.reporterFailures = auto.NewCounter(m.counterOpts("reporter_failures_total",
		"Stats reporter samples that panicked and were recovered"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Admin HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"Admin HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Store metrics.

// RecordUpdateAccepted increments the accepted updates counter.
func RecordUpdateAccepted() {
	globalManager.updatesAccepted.Inc()
}

// RecordUpdateRejected increments the rejected updates counter.
func RecordUpdateRejected() {
	globalManager.updatesRejected.Inc()
}

// RecordStoreUpdateLatency records time spent in a store update.
func RecordStoreUpdateLatency(latencyMs float64) {
	globalManager.storeUpdateLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records time spent in a store read.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// UpdatePlayersTotal sets the number of players in the store.
func UpdatePlayersTotal(count int) {
	globalManager.playersTotal.Set(float64(count))
}

// UpdateUpdatesTotal sets the accepted update count.
func UpdateUpdatesTotal(count int64) {
	globalManager.updatesTotal.Set(float64(count))
}

// UpdateUpdatesPerSecond sets the average update rate.
func UpdateUpdatesPerSecond(rate float64) {
	globalManager.updatesPerSecond.Set(rate)
}

// Connection metrics.

// UpdateSessionsActive sets the number of registered sessions.
func UpdateSessionsActive(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// RecordConnectionAccepted increments the admitted connections counter.
func RecordConnectionAccepted() {
	globalManager.connectionsAccepted.Inc()
}

// RecordConnectionRejected counts a connection refused for reason.
func RecordConnectionRejected(reason string) {
	globalManager.connectionsRejected.WithLabelValues(reason).Inc()
}

// RecordHandshakeFailure counts a failed TLS handshake.
func RecordHandshakeFailure() {
	globalManager.handshakeFailures.Inc()
}

// RecordSessionDuration records how long a closed session lived.
func RecordSessionDuration(seconds float64) {
	globalManager.sessionDuration.Observe(seconds)
}

// Protocol metrics.

// RecordRequest counts one handled frame.
func RecordRequest(command, status string) {
	globalManager.requests.WithLabelValues(command, status).Inc()
}

// RecordRequestLatency records the processing latency of one frame.
func RecordRequestLatency(command string, latencyMs float64) {
	globalManager.requestLatency.WithLabelValues(command).Observe(latencyMs)
}

// RecordDecodeError counts a rejected frame by error kind.
func RecordDecodeError(kind string) {
	globalManager.decodeErrors.WithLabelValues(kind).Inc()
}

// RecordWriteFailure counts a failed response write.
func RecordWriteFailure() {
	globalManager.writeFailures.Inc()
}

// RecordOversizeFrame counts a session closed for an oversized frame.
func RecordOversizeFrame() {
	globalManager.oversizeFrames.Inc()
}

// Reporter metrics.

// RecordReporterTick counts one stats sample.
func RecordReporterTick() {
	globalManager.reporterTicks.Inc()
}

// RecordReporterFailure counts a recovered reporter panic.
func RecordReporterFailure() {
	globalManager.reporterFailures.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
