// Package metrics provides Prometheus metrics for the klynaa gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the gateway.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Executor metrics - one series per named request/mutation slot
	executorCalls      *prometheus.CounterVec
	executorLatency    *prometheus.HistogramVec
	executorInFlight   *prometheus.GaugeVec
	executorSuppressed *prometheus.CounterVec
	executorResets     *prometheus.CounterVec

	// Backend client metrics
	backendRequests       *prometheus.CounterVec
	backendLatency        *prometheus.HistogramVec
	backendTokenRefreshes *prometheus.CounterVec
	backendRateLimitWait  prometheus.Histogram

	// Reading ingestion metrics
	readingsAccepted  prometheus.Counter
	readingsDuplicate prometheus.Counter
	readingsRejected  *prometheus.CounterVec
	readingsApplied   prometheus.Counter
	readingsFailed    prometheus.Counter

	// Dispatch snapshot metrics
	binsNeedingPickup prometheus.Gauge
	pickupsAvailable  prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "klynaa",
		subsystem:        "gateway",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// name prefixes a metric name with the configured metric prefix.
func (m *Manager) name(base string) string {
	if m.metricPrefix == "" {
		return base
	}
	return m.metricPrefix + "_" + base
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)
	latencyBuckets := m.histogramBuckets

	m.executorCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("executor_calls_total"),
		Help:        "Settled executor calls by executor name, kind and outcome",
		ConstLabels: labels,
	}, []string{"executor", "kind", "outcome"})

	m.executorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("executor_latency_milliseconds"),
		Help:        "Time from execute/mutate to settlement in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	}, []string{"executor", "kind"})

	m.executorInFlight = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("executor_in_flight"),
		Help:        "Calls currently awaiting their producer",
		ConstLabels: labels,
	}, []string{"executor"})

	m.executorSuppressed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("executor_suppressed_total"),
		Help:        "Settlements whose state write was dropped because the owning scope was closed",
		ConstLabels: labels,
	}, []string{"executor"})

	m.executorResets = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("executor_resets_total"),
		Help:        "Executor resets applied",
		ConstLabels: labels,
	}, []string{"executor"})

	m.backendRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_requests_total"),
		Help:        "Requests sent to the platform REST API by method and status code",
		ConstLabels: labels,
	}, []string{"method", "status_code"})

	m.backendLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_request_duration_milliseconds"),
		Help:        "Platform REST API round-trip time in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	}, []string{"method"})

	m.backendTokenRefreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_token_refreshes_total"),
		Help:        "Access token refresh attempts by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.backendRateLimitWait = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("backend_rate_limit_wait_milliseconds"),
		Help:        "Time spent waiting on the client-side rate limiter",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	})

	m.readingsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("readings_accepted_total"),
		Help:        "Sensor fill readings accepted for processing",
		ConstLabels: labels,
	})

	m.readingsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("readings_duplicate_total"),
		Help:        "Sensor fill readings dropped as duplicates",
		ConstLabels: labels,
	})

	m.readingsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("readings_rejected_total"),
		Help:        "Sensor fill readings rejected by reason",
		ConstLabels: labels,
	}, []string{"reason"})

	m.readingsApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("readings_applied_total"),
		Help:        "Sensor fill readings pushed to the platform",
		ConstLabels: labels,
	})

	m.readingsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("readings_failed_total"),
		Help:        "Sensor fill readings the platform refused or that failed in transit",
		ConstLabels: labels,
	})

	m.binsNeedingPickup = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("bins_needing_pickup"),
		Help:        "Bins above the pickup threshold in the last successful refresh",
		ConstLabels: labels,
	})

	m.pickupsAvailable = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("pickups_available"),
		Help:        "Pending pickups in the last successful refresh",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_size"),
		Help:        "Current number of readings waiting in the queue",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_capacity"),
		Help:        "Maximum queue capacity",
		ConstLabels: labels,
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_utilization_ratio"),
		Help:        "Queue utilization ratio (size / capacity)",
		ConstLabels: labels,
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_total"),
		Help:        "Total number of enqueue operations",
		ConstLabels: labels,
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_dequeue_total"),
		Help:        "Total number of dequeue operations",
		ConstLabels: labels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_enqueue_errors_total"),
		Help:        "Total number of enqueue failures",
		ConstLabels: labels,
	})

	m.queueProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("queue_processing_latency_milliseconds"),
		Help:        "Enqueue latency in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_active_count"),
		Help:        "Number of running reading workers",
		ConstLabels: labels,
	})

	m.workerMessagesPerSecond = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_messages_per_second"),
		Help:        "Readings processed per second across the pool",
		ConstLabels: labels,
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_processing_latency_milliseconds"),
		Help:        "Time to apply one reading in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	})

	m.workerErrorRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("worker_errors_total"),
		Help:        "Readings a worker failed to apply",
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_component_total"),
		Help:        "Errors by component and error type",
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_type_total"),
		Help:        "Errors by type and severity",
		ConstLabels: labels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("errors_by_endpoint_total"),
		Help:        "HTTP errors by endpoint, method and error type",
		ConstLabels: labels,
	}, []string{"endpoint", "method", "error_type"})

	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("error_latency_milliseconds"),
		Help:        "Latency of failed operations in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: labels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Executor metrics.

// RecordExecutorCall counts a settled executor call.
// kind is "request" or "mutation"; outcome is "success", "error" or "rejected".
func RecordExecutorCall(executor, kind, outcome string) {
	if !on() {
		return
	}
	globalManager.executorCalls.WithLabelValues(executor, kind, outcome).Inc()
}

// RecordExecutorLatency records the time a call spent awaiting its producer.
func RecordExecutorLatency(executor, kind string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.executorLatency.WithLabelValues(executor, kind).Observe(latencyMs)
}

// UpdateExecutorInFlight sets the number of in-flight calls for an executor.
func UpdateExecutorInFlight(executor string, count int) {
	if !on() {
		return
	}
	globalManager.executorInFlight.WithLabelValues(executor).Set(float64(count))
}

// RecordExecutorSuppressed counts a settlement dropped after scope teardown.
func RecordExecutorSuppressed(executor string) {
	if !on() {
		return
	}
	globalManager.executorSuppressed.WithLabelValues(executor).Inc()
}

// RecordExecutorReset counts an applied reset.
func RecordExecutorReset(executor string) {
	if !on() {
		return
	}
	globalManager.executorResets.WithLabelValues(executor).Inc()
}

// Backend client metrics.

// RecordBackendRequest counts a platform API request.
func RecordBackendRequest(method, statusCode string) {
	if !on() {
		return
	}
	globalManager.backendRequests.WithLabelValues(method, statusCode).Inc()
}

// RecordBackendLatency records a platform API round trip.
func RecordBackendLatency(method string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.backendLatency.WithLabelValues(method).Observe(latencyMs)
}

// RecordTokenRefresh counts a token refresh attempt ("success" or "error").
func RecordTokenRefresh(outcome string) {
	if !on() {
		return
	}
	globalManager.backendTokenRefreshes.WithLabelValues(outcome).Inc()
}

// RecordRateLimitWait records time spent blocked on the client rate limiter.
func RecordRateLimitWait(waitMs float64) {
	if !on() {
		return
	}
	globalManager.backendRateLimitWait.Observe(waitMs)
}

// Reading ingestion metrics.

// RecordReadingAccepted counts a reading accepted into the queue.
func RecordReadingAccepted() {
	if !on() {
		return
	}
	globalManager.readingsAccepted.Inc()
}

// RecordReadingDuplicate counts a reading dropped by the deduper.
func RecordReadingDuplicate() {
	if !on() {
		return
	}
	globalManager.readingsDuplicate.Inc()
}

// RecordReadingRejected counts a reading rejected before queueing.
func RecordReadingRejected(reason string) {
	if !on() {
		return
	}
	globalManager.readingsRejected.WithLabelValues(reason).Inc()
}

// RecordReadingApplied counts a reading pushed to the platform.
func RecordReadingApplied() {
	if !on() {
		return
	}
	globalManager.readingsApplied.Inc()
}

// RecordReadingFailed counts a reading that could not be pushed.
func RecordReadingFailed() {
	if !on() {
		return
	}
	globalManager.readingsFailed.Inc()
}

// UpdateBinsNeedingPickup sets the size of the last attention list.
func UpdateBinsNeedingPickup(count int) {
	if !on() {
		return
	}
	globalManager.binsNeedingPickup.Set(float64(count))
}

// UpdatePickupsAvailable sets the size of the last available-pickups list.
func UpdatePickupsAvailable(count int) {
	if !on() {
		return
	}
	globalManager.pickupsAvailable.Set(float64(count))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !on() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue metrics.

// UpdateQueueSize updates the queue size gauge.
func UpdateQueueSize(size int) {
	if !on() {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !on() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if !on() {
		return
	}
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments enqueue counter.
func RecordQueueEnqueue() {
	if !on() {
		return
	}
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments dequeue counter.
func RecordQueueDequeue() {
	if !on() {
		return
	}
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments enqueue error counter.
func RecordQueueEnqueueError() {
	if !on() {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	if !on() {
		return
	}
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerActiveCount sets active worker count.
func UpdateWorkerActiveCount(count int) {
	if !on() {
		return
	}
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets worker messages per second.
func UpdateWorkerMessagesPerSecond(rate float64) {
	if !on() {
		return
	}
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !on() {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments worker error counter.
func RecordWorkerError() {
	if !on() {
		return
	}
	globalManager.workerErrorRate.Inc()
}

// Error metrics.

// RecordErrorByComponent records error by component and type.
func RecordErrorByComponent(component, errorType string) {
	if !on() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if !on() {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records error by endpoint, method, and type.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !on() {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records error latency.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !on() {
		return
	}
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System metrics.

// UpdateSystemMemoryUsage sets system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !on() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets system goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !on() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !on() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it before GetRegistry is handed to an HTTP handler.
func Init(opts ...Option) *Manager {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(customRegistry))...)
	return globalManager
}

// Enabled reports whether the global manager records anything.
func Enabled() bool { return on() }

// RefreshInterval is how often periodically sampled gauges (system and
// service snapshots) should be refreshed.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

func on() bool { return globalManager.enabled }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
