// Package metrics provides Prometheus metrics for the loopwise analysis service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Buckets for count-like histograms (links, loops per analysis).
var structureBuckets = []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55} //nolint:gochecknoglobals // fixed bucket layout

// Buckets for the 0..100 confidence score.
var confidenceBuckets = prometheus.LinearBuckets(0, 10, 11) //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  atomic.Int64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Analysis metrics
	analysesSubmitted  prometheus.Counter
	analysesDuplicate  prometheus.Counter
	analysesCompleted  prometheus.Counter
	analysesFailed     *prometheus.CounterVec
	analysisDuration   prometheus.Histogram
	linksPerAnalysis   prometheus.Histogram
	loopsDetected      *prometheus.CounterVec
	analysisConfidence prometheus.Histogram
	storedJobs         prometheus.Gauge

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
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
		namespace:        "loopwise",
		subsystem:        "analysis",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	m.enabled.Store(true)
	m.refreshInterval.Store(int64(defaultRefreshInterval))

	for _, opt := range opts {
		opt(m)
	}

	// A manager created disabled keeps its collectors off the caller's registry.
	if !m.enabled.Load() {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()

	return m
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool {
	return m.enabled.Load()
}

// RefreshInterval returns how often sampled gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration {
	return time.Duration(m.refreshInterval.Load())
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels, Buckets: buckets,
		})
	}
	counterVec := func(name, help string, keys ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, keys)
	}

	m.analysesSubmitted = counter("submitted_total", "Total number of analysis jobs accepted")
	m.analysesDuplicate = counter("duplicate_total", "Total number of submissions answered from an identical earlier job")
	m.analysesCompleted = counter("completed_total", "Total number of analyses that produced a result")
	m.analysesFailed = counterVec("failed_total", "Total number of analyses that failed, by reason", "reason")
	m.analysisDuration = histogram("duration_milliseconds", "Wall time of a single engine run in milliseconds",
		[]float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000})
	m.linksPerAnalysis = histogram("causal_links", "Number of causal links inferred per analysis", structureBuckets)
	m.loopsDetected = counterVec("feedback_loops_total", "Feedback loops detected, by loop type", "type")
	m.analysisConfidence = histogram("confidence_score", "Confidence score of completed analyses", confidenceBuckets)
	m.storedJobs = gauge("stored_jobs", "Number of jobs held in the result store")

	m.queueSize = gauge("queue_size", "Current number of queued analysis jobs")
	m.queueCapacity = gauge("queue_capacity", "Maximum number of queued analysis jobs")
	m.queueUtilization = gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = counter("queue_enqueue_errors_total", "Total number of rejected enqueue attempts")

	m.workerCount = gauge("worker_count", "Configured number of analysis workers")
	m.workerActiveCount = gauge("worker_active_count", "Number of workers currently running an analysis")
	m.workerProcessingLatency = histogram("worker_processing_latency_milliseconds",
		"Time from dequeue to stored result in milliseconds", m.histogramBuckets)
	m.workerErrors = counter("worker_errors_total", "Total number of worker processing errors")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: labels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component and error type", "component", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordAnalysisSubmitted increments the accepted jobs counter.
func RecordAnalysisSubmitted() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.analysesSubmitted.Inc()
}

// RecordAnalysisDuplicate increments the duplicate submissions counter.
func RecordAnalysisDuplicate() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.analysesDuplicate.Inc()
}

// RecordAnalysisCompleted records the outcome of a successful engine run.
func RecordAnalysisCompleted(durationMs float64, links, reinforcing, balancing int, confidence float64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.analysesCompleted.Inc()
	globalManager.analysisDuration.Observe(durationMs)
	globalManager.linksPerAnalysis.Observe(float64(links))
	globalManager.loopsDetected.WithLabelValues("reinforcing").Add(float64(reinforcing))
	globalManager.loopsDetected.WithLabelValues("balancing").Add(float64(balancing))
	globalManager.analysisConfidence.Observe(confidence)
}

// RecordAnalysisFailed increments the failed analyses counter for reason.
func RecordAnalysisFailed(reason string) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.analysesFailed.WithLabelValues(reason).Inc()
}

// UpdateStoredJobs sets the number of jobs held in the result store.
func UpdateStoredJobs(count int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.storedJobs.Set(float64(count))
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured number of workers.
func UpdateWorkerCount(count int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency observes a worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if !globalManager.Enabled() {
		return
	}
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType increments the error counter for a type and severity.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint increments the error counter for an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.Enabled() {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled turns recording through the package helpers on or off.
func SetEnabled(enabled bool) {
	globalManager.enabled.Store(enabled)
}

// Enabled reports whether the package helpers record observations.
func Enabled() bool {
	return globalManager.Enabled()
}

// SetRefreshInterval sets how often sampled gauges are refreshed. Non-positive
// values are ignored.
func SetRefreshInterval(interval time.Duration) {
	if interval > 0 {
		globalManager.refreshInterval.Store(int64(interval))
	}
}

// RefreshInterval returns how often sampled gauges are refreshed.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the registry the global metrics are registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
