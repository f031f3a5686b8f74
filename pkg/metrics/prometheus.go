// Package metrics provides Prometheus metrics for an evaluation run.
//
// The evaluator is a one-shot process, so nothing is served over HTTP. The
// registry is dumped to a node-exporter textfile at the end of a run instead.
package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Manager holds every Prometheus collector used by the evaluator.
type Manager struct {
	namespace   string
	subsystem   string
	constLabels prometheus.Labels
	registry    prometheus.Registerer

	// Discovery and reconciliation
	endpointsDiscovered prometheus.Gauge
	monitorsReconciled  *prometheus.CounterVec

	// Batch state machine
	batchTriggers    prometheus.Counter
	batchSyncRetries prometheus.Counter
	batchPolls       *prometheus.CounterVec

	// Execution polling
	executionPolls *prometheus.CounterVec
	pollQueueSize  prometheus.Gauge
	pollQueueDrops prometheus.Counter
	pollWorkers    prometheus.Gauge

	// Scoring
	executionsScored prometheus.Counter
	stepScore        prometheus.Histogram
	deductions       *prometheus.CounterVec

	// Platform transport
	platformRequests        *prometheus.CounterVec
	platformRequestDuration *prometheus.HistogramVec

	// Run level
	errors           *prometheus.CounterVec
	runDuration      prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// latencyBuckets are the platform call latency buckets in milliseconds.
var latencyBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // fixed buckets

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics in the textfile.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before anything is recorded.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "endpointeval",
		subsystem: "run",
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.endpointsDiscovered = m.gauge("endpoints_discovered", "Number of distinct endpoints discovered from manifests")
	m.monitorsReconciled = m.counterVec("monitors_reconciled_total",
		"Endpoints reconciled against remote monitors by outcome (matched, created)", "outcome")

	m.batchTriggers = m.counter("batch_triggers_total", "Batch execution requests submitted")
	m.batchSyncRetries = m.counter("batch_sync_retries_total",
		"Batches re-triggered because monitor configuration was still synchronizing")
	m.batchPolls = m.counterVec("batch_polls_total", "Batch status polls by reported status", "status")

	m.executionPolls = m.counterVec("execution_polls_total", "Execution report fetches by stage", "stage")
	m.pollQueueSize = m.gauge("poll_queue_size", "Executions waiting for a poll worker")
	m.pollQueueDrops = m.counter("poll_queue_rejections_total", "Executions rejected by a full or closed poll queue")
	m.pollWorkers = m.gauge("poll_workers", "Active execution poll workers")

	m.executionsScored = m.counter("executions_scored_total", "Execution reports converted to scores")
	m.stepScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "step_score",
		Help:        "Distribution of per-step health scores",
		Buckets:     prometheus.LinearBuckets(0, 10, 11),
		ConstLabels: m.constLabels,
	})
	m.deductions = m.counterVec("deductions_total", "Score deductions applied by rule", "rule")

	m.platformRequests = m.counterVec("platform_requests_total",
		"Monitoring platform API calls by operation and HTTP status", "operation", "status_code")
	m.platformRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "platform_request_duration_milliseconds",
		Help:        "Monitoring platform API call latency in milliseconds",
		Buckets:     latencyBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.errors = m.counterVec("errors_total", "Errors by component and type", "component", "type")
	m.runDuration = m.gauge("duration_seconds", "Wall clock duration of the last run")
	m.lastRunTimestamp = m.gauge("last_run_timestamp_seconds", "Unix time the last run finished")
}

// UpdateEndpointsDiscovered sets the number of discovered endpoints.
func UpdateEndpointsDiscovered(count int) {
	globalManager.endpointsDiscovered.Set(float64(count))
}

// RecordMonitorReconciled counts one endpoint by reconciliation outcome.
func RecordMonitorReconciled(outcome string) {
	globalManager.monitorsReconciled.WithLabelValues(outcome).Inc()
}

// RecordBatchTrigger counts a batch submission.
func RecordBatchTrigger() {
	globalManager.batchTriggers.Inc()
}

// RecordBatchSyncRetry counts a re-trigger caused by configuration sync.
func RecordBatchSyncRetry() {
	globalManager.batchSyncRetries.Inc()
}

// RecordBatchPoll counts a batch status poll.
func RecordBatchPoll(status string) {
	globalManager.batchPolls.WithLabelValues(status).Inc()
}

// RecordExecutionPoll counts an execution report fetch.
func RecordExecutionPoll(stage string) {
	globalManager.executionPolls.WithLabelValues(stage).Inc()
}

// UpdatePollQueueSize sets the number of queued executions.
func UpdatePollQueueSize(size int) {
	globalManager.pollQueueSize.Set(float64(size))
}

// RecordPollQueueRejection counts an execution the poll queue refused.
func RecordPollQueueRejection() {
	globalManager.pollQueueDrops.Inc()
}

// UpdatePollWorkers sets the number of running poll workers.
func UpdatePollWorkers(count int) {
	globalManager.pollWorkers.Set(float64(count))
}

// RecordExecutionScored counts a scored execution report.
func RecordExecutionScored() {
	globalManager.executionsScored.Inc()
}

// RecordStepScore observes a per-step score.
func RecordStepScore(score int) {
	globalManager.stepScore.Observe(float64(score))
}

// RecordDeduction counts a deduction rule that fired.
func RecordDeduction(rule string) {
	globalManager.deductions.WithLabelValues(rule).Inc()
}

// RecordPlatformRequest counts a platform call and observes its latency.
// statusCode 0 means the request never produced a response.
func RecordPlatformRequest(operation string, statusCode int, latencyMs float64) {
	globalManager.platformRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	globalManager.platformRequestDuration.WithLabelValues(operation).Observe(latencyMs)
}

// RecordError counts an error by component and type.
func RecordError(component, errorType string) {
	globalManager.errors.WithLabelValues(component, errorType).Inc()
}

// RecordRunFinished records run duration and completion time.
func RecordRunFinished(durationSeconds float64, finishedUnix int64) {
	globalManager.runDuration.Set(durationSeconds)
	globalManager.lastRunTimestamp.Set(float64(finishedUnix))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Write encodes every metric family of g in the Prometheus text format.
func Write(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGather, err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
		}
	}
	return nil
}

// WriteTextfile atomically writes the global registry to path for the
// node-exporter textfile collector.
func WriteTextfile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, customRegistry); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
