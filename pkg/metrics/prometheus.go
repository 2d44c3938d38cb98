// Package metrics provides Prometheus metrics for drtune workflow runs.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Manager holds all Prometheus metrics recorded during a run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         *prometheus.Registry

	// Platform API traffic
	apiRequests        *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiErrors          *prometheus.CounterVec

	// Async resolution (status polling and model jobs)
	asyncPolls        *prometheus.CounterVec
	asyncWaitDuration *prometheus.HistogramVec
	asyncTimeouts     *prometheus.CounterVec

	// Workflow progress
	stepDuration     *prometheus.HistogramVec
	stepFailures     *prometheus.CounterVec
	projectsCreated  prometheus.Counter
	modelsTrained    *prometheus.CounterVec
	tuningParameters prometheus.Counter
	frozenRequests   prometheus.Counter
	lastRunSuccess   *prometheus.GaugeVec
}

// Default bucket sets.
var (
	apiLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}
	waitBuckets       = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600}
)

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager()
}

// NewManager creates a new metrics manager registered on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "drtune",
		subsystem:        "",
		histogramBuckets: apiLatencyBuckets,
		constLabels:      prometheus.Labels{},
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
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.apiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_requests_total",
		Help:        "Total number of platform API requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.apiRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_request_duration_milliseconds",
		Help:        "Platform API request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method"})

	m.apiErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_errors_total",
		Help:        "Platform API failures by endpoint and error type",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "error_type"})

	m.asyncPolls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "async_polls_total",
		Help:        "Number of status polls issued while waiting for remote work",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.asyncWaitDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "async_wait_duration_seconds",
		Help:        "Time spent waiting for remote work to resolve",
		Buckets:     waitBuckets,
		ConstLabels: m.constLabels,
	}, []string{"kind", "outcome"})

	m.asyncTimeouts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "async_timeouts_total",
		Help:        "Waits that exceeded their maximum duration",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.stepDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "step_duration_seconds",
		Help:        "Duration of each workflow step",
		Buckets:     waitBuckets,
		ConstLabels: m.constLabels,
	}, []string{"workflow", "step"})

	m.stepFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "step_failures_total",
		Help:        "Workflow steps that ended in an error",
		ConstLabels: m.constLabels,
	}, []string{"workflow", "step"})

	m.projectsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "projects_created_total",
		Help:        "Projects created on the platform",
		ConstLabels: m.constLabels,
	})

	m.modelsTrained = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "models_trained_total",
		Help:        "Models produced by training, tuning or freezing",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.tuningParameters = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "tuning_parameters_applied_total",
		Help:        "Advanced tuning parameters set on a tuning session",
		ConstLabels: m.constLabels,
	})

	m.frozenRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "frozen_model_requests_total",
		Help:        "Frozen model requests submitted",
		ConstLabels: m.constLabels,
	})

	m.lastRunSuccess = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_success",
		Help:        "1 if the last run of the workflow succeeded, 0 otherwise",
		ConstLabels: m.constLabels,
	}, []string{"workflow"})
}

// Registry returns the registry the manager's metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal replaces the manager used by the package-level record functions.
func SetGlobal(m *Manager) {
	if m == nil {
		return
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
}

func current() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// RecordAPIRequest records one platform API round trip.
func RecordAPIRequest(endpoint, method, statusCode string, durationMs float64) {
	m := current()
	m.apiRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.apiRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// RecordAPIError records a failed platform API call.
func RecordAPIError(endpoint, errorType string) {
	current().apiErrors.WithLabelValues(endpoint, errorType).Inc()
}

// RecordAsyncPoll increments the poll counter for a wait kind.
func RecordAsyncPoll(kind string) {
	current().asyncPolls.WithLabelValues(kind).Inc()
}

// RecordAsyncWait records how long a wait took and how it ended.
func RecordAsyncWait(kind, outcome string, seconds float64) {
	m := current()
	m.asyncWaitDuration.WithLabelValues(kind, outcome).Observe(seconds)
	if outcome == "timeout" {
		m.asyncTimeouts.WithLabelValues(kind).Inc()
	}
}

// RecordStep records a finished workflow step.
func RecordStep(workflow, step string, seconds float64, failed bool) {
	m := current()
	m.stepDuration.WithLabelValues(workflow, step).Observe(seconds)
	if failed {
		m.stepFailures.WithLabelValues(workflow, step).Inc()
	}
}

// RecordProjectCreated increments the created projects counter.
func RecordProjectCreated() {
	current().projectsCreated.Inc()
}

// Model kinds counted by RecordModelTrained.
const (
	ModelBase   = "base"
	ModelTuned  = "tuned"
	ModelFrozen = "frozen"
)

// RecordModelTrained increments the trained models counter for kind, one of
// ModelBase, ModelTuned or ModelFrozen.
func RecordModelTrained(kind string) {
	current().modelsTrained.WithLabelValues(kind).Inc()
}

// RecordTuningParameters adds n applied tuning parameters.
func RecordTuningParameters(n int) {
	current().tuningParameters.Add(float64(n))
}

// RecordFrozenRequest increments the frozen model requests counter.
func RecordFrozenRequest() {
	current().frozenRequests.Inc()
}

// SetRunResult marks the outcome of the last run of a workflow.
func SetRunResult(workflow string, success bool) {
	v := 0.0
	if success {
		v = 1
	}
	current().lastRunSuccess.WithLabelValues(workflow).Set(v)
}

// GetRegistry returns the registry of the global manager.
func GetRegistry() *prometheus.Registry {
	return current().registry
}

// Push sends the global registry to a Pushgateway under the given job name.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(GetRegistry()).PushContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return nil
}
