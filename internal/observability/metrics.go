// Package observability provides metrics for the service catalog.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/williamsiker/practicas/internal/errors"
)

const namespace = "catalog"

// Metrics collects workflow and HTTP metrics on a private Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	operationTime   *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	domainEvents    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	pendingRequests prometheus.Gauge

	version   string
	startTime time.Time
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(version string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Workflow operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		operationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Workflow operation latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_retries_total",
			Help:      "Write transactions retried after a storage conflict.",
		}, []string{"operation"}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "domain_events_total",
			Help:      "Domain events published after commit.",
		}, []string{"event"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status class.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_invocations_total",
			Help:      "CLI command invocations.",
		}, []string{"command"}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests awaiting review at the last count.",
		}),
		version:   version,
		startTime: time.Now(),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "info",
		Help:      "Build information.",
	}, []string{"version"})
	info.WithLabelValues(version).Set(1)

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Uptime in seconds.",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	reg.MustRegister(
		m.operations, m.operationTime, m.retries, m.domainEvents,
		m.httpRequests, m.httpLatency, m.commands, m.pendingRequests,
		info, uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation records a workflow operation outcome.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
	m.operationTime.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetries records attempts beyond the first.
func (m *Metrics) RecordRetries(operation string, attempts int) {
	if attempts > 1 {
		m.retries.WithLabelValues(operation).Add(float64(attempts - 1))
	}
}

// RecordDomainEvent counts a published domain event.
func (m *Metrics) RecordDomainEvent(name string) {
	m.domainEvents.WithLabelValues(name).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordCommandInvocation records a CLI command invocation.
func (m *Metrics) RecordCommandInvocation(command string) {
	m.commands.WithLabelValues(command).Inc()
}

// SetPendingRequests sets the pending review gauge.
func (m *Metrics) SetPendingRequests(n int) {
	m.pendingRequests.Set(float64(n))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Outcome labels an operation result: "ok", or the error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.GetKind(err).String()
}

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
	initOnce          sync.Once
	initialized       bool
)

// Global returns the global metrics instance.
// If InitGlobal has not been called, this will initialize with "unknown" version.
func Global() *Metrics {
	globalMetricsOnce.Do(func() {
		if !initialized {
			globalMetrics = NewMetrics("unknown")
		}
	})
	return globalMetrics
}

// InitGlobal initializes the global metrics instance with version info.
// Call it before any call to Global.
func InitGlobal(version string) *Metrics {
	initOnce.Do(func() {
		initialized = true
		globalMetrics = NewMetrics(version)
	})
	globalMetricsOnce.Do(func() {})
	return globalMetrics
}
