// Package metrics exposes Prometheus counters for the request boundary:
// authentication outcomes, translated failures and the startup settings load.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deploy_service"

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	authOutcomes        *prometheus.CounterVec
	failures            *prometheus.CounterVec
	panicsRecovered     prometheus.Counter
	settingsLoads       *prometheus.CounterVec
	auditDropped        prometheus.Counter
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance on its own registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		authOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_outcomes_total",
				Help:      "Bearer token validation outcomes by result and rejection reason",
			},
			[]string{"result", "reason"},
		),

		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "translated_failures_total",
				Help:      "Failures converted to HTTP error responses by status and kind",
			},
			[]string{"status_code", "kind"},
		),

		panicsRecovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_recovered_total",
				Help:      "Handler panics recovered into 500 responses",
			},
		),

		settingsLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settings_loads_total",
				Help:      "Deployment settings load attempts by status",
			},
			[]string{"status"},
		),

		auditDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_rejections_dropped_total",
				Help:      "Authentication rejection audit records dropped because the buffer was full",
			},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.authOutcomes,
		m.failures,
		m.panicsRecovered,
		m.settingsLoads,
		m.auditDropped,
		m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordAuthAccepted records a successfully validated token
func (m *Metrics) RecordAuthAccepted() {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues("accepted", "").Inc()
}

// RecordAuthRejected records a rejected request by reason
func (m *Metrics) RecordAuthRejected(reason string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues("rejected", reason).Inc()
}

// RecordFailure records a failure translated into an error response.
// kind is "domain" or "unexpected".
func (m *Metrics) RecordFailure(status int, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(strconv.Itoa(status), kind).Inc()
}

// RecordPanic records a recovered handler panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.panicsRecovered.Inc()
}

// RecordSettingsLoad records a settings load attempt
func (m *Metrics) RecordSettingsLoad(success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.settingsLoads.WithLabelValues(status).Inc()
}

// RecordAuditDropped records an audit record dropped on a full buffer
func (m *Metrics) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
