package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polisai/neurogov/internal/governance"
	"github.com/polisai/neurogov/pkg/domain"
)

// Metrics holds all Prometheus metrics for the admin surface
type Metrics struct {
	// Governance metrics
	votesTotal         *prometheus.CounterVec
	decisionsFinalized *prometheus.CounterVec

	// Safety metrics
	viabilityChecks *prometheus.CounterVec

	// Configuration reload metrics
	configReloads *prometheus.CounterVec

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		votesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurogov_votes_total",
				Help: "Total number of stakeholder votes by role and approval",
			},
			[]string{"role", "approval"},
		),

		decisionsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurogov_decisions_finalized_total",
				Help: "Total number of decision finalizations by outcome",
			},
			[]string{"approved"},
		),

		viabilityChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurogov_viability_checks_total",
				Help: "Total number of action vector viability checks by result",
			},
			[]string{"result"},
		),

		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurogov_config_reloads_total",
				Help: "Total number of configuration reload attempts by status",
			},
			[]string{"status"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neurogov_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "route", "code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neurogov_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.votesTotal,
		m.decisionsFinalized,
		m.viabilityChecks,
		m.configReloads,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)

	return m
}

// RegisterKernel publishes the live axis values, violation flags, and safety
// margin of kernel. The values are read at scrape time.
func (m *Metrics) RegisterKernel(kernel *governance.SafetyKernel) error {
	return m.registry.Register(&kernelCollector{kernel: kernel})
}

// RecordVote records an accepted stakeholder vote
func (m *Metrics) RecordVote(role domain.StakeholderRole, approval bool) {
	m.votesTotal.WithLabelValues(role.String(), strconv.FormatBool(approval)).Inc()
}

// RecordFinalize records a finalize outcome
func (m *Metrics) RecordFinalize(approved bool) {
	m.decisionsFinalized.WithLabelValues(strconv.FormatBool(approved)).Inc()
}

// RecordViabilityCheck records a viability check result
func (m *Metrics) RecordViabilityCheck(viable bool) {
	result := "rejected"
	if viable {
		result = "viable"
	}
	m.viabilityChecks.WithLabelValues(result).Inc()
}

// RecordConfigReload records a configuration reload attempt
func (m *Metrics) RecordConfigReload(status string) {
	m.configReloads.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware creates HTTP middleware that records request metrics
// under the given route label
func (m *Metrics) MetricsMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, route, strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var (
	axisValueDesc = prometheus.NewDesc(
		"neurogov_axis_value",
		"Current value of each safety axis",
		[]string{"axis"}, nil,
	)
	axisViolatedDesc = prometheus.NewDesc(
		"neurogov_axis_violated",
		"Whether each safety axis is outside its bounds (1=violated, 0=ok)",
		[]string{"axis"}, nil,
	)
	safetyMarginDesc = prometheus.NewDesc(
		"neurogov_safety_margin",
		"Mean normalised distance of every axis to its nearest bound",
		nil, nil,
	)
)

// kernelCollector reads the kernel on every scrape
type kernelCollector struct {
	kernel *governance.SafetyKernel
}

func (c *kernelCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- axisValueDesc
	ch <- axisViolatedDesc
	ch <- safetyMarginDesc
}

func (c *kernelCollector) Collect(ch chan<- prometheus.Metric) {
	for _, constraint := range c.kernel.Constraints() {
		axis := constraint.Axis.String()
		violated := 0.0
		if constraint.Violated {
			violated = 1
		}
		ch <- prometheus.MustNewConstMetric(axisValueDesc, prometheus.GaugeValue, constraint.Current, axis)
		ch <- prometheus.MustNewConstMetric(axisViolatedDesc, prometheus.GaugeValue, violated, axis)
	}
	ch <- prometheus.MustNewConstMetric(safetyMarginDesc, prometheus.GaugeValue, c.kernel.SafetyMargin())
}
