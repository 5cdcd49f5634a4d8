// Package metrics exposes Prometheus collectors for the compiler, the
// query cache, the tool orchestrator and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Abuzaid-01/Float-Chat/internal/compiler"
	"github.com/Abuzaid-01/Float-Chat/internal/engine"
)

const namespace = "floatq"

// Metrics implements compiler.Recorder and engine.Recorder.
type Metrics struct {
	CompilationsTotal  *prometheus.CounterVec
	CompileFailures    *prometheus.CounterVec
	CompileDuration    *prometheus.HistogramVec
	CacheHitsTotal     prometheus.Counter
	ToolCallsTotal     *prometheus.CounterVec
	ToolAttempts       *prometheus.HistogramVec
	ToolDuration       *prometheus.HistogramVec
	ToolsRunning       *prometheus.GaugeVec
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	InvocationsPerPlan prometheus.Histogram
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPInFlight       prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CompilationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compilations_total",
			Help:      "Total number of successful compilations by source",
		}, []string{"source"}),
		CompileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_failures_total",
			Help:      "Total number of failed compilations by error code",
		}, []string{"code"}),
		CompileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of compilations in seconds, cache hits included",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"cached"}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_hits_total",
			Help:      "Total number of compilations served from the query cache",
		}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of finished tool invocations by tool and status",
		}, []string{"tool", "status"}),
		ToolAttempts: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_attempts",
			Help:      "Attempts made per tool invocation",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}, []string{"tool"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool invocations in seconds, retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		ToolsRunning: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tools_running",
			Help:      "Number of tool invocations currently running",
		}, []string{"tool"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of answered questions by outcome",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of answered questions in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		InvocationsPerPlan: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_invocations",
			Help:      "Number of tool invocations per plan",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),
	}
}

// ObserveCompile implements compiler.Recorder.
func (m *Metrics) ObserveCompile(source compiler.Source, code compiler.ErrorCode, cached bool, d time.Duration) {
	m.CompileDuration.WithLabelValues(boolLabel(cached)).Observe(d.Seconds())
	if code != "" {
		m.CompileFailures.WithLabelValues(string(code)).Inc()
		return
	}
	if cached {
		m.CacheHitsTotal.Inc()
	}
	m.CompilationsTotal.WithLabelValues(string(source)).Inc()
}

// ToolStarted implements engine.Recorder.
func (m *Metrics) ToolStarted(tool string) {
	m.ToolsRunning.WithLabelValues(tool).Inc()
}

// ObserveTool implements engine.Recorder.
func (m *Metrics) ObserveTool(tool string, status engine.Status, attempts int, d time.Duration) {
	m.ToolsRunning.WithLabelValues(tool).Dec()
	m.ToolCallsTotal.WithLabelValues(tool, string(status)).Inc()
	m.ToolAttempts.WithLabelValues(tool).Observe(float64(attempts))
	m.ToolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// Request outcomes.
const (
	OutcomeAnswered = "answered"
	OutcomePartial  = "partial"
	OutcomeFailed   = "failed"
)

// ObserveRequest records one answered question.
func (m *Metrics) ObserveRequest(outcome string, invocations int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
	m.InvocationsPerPlan.Observe(float64(invocations))
}

// Middleware records HTTP metrics under the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPInFlight.Inc()
		defer m.HTTPInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
