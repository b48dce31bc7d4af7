package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/docs-governance/internal/core/ports"
)

const namespace = "docgov"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	operationsTotal     *prometheus.CounterVec
	decisionsTotal      *prometheus.CounterVec
	processLookupsTotal *prometheus.CounterVec
	breakerTransitions  *prometheus.CounterVec
	rateLimitedTotal    *prometheus.CounterVec
	auditDroppedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "operations_total",
			Help:      "Document lifecycle operations by outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Access policy verdicts by check.",
		},
		[]string{"service", "check", "verdict"},
	)
	processLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "process_cache",
			Name:      "lookups_total",
			Help:      "Process directory lookups by cache result.",
		},
		[]string{"service", "result"},
	)
	breakerTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		},
		[]string{"service", "operation", "to"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)

	auditDroppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Journal entries rejected because the delivery buffer was full.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		operationsTotal,
		decisionsTotal,
		processLookupsTotal,
		breakerTransitions,
		rateLimitedTotal,
		auditDroppedTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		operationsTotal:     operationsTotal,
		decisionsTotal:      decisionsTotal,
		processLookupsTotal: processLookupsTotal,
		breakerTransitions:  breakerTransitions,
		rateLimitedTotal:    rateLimitedTotal,
		auditDroppedTotal:   auditDroppedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := routePattern(r)
		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern prefers the matched chi pattern so ids never become label
// values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/documents/"):
		return "/api/v1/documents/{id}"
	default:
		return path
	}
}

// Observer returns the document operation observer for one service.
func (m *HTTPServerMetrics) Observer(service string) ports.OperationObserver {
	return operationObserver{metrics: m, service: service}
}

func (m *HTTPServerMetrics) RecordProcessLookup(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.processLookupsTotal.WithLabelValues(service, result).Inc()
}

func (m *HTTPServerMetrics) RecordBreakerTransition(service, operation, to string) {
	m.breakerTransitions.WithLabelValues(service, operation, to).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordAuditDropped(service string) {
	m.auditDroppedTotal.WithLabelValues(service).Inc()
}

type operationObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o operationObserver) ObserveOperation(operation, outcome string) {
	o.metrics.operationsTotal.WithLabelValues(o.service, operation, outcome).Inc()
}

func (o operationObserver) ObserveDecision(check string, allowed bool) {
	verdict := "deny"
	if allowed {
		verdict = "allow"
	}
	o.metrics.decisionsTotal.WithLabelValues(o.service, check, verdict).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
