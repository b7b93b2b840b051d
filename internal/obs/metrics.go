package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by principal kind and result.",
		},
		[]string{"kind", "result"},
	)

	apiKeyValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_apikey_validations_total",
			Help: "API key validation attempts by result.",
		},
		[]string{"result"},
	)

	auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_dropped_total",
		Help: "Audit records dropped because the queue was full.",
	})

	auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records that failed to persist.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginsTotal, apiKeyValidations, auditDropped, auditWriteFailures,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin counts a login attempt outcome.
func ObserveLogin(kind, result string) {
	loginsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveAPIKeyValidation counts an API key validation outcome.
func ObserveAPIKeyValidation(result string) {
	apiKeyValidations.WithLabelValues(result).Inc()
}

// AuditDropped counts a record lost to queue backpressure.
func AuditDropped() { auditDropped.Inc() }

// AuditWriteFailed counts a record that failed to persist.
func AuditWriteFailed() { auditWriteFailures.Inc() }

// Instrument wraps a handler with RPS, latency, and in-flight measurement.
// The routePattern function maps a request to its route template so label
// cardinality stays bounded.
func Instrument(next http.Handler, routePattern func(r *http.Request) string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if routePattern != nil {
			if p := routePattern(r); p != "" {
				path = p
			}
		}
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
