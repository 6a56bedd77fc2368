package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions metrics by logical endpoint name rather than the
// raw URL path.
const labelHandler = "handler"

// serverMetrics holds the Prometheus collectors owned by the HTTP server.
// Pipeline metrics (stage latency, ask outcomes) live in the orchestrator.
type serverMetrics struct {
	// httpRequestsTotal counts requests by method, handler and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records request latency.
	httpDurationSeconds *prometheus.HistogramVec

	// httpInFlight is the number of requests being served.
	httpInFlight prometheus.Gauge

	// errorsTotal counts failed API calls by error code.
	errorsTotal *prometheus.CounterVec
}

// newServerMetrics registers the server metrics against reg. promauto.With
// keeps tests hermetic when they pass a fresh registry.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"method", labelHandler}),

		httpInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served.",
		}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragchat",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of failed API calls, partitioned by error code.",
		}, []string{"code"}),
	}
}

// instrument wraps next with request counting and latency observation under
// the given handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.httpInFlight.Inc()
		defer s.metrics.httpInFlight.Dec()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
	})
}
