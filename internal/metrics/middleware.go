package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that no route pattern matched.
const unmatchedRoute = "unmatched"

// HTTP Prometheus metrics. Labels use the chi route pattern, never the raw path,
// so collection names and record IDs do not create series.
var (
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecdesk",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecdesk",
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecdesk",
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)
)

var httpMetricsRegistered bool

// RegisterHTTPMetrics registers Prometheus HTTP metrics. Safe to call more than once.
func RegisterHTTPMetrics() {
	if httpMetricsRegistered {
		return
	}
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPResponseBytes)
	prometheus.MustRegister(HTTPInFlight)
	httpMetricsRegistered = true
}

// Middleware records HTTP request duration, count and response size.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			HTTPInFlight.Inc()
			defer HTTPInFlight.Dec()

			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			HTTPResponseBytes.WithLabelValues(r.Method, route).Observe(float64(ww.BytesWritten()))
		})
	}
}

// routePattern reads the matched pattern after routing has run.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
