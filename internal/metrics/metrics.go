// Package metrics exposes Prometheus metrics for the marketplace API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks current in-flight requests
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	// HTTPResponseSize measures HTTP response size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		},
		[]string{"method", "path"},
	)
)

var (
	// DBConnectionsOpen tracks open database connections per pool
	DBConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "db",
			Name:      "connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"pool"},
	)

	// DBConnectionsInUse tracks database connections currently in use per pool
	DBConnectionsInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "db",
			Name:      "connections_in_use",
			Help:      "Number of database connections currently in use",
		},
		[]string{"pool"},
	)

	// DBConnectionsIdle tracks idle database connections per pool
	DBConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "db",
			Name:      "connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"pool"},
	)

	// DBConnectionsMaxOpen tracks configured connection limits per pool
	DBConnectionsMaxOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "db",
			Name:      "connections_max_open",
			Help:      "Maximum number of open database connections",
		},
		[]string{"pool"},
	)

	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

var (
	// LoginAttemptsTotal counts login attempts by outcome
	// (success, invalid, locked, suspended)
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// AccountLockoutsTotal counts lockouts triggered
	AccountLockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "auth",
			Name:      "account_lockouts_total",
			Help:      "Total number of account lockouts triggered",
		},
	)

	// ReportsFiledTotal counts abuse reports accepted
	ReportsFiledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "reports",
			Name:      "filed_total",
			Help:      "Total number of abuse reports accepted",
		},
	)

	// ReportsRejectedTotal counts abuse reports rejected by gate
	// (validation, duplicate, daily_limit, under_review)
	ReportsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "reports",
			Name:      "rejected_total",
			Help:      "Total number of abuse reports rejected by gate",
		},
		[]string{"gate"},
	)

	// WalletTransfersTotal counts completed wallet transfers
	WalletTransfersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "wallet",
			Name:      "transfers_total",
			Help:      "Total number of completed wallet transfers",
		},
	)

	// WalletTransferAmount measures transfer amounts
	WalletTransferAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "wallet",
			Name:      "transfer_amount",
			Help:      "Distribution of wallet transfer amounts",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
	)

	// ChatMessagesTotal counts stored chat messages by channel
	// (global, private)
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total number of chat messages stored by channel",
		},
		[]string{"channel"},
	)
)

var (
	// StreamConnectionsActive tracks active event stream connections
	StreamConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market",
			Subsystem: "stream",
			Name:      "connections_active",
			Help:      "Number of active event stream connections",
		},
	)

	// StreamEventsPublished counts events published to the bus by type
	StreamEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "stream",
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		},
		[]string{"event_type"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Middleware returns a chi middleware that records HTTP metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		path := getRoutePattern(r)

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.size))
	})
}

// getRoutePattern returns the chi route pattern for consistent labels,
// falling back to the raw URL path.
func getRoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
