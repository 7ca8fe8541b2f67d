// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// --- CUSTOM METRIC DEFINITIONS ---

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	placesRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_requests_total",
			Help: "Total number of upstream places API calls, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	placesRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "places_request_duration_seconds",
			Help:    "Histogram of upstream places API latencies, labeled by endpoint.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	placesRateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "places_rate_limit_delay_seconds",
			Help:    "Histogram of time spent waiting on the upstream rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	enrichmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_enrichment_total",
			Help: "Total number of enrichment lookups, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	leadsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_saved_total",
			Help: "Total number of leads submitted for saving, labeled by result (inserted/skipped).",
		},
		[]string{"result"},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Total number of places searches, labeled by status.",
		},
		[]string{"status"},
	)
)

// Outcome labels shared by the places and enrichment counters.
const (
	OutcomeOK            = "ok"
	OutcomeHTTPError     = "http_error"
	OutcomeStatusError   = "status_error"
	OutcomeTransport     = "transport_error"
	OutcomeDecodeError   = "decode_error"
	OutcomeEnriched      = "enriched"
	OutcomeEnrichSkipped = "skipped"
)

// --- HTTP HANDLER & MIDDLEWARE ---

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// --- HELPER FUNCTIONS ---

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObservePlacesCall records one upstream call.
func ObservePlacesCall(endpoint, outcome string, duration time.Duration) {
	placesRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	placesRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	placesRateLimitDelaySeconds.Observe(duration.Seconds())
}

// ObserveEnrichment records the outcome of one detail lookup.
func ObserveEnrichment(outcome string) {
	enrichmentTotal.WithLabelValues(outcome).Inc()
}

// ObserveLeadsSaved records how many submitted leads were inserted vs skipped.
func ObserveLeadsSaved(inserted, submitted int64) {
	leadsSavedTotal.WithLabelValues("inserted").Add(float64(inserted))
	if skipped := submitted - inserted; skipped > 0 {
		leadsSavedTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// ObserveSearch records a finished search by status.
func ObserveSearch(status string) {
	searchesTotal.WithLabelValues(status).Inc()
}
