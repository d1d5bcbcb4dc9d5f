package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/star/orbitgo/internal/kepler"
	"github.com/star/orbitgo/internal/orbit"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitgo_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitgo_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	orbitComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitgo_orbit_computations_total",
			Help: "Orbit path computations by result.",
		},
		[]string{"result"},
	)

	orbitDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitgo_orbit_duration_seconds",
			Help:    "Time to compute one orbit path.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	keplerIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitgo_kepler_iterations_per_sample",
			Help:    "Mean Newton iterations per mean anomaly sample for each computed path.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 20, 50, 100},
		},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitgo_propagation_batch_duration_seconds",
			Help:    "Time to propagate every body in the catalog.",
			Buckets: prometheus.DefBuckets,
		},
	)

	propagationWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitgo_propagation_workers_active",
			Help: "Configured propagation worker pool size.",
		},
	)

	catalogBodies = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitgo_catalog_bodies",
			Help: "Number of bodies in the loaded catalog.",
		},
	)

	catalogAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitgo_catalog_age_seconds",
			Help: "Seconds since the current catalog was loaded.",
		},
	)

	ephemerisFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitgo_ephemeris_fetch_total",
			Help: "Horizons ephemeris fetches by result.",
		},
		[]string{"result"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitgo_stream_connections_total",
			Help: "Orbit stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitgo_streams_active",
			Help: "Currently open orbit streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitgo_stream_messages_total",
			Help: "SSE messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitgo_stream_bytes_total",
			Help: "SSE bytes sent.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitgo_stream_errors_total",
			Help: "Orbit stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		orbitComputationsTotal,
		orbitDurationSeconds,
		keplerIterations,
		batchDurationSeconds,
		propagationWorkersActive,
		catalogBodies,
		catalogAgeSeconds,
		ephemerisFetchTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOrbit records one orbit computation. path may be nil when err is set.
func RecordOrbit(duration time.Duration, path *orbit.Path, err error) {
	orbitComputationsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		return
	}
	orbitDurationSeconds.Observe(duration.Seconds())
	if n := path.Len(); n > 0 {
		keplerIterations.Observe(float64(path.Iterations) / float64(n))
	}
}

// resultLabel keeps the result label set small and fixed.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kepler.ErrInvalidEccentricity):
		return "invalid_eccentricity"
	case errors.Is(err, kepler.ErrNonConvergence):
		return "non_convergence"
	case errors.Is(err, orbit.ErrInvalidNumPoints):
		return "invalid_num_points"
	default:
		return "error"
	}
}

// RecordBatch records the duration of a full catalog propagation.
func RecordBatch(duration time.Duration) {
	batchDurationSeconds.Observe(duration.Seconds())
}

// SetPropagationWorkersActive sets the worker pool size gauge.
func SetPropagationWorkersActive(n int) {
	propagationWorkersActive.Set(float64(n))
}

// SetCatalogSize sets the catalog body count gauge.
func SetCatalogSize(n int) {
	catalogBodies.Set(float64(n))
}

// SetCatalogAge sets the catalog age gauge.
func SetCatalogAge(seconds float64) {
	catalogAgeSeconds.Set(seconds)
}

// RecordEphemerisFetch counts one Horizons fetch attempt.
func RecordEphemerisFetch(err error) {
	if err != nil {
		ephemerisFetchTotal.WithLabelValues("error").Inc()
		return
	}
	ephemerisFetchTotal.WithLabelValues("ok").Inc()
}

// IncStreamConnections counts a stream "connect" or "disconnect" event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive() {
	streamsActive.Inc()
}

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive() {
	streamsActive.Dec()
}

// IncStreamMessages counts one SSE message.
func IncStreamMessages() {
	streamMessagesTotal.Inc()
}

// AddStreamBytes adds n to the SSE byte counter.
func AddStreamBytes(n int64) {
	streamBytesTotal.Add(float64(n))
}

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// knownRoutes are exact paths that keep their own label.
var knownRoutes = map[string]bool{
	"/":                       true,
	"/healthz":                true,
	"/readyz":                 true,
	"/metrics":                true,
	"/api/v1/bodies":          true,
	"/api/v1/orbits":          true,
	"/api/v1/ephemeris/fetch": true,
	"/api/v1/stream/orbits":   true,
}

// normalizeRoute maps a request path to a bounded label set so per-body
// paths and scanner noise cannot blow up series cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/orbits/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/v1/orbits/{body}"
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/ephemeris/"); ok && rest != "" {
		name, tail, _ := strings.Cut(rest, "/")
		switch {
		case name == "":
		case tail == "":
			return "/api/v1/ephemeris/{body}"
		case tail == "raw":
			return "/api/v1/ephemeris/{body}/raw"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
