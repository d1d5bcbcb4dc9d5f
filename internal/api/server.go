package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitgo/internal/auth"
	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/health"
	"github.com/star/orbitgo/internal/httputil"
	"github.com/star/orbitgo/internal/metrics"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/stream"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, trustProxy bool, store *bodies.Store, prop *propagation.Propagator, eph *ephemeris.Service, streamHandler *stream.Handler) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /{$}", indexHandler)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/bodies", bodiesHandler(store))
	mux.HandleFunc("GET /api/v1/orbits", orbitsHandler(logger, prop))
	mux.HandleFunc("POST /api/v1/orbits", computeOrbitHandler(logger, prop))
	mux.HandleFunc("GET /api/v1/orbits/{body}", bodyOrbitHandler(logger, prop))

	mux.HandleFunc("GET /api/v1/ephemeris/{body}", positionsHandler(logger, store, eph))
	mux.HandleFunc("GET /api/v1/ephemeris/{body}/raw", rawEphemerisHandler(logger, store, eph))
	mux.HandleFunc("POST /api/v1/ephemeris/fetch", fetchEphemerisHandler(logger, store, eph))

	if streamHandler != nil {
		mux.HandleFunc("GET /api/v1/stream/orbits", streamHandler.HandleOrbits)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, trustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

var routes = []string{
	"GET /healthz",
	"GET /readyz",
	"GET /metrics",
	"GET /api/v1/bodies",
	"GET /api/v1/orbits",
	"POST /api/v1/orbits",
	"GET /api/v1/orbits/{body}",
	"GET /api/v1/ephemeris/{body}",
	"GET /api/v1/ephemeris/{body}/raw",
	"POST /api/v1/ephemeris/fetch",
	"GET /api/v1/stream/orbits",
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "orbitgo",
		"routes":  routes,
	})
}
