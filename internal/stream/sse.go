// Package stream serves the sampled orbits of the body catalog as
// Server-Sent Events. Clients connect via GET /api/v1/stream/orbits and
// receive the full catalog, then a fresh copy each time the catalog is
// replaced.
//
// SSE message sequence per catalog:
//
//	data: {"type":"metadata","catalog_source":"builtin:j2000","catalog_age_seconds":12,"bodies":8,...}\n\n
//	data: {"type":"orbit","name":"Mercury","horizons_id":"199","elements":{...},"path":{...}}\n\n
//	...
//	data: {"type":"complete","bodies":8}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval while idle.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/httputil"
	"github.com/star/orbitgo/internal/metrics"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/transform"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Global stream cap (default: 1000).
	PollInterval       time.Duration // Catalog change check interval (default: 5s).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool
}

// DefaultConfig returns the default streaming limits.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		PollInterval:       5 * time.Second,
		KeepaliveInterval:  30 * time.Second,
	}
}

// Handler manages SSE streaming connections.
type Handler struct {
	prop    *propagation.Propagator
	store   *bodies.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(prop *propagation.Propagator, store *bodies.Store, config Config, logger *slog.Logger) *Handler {
	def := DefaultConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = def.KeepaliveInterval
	}
	return &Handler{
		prop:    prop,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HandleOrbits serves the SSE orbit stream.
// GET /api/v1/stream/orbits?points=500&planar=false&frame=ecliptic
func (h *Handler) HandleOrbits(w http.ResponseWriter, r *http.Request) {
	cfg, err := httputil.SamplingConfig(r.URL.Query(), h.prop.Config().Orbit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	frame, err := transform.ParseFrame(r.URL.Query().Get("frame"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"num_points", cfg.NumPoints,
		"planar", cfg.Planar,
		"frame", frame,
	)

	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this long-lived connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Jittered retry interval, 3-7s.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	ctx := r.Context()
	var sent *bodies.Catalog

	sendIfChanged := func() error {
		cat := h.store.Get()
		if cat == nil || cat == sent {
			return nil
		}
		if err := h.sendCatalog(ctx, c, cat, cfg, frame); err != nil {
			return err
		}
		sent = cat
		return nil
	}

	if err := sendIfChanged(); err != nil {
		h.logStreamError(ctx, ip, err)
		return
	}

	poll := time.NewTicker(h.config.PollInterval)
	defer poll.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-poll.C:
			before := sent
			if err := sendIfChanged(); err != nil {
				h.logStreamError(ctx, ip, err)
				return
			}
			if sent != before {
				keepaliveTicker.Reset(h.config.KeepaliveInterval)
			}

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// logStreamError records a failed send unless the client already went away.
func (h *Handler) logStreamError(ctx context.Context, ip string, err error) {
	if ctx.Err() != nil {
		return
	}
	metrics.IncStreamErrors("send_error")
	h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
}

// sendCatalog writes the metadata, orbit and complete messages for one catalog.
func (h *Handler) sendCatalog(ctx context.Context, c *client, cat *bodies.Catalog, cfg orbit.Config, frame transform.Frame) error {
	orbits, err := h.prop.PropagateCatalog(ctx, cat, cfg)
	if err != nil {
		return err
	}

	meta := metadataMessage{
		Type:          "metadata",
		CatalogSource: cat.Source,
		CatalogAge:    int(time.Since(cat.LoadedAt).Seconds()),
		Bodies:        len(orbits),
		NumPoints:     cfg.NumPoints,
		Planar:        cfg.Planar,
		Frame:         frame,
	}
	if err := c.sendJSON(meta); err != nil {
		return err
	}

	for _, o := range orbits {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.Path = transform.ToFrame(o.Path, frame)
		o.Frame = string(frame)
		if err := c.sendJSON(orbitMessage{Type: "orbit", BodyOrbit: o}); err != nil {
			return err
		}
	}

	return c.sendJSON(completeMessage{Type: "complete", Bodies: len(orbits)})
}

// SSE message payload types.

type metadataMessage struct {
	Type          string          `json:"type"`
	CatalogSource string          `json:"catalog_source"`
	CatalogAge    int             `json:"catalog_age_seconds"`
	Bodies        int             `json:"bodies"`
	NumPoints     int             `json:"num_points"`
	Planar        bool            `json:"planar"`
	Frame         transform.Frame `json:"frame"`
}

type orbitMessage struct {
	Type string `json:"type"`
	propagation.BodyOrbit
}

type completeMessage struct {
	Type   string `json:"type"`
	Bodies int    `json:"bodies"`
}
