package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/orbitgo/internal/httputil"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/transform"
)

// maxRequestBytes caps POST bodies.
const maxRequestBytes = 1 << 20

type orbitsResponse struct {
	NumPoints int                     `json:"num_points"`
	Planar    bool                    `json:"planar"`
	Frame     transform.Frame         `json:"frame"`
	Orbits    []propagation.BodyOrbit `json:"orbits"`
}

// inFrame returns a copy of bo expressed in frame f.
func inFrame(bo propagation.BodyOrbit, f transform.Frame) propagation.BodyOrbit {
	bo.Path = transform.ToFrame(bo.Path, f)
	bo.Frame = string(f)
	return bo
}

// orbitsHandler samples every catalog body.
// GET /api/v1/orbits?points=500&planar=false&frame=ecliptic
func orbitsHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := httputil.SamplingConfig(r.URL.Query(), prop.Config().Orbit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		frame, err := transform.ParseFrame(r.URL.Query().Get("frame"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		orbits, err := prop.PropagateAllWith(r.Context(), cfg)
		if err != nil {
			logger.Warn("catalog propagation failed", "error", err)
			writeDomainError(w, err)
			return
		}

		out := make([]propagation.BodyOrbit, len(orbits))
		for i, o := range orbits {
			out[i] = inFrame(o, frame)
		}
		writeJSON(w, http.StatusOK, orbitsResponse{
			NumPoints: cfg.NumPoints,
			Planar:    cfg.Planar,
			Frame:     frame,
			Orbits:    out,
		})
	}
}

// bodyOrbitHandler samples one catalog body.
// GET /api/v1/orbits/{body}?points=500&planar=false&frame=ecliptic&format=json|csv
func bodyOrbitHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format := q.Get("format")
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "csv" {
			writeError(w, http.StatusBadRequest, "invalid format parameter, must be json or csv")
			return
		}

		cfg, err := httputil.SamplingConfig(q, prop.Config().Orbit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		frame, err := transform.ParseFrame(q.Get("frame"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		found, err := prop.PropagateBody(r.Context(), r.PathValue("body"), cfg)
		if err != nil {
			if statusFor(err) >= http.StatusInternalServerError {
				logger.Error("orbit computation failed", "body", r.PathValue("body"), "error", err)
			}
			writeDomainError(w, err)
			return
		}
		bo := inFrame(*found, frame)

		if format == "csv" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bo.Name+"_orbit.csv"))
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(http.StatusOK)
			if err := orbit.WriteCSV(w, bo.Path); err != nil {
				logger.Warn("csv write failed", "body", bo.Name, "error", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, bo)
	}
}

type computeRequest struct {
	Elements          *orbit.Elements `json:"elements"`
	Points            int             `json:"points"`
	Planar            bool            `json:"planar"`
	FromMeanLongitude bool            `json:"from_mean_longitude"`
	Frame             string          `json:"frame"`
}

type computeResponse struct {
	Elements   orbit.Elements  `json:"elements"`
	NumPoints  int             `json:"num_points"`
	Iterations int             `json:"iterations"`
	DurationMs float64         `json:"duration_ms"`
	Frame      transform.Frame `json:"frame"`
	Path       *orbit.Path     `json:"path"`
}

// computeOrbitHandler samples caller-supplied elements.
// POST /api/v1/orbits {"elements":{...},"points":500,"planar":false}
func computeOrbitHandler(logger *slog.Logger, prop *propagation.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req computeRequest
		if err := dec.Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if req.Elements == nil {
			writeError(w, http.StatusBadRequest, "missing elements")
			return
		}
		frame, err := transform.ParseFrame(req.Frame)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		cfg := prop.Config().Orbit
		cfg.Planar = req.Planar
		cfg.FromMeanLongitude = req.FromMeanLongitude
		if req.Points != 0 {
			if req.Points < 1 || req.Points > httputil.MaxPoints {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid points, must be 1-%d", httputil.MaxPoints))
				return
			}
			cfg.NumPoints = req.Points
		}

		start := time.Now()
		path, err := propagation.Compute(*req.Elements, cfg)
		if err != nil {
			logger.Debug("orbit computation rejected", "elements", *req.Elements, "error", err)
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, computeResponse{
			Elements:   *req.Elements,
			NumPoints:  path.Len(),
			Iterations: path.Iterations,
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
			Frame:      frame,
			Path:       transform.ToFrame(path, frame),
		})
	}
}
