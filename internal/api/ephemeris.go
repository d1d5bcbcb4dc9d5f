package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/propagation"
)

// resolveHorizonsID maps a catalog name or id to a Horizons id. Bare
// numeric ids outside the catalog pass through unchanged.
func resolveHorizonsID(store *bodies.Store, name string) (string, error) {
	name = strings.TrimSpace(name)
	if cat := store.Get(); cat != nil {
		body, err := cat.Lookup(name)
		if err == nil {
			return body.HorizonsID, nil
		}
		if !errors.Is(err, bodies.ErrUnknownBody) {
			return "", err
		}
	}
	if isNumericID(name) {
		return name, nil
	}
	return "", bodies.ErrUnknownBody
}

func isNumericID(s string) bool {
	if s == "" || len(s) > 12 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type positionsResponse struct {
	HorizonsID string             `json:"horizons_id"`
	Count      int                `json:"count"`
	Vectors    []ephemeris.Vector `json:"vectors"`
}

// positionsHandler serves a body's local position file, or the record
// nearest to ?date=YYYY-MM-DD.
// GET /api/v1/ephemeris/{body}
func positionsHandler(logger *slog.Logger, store *bodies.Store, eph *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolveHorizonsID(store, r.PathValue("body"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		vectors, err := eph.Positions(id)
		if err != nil {
			if statusFor(err) >= http.StatusInternalServerError {
				logger.Error("reading position file failed", "horizons_id", id, "error", err)
			}
			writeDomainError(w, err)
			return
		}

		if date := r.URL.Query().Get("date"); date != "" {
			if _, err := time.Parse(ephemeris.DateLayout, date); err != nil {
				writeError(w, http.StatusBadRequest, "invalid date parameter, must be YYYY-MM-DD")
				return
			}
			v, err := ephemeris.Nearest(vectors, date)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			vectors = []ephemeris.Vector{v}
		}

		writeJSON(w, http.StatusOK, positionsResponse{
			HorizonsID: id,
			Count:      len(vectors),
			Vectors:    vectors,
		})
	}
}

// rawEphemerisHandler serves the newest cached Horizons response verbatim.
// GET /api/v1/ephemeris/{body}/raw
func rawEphemerisHandler(logger *slog.Logger, store *bodies.Store, eph *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolveHorizonsID(store, r.PathValue("body"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		data, ts, err := eph.Raw(id)
		if err != nil {
			if statusFor(err) >= http.StatusInternalServerError {
				logger.Error("reading ephemeris cache failed", "horizons_id", id, "error", err)
			}
			writeDomainError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Fetched-At", ts.UTC().Format(time.RFC3339))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

type fetchRequest struct {
	Bodies []string `json:"bodies"`
}

type fetchResult struct {
	HorizonsID string `json:"horizons_id"`
	Bytes      int    `json:"bytes"`
	Error      string `json:"error,omitempty"`
}

type fetchResponse struct {
	Start   string        `json:"start"`
	Stop    string        `json:"stop"`
	Step    string        `json:"step"`
	Fetched int           `json:"fetched"`
	Failed  int           `json:"failed"`
	Results []fetchResult `json:"results"`
}

// fetchEphemerisHandler refreshes the raw cache from Horizons. The body
// optionally names the bodies; the default is the whole catalog.
// POST /api/v1/ephemeris/fetch {"bodies":["Earth","499"]}
func fetchEphemerisHandler(logger *slog.Logger, store *bodies.Store, eph *ephemeris.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !eph.FetchEnabled() {
			writeDomainError(w, ephemeris.ErrFetchDisabled)
			return
		}

		var req fetchRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		var ids []string
		if len(req.Bodies) == 0 {
			cat := store.Get()
			if cat == nil {
				writeDomainError(w, propagation.ErrNoCatalog)
				return
			}
			for _, b := range cat.Bodies {
				if b.HorizonsID != "" {
					ids = append(ids, b.HorizonsID)
				}
			}
		} else {
			for _, name := range req.Bodies {
				id, err := resolveHorizonsID(store, name)
				if err != nil {
					writeError(w, statusFor(err), name+": "+err.Error())
					return
				}
				ids = append(ids, id)
			}
		}

		results, err := eph.Refresh(r.Context(), ids)
		if err != nil {
			logger.Warn("ephemeris refresh interrupted", "error", err)
			writeDomainError(w, err)
			return
		}

		span := eph.Span()
		resp := fetchResponse{
			Start:   span.Start.Format(ephemeris.DateLayout),
			Stop:    span.Stop.Format(ephemeris.DateLayout),
			Step:    span.Step,
			Results: make([]fetchResult, len(results)),
		}
		for i, res := range results {
			resp.Results[i] = fetchResult{HorizonsID: res.ID, Bytes: len(res.Data)}
			if res.Err != nil {
				resp.Results[i].Error = res.Err.Error()
				resp.Failed++
				continue
			}
			resp.Fetched++
		}

		status := http.StatusOK
		if resp.Fetched == 0 && resp.Failed > 0 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}
