package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/kepler"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kepler.ErrInvalidEccentricity),
		errors.Is(err, orbit.ErrInvalidNumPoints):
		return http.StatusBadRequest
	case errors.Is(err, kepler.ErrNonConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bodies.ErrUnknownBody),
		errors.Is(err, ephemeris.ErrNoCachedData):
		return http.StatusNotFound
	case errors.Is(err, propagation.ErrNoCatalog),
		errors.Is(err, ephemeris.ErrFetchDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Internal errors are
// not echoed to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}
