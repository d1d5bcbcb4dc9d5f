package api

import (
	"net/http"
	"time"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/propagation"
)

type bodiesResponse struct {
	Source     string        `json:"source"`
	LoadedAt   string        `json:"loaded_at"`
	AgeSeconds int           `json:"age_seconds"`
	Count      int           `json:"count"`
	Bodies     []bodies.Body `json:"bodies"`
}

// bodiesHandler lists the loaded catalog.
// GET /api/v1/bodies
func bodiesHandler(store *bodies.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := store.Get()
		if cat == nil {
			writeDomainError(w, propagation.ErrNoCatalog)
			return
		}
		writeJSON(w, http.StatusOK, bodiesResponse{
			Source:     cat.Source,
			LoadedAt:   cat.LoadedAt.UTC().Format(time.RFC3339),
			AgeSeconds: int(time.Since(cat.LoadedAt).Seconds()),
			Count:      len(cat.Bodies),
			Bodies:     cat.Bodies,
		})
	}
}
