package health

import (
	"net/http"

	"github.com/star/orbitgo/internal/bodies"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz returns a handler reporting 200 "ready\n" once a body catalog is
// loaded and 503 "no catalog\n" before that.
func Readyz(store *bodies.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if cat := store.Get(); cat == nil || len(cat.Bodies) == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("no catalog\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
