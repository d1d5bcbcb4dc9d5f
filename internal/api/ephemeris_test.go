package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/orbitgo/internal/auth"
)

func TestPositions(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, name := range []string{"Earth", "earth", "399"} {
		w := env.do(t, "GET", "/api/v1/ephemeris/"+name, nil)
		require.Equal(t, http.StatusOK, w.Code, name)
		resp := decode[positionsResponse](t, w)
		assert.Equal(t, "399", resp.HorizonsID)
		assert.Equal(t, 3, resp.Count)
	}

	w := env.do(t, "GET", "/api/v1/ephemeris/Earth?date=2024-01-02", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[positionsResponse](t, w)
	require.Len(t, resp.Vectors, 1)
	assert.Equal(t, "2024-01-02", resp.Vectors[0].Date)
	assert.Equal(t, 1.447e8, resp.Vectors[0].Y)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/ephemeris/Mars", http.StatusNotFound},    // no position file
		{"/api/v1/ephemeris/Vulcan", http.StatusNotFound},  // unknown name
		{"/api/v1/ephemeris/2000001", http.StatusNotFound}, // numeric id, no file
		{"/api/v1/ephemeris/Earth?date=Jan-2", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, env.do(t, "GET", tt.target, nil).Code)
		})
	}
}

// TestFetchAndRaw verifies a fetch populates the raw cache served verbatim.
func TestFetchAndRaw(t *testing.T) {
	env := newTestEnv(t, envOptions{fetch: true})

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/ephemeris/Mars/raw", nil).Code)

	w := env.do(t, "POST", "/api/v1/ephemeris/fetch", strings.NewReader(`{"bodies":["Mars","399"]}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[fetchResponse](t, w)
	assert.Equal(t, 2, resp.Fetched)
	assert.Zero(t, resp.Failed)
	assert.Equal(t, "2024-01-01", resp.Start)
	assert.Equal(t, "499", resp.Results[0].HorizonsID)

	w = env.do(t, "GET", "/api/v1/ephemeris/Mars/raw", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "$$SOE raw table for '499' $$EOE", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Fetched-At"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

// TestFetchWholeCatalog verifies an empty body fetches every catalog body
// and reports per-body failures.
func TestFetchWholeCatalog(t *testing.T) {
	env := newTestEnv(t, envOptions{fetch: true})

	w := env.do(t, "POST", "/api/v1/ephemeris/fetch", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[fetchResponse](t, w)
	assert.Equal(t, 7, resp.Fetched)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, "899", resp.Results[7].HorizonsID)
	assert.NotEmpty(t, resp.Results[7].Error)

	w = env.do(t, "POST", "/api/v1/ephemeris/fetch", strings.NewReader(`{"bodies":["Neptune"]}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = env.do(t, "POST", "/api/v1/ephemeris/fetch", strings.NewReader(`{"bodies":["Vulcan"]}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchDisabled(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	w := env.do(t, "POST", "/api/v1/ephemeris/fetch", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestFetchRequiresToken verifies auth guards the fetch route only.
func TestFetchRequiresToken(t *testing.T) {
	env := newTestEnv(t, envOptions{fetch: true, auth: auth.Config{Enabled: true, Token: "t0ken"}})

	assert.Equal(t, http.StatusUnauthorized, env.do(t, "POST", "/api/v1/ephemeris/fetch", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/orbits/Earth", nil).Code)

	w := env.do(t, "POST", "/api/v1/ephemeris/fetch", strings.NewReader(`{"bodies":["Venus"]}`), "Authorization", "Bearer t0ken")
	assert.Equal(t, http.StatusOK, w.Code)
}
