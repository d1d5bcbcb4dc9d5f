package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/orbitgo/internal/auth"
	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/kepler"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/stream"
	"github.com/star/orbitgo/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const earthPositions = `Date, X, Y, Z
2024-01-01, -2.6e7, 1.45e8, -9.1e3
2024-01-02, -2.85e7, 1.447e8, -9.0e3
2024-01-03, -3.1e7, 1.443e8, -8.9e3
`

type testEnv struct {
	handler  http.Handler
	store    *bodies.Store
	horizons *httptest.Server
	dataDir  string
}

type envOptions struct {
	auth         auth.Config
	fetch        bool
	emptyCatalog bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	horizons := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("COMMAND") == "'899'" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("$$SOE raw table for " + r.URL.Query().Get("COMMAND") + " $$EOE"))
	}))
	t.Cleanup(horizons.Close)

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ephemeris.PositionFileName("399")), []byte(earthPositions), 0644))

	store := bodies.NewStore()
	if !opts.emptyCatalog {
		store.Set(bodies.Planets())
	}

	orbitCfg := orbit.DefaultConfig()
	orbitCfg.NumPoints = 32
	prop := propagation.NewPropagator(store, propagation.PropConfig{Workers: 2, Orbit: orbitCfg}, testLogger())

	var fetcher *ephemeris.Fetcher
	if opts.fetch {
		fetcher = ephemeris.NewFetcher(horizons.URL, testLogger())
	}
	span := ephemeris.Span{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Stop:  time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Step:  "1 DAYS",
	}
	eph := ephemeris.NewService(fetcher, ephemeris.NewCache(t.TempDir(), 3), dataDir, span, 2, testLogger())
	streamHandler := stream.NewHandler(prop, store, stream.DefaultConfig(), testLogger())

	srv := NewServer(":0", testLogger(), opts.auth, false, store, prop, eph, streamHandler)
	return &testEnv{handler: srv.Handler(), store: store, horizons: horizons, dataDir: dataDir}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/readyz", nil).Code)

	w := env.do(t, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orbitgo_http_requests_total")

	w = env.do(t, "GET", "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/orbits/{body}")

	empty := newTestEnv(t, envOptions{emptyCatalog: true})
	assert.Equal(t, http.StatusServiceUnavailable, empty.do(t, "GET", "/readyz", nil).Code)
}

func TestBodies(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	w := env.do(t, "GET", "/api/v1/bodies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[bodiesResponse](t, w)
	assert.Equal(t, "builtin:j2000", resp.Source)
	assert.Equal(t, 8, resp.Count)
	assert.Equal(t, "Mercury", resp.Bodies[0].Name)
	require.NotNil(t, resp.Bodies[4].Info)
	assert.Equal(t, "Jupiter", resp.Bodies[4].Info.Name)
	assert.Equal(t, 142984, resp.Bodies[4].Info.Diameter)

	empty := newTestEnv(t, envOptions{emptyCatalog: true})
	assert.Equal(t, http.StatusServiceUnavailable, empty.do(t, "GET", "/api/v1/bodies", nil).Code)
}

func TestOrbitsAll(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, "GET", "/api/v1/orbits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[orbitsResponse](t, w)
	assert.Equal(t, 32, resp.NumPoints)
	require.Len(t, resp.Orbits, 8)
	for _, o := range resp.Orbits {
		assert.Len(t, o.Path.X, 32, o.Name)
		assert.Len(t, o.Path.Z, 32, o.Name)
	}

	w = env.do(t, "GET", "/api/v1/orbits?points=5&planar=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[orbitsResponse](t, w)
	assert.True(t, resp.Planar)
	assert.Len(t, resp.Orbits[0].Path.X, 5)
	assert.Nil(t, resp.Orbits[0].Path.Z)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/orbits?points=0", nil).Code)
}

// TestBodyOrbit verifies single body lookups, CSV output and error mapping.
func TestBodyOrbit(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do(t, "GET", "/api/v1/orbits/earth?points=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bo := decode[propagation.BodyOrbit](t, w)
	assert.Equal(t, "Earth", bo.Name)
	assert.Equal(t, "399", bo.HorizonsID)
	assert.Len(t, bo.Path.M, 4)

	w = env.do(t, "GET", "/api/v1/orbits/599?points=3&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Equal(t, "m,x,y,z", lines[0])
	assert.Len(t, lines, 4)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/orbits/Vulcan", http.StatusNotFound},
		{"/api/v1/orbits/Mars?format=xml", http.StatusBadRequest},
		{"/api/v1/orbits/Mars?points=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := env.do(t, "GET", tt.target, nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}

	empty := newTestEnv(t, envOptions{emptyCatalog: true})
	assert.Equal(t, http.StatusServiceUnavailable, empty.do(t, "GET", "/api/v1/orbits/Earth", nil).Code)
}

// TestComputeOrbit verifies caller-supplied elements and solver error codes.
func TestComputeOrbit(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	body := `{"elements":{"a":1.00000261,"e":0.01671123,"i":-0.00001531,"l":100.46457166,"long_peri":102.93768193,"long_node":0},"points":50}`
	w := env.do(t, "POST", "/api/v1/orbits", strings.NewReader(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[computeResponse](t, w)
	assert.Equal(t, 50, resp.NumPoints)
	assert.Positive(t, resp.Iterations)
	require.Len(t, resp.Path.X, 50)
	// First sample is perihelion: r = a(1-e).
	r := resp.Path.X[0]*resp.Path.X[0] + resp.Path.Y[0]*resp.Path.Y[0]
	assert.InDelta(t, 1.00000261*(1-0.01671123), math.Sqrt(r), 1e-9)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"hyperbolic", `{"elements":{"a":1,"e":1.2}}`, http.StatusBadRequest},
		{"parabolic", `{"elements":{"a":1,"e":1}}`, http.StatusBadRequest},
		{"negative e", `{"elements":{"a":1,"e":-0.5}}`, http.StatusBadRequest},
		{"too many points", `{"elements":{"a":1,"e":0.1},"points":100000}`, http.StatusBadRequest},
		{"negative points", `{"elements":{"a":1,"e":0.1},"points":-3}`, http.StatusBadRequest},
		{"missing elements", `{"points":10}`, http.StatusBadRequest},
		{"unknown field", `{"elements":{"a":1,"e":0.1},"extra":true}`, http.StatusBadRequest},
		{"malformed", `{"elements":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/orbits", strings.NewReader(tt.body))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}

	big := bytes.Repeat([]byte(" "), maxRequestBytes+10)
	w = env.do(t, "POST", "/api/v1/orbits", bytes.NewReader(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// TestComputeOrbitPlanar verifies the planar flag drops z.
func TestComputeOrbitPlanar(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	w := env.do(t, "POST", "/api/v1/orbits", strings.NewReader(`{"elements":{"a":5.2,"e":0.048,"i":1.3},"points":7,"planar":true}`))
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	var path map[string]any
	require.NoError(t, json.Unmarshal(raw["path"], &path))
	assert.NotContains(t, path, "z")
	assert.Len(t, path["x"], 7)
}

// TestOrbitFrames verifies the equatorial frame rotates paths without
// touching the cached ecliptic results.
func TestOrbitFrames(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	ecl := decode[orbitsResponse](t, env.do(t, "GET", "/api/v1/orbits", nil))
	assert.Equal(t, transform.Ecliptic, ecl.Frame)

	w := env.do(t, "GET", "/api/v1/orbits?frame=equatorial", nil)
	require.Equal(t, http.StatusOK, w.Code)
	eq := decode[orbitsResponse](t, w)
	assert.Equal(t, transform.Equatorial, eq.Frame)
	require.Len(t, eq.Orbits, len(ecl.Orbits))
	for i := range eq.Orbits {
		e, q := ecl.Orbits[i].Path, eq.Orbits[i].Path
		assert.Equal(t, "equatorial", eq.Orbits[i].Frame)
		assert.InDeltaSlice(t, e.X, q.X, 1e-12)
		assert.NotEqual(t, e.Y, q.Y)
		for j := range e.X {
			re := math.Sqrt(e.X[j]*e.X[j] + e.Y[j]*e.Y[j] + e.Z[j]*e.Z[j])
			rq := math.Sqrt(q.X[j]*q.X[j] + q.Y[j]*q.Y[j] + q.Z[j]*q.Z[j])
			assert.InDelta(t, re, rq, 1e-9)
		}
	}

	again := decode[orbitsResponse](t, env.do(t, "GET", "/api/v1/orbits", nil))
	assert.Equal(t, ecl.Orbits[2].Path.Y, again.Orbits[2].Path.Y)

	bo := decode[propagation.BodyOrbit](t, env.do(t, "GET", "/api/v1/orbits/Earth?frame=equatorial&planar=true&points=8", nil))
	assert.Equal(t, "equatorial", bo.Frame)
	assert.Len(t, bo.Path.Z, 8)

	w = env.do(t, "POST", "/api/v1/orbits", strings.NewReader(`{"elements":{"a":1,"e":0.1},"points":4,"frame":"equatorial"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[computeResponse](t, w)
	assert.Equal(t, transform.Equatorial, resp.Frame)
	// Perihelion lies on the x axis, which the rotation keeps fixed.
	assert.InDelta(t, 0.9, resp.Path.X[0], 1e-12)
	assert.InDelta(t, 0, resp.Path.Z[0], 1e-12)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/orbits?frame=galactic", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/orbits/Mars?frame=icrf", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, "POST", "/api/v1/orbits", strings.NewReader(`{"elements":{"a":1,"e":0.1},"frame":"x"}`)).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(fmt.Errorf("sample 3: %w", kepler.ErrNonConvergence)))
	assert.Equal(t, http.StatusNotFound, statusFor(ephemeris.ErrNoCachedData))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ephemeris.ErrFetchDisabled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
