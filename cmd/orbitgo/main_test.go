package main

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/transform"
)

// run executes cmd with args and returns stdout.
func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOrbitCommandCatalogBody(t *testing.T) {
	out, err := run(t, orbitCmd(), "mars", "--points", "12")
	require.NoError(t, err)

	var bo propagation.BodyOrbit
	require.NoError(t, json.Unmarshal([]byte(out), &bo))
	assert.Equal(t, "Mars", bo.Name)
	assert.Equal(t, "499", bo.HorizonsID)
	assert.Len(t, bo.Path.X, 12)
	assert.Len(t, bo.Path.Z, 12)
}

func TestOrbitCommandCustomElementsCSV(t *testing.T) {
	out, err := run(t, orbitCmd(), "--a", "2", "--e", "0.5", "--i", "10", "--points", "4", "--planar", "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "m,x,y", lines[0])
	// Perihelion of a=2 e=0.5 lies on +x at r = 1 when every angle but I is zero.
	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 3)
	x, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(fields[2], 64)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, x, 1e-12)
	assert.InDelta(t, 0.0, y, 1e-12)
}

func TestOrbitCommandEquatorial(t *testing.T) {
	out, err := run(t, orbitCmd(), "--a", "1", "--e", "0", "--points", "5", "--planar", "--frame", "equatorial", "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "m,x,y,z", lines[0])
	// Quarter turn: the ecliptic point (0, 1, 0) tilts by the obliquity.
	fields := strings.Split(lines[2], ",")
	require.Len(t, fields, 4)
	z, err := strconv.ParseFloat(fields[3], 64)
	require.NoError(t, err)
	assert.InDelta(t, math.Sin(transform.ObliquityJ2000()), z, 1e-12)
}

func TestOrbitCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing elements", []string{"--i", "3"}},
		{"unknown body", []string{"Vulcan"}},
		{"open orbit", []string{"--a", "1", "--e", "1.2"}},
		{"zero points", []string{"earth", "--points", "0"}},
		{"bad format", []string{"earth", "--format", "xml"}},
		{"bad frame", []string{"earth", "--frame", "galactic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, orbitCmd(), tt.args...)
			assert.Error(t, err)
		})
	}
}

// TestOrbitCommandOverride verifies flags override catalog elements.
func TestOrbitCommandOverride(t *testing.T) {
	out, err := run(t, orbitCmd(), "earth", "--e", "0", "--points", "3")
	require.NoError(t, err)

	var bo propagation.BodyOrbit
	require.NoError(t, json.Unmarshal([]byte(out), &bo))
	assert.Equal(t, 0.0, bo.Elements.E)
	assert.InDelta(t, 1.00000261, bo.Elements.A, 1e-12)
}

func TestBodiesCommand(t *testing.T) {
	out, err := run(t, bodiesCmd())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.True(t, strings.HasPrefix(lines[3], "Earth"))
	assert.Contains(t, lines[3], "399")
}

func TestBodiesCommandInfo(t *testing.T) {
	out, err := run(t, bodiesCmd(), "--info")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9)
	assert.Contains(t, lines[0], "MOONS")
	earth := strings.Fields(lines[3])
	assert.Equal(t, "Earth", earth[0])
	assert.Equal(t, "12756", earth[2])
	assert.Equal(t, "1", earth[len(earth)-1])
}

func TestHorizonsIDs(t *testing.T) {
	cat := bodies.Planets()

	ids, err := horizonsIDs(cat, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"199", "299", "399", "499", "599", "699", "799", "899"}, ids)

	ids, err = horizonsIDs(cat, []string{"jupiter", "399"})
	require.NoError(t, err)
	assert.Equal(t, []string{"599", "399"}, ids)

	_, err = horizonsIDs(cat, []string{"Pluto"})
	assert.ErrorIs(t, err, bodies.ErrUnknownBody)
}

func TestFetchCommandInvalidSpan(t *testing.T) {
	_, err := run(t, fetchCmd(), "--start", "2024-02-01", "--stop", "2024-01-01")
	assert.Error(t, err)

	_, err = run(t, fetchCmd(), "--start", "yesterday")
	assert.Error(t, err)
}

// TestFlagLookupErrors verifies a missing or mistyped flag is reported
// instead of read as its zero value.
func TestFlagLookupErrors(t *testing.T) {
	flags := pflag.NewFlagSet("orbit", pflag.ContinueOnError)
	flags.Int("points", 10, "")
	flags.String("planar", "yes", "")
	_, err := orbitConfigFromFlags(flags, orbit.DefaultConfig())
	assert.Error(t, err)

	flags = pflag.NewFlagSet("orbit", pflag.ContinueOnError)
	flags.Bool("planar", true, "")
	_, err = orbitConfigFromFlags(flags, orbit.DefaultConfig())
	assert.Error(t, err, "from-mean-longitude is not defined")

	flags.Bool("from-mean-longitude", false, "")
	cfg, err := orbitConfigFromFlags(flags, orbit.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, cfg.Planar)

	cmd := &cobra.Command{Use: "fetch"}
	cmd.Flags().String("start", "", "")
	cmd.Flags().String("stop", "", "")
	span := ephemeris.Span{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Stop:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Step:  "1 DAYS",
	}
	assert.Error(t, applySpanFlags(cmd, &span), "step is not defined")
}

func TestNewLogger(t *testing.T) {
	logLevel = "warn"
	defer func() { logLevel = "info" }()

	var buf bytes.Buffer
	logger, err := newLogger(&buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	logLevel = "loud"
	_, err = newLogger(&buf)
	assert.Error(t, err)
}
