package kepler

import (
	"errors"
	"math"
	"testing"

	mkepler "github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

// TestSolveResidual verifies |E - e·sin(E) - M| < tol across a sweep of
// eccentricities and mean anomalies.
func TestSolveResidual(t *testing.T) {
	eccentricities := []float64{0, 0.0167, 0.2056, 0.5, 0.9, 0.99}
	M := floats.Span(make([]float64, 181), 0, 2*math.Pi)

	for _, e := range eccentricities {
		for _, m := range M {
			E, err := Solve(m, e, DefaultTolerance)
			require.NoError(t, err, "e=%g M=%g", e, m)
			assert.Less(t, math.Abs(Residual(E, m, e)), DefaultTolerance, "e=%g M=%g E=%g", e, m, E)
		}
	}
}

// TestSolveCircular checks that E == M when e = 0.
func TestSolveCircular(t *testing.T) {
	for _, m := range []float64{-3, -0.5, 0, 1, math.Pi, 6} {
		sol, err := Solver{}.Solve(m, 0)
		require.NoError(t, err)
		assert.Equal(t, m, sol.E)
		assert.Equal(t, 1, sol.Iterations)
	}
}

// TestSolveOddSymmetry verifies solve(M, e) ≈ -solve(-M, e).
func TestSolveOddSymmetry(t *testing.T) {
	for _, e := range []float64{0.0167, 0.3, 0.75, 0.99} {
		for _, m := range []float64{0.01, 0.4, 1.2, 2.5, 3.1, 5.9} {
			pos, err := Solve(m, e, DefaultTolerance)
			require.NoError(t, err)
			neg, err := Solve(-m, e, DefaultTolerance)
			require.NoError(t, err)
			assert.True(t, scalar.EqualWithinAbs(pos, -neg, 1e-9), "e=%g M=%g: %g vs %g", e, m, pos, -neg)
		}
	}
}

// TestSolveHighEccentricity exercises the e = 0.99 boundary over a dense
// sweep, including the region just past periapsis where plain Newton from
// E₀ = M overshoots.
func TestSolveHighEccentricity(t *testing.T) {
	solver := Solver{}
	for _, m := range floats.Span(make([]float64, 2001), 0, 2*math.Pi) {
		sol, err := solver.Solve(m, 0.99)
		require.NoError(t, err, "M=%g", m)
		assert.LessOrEqual(t, sol.Iterations, DefaultMaxIterations)
		assert.Less(t, math.Abs(Residual(sol.E, m, 0.99)), DefaultTolerance)
	}
}

// TestSolveInvalidEccentricity verifies hyperbolic, parabolic and negative
// eccentricities are rejected instead of iterating.
func TestSolveInvalidEccentricity(t *testing.T) {
	tests := []struct {
		name string
		e    float64
	}{
		{"parabolic", 1.0},
		{"hyperbolic", 1.5},
		{"negative", -0.1},
		{"nan", math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(1.0, tt.e, DefaultTolerance)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidEccentricity), "got %v", err)
		})
	}
}

// TestSolveNonConvergence forces the cap with an unreachable tolerance.
func TestSolveNonConvergence(t *testing.T) {
	solver := Solver{Tolerance: 1e-300, MaxIterations: 3}
	_, err := solver.Solve(2.0, 0.9)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonConvergence)
}

// TestSolveDefaultsOnZeroValue verifies non-positive settings fall back to defaults.
func TestSolveDefaultsOnZeroValue(t *testing.T) {
	sol, err := Solver{Tolerance: -1, MaxIterations: 0}.Solve(1.0, 0.5)
	require.NoError(t, err)
	assert.Less(t, math.Abs(Residual(sol.E, 1.0, 0.5)), DefaultTolerance)
}

// TestSolveAgainstMeeus cross-validates against the binary-search solver in
// the meeus kepler package.
func TestSolveAgainstMeeus(t *testing.T) {
	for _, e := range []float64{0.00677672, 0.0933941, 0.20563593, 0.6} {
		for _, m := range []float64{0.25, 1, 2, 3, 4, 5.5} {
			E, err := Solve(m, e, 1e-10)
			require.NoError(t, err)
			want := mkepler.Kepler3(e, unit.Angle(m)).Rad()
			assert.InDelta(t, want, E, 1e-8, "e=%g M=%g", e, m)
		}
	}
}

// TestTrueAnomalyAndRadius checks the half-angle true anomaly and conic radius
// against meeus for a Mercury-like orbit.
func TestTrueAnomalyAndRadius(t *testing.T) {
	const (
		a = 0.38709927
		e = 0.20563593
	)
	for _, E := range []float64{0, 0.7, 1.9, math.Pi - 0.01, 4.2} {
		theta := TrueAnomaly(E, e)
		wantTheta := mkepler.True(unit.Angle(E), e).Rad()
		assert.InDelta(t, math.Remainder(wantTheta-theta, 2*math.Pi), 0, 1e-12, "E=%g", E)

		r := Radius(a, e, theta)
		assert.InDelta(t, mkepler.Radius(unit.Angle(E), e, a), r, 1e-12, "E=%g", E)
	}

	assert.Equal(t, 0.0, TrueAnomaly(0, e))
	assert.InDelta(t, a*(1-e), Radius(a, e, 0), 1e-12)
}
