// Package kepler solves Kepler's equation for closed (elliptical) orbits.
package kepler

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultTolerance is the convergence threshold on the Newton step size.
	DefaultTolerance = 1e-6
	// DefaultMaxIterations bounds the Newton-Raphson loop.
	DefaultMaxIterations = 100
)

var (
	// ErrInvalidEccentricity is returned for e outside [0, 1).
	ErrInvalidEccentricity = errors.New("eccentricity must be in [0, 1)")
	// ErrNonConvergence is returned when the iteration cap is reached before
	// the step size drops below the tolerance.
	ErrNonConvergence = errors.New("kepler solver did not converge")
)

// Solution is the eccentric anomaly for one mean anomaly sample.
type Solution struct {
	E          float64 // eccentric anomaly, radians
	Iterations int
}

// Solver holds the convergence settings for Newton-Raphson.
// The zero value uses DefaultTolerance and DefaultMaxIterations.
type Solver struct {
	Tolerance     float64
	MaxIterations int
}

// ValidateEccentricity reports whether e describes a closed orbit.
func ValidateEccentricity(e float64) error {
	if math.IsNaN(e) || e < 0 || e >= 1 {
		return fmt.Errorf("e=%g: %w", e, ErrInvalidEccentricity)
	}
	return nil
}

// Solve finds E such that E - e·sin(E) = M, starting from E₀ = M.
//
// The root always lies in [M-e, M+e]. Newton steps that would leave the
// current bracket are replaced by bisection, which keeps high-eccentricity
// sweeps (e = 0.99 near periapsis) from wandering.
func (s Solver) Solve(M, e float64) (Solution, error) {
	if err := ValidateEccentricity(e); err != nil {
		return Solution{}, err
	}

	tol := s.Tolerance
	if !(tol > 0) {
		tol = DefaultTolerance
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	E := M
	lo, hi := M-e, M+e
	for i := 1; i <= maxIter; i++ {
		f := Residual(E, M, e)
		if f > 0 {
			hi = E
		} else {
			lo = E
		}

		delta := f / (1 - e*math.Cos(E))
		if math.Abs(delta) < tol {
			return Solution{E: E - delta, Iterations: i}, nil
		}

		next := E - delta
		if !(next > lo && next < hi) {
			next = (lo + hi) / 2
		}
		E = next
	}
	return Solution{E: E, Iterations: maxIter}, fmt.Errorf("M=%g e=%g after %d iterations: %w", M, e, maxIter, ErrNonConvergence)
}

// Solve is a convenience wrapper using the default iteration cap.
func Solve(M, e, tol float64) (float64, error) {
	sol, err := Solver{Tolerance: tol}.Solve(M, e)
	return sol.E, err
}

// Residual evaluates Kepler's equation E - e·sin(E) - M.
func Residual(E, M, e float64) float64 {
	return E - e*math.Sin(E) - M
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly using the
// half-angle form, which stays well conditioned near e = 0 and at apoapsis.
func TrueAnomaly(E, e float64) float64 {
	sinHalf, cosHalf := math.Sincos(E / 2)
	return 2 * math.Atan2(math.Sqrt(1+e)*sinHalf, math.Sqrt(1-e)*cosHalf)
}

// Radius returns the conic radius a(1-e²)/(1+e·cos θ) at true anomaly θ.
func Radius(a, e, theta float64) float64 {
	return a * (1 - e*e) / (1 + e*math.Cos(theta))
}
