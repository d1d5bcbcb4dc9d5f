// Package orbit samples one full revolution of a Keplerian orbit and rotates
// the orbital-plane positions into the ecliptic frame.
package orbit

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/star/orbitgo/internal/kepler"
)

// DefaultNumPoints is the number of mean anomaly samples per revolution.
const DefaultNumPoints = 500

// ErrInvalidNumPoints is returned when fewer than one sample is requested.
var ErrInvalidNumPoints = errors.New("num_points must be at least 1")

// Elements are the six classical orbital elements of a body.
// Angles are in degrees; A sets the length unit of the output.
type Elements struct {
	A        float64 `json:"a" yaml:"a"`                 // semi-major axis
	E        float64 `json:"e" yaml:"e"`                 // eccentricity
	I        float64 `json:"i" yaml:"i"`                 // inclination
	L        float64 `json:"l" yaml:"l"`                 // mean longitude
	LongPeri float64 `json:"long_peri" yaml:"long_peri"` // longitude of perihelion
	LongNode float64 `json:"long_node" yaml:"long_node"` // longitude of ascending node
}

// Validate checks the elements describe a closed orbit.
func (el Elements) Validate() error {
	return kepler.ValidateEccentricity(el.E)
}

// Config controls sampling and the Kepler solver.
type Config struct {
	NumPoints     int
	Tolerance     float64
	MaxIterations int

	// Planar produces the 2D variant; Path.Z is left nil.
	Planar bool

	// FromMeanLongitude starts the sweep at M₀ = L - long_peri instead of 0.
	// Off by default: the sweep is epoch agnostic and L is ignored.
	FromMeanLongitude bool
}

// DefaultConfig returns the reference sampling: 500 points, tol 1e-6, 3D.
func DefaultConfig() Config {
	return Config{
		NumPoints:     DefaultNumPoints,
		Tolerance:     kepler.DefaultTolerance,
		MaxIterations: kepler.DefaultMaxIterations,
	}
}

// Path holds index-aligned samples of one revolution, ordered by mean anomaly.
type Path struct {
	M []float64 `json:"m"` // mean anomaly, radians
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
	Z []float64 `json:"z,omitempty"`

	// Iterations is the total Newton iteration count across all samples.
	Iterations int `json:"-"`
}

// Len returns the number of samples.
func (p *Path) Len() int {
	return len(p.M)
}

// Calculate propagates el over one revolution.
//
// Output units match el.A. The mean anomaly range is the closed interval
// [M₀, M₀+2π], so the first and last samples nearly coincide.
func Calculate(el Elements, cfg Config) (*Path, error) {
	if cfg.NumPoints < 1 {
		return nil, fmt.Errorf("num_points=%d: %w", cfg.NumPoints, ErrInvalidNumPoints)
	}
	if err := el.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumPoints
	start := 0.0
	if cfg.FromMeanLongitude {
		start = unit.AngleFromDeg(el.L - el.LongPeri).Rad()
	}
	M := meanAnomalies(n, start)

	solver := kepler.Solver{Tolerance: cfg.Tolerance, MaxIterations: cfg.MaxIterations}

	// Orbital-plane coordinates, stored row-major as a 2×n matrix.
	plane := make([]float64, 2*n)
	var iterations int
	for k, m := range M {
		sol, err := solver.Solve(m, el.E)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", k, err)
		}
		iterations += sol.Iterations

		theta := kepler.TrueAnomaly(sol.E, el.E)
		r := kepler.Radius(el.A, el.E, theta)
		sinT, cosT := math.Sincos(theta)
		plane[k] = r * cosT
		plane[n+k] = r * sinT
	}

	rot := EclipticRotation(el, cfg.Planar)
	rows, _ := rot.Dims()

	var out mat.Dense
	out.Mul(rot, mat.NewDense(2, n, plane))

	path := &Path{
		M:          M,
		X:          mat.Row(nil, 0, &out),
		Y:          mat.Row(nil, 1, &out),
		Iterations: iterations,
	}
	if rows == 3 {
		path.Z = mat.Row(nil, 2, &out)
	}
	return path, nil
}

// meanAnomalies returns n samples evenly spaced over [start, start+2π].
func meanAnomalies(n int, start float64) []float64 {
	if n == 1 {
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, start+2*math.Pi)
}

// EclipticRotation returns the matrix taking orbital-plane (x, y) to the
// ecliptic frame: 2×2 when planar, otherwise 3×2.
//
// Ω is the longitude of the ascending node, ω the longitude of perihelion.
// The z row is sinI·(sinΩ, cosΩ).
func EclipticRotation(el Elements, planar bool) *mat.Dense {
	sinI, cosI := math.Sincos(unit.AngleFromDeg(el.I).Rad())
	sinO, cosO := math.Sincos(unit.AngleFromDeg(el.LongNode).Rad())
	sinW, cosW := math.Sincos(unit.AngleFromDeg(el.LongPeri).Rad())

	data := []float64{
		cosO*cosW - sinO*sinW*cosI, -cosO*sinW - sinO*cosW*cosI,
		sinO*cosW + cosO*sinW*cosI, -sinO*sinW + cosO*cosW*cosI,
	}
	if planar {
		return mat.NewDense(2, 2, data)
	}
	data = append(data, sinI*sinO, sinI*cosO)
	return mat.NewDense(3, 2, data)
}
