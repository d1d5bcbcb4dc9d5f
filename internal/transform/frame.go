// Package transform rotates sampled heliocentric orbits between the
// ecliptic frame they are computed in and the mean equatorial frame.
//
// The rotation is R1(-ε) about the shared x axis (vernal equinox), with ε
// the IAU 1976 mean obliquity of the ecliptic at J2000.0:
//
//	x_eq = x_ecl
//	y_eq = y_ecl cos ε - z_ecl sin ε
//	z_eq = y_ecl sin ε + z_ecl cos ε
//
// Precession and nutation after J2000.0 are ignored.
package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/meeus/v3/nutation"
	"gonum.org/v1/gonum/mat"

	"github.com/star/orbitgo/internal/orbit"
)

// j2000 is the Julian Ephemeris Day of the J2000.0 epoch.
const j2000 = 2451545.0

// Frame names a heliocentric reference frame.
type Frame string

const (
	Ecliptic   Frame = "ecliptic"
	Equatorial Frame = "equatorial"
)

// ParseFrame accepts "ecliptic" (also the empty string) or "equatorial".
func ParseFrame(s string) (Frame, error) {
	switch Frame(strings.ToLower(strings.TrimSpace(s))) {
	case "", Ecliptic:
		return Ecliptic, nil
	case Equatorial:
		return Equatorial, nil
	default:
		return "", fmt.Errorf("unknown frame %q, want ecliptic or equatorial", s)
	}
}

// ObliquityJ2000 returns the mean obliquity of the ecliptic at J2000.0 in radians.
func ObliquityJ2000() float64 {
	return nutation.MeanObliquity(j2000).Rad()
}

// EquatorialRotation returns the 3×3 ecliptic-to-equatorial rotation for obliquity eps.
func EquatorialRotation(eps float64) *mat.Dense {
	sin, cos := math.Sincos(eps)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cos, -sin,
		0, sin, cos,
	})
}

// ToFrame returns p expressed in frame f. Ecliptic returns p unchanged.
// The equatorial result always carries Z, even for planar input.
func ToFrame(p *orbit.Path, f Frame) *orbit.Path {
	if f != Equatorial || p == nil {
		return p
	}
	return EclipticToEquatorial(p, ObliquityJ2000())
}

// EclipticToEquatorial rotates every sample of p by obliquity eps. p is not modified.
func EclipticToEquatorial(p *orbit.Path, eps float64) *orbit.Path {
	n := p.Len()
	out := &orbit.Path{
		M:          append([]float64(nil), p.M...),
		Iterations: p.Iterations,
	}
	if n == 0 {
		return out
	}

	z := p.Z
	if z == nil {
		z = make([]float64, n)
	}
	ecl := mat.NewDense(3, n, nil)
	ecl.SetRow(0, p.X)
	ecl.SetRow(1, p.Y)
	ecl.SetRow(2, z)

	var eq mat.Dense
	eq.Mul(EquatorialRotation(eps), ecl)

	out.X = mat.Row(nil, 0, &eq)
	out.Y = mat.Row(nil, 1, &eq)
	out.Z = mat.Row(nil, 2, &eq)
	return out
}
