package propagation

import (
	"github.com/star/orbitgo/internal/orbit"
)

// BodyOrbit holds one body's sampled orbit.
type BodyOrbit struct {
	Name       string         `json:"name"`
	HorizonsID string         `json:"horizons_id,omitempty"`
	Elements   orbit.Elements `json:"elements"`
	Frame      string         `json:"frame,omitempty"`
	Path       *orbit.Path    `json:"path"`
}

// PropConfig holds propagation configuration.
type PropConfig struct {
	Workers int          // Worker pool size (default: runtime.NumCPU())
	Orbit   orbit.Config // Sampling and solver settings for catalog sweeps
}
