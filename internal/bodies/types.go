package bodies

import (
	"time"

	"github.com/star/orbitgo/internal/orbit"
)

// Body is a named celestial body with its heliocentric orbital elements.
type Body struct {
	Name       string         `json:"name" yaml:"name"`
	HorizonsID string         `json:"horizons_id" yaml:"horizons_id"` // JPL Horizons COMMAND id
	Elements   orbit.Elements `json:"elements" yaml:"elements"`
	Info       *PhysicalInfo  `json:"info,omitempty" yaml:"info,omitempty"`
}

// Catalog is a complete set of bodies from one source.
type Catalog struct {
	Source   string
	LoadedAt time.Time
	Bodies   []Body
}
