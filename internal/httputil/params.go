package httputil

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/star/orbitgo/internal/orbit"
)

// MaxPoints caps the samples per orbit a single request may ask for.
const MaxPoints = 10000

// SamplingConfig applies the "points", "planar" and "from_mean_longitude"
// query parameters to base.
func SamplingConfig(q url.Values, base orbit.Config) (orbit.Config, error) {
	cfg := base

	if v := q.Get("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPoints {
			return cfg, fmt.Errorf("invalid points parameter, must be 1-%d", MaxPoints)
		}
		cfg.NumPoints = n
	}

	if v := q.Get("planar"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid planar parameter, must be a boolean")
		}
		cfg.Planar = b
	}

	if v := q.Get("from_mean_longitude"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid from_mean_longitude parameter, must be a boolean")
		}
		cfg.FromMeanLongitude = b
	}

	return cfg, nil
}
