package bodies

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// PhysicalInfo is the descriptive fact sheet of a body. Field names follow
// the planet_data.json layout; units are part of each name.
type PhysicalInfo struct {
	Name               string  `json:"name" yaml:"name"`
	Mass               float64 `json:"mass_10_24_kg" yaml:"mass_10_24_kg"`
	Diameter           int     `json:"diameter_km" yaml:"diameter_km"`
	Density            int     `json:"density_kg_m3" yaml:"density_kg_m3"`
	Gravity            float64 `json:"gravity_m_s2" yaml:"gravity_m_s2"`
	EscapeVelocity     float64 `json:"escape_velocity_km_s" yaml:"escape_velocity_km_s"`
	RotationPeriod     float64 `json:"rotation_period_hours" yaml:"rotation_period_hours"`
	LengthOfDay        float64 `json:"length_of_day_hours" yaml:"length_of_day_hours"`
	DistanceFromSun    float64 `json:"distance_from_sun_10_6_km" yaml:"distance_from_sun_10_6_km"`
	OrbitalPeriod      float64 `json:"orbital_period_days" yaml:"orbital_period_days"`
	OrbitalVelocity    float64 `json:"orbital_velocity_km_s" yaml:"orbital_velocity_km_s"`
	OrbitalInclination float64 `json:"orbital_inclination_deg" yaml:"orbital_inclination_deg"`
	Obliquity          float64 `json:"obliquity_deg" yaml:"obliquity_deg"`
	MeanTemperature    int     `json:"mean_temperature_c" yaml:"mean_temperature_c"`
	NumberOfMoons      int     `json:"number_of_moons" yaml:"number_of_moons"`
}

// NASA planetary fact sheet values. Negative rotation periods are retrograde.
var planetInfo = []PhysicalInfo{
	{Name: "Mercury", Mass: 0.330, Diameter: 4879, Density: 5429, Gravity: 3.7, EscapeVelocity: 4.3, RotationPeriod: 1407.6, LengthOfDay: 4222.6, DistanceFromSun: 57.9, OrbitalPeriod: 88.0, OrbitalVelocity: 47.4, OrbitalInclination: 7.0, Obliquity: 0.034, MeanTemperature: 167, NumberOfMoons: 0},
	{Name: "Venus", Mass: 4.87, Diameter: 12104, Density: 5243, Gravity: 8.9, EscapeVelocity: 10.4, RotationPeriod: -5832.5, LengthOfDay: 2802.0, DistanceFromSun: 108.2, OrbitalPeriod: 224.7, OrbitalVelocity: 35.0, OrbitalInclination: 3.4, Obliquity: 177.4, MeanTemperature: 464, NumberOfMoons: 0},
	{Name: "Earth", Mass: 5.97, Diameter: 12756, Density: 5514, Gravity: 9.8, EscapeVelocity: 11.2, RotationPeriod: 23.9, LengthOfDay: 24.0, DistanceFromSun: 149.6, OrbitalPeriod: 365.2, OrbitalVelocity: 29.8, OrbitalInclination: 0.0, Obliquity: 23.4, MeanTemperature: 15, NumberOfMoons: 1},
	{Name: "Mars", Mass: 0.642, Diameter: 6792, Density: 3934, Gravity: 3.7, EscapeVelocity: 5.0, RotationPeriod: 24.6, LengthOfDay: 24.7, DistanceFromSun: 228.0, OrbitalPeriod: 687.0, OrbitalVelocity: 24.1, OrbitalInclination: 1.8, Obliquity: 25.2, MeanTemperature: -65, NumberOfMoons: 2},
	{Name: "Jupiter", Mass: 1898, Diameter: 142984, Density: 1326, Gravity: 23.1, EscapeVelocity: 59.5, RotationPeriod: 9.9, LengthOfDay: 9.9, DistanceFromSun: 778.5, OrbitalPeriod: 4331, OrbitalVelocity: 13.1, OrbitalInclination: 1.3, Obliquity: 3.1, MeanTemperature: -110, NumberOfMoons: 95},
	{Name: "Saturn", Mass: 568, Diameter: 120536, Density: 687, Gravity: 9.0, EscapeVelocity: 35.5, RotationPeriod: 10.7, LengthOfDay: 10.7, DistanceFromSun: 1432.0, OrbitalPeriod: 10747, OrbitalVelocity: 9.7, OrbitalInclination: 2.5, Obliquity: 26.7, MeanTemperature: -140, NumberOfMoons: 146},
	{Name: "Uranus", Mass: 86.8, Diameter: 51118, Density: 1270, Gravity: 8.7, EscapeVelocity: 21.3, RotationPeriod: -17.2, LengthOfDay: 17.2, DistanceFromSun: 2867.0, OrbitalPeriod: 30589, OrbitalVelocity: 6.8, OrbitalInclination: 0.8, Obliquity: 97.8, MeanTemperature: -195, NumberOfMoons: 28},
	{Name: "Neptune", Mass: 102, Diameter: 49528, Density: 1638, Gravity: 11.0, EscapeVelocity: 23.5, RotationPeriod: 16.1, LengthOfDay: 16.1, DistanceFromSun: 4515.0, OrbitalPeriod: 59800, OrbitalVelocity: 5.4, OrbitalInclination: 1.8, Obliquity: 28.3, MeanTemperature: -200, NumberOfMoons: 16},
}

type infoFile struct {
	Planets []PhysicalInfo `json:"planets"`
}

// LoadInfo reads fact sheets in the planet_data.json layout: a bare JSON
// array of entries, or the same array wrapped as {"planets": [...]}.
func LoadInfo(r io.Reader) ([]PhysicalInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading planet info: %w", err)
	}
	data = bytes.TrimSpace(data)

	if bytes.HasPrefix(data, []byte("[")) {
		var infos []PhysicalInfo
		if err := json.Unmarshal(data, &infos); err != nil {
			return nil, fmt.Errorf("decoding planet info: %w", err)
		}
		return infos, nil
	}

	var f infoFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding planet info: %w", err)
	}
	return f.Planets, nil
}

// LoadInfoFile reads a planet_data.json file from disk.
func LoadInfoFile(path string) ([]PhysicalInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening planet info: %w", err)
	}
	defer f.Close()
	return LoadInfo(f)
}

// AttachInfo sets the fact sheet of every body whose name matches an entry,
// case-insensitively, replacing any existing one. Entries that match no
// body are logged and ignored. Returns the number of bodies updated.
// Call it before the catalog is published to a Store.
func (c *Catalog) AttachInfo(infos []PhysicalInfo, logger *slog.Logger) int {
	index := make(map[string]int, len(c.Bodies))
	for i, b := range c.Bodies {
		index[strings.ToLower(b.Name)] = i
	}

	attached := 0
	for _, info := range infos {
		i, ok := index[strings.ToLower(strings.TrimSpace(info.Name))]
		if !ok {
			logger.Warn("planet info for unknown body", "name", info.Name)
			continue
		}
		info.Name = c.Bodies[i].Name
		c.Bodies[i].Info = &info
		attached++
	}
	return attached
}
