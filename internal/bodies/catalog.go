package bodies

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/orbitgo/internal/orbit"
)

// ErrUnknownBody is returned by lookups for names not in the catalog.
var ErrUnknownBody = errors.New("unknown body")

// J2000 mean elements (JPL approximate positions table, 1800-2050 AD).
// Earth is the Earth-Moon barycenter.
var planets = []Body{
	{Name: "Mercury", HorizonsID: "199", Elements: orbit.Elements{A: 0.38709927, E: 0.20563593, I: 7.00497902, L: 252.25032350, LongPeri: 77.45779628, LongNode: 48.33076593}},
	{Name: "Venus", HorizonsID: "299", Elements: orbit.Elements{A: 0.72333566, E: 0.00677672, I: 3.39467605, L: 181.97909950, LongPeri: 131.60246718, LongNode: 76.67984255}},
	{Name: "Earth", HorizonsID: "399", Elements: orbit.Elements{A: 1.00000261, E: 0.01671123, I: -0.00001531, L: 100.46457166, LongPeri: 102.93768193, LongNode: 0.0}},
	{Name: "Mars", HorizonsID: "499", Elements: orbit.Elements{A: 1.52371034, E: 0.09339410, I: 1.84969142, L: -4.55343205, LongPeri: -23.94362959, LongNode: 49.55953891}},
	{Name: "Jupiter", HorizonsID: "599", Elements: orbit.Elements{A: 5.20288700, E: 0.04838624, I: 1.30439695, L: 34.39644051, LongPeri: 14.72847983, LongNode: 100.47390909}},
	{Name: "Saturn", HorizonsID: "699", Elements: orbit.Elements{A: 9.53667594, E: 0.05386179, I: 2.48599187, L: 49.95424423, LongPeri: 92.59887831, LongNode: 113.66242448}},
	{Name: "Uranus", HorizonsID: "799", Elements: orbit.Elements{A: 19.18916464, E: 0.04725744, I: 0.77263783, L: 313.23810451, LongPeri: 170.95427630, LongNode: 74.01692503}},
	{Name: "Neptune", HorizonsID: "899", Elements: orbit.Elements{A: 30.06992276, E: 0.00859048, I: 1.77004347, L: -55.12002969, LongPeri: 44.96476227, LongNode: 131.78422574}},
}

// Planets returns the built-in J2000 planet catalog, ordered by distance
// from the Sun, with each planet's fact sheet attached.
func Planets() *Catalog {
	bs := make([]Body, len(planets))
	copy(bs, planets)
	for i := range bs {
		info := planetInfo[i]
		bs[i].Info = &info
	}
	return &Catalog{
		Source:   "builtin:j2000",
		LoadedAt: time.Now(),
		Bodies:   bs,
	}
}

type catalogFile struct {
	Bodies []Body `yaml:"bodies"`
}

// LoadYAML reads a catalog of the form
//
//	bodies:
//	  - name: Ceres
//	    horizons_id: "1;"
//	    elements: {a: 2.77, e: 0.0785, i: 10.59, l: 0, long_peri: 153.9, long_node: 80.3}
//	    info: {diameter_km: 939, number_of_moons: 0}
//
// Bodies with an unnamed entry, a duplicate name or an open orbit are skipped
// with a warning.
func LoadYAML(r io.Reader, source string, logger *slog.Logger) (*Catalog, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Bodies))
	bs := make([]Body, 0, len(f.Bodies))
	for i, b := range f.Bodies {
		b.Name = strings.TrimSpace(b.Name)
		if b.Name == "" {
			logger.Warn("skipping unnamed catalog entry", "index", i)
			continue
		}
		key := strings.ToLower(b.Name)
		if seen[key] {
			logger.Warn("skipping duplicate catalog entry", "name", b.Name)
			continue
		}
		if err := b.Elements.Validate(); err != nil {
			logger.Warn("skipping catalog entry with invalid elements", "name", b.Name, "error", err)
			continue
		}
		if b.Info != nil {
			b.Info.Name = b.Name
		}
		seen[key] = true
		bs = append(bs, b)
	}

	sort.SliceStable(bs, func(i, j int) bool {
		return bs[i].Elements.A < bs[j].Elements.A
	})

	return &Catalog{
		Source:   source,
		LoadedAt: time.Now(),
		Bodies:   bs,
	}, nil
}

// Load returns the built-in planets when path is empty, otherwise the
// YAML catalog at path.
func Load(path string, logger *slog.Logger) (*Catalog, error) {
	if path == "" {
		return Planets(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	cat, err := LoadYAML(f, "file:"+path, logger)
	if err != nil {
		return nil, err
	}
	if len(cat.Bodies) == 0 {
		return nil, fmt.Errorf("catalog %s has no valid bodies", path)
	}
	return cat, nil
}

// LoadWithInfo is Load followed by AttachInfo with the planet_data.json
// file at infoPath. An empty infoPath keeps whatever info the catalog carries.
func LoadWithInfo(path, infoPath string, logger *slog.Logger) (*Catalog, error) {
	cat, err := Load(path, logger)
	if err != nil || infoPath == "" {
		return cat, err
	}
	infos, err := LoadInfoFile(infoPath)
	if err != nil {
		return nil, err
	}
	n := cat.AttachInfo(infos, logger)
	logger.Debug("planet info attached", "path", infoPath, "entries", len(infos), "bodies", n)
	return cat, nil
}

// Lookup finds a body by case-insensitive name or by Horizons id.
func (c *Catalog) Lookup(name string) (Body, error) {
	name = strings.TrimSpace(name)
	for _, b := range c.Bodies {
		if strings.EqualFold(b.Name, name) || (b.HorizonsID != "" && b.HorizonsID == name) {
			return b, nil
		}
	}
	return Body{}, fmt.Errorf("%q: %w", name, ErrUnknownBody)
}

// Names returns the body names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Bodies))
	for i, b := range c.Bodies {
		names[i] = b.Name
	}
	return names
}
