package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/config"
	"github.com/star/orbitgo/internal/orbit"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/transform"
)

func orbitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orbit [body]",
		Short: "Sample one orbit and print it",
		Long: `Sample one revolution of an orbit and print it as JSON or CSV.

With a body argument the elements come from the catalog; element flags
override individual catalog values. Without one, --a and --e are required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(os.Stderr)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, logger)
			if err != nil {
				return err
			}

			var body bodies.Body
			if len(args) == 1 {
				cat, err := bodies.LoadWithInfo(cfg.CatalogPath, cfg.InfoPath, logger)
				if err != nil {
					return err
				}
				if body, err = cat.Lookup(args[0]); err != nil {
					return err
				}
			} else {
				if !cmd.Flags().Changed("a") || !cmd.Flags().Changed("e") {
					return fmt.Errorf("--a and --e are required without a body argument")
				}
				body.Name = "custom"
			}
			if err := applyElementFlags(cmd.Flags(), &body.Elements); err != nil {
				return err
			}

			orbitCfg, err := orbitConfigFromFlags(cmd.Flags(), cfg.Propagation.Orbit)
			if err != nil {
				return err
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			frameName, err := cmd.Flags().GetString("frame")
			if err != nil {
				return err
			}
			frame, err := transform.ParseFrame(frameName)
			if err != nil {
				return err
			}

			path, err := propagation.Compute(body.Elements, orbitCfg)
			if err != nil {
				return fmt.Errorf("%s: %w", body.Name, err)
			}

			return writeOrbit(cmd.OutOrStdout(), format, propagation.BodyOrbit{
				Name:       body.Name,
				HorizonsID: body.HorizonsID,
				Elements:   body.Elements,
				Frame:      string(frame),
				Path:       transform.ToFrame(path, frame),
			})
		},
	}

	f := cmd.Flags()
	f.Float64("a", 0, "semi-major axis (AU)")
	f.Float64("e", 0, "eccentricity, 0 <= e < 1")
	f.Float64("i", 0, "inclination (deg)")
	f.Float64("l", 0, "mean longitude (deg)")
	f.Float64("long-peri", 0, "longitude of perihelion (deg)")
	f.Float64("long-node", 0, "longitude of ascending node (deg)")
	f.Int("points", orbit.DefaultNumPoints, "samples over [0, 2pi]")
	f.Bool("planar", false, "omit the z coordinate")
	f.Bool("from-mean-longitude", false, "start the sweep at the mean anomaly implied by --l")
	f.String("format", "json", "output format: json or csv")
	f.String("frame", "ecliptic", "output frame: ecliptic or equatorial")

	return cmd
}

// applyElementFlags overwrites the elements named by changed flags.
func applyElementFlags(flags *pflag.FlagSet, el *orbit.Elements) error {
	fields := []struct {
		name string
		dst  *float64
	}{
		{"a", &el.A},
		{"e", &el.E},
		{"i", &el.I},
		{"l", &el.L},
		{"long-peri", &el.LongPeri},
		{"long-node", &el.LongNode},
	}
	for _, fld := range fields {
		if !flags.Changed(fld.name) {
			continue
		}
		v, err := flags.GetFloat64(fld.name)
		if err != nil {
			return err
		}
		*fld.dst = v
	}
	return nil
}

func orbitConfigFromFlags(flags *pflag.FlagSet, base orbit.Config) (orbit.Config, error) {
	cfg := base
	if flags.Changed("points") {
		n, err := flags.GetInt("points")
		if err != nil {
			return cfg, err
		}
		cfg.NumPoints = n
	}
	var err error
	if cfg.Planar, err = flags.GetBool("planar"); err != nil {
		return cfg, err
	}
	if cfg.FromMeanLongitude, err = flags.GetBool("from-mean-longitude"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func writeOrbit(w io.Writer, format string, bo propagation.BodyOrbit) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bo)
	case "csv":
		return orbit.WriteCSV(w, bo.Path)
	default:
		return fmt.Errorf("unknown format %q, want json or csv", format)
	}
}
