package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/config"
)

func bodiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bodies",
		Short: "List the body catalog",
		Long: `List the body catalog with its orbital elements, or with --info the
physical fact sheet of each body.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(os.Stderr)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, logger)
			if err != nil {
				return err
			}
			showInfo, err := cmd.Flags().GetBool("info")
			if err != nil {
				return err
			}
			cat, err := bodies.LoadWithInfo(cfg.CatalogPath, cfg.InfoPath, logger)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if showInfo {
				writeInfoTable(tw, cat)
			} else {
				writeElementsTable(tw, cat)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("info", false, "print physical data instead of orbital elements")
	return cmd
}

func writeElementsTable(w io.Writer, cat *bodies.Catalog) {
	fmt.Fprintln(w, "NAME\tHORIZONS\tA (AU)\tE\tI (deg)\tL (deg)\tLONG_PERI (deg)\tLONG_NODE (deg)")
	for _, b := range cat.Bodies {
		el := b.Elements
		fmt.Fprintf(w, "%s\t%s\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\t%.8f\n",
			b.Name, b.HorizonsID, el.A, el.E, el.I, el.L, el.LongPeri, el.LongNode)
	}
}

// writeInfoTable prints one row per body; bodies without a fact sheet show dashes.
func writeInfoTable(w io.Writer, cat *bodies.Catalog) {
	fmt.Fprintln(w, "NAME\tMASS (1e24 kg)\tDIAMETER (km)\tDENSITY (kg/m3)\tGRAVITY (m/s2)\tESCAPE (km/s)\tROTATION (h)\tDAY (h)\tDISTANCE (1e6 km)\tPERIOD (d)\tVELOCITY (km/s)\tINCL (deg)\tOBLIQUITY (deg)\tTEMP (C)\tMOONS")
	for _, b := range cat.Bodies {
		in := b.Info
		if in == nil {
			fmt.Fprintf(w, "%s%s\n", b.Name, strings.Repeat("\t-", 14))
			continue
		}
		fmt.Fprintf(w, "%s\t%g\t%d\t%d\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%g\t%d\t%d\n",
			b.Name, in.Mass, in.Diameter, in.Density, in.Gravity, in.EscapeVelocity,
			in.RotationPeriod, in.LengthOfDay, in.DistanceFromSun, in.OrbitalPeriod,
			in.OrbitalVelocity, in.OrbitalInclination, in.Obliquity, in.MeanTemperature, in.NumberOfMoons)
	}
}
