package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/config"
	"github.com/star/orbitgo/internal/ephemeris"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [body...]",
		Short: "Download raw Horizons vector tables into the cache",
		Long: `Download raw JPL Horizons vector tables for the named bodies (default:
the whole catalog) and store them verbatim in the ephemeris cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(os.Stderr)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, logger)
			if err != nil {
				return err
			}
			if err := applySpanFlags(cmd, &cfg.Ephemeris.Span); err != nil {
				return err
			}

			cat, err := bodies.LoadWithInfo(cfg.CatalogPath, cfg.InfoPath, logger)
			if err != nil {
				return err
			}
			ids, err := horizonsIDs(cat, args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// The command always fetches, regardless of ephemeris.enable_fetch.
			svc := newEphemerisService(cfg.Ephemeris, true, logger)
			results, err := svc.Refresh(ctx, ids)
			if err != nil {
				return err
			}

			var failed int
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s FAILED  %v\n", res.ID, res.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s ok      %d bytes\n", res.ID, len(res.Data))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().String("start", "", "start date YYYY-MM-DD (default from config)")
	cmd.Flags().String("stop", "", "stop date YYYY-MM-DD (default from config)")
	cmd.Flags().String("step", "", `Horizons step size, e.g. "1 DAYS" (default from config)`)

	return cmd
}

func applySpanFlags(cmd *cobra.Command, span *ephemeris.Span) error {
	for _, fld := range []struct {
		name string
		dst  *time.Time
	}{{"start", &span.Start}, {"stop", &span.Stop}} {
		v, err := cmd.Flags().GetString(fld.name)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		t, err := time.Parse(ephemeris.DateLayout, v)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", fld.name, err)
		}
		*fld.dst = t
	}
	step, err := cmd.Flags().GetString("step")
	if err != nil {
		return err
	}
	if step != "" {
		span.Step = step
	}
	return span.Validate()
}

// horizonsIDs resolves names to Horizons ids; no names means the whole catalog.
func horizonsIDs(cat *bodies.Catalog, names []string) ([]string, error) {
	var ids []string
	if len(names) == 0 {
		for _, b := range cat.Bodies {
			if b.HorizonsID != "" {
				ids = append(ids, b.HorizonsID)
			}
		}
		return ids, nil
	}
	for _, name := range names {
		b, err := cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		if b.HorizonsID == "" {
			return nil, fmt.Errorf("%s has no Horizons id", b.Name)
		}
		ids = append(ids, b.HorizonsID)
	}
	return ids, nil
}
