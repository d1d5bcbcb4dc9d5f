package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/orbitgo/internal/api"
	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/config"
	"github.com/star/orbitgo/internal/ephemeris"
	"github.com/star/orbitgo/internal/metrics"
	"github.com/star/orbitgo/internal/propagation"
	"github.com/star/orbitgo/internal/stream"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(os.Stdout)
			if err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile, logger)
			if err != nil {
				logger.Error("invalid configuration", "error", err)
				return err
			}
			return serve(cfg, logger)
		},
	}
}

func serve(cfg config.Config, logger *slog.Logger) error {
	store := bodies.NewStore()
	if err := loadCatalog(store, cfg.CatalogPath, cfg.InfoPath, logger); err != nil {
		return err
	}

	prop := propagation.NewPropagator(store, cfg.Propagation, logger)
	metrics.SetPropagationWorkersActive(cfg.Propagation.Workers)

	eph := newEphemerisService(cfg.Ephemeris, cfg.Ephemeris.EnableFetch, logger)
	streamHandler := stream.NewHandler(prop, store, cfg.Stream, logger)

	srv := api.NewServer(cfg.HTTP.Addr, logger, cfg.Auth, cfg.HTTP.TrustProxy, store, prop, eph, streamHandler)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the path cache so the first request does not pay for it.
	go func() {
		if _, err := prop.PropagateAll(ctx); err != nil {
			logger.Warn("initial propagation failed", "error", err)
		}
	}()

	// SIGHUP reloads the catalog file.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-hup:
				if err := loadCatalog(store, cfg.CatalogPath, cfg.InfoPath, logger); err != nil {
					logger.Error("catalog reload failed, keeping current catalog", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"ephemeris_fetch_enabled", cfg.Ephemeris.EnableFetch,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// loadCatalog loads the catalog at path (built-in planets when empty)
// into store, attaching the fact sheets at infoPath when set.
func loadCatalog(store *bodies.Store, path, infoPath string, logger *slog.Logger) error {
	cat, err := bodies.LoadWithInfo(path, infoPath, logger)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	store.Set(cat)
	metrics.SetCatalogSize(len(cat.Bodies))
	metrics.SetCatalogAge(0)
	logger.Info("catalog loaded", "source", cat.Source, "bodies", len(cat.Bodies))
	return nil
}

func newEphemerisService(cfg config.EphemerisConfig, fetch bool, logger *slog.Logger) *ephemeris.Service {
	var fetcher *ephemeris.Fetcher
	if fetch {
		fetcher = ephemeris.NewFetcher(cfg.SourceURL, logger)
	}
	return ephemeris.NewService(
		fetcher,
		ephemeris.NewCache(cfg.CacheDir, cfg.MaxFiles),
		cfg.DataDir,
		cfg.Span,
		cfg.Concurrency,
		logger,
	)
}
