package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrFetchDisabled is returned by Refresh when no fetcher is configured.
var ErrFetchDisabled = errors.New("ephemeris fetching is disabled")

// Service combines the Horizons fetcher, the raw cache and the local
// position files behind one handle.
type Service struct {
	fetcher     *Fetcher
	cache       *Cache
	dataDir     string
	span        Span
	concurrency int
	logger      *slog.Logger
}

// NewService creates a Service. A nil fetcher disables Refresh.
func NewService(fetcher *Fetcher, cache *Cache, dataDir string, span Span, concurrency int, logger *slog.Logger) *Service {
	return &Service{
		fetcher:     fetcher,
		cache:       cache,
		dataDir:     dataDir,
		span:        span,
		concurrency: concurrency,
		logger:      logger,
	}
}

// FetchEnabled reports whether Refresh can reach the network.
func (s *Service) FetchEnabled() bool {
	return s.fetcher != nil
}

// Span returns the configured request window.
func (s *Service) Span() Span {
	return s.span
}

// Refresh fetches every id and writes successful responses to the cache.
func (s *Service) Refresh(ctx context.Context, ids []string) ([]Result, error) {
	if s.fetcher == nil {
		return nil, ErrFetchDisabled
	}

	start := time.Now()
	results := s.fetcher.FetchAll(ctx, ids, s.span, s.concurrency)

	var ok int
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			continue
		}
		if err := s.cache.Write(res.ID, res.Data, time.Now()); err != nil {
			res.Err = fmt.Errorf("caching %s: %w", res.ID, err)
			s.logger.Warn("ephemeris cache write failed", "horizons_id", res.ID, "error", err)
			continue
		}
		ok++
	}

	s.logger.Info("ephemeris refresh complete",
		"requested", len(ids),
		"cached", ok,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, ctx.Err()
}

// Raw returns the newest cached Horizons response for id.
func (s *Service) Raw(id string) ([]byte, time.Time, error) {
	return s.cache.LoadLatest(id)
}

// Positions reads the local position file for id.
func (s *Service) Positions(id string) ([]Vector, error) {
	return LoadPositionFile(s.dataDir, id, s.logger)
}
