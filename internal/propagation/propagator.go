package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/metrics"
	"github.com/star/orbitgo/internal/orbit"
)

// ErrNoCatalog is returned when the store has no catalog loaded.
var ErrNoCatalog = errors.New("no body catalog loaded")

// pathCache holds the sampled orbits of one catalog under one sampling config.
// Immutable after construction; safe for concurrent reads.
type pathCache struct {
	catalog *bodies.Catalog
	cfg     orbit.Config
	orbits  []BodyOrbit
}

// Propagator orchestrates orbit sampling for the body catalog.
type Propagator struct {
	store   *bodies.Store
	pool    *WorkerPool
	config  PropConfig
	logger  *slog.Logger
	cache   atomic.Pointer[pathCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *bodies.Store, config PropConfig, logger *slog.Logger) *Propagator {
	pool := NewWorkerPool(config.Workers, logger)
	return &Propagator{
		store:  store,
		pool:   pool,
		config: config,
		logger: logger,
	}
}

// Config returns the propagation configuration.
func (p *Propagator) Config() PropConfig {
	return p.config
}

// PropagateAll samples every catalog body with the configured sampling.
// Results are cached until the catalog is replaced (double-checked locking).
func (p *Propagator) PropagateAll(ctx context.Context) ([]BodyOrbit, error) {
	cat := p.store.Get()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if c := p.cache.Load(); c != nil && c.catalog == cat && c.cfg == p.config.Orbit {
		return c.orbits, nil
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if c := p.cache.Load(); c != nil && c.catalog == cat && c.cfg == p.config.Orbit {
		return c.orbits, nil
	}

	orbits, err := p.propagate(ctx, cat, p.config.Orbit)
	if err != nil {
		return orbits, err
	}

	p.cache.Store(&pathCache{catalog: cat, cfg: p.config.Orbit, orbits: orbits})
	p.logger.Info("orbit path cache rebuilt",
		"bodies", len(orbits),
		"num_points", p.config.Orbit.NumPoints,
		"catalog_source", cat.Source,
	)
	return orbits, nil
}

// PropagateAllWith samples every catalog body with a caller-supplied config.
// Nothing is cached.
func (p *Propagator) PropagateAllWith(ctx context.Context, cfg orbit.Config) ([]BodyOrbit, error) {
	if cfg == p.config.Orbit {
		return p.PropagateAll(ctx)
	}
	return p.PropagateCatalog(ctx, p.store.Get(), cfg)
}

// PropagateCatalog samples every body of cat, a snapshot the caller already
// holds, so results and catalog metadata come from the same catalog.
// The cache is used only when cat is the catalog it was built from.
func (p *Propagator) PropagateCatalog(ctx context.Context, cat *bodies.Catalog, cfg orbit.Config) ([]BodyOrbit, error) {
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if c := p.cache.Load(); c != nil && c.catalog == cat && c.cfg == cfg {
		return c.orbits, nil
	}
	return p.propagate(ctx, cat, cfg)
}

// PropagateBody samples one catalog body, looked up by name or Horizons id.
func (p *Propagator) PropagateBody(ctx context.Context, name string, cfg orbit.Config) (*BodyOrbit, error) {
	cat := p.store.Get()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	body, err := cat.Lookup(name)
	if err != nil {
		return nil, err
	}

	if c := p.cache.Load(); c != nil && c.catalog == cat && c.cfg == cfg {
		for i := range c.orbits {
			if c.orbits[i].Name == body.Name {
				return &c.orbits[i], nil
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := Compute(body.Elements, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", body.Name, err)
	}
	return &BodyOrbit{
		Name:       body.Name,
		HorizonsID: body.HorizonsID,
		Elements:   body.Elements,
		Path:       path,
	}, nil
}

func (p *Propagator) propagate(ctx context.Context, cat *bodies.Catalog, cfg orbit.Config) ([]BodyOrbit, error) {
	p.logger.Debug("propagating",
		"body_count", len(cat.Bodies),
		"num_points", cfg.NumPoints,
		"workers", p.config.Workers,
	)

	start := time.Now()
	orbits, successCount, errorCount := p.pool.PropagateBatch(ctx, cat.Bodies, cfg)
	duration := time.Since(start)

	metrics.RecordBatch(duration)

	p.logger.Debug("propagation complete",
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return orbits, err
	}
	return orbits, nil
}
