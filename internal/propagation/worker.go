package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/star/orbitgo/internal/bodies"
	"github.com/star/orbitgo/internal/metrics"
	"github.com/star/orbitgo/internal/orbit"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	index int
	body  bodies.Body
	cfg   orbit.Config
}

// propagateResult is the output of a single body propagation.
type propagateResult struct {
	index int
	orbit BodyOrbit
	err   error
}

// WorkerPool manages a fixed number of goroutines for parallel orbit sampling.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch samples every body's orbit using the worker pool.
// Results keep the input order. Failed bodies are logged and skipped.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, entries []bodies.Body, cfg orbit.Config) ([]BodyOrbit, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := propagateSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, entry := range entries {
			select {
			case jobs <- propagateJob{index: i, body: entry, cfg: cfg}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results into their input slots.
	slots := make([]*BodyOrbit, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"body", result.orbit.Name,
				"error", result.err,
			)
			continue
		}
		successCount++
		o := result.orbit
		slots[result.index] = &o
	}

	orbits := make([]BodyOrbit, 0, successCount)
	for _, o := range slots {
		if o != nil {
			orbits = append(orbits, *o)
		}
	}
	return orbits, successCount, errorCount
}

// propagateSingle samples one body's orbit.
func propagateSingle(job propagateJob) propagateResult {
	path, err := Compute(job.body.Elements, job.cfg)
	return propagateResult{
		index: job.index,
		orbit: BodyOrbit{
			Name:       job.body.Name,
			HorizonsID: job.body.HorizonsID,
			Elements:   job.body.Elements,
			Path:       path,
		},
		err: err,
	}
}

// Compute runs a single orbit calculation and records its metrics.
func Compute(el orbit.Elements, cfg orbit.Config) (*orbit.Path, error) {
	start := time.Now()
	path, err := orbit.Calculate(el, cfg)
	metrics.RecordOrbit(time.Since(start), path, err)
	return path, err
}
