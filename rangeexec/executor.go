// Package rangeexec evaluates a kernel over a numeric domain in parallel.
//
// The domain is split into contiguous sub-ranges, one goroutine computes each
// sub-range, and the partial results are merged into a single output ordered
// by domain. A run either returns the merge of every partial or fails as a
// whole; partial merges are never returned.
package rangeexec

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/on-the-ground/wrapkit/effects/log"
	"github.com/on-the-ground/wrapkit/fault"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Config bounds an Executor's fan-out.
type Config struct {
	// MaxWorkers is the largest worker count a single Run accepts.
	MaxWorkers int
	// MaxConcurrentWorkers caps workers running at once across every Run on
	// the Executor. 0 means no cap beyond MaxWorkers per run.
	MaxConcurrentWorkers int
}

// Executor runs kernels over sub-ranges. It is safe for concurrent use.
type Executor struct {
	cfg Config
	sem *semaphore.Weighted // nil if unlimited
}

// New validates cfg eagerly.
func New(cfg Config) (*Executor, error) {
	if cfg.MaxWorkers < 1 {
		return nil, fault.Invalid("maxWorkers", cfg.MaxWorkers, "must be at least 1")
	}
	if cfg.MaxConcurrentWorkers < 0 {
		return nil, fault.Invalid("maxConcurrentWorkers", cfg.MaxConcurrentWorkers, "must be 0 or greater")
	}
	e := &Executor{cfg: cfg}
	if cfg.MaxConcurrentWorkers > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentWorkers))
	}
	return e, nil
}

func (e *Executor) Config() Config { return e.cfg }

// Kernel computes the Output for one sub-range. It receives its own copy of
// args when A implements Cloner.
type Kernel[A any] func(ctx context.Context, args A, b Bounds) (Output, error)

// Cloner is implemented by argument types that need a private copy per worker.
type Cloner[A any] interface {
	Clone() A
}

type result struct {
	partial Partial
	err     error
}

// Run splits [start, end] into workers sub-ranges, computes them concurrently
// and merges the partials.
//
// The first failing worker cancels the context of the others. Run still waits
// for every worker, then returns each failure as a *fault.WorkerError, combined
// with multierr in worker-index order.
func Run[A any](
	ctx context.Context,
	e *Executor,
	kernel Kernel[A],
	args A,
	start, end float64,
	workers int,
) (Merged, error) {
	if workers < 1 || workers > e.cfg.MaxWorkers {
		return Merged{}, fault.Invalid("workers", workers,
			fmt.Sprintf("must be between 1 and %d", e.cfg.MaxWorkers))
	}
	if math.IsNaN(start) || math.IsInf(start, 0) || math.IsNaN(end) || math.IsInf(end, 0) {
		return Merged{}, fault.Invalid("domain", [2]float64{start, end}, "bounds must be finite")
	}

	runID := uuid.NewString()
	bounds := Split(start, end, workers)
	log.Effect(ctx, log.LogDebug, "range run started", map[string]interface{}{
		"run":     runID,
		"workers": workers,
		"start":   start,
		"end":     end,
	})

	results := make(chan result, workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bounds {
		workerArgs := cloneArgs(args)
		g.Go(func() error {
			out, err := work(gctx, e.sem, kernel, workerArgs, b)
			if err != nil {
				err = &fault.WorkerError{Index: b.Index, Start: b.Start, End: b.End, Err: err}
			}
			results <- result{partial: Partial{Bounds: b, Output: out}, err: err}
			return err
		})
	}

	failures := make([]error, workers)
	partials := make([]Partial, 0, workers)
	for range workers {
		res := <-results
		if res.err != nil {
			failures[res.partial.Index] = res.err
			continue
		}
		partials = append(partials, res.partial)
	}
	firstErr := g.Wait()

	if firstErr != nil {
		err := combine(ctx, failures, firstErr)
		log.Effect(ctx, log.LogError, "range run failed", map[string]interface{}{
			"run":   runID,
			"error": err.Error(),
		})
		return Merged{}, err
	}

	merged, err := Merge(partials)
	if err != nil {
		return Merged{}, fmt.Errorf("range run %s: %w", runID, err)
	}
	log.Effect(ctx, log.LogDebug, "range run merged", map[string]interface{}{
		"run":    runID,
		"points": len(merged.Domain),
	})
	return merged, nil
}

func work[A any](ctx context.Context, sem *semaphore.Weighted, kernel Kernel[A], args A, b Bounds) (out Output, err error) {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return Output{}, err
		}
		defer sem.Release(1)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return kernel(ctx, args, b)
}

func cloneArgs[A any](args A) A {
	if c, ok := any(args).(Cloner[A]); ok {
		return c.Clone()
	}
	return args
}

// combine keeps the failures that caused the run to stop. Workers that only
// observed the cancellation triggered by a sibling are left out, unless the
// caller's own context ended.
func combine(ctx context.Context, failures []error, first error) error {
	var errs []error
	for _, err := range failures {
		if err == nil {
			continue
		}
		var werr *fault.WorkerError
		if ctx.Err() == nil && errors.As(err, &werr) && errors.Is(werr.Err, context.Canceled) && err != first {
			continue
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return first
	}
	return multierr.Combine(errs...)
}
