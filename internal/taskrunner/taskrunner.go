// Package taskrunner provides the fixed-size worker pool every
// VertexMap/EdgeMap call and every compute-pool worker's internal
// fan-out drives parallel_for through. It is grounded on the same
// ceil(n/workers) chunk-partitioning shape pkg/parallel.ForEach uses
// for its own work queue, specialized into a fire-and-forget
// parallel_for: no task from one call outlives that call's return, so
// a kernel never sees work leak across PEval/IncEval invocations.
package taskrunner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Runner is a fixed worker pool of size Cores. It has no background
// goroutines between calls: Cores only bounds how many chunks of a
// single ParallelFor run concurrently.
type Runner struct {
	cores int
}

// New creates a Runner with the given core count (the per-fragment
// num_cores parameter). A value <= 0 is treated as 1.
func New(cores int) *Runner {
	if cores <= 0 {
		cores = 1
	}
	return &Runner{cores: cores}
}

// Cores returns the configured parallelism.
func (r *Runner) Cores() int { return r.cores }

// ParallelFor partitions [0, n) into chunks of size chunk (default
// ceil(n/Cores) when chunk <= 0) and runs fn over each [start, end)
// range concurrently, bounded by Cores in flight. It returns the first
// error any chunk produced, after every chunk has either completed or
// been abandoned by ctx cancellation. No chunk's fn is invoked after
// ParallelFor returns.
func (r *Runner) ParallelFor(ctx context.Context, n int, chunk int, fn func(ctx context.Context, start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = (n + r.cores - 1) / r.cores
	}
	if chunk <= 0 {
		chunk = n
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cores)

	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		start, end := start, end
		g.Go(func() error {
			if err := fn(gctx, start, end); err != nil {
				return fmt.Errorf("taskrunner: chunk [%d,%d): %w", start, end, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ParallelForIndex is a convenience wrapper over ParallelFor for
// kernels that operate one index at a time rather than on ranges.
func (r *Runner) ParallelForIndex(ctx context.Context, n int, chunk int, fn func(ctx context.Context, i int) error) error {
	return r.ParallelFor(ctx, n, chunk, func(ctx context.Context, start, end int) error {
		for i := start; i < end; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
}
