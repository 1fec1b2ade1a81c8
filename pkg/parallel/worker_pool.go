// Package parallel provides a small bounded-concurrency ForEach used
// to fan out independent, order-insensitive work items (the wsstore
// bundle transfers) across a worker pool sized by PoolConfig.
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// PoolConfig configures ForEach's worker pool.
type PoolConfig struct {
	// MaxWorkers is the maximum number of concurrent workers.
	// Default: runtime.NumCPU(), clamped to the range [2, 8]
	MaxWorkers int

	// TaskBufferSize is the buffer size for the work-item channel.
	// Default: MaxWorkers * 2
	TaskBufferSize int

	// Timeout is the maximum time for the entire operation.
	// Default: 0 (no timeout)
	Timeout time.Duration
}

// DefaultPoolConfig returns a default pool configuration.
func DefaultPoolConfig() PoolConfig {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8 // Cap at 8 to avoid excessive overhead
	}
	if workers < 2 {
		workers = 2
	}
	return PoolConfig{
		MaxWorkers:     workers,
		TaskBufferSize: workers * 2,
		Timeout:        0,
	}
}

// WithWorkers returns a new config with the specified number of workers.
func (c PoolConfig) WithWorkers(n int) PoolConfig {
	c.MaxWorkers = n
	return c
}

// WithTimeout returns a new config with the specified timeout.
func (c PoolConfig) WithTimeout(d time.Duration) PoolConfig {
	c.Timeout = d
	return c
}

// ForEach executes fn for each item in parallel, bounded by
// config.MaxWorkers. It returns the number of items that completed
// without error and the first error encountered; a canceled ctx or an
// elapsed Timeout stops dispatching further items but does not wait
// for in-flight ones to report an error beyond what they already
// returned.
func ForEach[T any](
	ctx context.Context,
	items []T,
	config PoolConfig,
	fn func(ctx context.Context, item T) error,
) (processed int64, firstError error) {
	if len(items) == 0 {
		return 0, nil
	}

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultPoolConfig().MaxWorkers
	}
	bufferSize := config.TaskBufferSize
	if bufferSize <= 0 {
		bufferSize = maxWorkers * 2
	}
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	itemCh := make(chan int, bufferSize)
	var processedCount atomic.Int64
	var errOnce sync.Once

	numWorkers := maxWorkers
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-itemCh:
					if !ok {
						return
					}
					if err := fn(ctx, items[idx]); err != nil {
						errOnce.Do(func() { firstError = err })
						continue
					}
					processedCount.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i := range items {
			select {
			case <-ctx.Done():
				return
			case itemCh <- i:
			}
		}
	}()

	wg.Wait()
	return processedCount.Load(), firstError
}
