// Package workerpool provides bounded-parallelism execution for CPU-bound
// work such as native geometry-kernel calls, which must never run inline on
// a request-handling goroutine.
package workerpool

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	// MaxConcurrent caps in-flight work. Defaults to the CPU core count.
	MaxConcurrent int
}

// Pool manages concurrent execution with a semaphore bound. New work starts
// as slots free up; results are delivered in completion order.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool. A non-positive MaxConcurrent is replaced with the
// number of CPU cores.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = runtime.NumCPU()
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all items with bounded parallelism, continuing through
// individual failures. Results arrive in completion order.
func Process[T any](ctx context.Context, pool *Pool, items []Item[T], onProgress func(completed, total int)) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item Item[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				var zero T
				resultsChan <- Result[T]{ID: item.ID, Result: zero, Err: ctx.Err()}
				return
			}

			result, err := item.Execute(ctx)
			resultsChan <- Result[T]{ID: item.ID, Result: result, Err: err}
		}(item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]Result[T], 0, len(items))
	completed := 0
	for result := range resultsChan {
		results = append(results, result)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}
	return results
}
