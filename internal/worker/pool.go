// Package worker provides an ordered fan-out/fan-in helper for per-file work
// such as hashing the source and destination trees.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Result pairs a processed value with its original index to preserve ordering.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool fans out work items to a fixed number of goroutine workers and
// collects results in input order. Unlike an errgroup, one failing item does
// not stop the others; each error is kept on its own Result.
type Pool[In, Out any] struct {
	concurrency int
}

// NewPool creates a worker pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool[In, Out any](concurrency int) *Pool[In, Out] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[In, Out]{concurrency: concurrency}
}

// Process applies fn to every item and returns the results in input order.
// Items not yet started when ctx is cancelled get ctx.Err() as their error.
func (p *Pool[In, Out]) Process(ctx context.Context, items []In, fn func(context.Context, In) (Out, error)) []Result[Out] {
	if len(items) == 0 {
		return nil
	}

	workers := min(p.concurrency, len(items))
	jobs := make(chan int)
	results := make([]Result[Out], len(items))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := Result[Out]{Index: i}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.Value, res.Err = fn(ctx, items[i])
				}
				results[i] = res
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
