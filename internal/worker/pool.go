package worker

import (
	"context"
	"runtime"
	"sync"
)

// maxDefaultSize caps the default pool size on large hosts.
const maxDefaultSize = 8

// DefaultSize returns the default pool size: the lesser of 8 and the host's
// available parallelism.
func DefaultSize() int {
	n := runtime.NumCPU()
	if n > maxDefaultSize {
		return maxDefaultSize
	}
	if n < 1 {
		return 1
	}
	return n
}

// Pool runs independent tasks with bounded concurrency. Tasks are addressed
// by index, so a caller that writes results into a pre-allocated slice gets
// submission-order results for free: slot i is written only by the goroutine
// running task i, no matter which task finishes first.
type Pool struct {
	size int
}

// NewPool creates a pool. A non-positive size falls back to DefaultSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultSize()
	}
	return &Pool{size: size}
}

// Size returns the concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Run invokes fn exactly once for every index in [0, n) with at most
// p.size invocations in flight, and blocks until all of them return.
// A failing task records its own failure; Run never skips or cancels
// siblings and always drains the pool before returning.
func (p *Pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	sem := make(chan struct{}, p.size)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fn(ctx, idx)
		}(i)
	}

	wg.Wait()
}
