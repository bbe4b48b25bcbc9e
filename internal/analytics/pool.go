package analytics

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many analytics computations run at once so a burst of
// report requests cannot starve ingestion of CPU.
type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	running atomic.Int64
}

// NewPool creates a pool of the given size; size <= 0 means NumCPU.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Do runs fn once a slot is free, or returns ctx's error if it is cancelled
// while waiting.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	p.running.Add(1)
	defer p.running.Add(-1)
	return fn()
}

// Size returns the number of slots.
func (p *Pool) Size() int64 {
	return p.size
}

// Running returns the number of computations in progress.
func (p *Pool) Running() int64 {
	return p.running.Load()
}
