// Package workpool runs blocking filesystem work on a fixed set of workers,
// each pinned to its own OS thread for the duration of a job.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var (
	// ErrRejected is returned when a job was never accepted by the pool.
	ErrRejected = errors.New("job rejected by worker pool")
	// ErrPanic is returned when a job panicked.
	ErrPanic = errors.New("job panicked")

	errClosed = errors.New("pool closed")
)

type job struct {
	fn   func() error
	done chan error
}

// Pool is a fixed-size set of workers fed from a bounded queue.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines. workers <= 0 means runtime.NumCPU();
// queue <= 0 means four slots per worker.
func New(workers, queue int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for j := range p.jobs {
		j.done <- safeCall(j.fn)
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}

// Execute queues fn and blocks until it has run, returning its error.
// Once a job is accepted it always runs to completion; ctx only bounds the
// wait for a queue slot.
func (p *Pool) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	j := job{fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("%w: %w", ErrRejected, errClosed)
	}
	select {
	case p.jobs <- j:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return fmt.Errorf("%w: %w", ErrRejected, ctx.Err())
	}

	return <-j.done
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
