package limiter

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds how many deletions are in flight at once
// Tracks current and peak occupancy so callers can report on it
type Limiter struct {
	sem     *semaphore.Weighted
	permits int64
	active  atomic.Int64
	peak    atomic.Int64
}

// New creates a limiter with the given number of permits (minimum 1)
func New(permits int) *Limiter {
	if permits <= 0 {
		permits = 1
	}
	return &Limiter{
		sem:     semaphore.NewWeighted(int64(permits)),
		permits: int64(permits),
	}
}

// Acquire blocks until a permit is free or ctx is done
func (l *Limiter) Acquire(ctx context.Context) error {
	// semaphore.Acquire may still succeed on a done context
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := l.active.Add(1)
	for {
		old := l.peak.Load()
		if n <= old || l.peak.CompareAndSwap(old, n) {
			break
		}
	}
	return nil
}

// Release returns a permit taken by Acquire
func (l *Limiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Permits returns the configured number of permits
func (l *Limiter) Permits() int { return int(l.permits) }

// Active returns the number of permits currently held
func (l *Limiter) Active() int { return int(l.active.Load()) }

// Peak returns the highest number of permits held at once
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
