// Package concurrency provides semaphore-based concurrency control for
// parallel batch execution, with lightweight observability counters.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of a limiter's counters.
type Metrics struct {
	// Acquired is the total number of successful acquisitions.
	Acquired int64
	// Active is the number of slots currently held.
	Active int64
	// Peak is the highest number of slots held at once.
	Peak int64
	// TotalWait is the cumulative time spent waiting to acquire.
	TotalWait time.Duration
}

// Limiter bounds the number of operations running at once.
type Limiter struct {
	sem      chan struct{}
	active   atomic.Int64
	peak     atomic.Int64
	acquired atomic.Int64
	waitNs   atomic.Int64
}

// NewLimiter creates a limiter allowing at most maxConcurrent concurrent
// holders. Values below 1 are treated as 1.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		l.waitNs.Add(time.Since(start).Nanoseconds())
		l.acquired.Add(1)
		l.updatePeak(l.active.Add(1))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking and reports whether it got one.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.acquired.Add(1)
		l.updatePeak(l.active.Add(1))
		return true
	default:
		return false
	}
}

// Release returns a previously acquired slot.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
		// Release without a matching Acquire; nothing to return.
	}
}

// Go runs fn on its own goroutine once a slot is acquired, releasing the
// slot when fn returns. It blocks only for the acquisition.
func (l *Limiter) Go(ctx context.Context, fn func()) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	go func() {
		defer l.Release()
		fn()
	}()
	return nil
}

// CurrentActive returns the number of slots currently held.
func (l *Limiter) CurrentActive() int64 {
	return l.active.Load()
}

// Stats returns a snapshot of the limiter's counters.
func (l *Limiter) Stats() Metrics {
	return Metrics{
		Acquired:  l.acquired.Load(),
		Active:    l.active.Load(),
		Peak:      l.peak.Load(),
		TotalWait: time.Duration(l.waitNs.Load()),
	}
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := l.peak.Load()
		if current <= peak || l.peak.CompareAndSwap(peak, current) {
			return
		}
	}
}
