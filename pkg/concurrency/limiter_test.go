package concurrency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wehubfusion/Daedalus/pkg/concurrency"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	const limit = 4
	const workers = 20

	l := concurrency.NewLimiter(limit)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer l.Release()
			time.Sleep(2 * time.Millisecond)
		}()
	}
	wg.Wait()

	stats := l.Stats()
	if stats.Peak > limit {
		t.Errorf("peak = %d, limit %d", stats.Peak, limit)
	}
	if stats.Acquired != workers {
		t.Errorf("acquired = %d, want %d", stats.Acquired, workers)
	}
	if stats.Active != 0 {
		t.Errorf("active = %d after all released", stats.Active)
	}
}

func TestAcquireRespectsCancellation(t *testing.T) {
	l := concurrency.NewLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err != context.DeadlineExceeded {
		t.Errorf("blocked Acquire returned %v, want deadline exceeded", err)
	}
}

func TestTryAcquire(t *testing.T) {
	l := concurrency.NewLimiter(1)
	if !l.TryAcquire() {
		t.Fatal("TryAcquire failed on an empty limiter")
	}
	if l.TryAcquire() {
		t.Error("TryAcquire succeeded past the limit")
	}
	l.Release()
	if !l.TryAcquire() {
		t.Error("TryAcquire failed after Release")
	}
}

func TestGoReleasesWhenDone(t *testing.T) {
	l := concurrency.NewLimiter(1)
	done := make(chan struct{})
	if err := l.Go(context.Background(), func() { close(done) }); err != nil {
		t.Fatalf("Go: %v", err)
	}
	<-done

	deadline := time.After(time.Second)
	for l.CurrentActive() != 0 {
		select {
		case <-deadline:
			t.Fatal("slot not released after fn returned")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestZeroLimitIsClampedToOne(t *testing.T) {
	l := concurrency.NewLimiter(0)
	if !l.TryAcquire() {
		t.Fatal("clamped limiter rejected its single slot")
	}
	if l.TryAcquire() {
		t.Error("clamped limiter allowed a second slot")
	}
}
