package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wehubfusion/Daedalus/pkg/concurrency"
	"github.com/wehubfusion/Daedalus/pkg/store"
)

// ParallelBatchFlow runs one graph traversal per prepared parameter set,
// concurrently, against the same shared store. Within one iteration the
// prep → exec → post order is preserved; across iterations there is no
// ordering. The run completes when every iteration has finished, or
// fail-fast when one faults: the first fault cancels the siblings, the
// already-running ones are awaited, and that fault is the run's error.
//
// Node instances are shared by concurrent iterations, so iteration params
// are carried on the context; node authors read them with Param or
// ParamsFromContext. Cross-iteration aggregation must go through the
// store's atomic Update or Append.
type ParallelBatchFlow struct {
	*BatchFlow
	maxConcurrent int
}

// NewParallelBatchFlow creates a ParallelBatchFlow. By default every
// iteration gets its own goroutine; bound the fan-out with MaxConcurrent.
func NewParallelBatchFlow(name string, start Node, prep BatchPrepFunc, opts ...FlowOption) *ParallelBatchFlow {
	return &ParallelBatchFlow{
		BatchFlow: NewBatchFlow(name, start, prep, opts...),
	}
}

// MaxConcurrent bounds the number of simultaneously running iterations and
// returns the flow for chaining. Zero or negative means unbounded.
func (f *ParallelBatchFlow) MaxConcurrent(n int) *ParallelBatchFlow {
	f.maxConcurrent = n
	return f
}

// OnFinish registers the optional closing finalize stage and returns the
// flow for chaining.
func (f *ParallelBatchFlow) OnFinish(fn BatchFinalizeFunc) *ParallelBatchFlow {
	f.finalize = fn
	return f
}

// Run executes every iteration concurrently and blocks until all have
// completed or the first fault has been surfaced. On success it returns the
// finalize stage's action when one is registered, DefaultAction otherwise;
// a last action across unordered iterations would be meaningless.
func (f *ParallelBatchFlow) Run(ctx context.Context, shared *store.Store) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	run := RunInfo{RunID: uuid.NewString(), Flow: f.name, Iteration: -1}
	rctx := f.observer.RunStarted(ctx, run)
	action, err := f.runParallel(rctx, shared, f.Params(), run)
	f.observer.RunFinished(rctx, run, action, err)
	return action, err
}

// RunAsync launches Run on its own goroutine and delivers the single
// RunResult on the returned channel.
func (f *ParallelBatchFlow) RunAsync(ctx context.Context, shared *store.Store) <-chan RunResult {
	ch := make(chan RunResult, 1)
	go func() {
		action, err := f.Run(ctx, shared)
		ch <- RunResult{Action: action, Err: err}
	}()
	return ch
}

// runNested ignores setNodeParams: iterations here are always concurrent,
// so node instances are never mutated regardless of the enclosing mode.
func (f *ParallelBatchFlow) runNested(ctx context.Context, shared *store.Store, params Params, run RunInfo, _ bool) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	return f.runParallel(ctx, shared, params, run)
}

func (f *ParallelBatchFlow) runParallel(ctx context.Context, shared *store.Store, base Params, run RunInfo) (Action, error) {
	sets, err := f.paramSets(ctx, shared)
	if err != nil {
		return NoAction, fmt.Errorf("batch prep: %w", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *concurrency.Limiter
	if f.maxConcurrent > 0 {
		limiter = concurrency.NewLimiter(f.maxConcurrent)
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, iterParams := range sets {
		wg.Add(1)
		go func(i int, iterParams Params) {
			defer wg.Done()
			if limiter != nil {
				if err := limiter.Acquire(cctx); err != nil {
					fail(err)
					return
				}
				defer limiter.Release()
			}
			iter := run
			iter.Iteration = i
			if _, err := f.orchestrate(cctx, shared, MergeParams(base, iterParams), iter, false); err != nil {
				fail(err)
			}
		}(i, iterParams)
	}
	wg.Wait()

	if firstErr != nil {
		return NoAction, firstErr
	}
	if f.finalize != nil {
		return f.finalize(ctx, shared)
	}
	return DefaultAction, nil
}
