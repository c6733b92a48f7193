package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wehubfusion/Daedalus/pkg/store"
)

// BatchPrepFunc yields one parameter set per iteration of a batch flow.
// A nil or empty result means zero iterations, not an error.
type BatchPrepFunc func(ctx context.Context, shared *store.Store) ([]Params, error)

// BatchFinalizeFunc is an optional closing stage a batch flow runs once
// after every iteration has completed, over the accumulated store.
type BatchFinalizeFunc func(ctx context.Context, shared *store.Store) (Action, error)

// BatchFlow re-runs its graph once per prepared parameter set, in order,
// against the same shared store, so aggregation accumulates across the
// whole batch. Iteration params are merged over the flow's base params;
// a node's explicit params still win over both.
type BatchFlow struct {
	*Flow
	prepBatch BatchPrepFunc
	finalize  BatchFinalizeFunc
}

// NewBatchFlow creates a BatchFlow. prep may be nil, in which case the
// start node must implement BatchPreparer; with neither, the flow runs zero
// iterations.
func NewBatchFlow(name string, start Node, prep BatchPrepFunc, opts ...FlowOption) *BatchFlow {
	return &BatchFlow{
		Flow:      NewFlow(name, start, opts...),
		prepBatch: prep,
	}
}

// OnFinish registers the optional closing finalize stage and returns the
// flow for chaining.
func (f *BatchFlow) OnFinish(fn BatchFinalizeFunc) *BatchFlow {
	f.finalize = fn
	return f
}

// Run executes every iteration sequentially and returns the last action
// produced, or the finalize stage's action when one is registered.
func (f *BatchFlow) Run(ctx context.Context, shared *store.Store) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	run := RunInfo{RunID: uuid.NewString(), Flow: f.name, Iteration: -1}
	rctx := f.observer.RunStarted(ctx, run)
	action, err := f.runBatch(rctx, shared, f.Params(), run, true)
	f.observer.RunFinished(rctx, run, action, err)
	return action, err
}

// RunAsync launches Run on its own goroutine and delivers the single
// RunResult on the returned channel.
func (f *BatchFlow) RunAsync(ctx context.Context, shared *store.Store) <-chan RunResult {
	ch := make(chan RunResult, 1)
	go func() {
		action, err := f.Run(ctx, shared)
		ch <- RunResult{Action: action, Err: err}
	}()
	return ch
}

func (f *BatchFlow) runNested(ctx context.Context, shared *store.Store, params Params, run RunInfo, setNodeParams bool) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	return f.runBatch(ctx, shared, params, run, setNodeParams)
}

func (f *BatchFlow) paramSets(ctx context.Context, shared *store.Store) ([]Params, error) {
	if f.prepBatch != nil {
		return f.prepBatch(ctx, shared)
	}
	if preparer, ok := f.start.(BatchPreparer); ok {
		return preparer.PrepBatch(ctx, shared)
	}
	return nil, nil
}

func (f *BatchFlow) runBatch(ctx context.Context, shared *store.Store, base Params, run RunInfo, setNodeParams bool) (Action, error) {
	sets, err := f.paramSets(ctx, shared)
	if err != nil {
		return NoAction, fmt.Errorf("batch prep: %w", err)
	}

	last := NoAction
	for i, iterParams := range sets {
		iter := run
		iter.Iteration = i
		action, err := f.orchestrate(ctx, shared, MergeParams(base, iterParams), iter, setNodeParams)
		if err != nil {
			return last, err
		}
		last = action
	}

	if f.finalize != nil {
		action, err := f.finalize(ctx, shared)
		if err != nil {
			return last, err
		}
		last = action
	}
	return last, nil
}
