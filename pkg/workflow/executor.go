package workflow

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/store"
)

type paramsKey struct{}

func withParams(ctx context.Context, params Params) context.Context {
	return context.WithValue(ctx, paramsKey{}, params)
}

// ParamsFromContext returns the effective params the orchestrator attached
// for the current step. Parallel batch iterations share node instances, so
// the context is the authoritative carrier of per-iteration params.
func ParamsFromContext(ctx context.Context) (Params, bool) {
	p, ok := ctx.Value(paramsKey{}).(Params)
	return p, ok
}

// Run executes a single node's prep → exec → post lifecycle against shared
// and returns the action its post stage produced. Successors are ignored;
// a node with successors logs a warning suggesting a Flow.
func Run(ctx context.Context, n Node, shared *store.Store) (Action, error) {
	if len(n.Successors()) > 0 {
		n.nodeLogger().Warn("node won't run successors; wrap it in a Flow",
			zap.String("node", n.Name()))
	}
	run := RunInfo{RunID: uuid.NewString(), Flow: "", Iteration: -1}
	return runNode(withParams(ctx, n.Params()), n, shared, run, NoopObserver{})
}

// runNode drives one node through its three stages, notifying the observer
// at each boundary. Element-wise exec is applied when the node implements
// ItemExecutor.
func runNode(ctx context.Context, n Node, shared *store.Store, run RunInfo, obs Observer) (Action, error) {
	st := StageInfo{Run: run, Node: n.Name(), Stage: StagePrep, Item: -1}
	sctx := obs.StageStarted(ctx, st)
	prepResult, err := n.Prep(sctx, shared)
	obs.StageFinished(sctx, st, err)
	if err != nil {
		return NoAction, newStageError(n.Name(), StagePrep, -1, err)
	}

	var execResult any
	if items, ok := n.(ItemExecutor); ok {
		execResult, err = execBatch(ctx, n, items, prepResult, run, obs)
	} else {
		st = StageInfo{Run: run, Node: n.Name(), Stage: StageExec, Item: -1}
		sctx = obs.StageStarted(ctx, st)
		execResult, err = execWithRetry(sctx, n, prepResult, func(c context.Context) (any, error) {
			return n.Exec(c, prepResult)
		})
		obs.StageFinished(sctx, st, err)
		if err != nil {
			err = newStageError(n.Name(), StageExec, -1, err)
		}
	}
	if err != nil {
		return NoAction, err
	}

	st = StageInfo{Run: run, Node: n.Name(), Stage: StagePost, Item: -1}
	sctx = obs.StageStarted(ctx, st)
	action, err := n.Post(sctx, shared, prepResult, execResult)
	obs.StageFinished(sctx, st, err)
	if err != nil {
		return NoAction, newStageError(n.Name(), StagePost, -1, err)
	}
	return action, nil
}

// execBatch applies ItemExec to every element of the prep result, in input
// order. An empty or nil prep result yields an empty result slice.
func execBatch(ctx context.Context, n Node, exec ItemExecutor, prepResult any, run RunInfo, obs Observer) (any, error) {
	items := asSlice(prepResult)
	results := make([]any, 0, len(items))
	for i, item := range items {
		st := StageInfo{Run: run, Node: n.Name(), Stage: StageExec, Item: i}
		sctx := obs.StageStarted(ctx, st)
		out, err := execWithRetry(sctx, n, item, func(c context.Context) (any, error) {
			return exec.ItemExec(c, item)
		})
		obs.StageFinished(sctx, st, err)
		if err != nil {
			return nil, newStageError(n.Name(), StageExec, i, err)
		}
		results = append(results, out)
	}
	return results, nil
}

// execWithRetry runs call under the node's retry policy and hands the final
// error to ExecFallback once the attempt budget is spent. Cancellation is
// never retried.
func execWithRetry(ctx context.Context, n Node, prepInput any, call func(context.Context) (any, error)) (any, error) {
	attempts, wait := n.retryPolicy()
	if attempts < 1 {
		attempts = 1
	}

	var out any
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		out, err = call(ctx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}
	return n.ExecFallback(prepInput, err)
}

// asSlice normalizes a prep result into a sequence for element-wise exec.
// nil stays empty; non-slice values become a single-element sequence.
func asSlice(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	case []map[string]any:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}
