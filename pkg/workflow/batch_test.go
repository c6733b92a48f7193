package workflow_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/wehubfusion/Daedalus/pkg/store"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

func TestItemExecPreservesOrder(t *testing.T) {
	n := batchNode("doubler")
	n.prep = func(ctx context.Context, shared *store.Store) (any, error) {
		return []int{1, 2, 3, 4}, nil
	}
	n.item = func(ctx context.Context, item any) (any, error) {
		return item.(int) * 2, nil
	}
	var results any
	n.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		results = execResult
		return workflow.NoAction, nil
	}

	if _, err := workflow.Run(context.Background(), n, store.New()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []any{2, 4, 6, 8}; !reflect.DeepEqual(results, want) {
		t.Errorf("results = %v, want %v", results, want)
	}
}

func TestItemExecEmptyPrepYieldsEmptyResults(t *testing.T) {
	n := batchNode("empty")
	n.prep = func(ctx context.Context, shared *store.Store) (any, error) {
		return []any{}, nil
	}
	called := false
	n.item = func(ctx context.Context, item any) (any, error) {
		called = true
		return item, nil
	}
	var results any
	n.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		results = execResult
		return workflow.NoAction, nil
	}

	if _, err := workflow.Run(context.Background(), n, store.New()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if called {
		t.Error("ItemExec ran for an empty sequence")
	}
	got, ok := results.([]any)
	if !ok || len(got) != 0 {
		t.Errorf("results = %v, want empty slice", results)
	}
}

func TestItemExecFaultCarriesIndex(t *testing.T) {
	n := batchNode("faulty")
	n.prep = func(ctx context.Context, shared *store.Store) (any, error) {
		return []string{"ok", "bad", "never"}, nil
	}
	seen := 0
	n.item = func(ctx context.Context, item any) (any, error) {
		seen++
		if item == "bad" {
			return nil, errors.New("rotten")
		}
		return item, nil
	}

	_, err := workflow.Run(context.Background(), n, store.New())
	var stageErr *workflow.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("err = %v, want StageError", err)
	}
	if stageErr.Item != 1 {
		t.Errorf("failing item index = %d, want 1", stageErr.Item)
	}
	if seen != 2 {
		t.Errorf("items executed = %d, want 2 (stop at the fault)", seen)
	}
}

func TestBatchFlowRunsOncePerParamSet(t *testing.T) {
	worker := node("picker")
	worker.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		shared.Append("picked", worker.Param(ctx, "fruit"))
		return workflow.DefaultAction, nil
	}

	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{
			{"fruit": "apple"},
			{"fruit": "banana"},
			{"fruit": "grape"},
		}, nil
	}

	flow := workflow.NewBatchFlow("orchard", worker, prep)
	shared := store.New()
	action, err := flow.Run(context.Background(), shared)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if action != workflow.DefaultAction {
		t.Errorf("last action = %q", action)
	}
	want := []any{"apple", "banana", "grape"}
	if got := shared.Get("picked"); !reflect.DeepEqual(got, want) {
		t.Errorf("picked = %v, want %v", got, want)
	}
}

func TestBatchFlowZeroIterations(t *testing.T) {
	worker := node("idle")
	ran := false
	worker.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		ran = true
		return workflow.NoAction, nil
	}

	flow := workflow.NewBatchFlow("empty", worker, nil)
	action, err := flow.Run(context.Background(), store.New())
	if err != nil {
		t.Fatalf("zero iterations must not be an error, got %v", err)
	}
	if action != workflow.NoAction {
		t.Errorf("action = %q, want NoAction", action)
	}
	if ran {
		t.Error("graph ran without parameter sets")
	}
}

func TestBatchFlowUsesStartNodePreparer(t *testing.T) {
	worker := &preparerNode{funcNode: node("self-prep")}
	worker.batch = func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{{"n": 1}, {"n": 2}}, nil
	}
	worker.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		shared.Append("ns", worker.Param(ctx, "n"))
		return workflow.DefaultAction, nil
	}

	flow := workflow.NewBatchFlow("self", worker, nil)
	shared := store.New()
	if _, err := flow.Run(context.Background(), shared); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := shared.Get("ns"); !reflect.DeepEqual(got, []any{1, 2}) {
		t.Errorf("ns = %v", got)
	}
}

func TestBatchFlowPrepErrorAborts(t *testing.T) {
	cause := errors.New("no source")
	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return nil, cause
	}

	flow := workflow.NewBatchFlow("broken", node("idle"), prep)
	if _, err := flow.Run(context.Background(), store.New()); !errors.Is(err, cause) {
		t.Errorf("err = %v, want wrapped %v", err, cause)
	}
}

func TestBatchFlowIterationParamsReachDownstream(t *testing.T) {
	first := node("first")
	second := node("second")
	second.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		shared.Append("seen", second.Param(ctx, "tag"))
		return workflow.NoAction, nil
	}
	first.ConnectDefault(second)

	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{{"tag": "x"}, {"tag": "y"}}, nil
	}

	flow := workflow.NewBatchFlow("chain", first, prep)
	shared := store.New()
	if _, err := flow.Run(context.Background(), shared); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := shared.Get("seen"); !reflect.DeepEqual(got, []any{"x", "y"}) {
		t.Errorf("seen = %v", got)
	}
}

func TestBatchFlowParamsReachNestedFlowNodes(t *testing.T) {
	inner := node("inner")
	inner.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		shared.Append("tags", inner.Param(ctx, "tag"))
		return workflow.NoAction, nil
	}
	sub := workflow.NewFlow("sub", inner)

	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{{"tag": "x"}, {"tag": "y"}}, nil
	}

	flow := workflow.NewBatchFlow("outer", sub, prep)
	shared := store.New()
	if _, err := flow.Run(context.Background(), shared); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := shared.Get("tags"); !reflect.DeepEqual(got, []any{"x", "y"}) {
		t.Errorf("tags = %v, want iteration params inside the nested flow", got)
	}
}

func TestBatchFlowFinalizeActionWins(t *testing.T) {
	worker := node("worker")
	worker.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		shared.Update("count", func(current any, exists bool) any {
			if !exists {
				return 1
			}
			return current.(int) + 1
		})
		return workflow.DefaultAction, nil
	}

	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{{}, {}, {}}, nil
	}

	flow := workflow.NewBatchFlow("counted", worker, prep).
		OnFinish(func(ctx context.Context, shared *store.Store) (workflow.Action, error) {
			if shared.Get("count") != 3 {
				return workflow.NoAction, errors.New("finalize saw a partial batch")
			}
			return workflow.Action("summarized"), nil
		})

	shared := store.New()
	action, err := flow.Run(context.Background(), shared)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if action != workflow.Action("summarized") {
		t.Errorf("action = %q, want summarized", action)
	}
}

func TestBatchFlowStopsAtFirstFailingIteration(t *testing.T) {
	worker := node("fragile")
	worker.post = func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
		if worker.Param(ctx, "bad") == true {
			return workflow.NoAction, errors.New("spoiled")
		}
		shared.Append("done", worker.Param(ctx, "id"))
		return workflow.DefaultAction, nil
	}

	prep := func(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
		return []workflow.Params{
			{"id": 1},
			{"id": 2, "bad": true},
			{"id": 3},
		}, nil
	}

	flow := workflow.NewBatchFlow("fragile-batch", worker, prep)
	shared := store.New()
	if _, err := flow.Run(context.Background(), shared); err == nil {
		t.Fatal("expected error from the second iteration")
	}
	if got := shared.Get("done"); !reflect.DeepEqual(got, []any{1}) {
		t.Errorf("done = %v, want only the first iteration", got)
	}
}
