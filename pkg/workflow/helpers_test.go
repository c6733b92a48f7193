package workflow_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/wehubfusion/Daedalus/pkg/store"
	"github.com/wehubfusion/Daedalus/pkg/workflow"
)

// funcNode lets a test override any stage with a closure; unset stages keep
// the BaseNode defaults.
type funcNode struct {
	*workflow.BaseNode
	prep     func(ctx context.Context, shared *store.Store) (any, error)
	exec     func(ctx context.Context, prepResult any) (any, error)
	post     func(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error)
	fallback func(prepResult any, err error) (any, error)
}

func node(name string, opts ...workflow.NodeOption) *funcNode {
	return &funcNode{BaseNode: workflow.NewBaseNode(name, opts...)}
}

func (n *funcNode) Prep(ctx context.Context, shared *store.Store) (any, error) {
	if n.prep != nil {
		return n.prep(ctx, shared)
	}
	return n.BaseNode.Prep(ctx, shared)
}

func (n *funcNode) Exec(ctx context.Context, prepResult any) (any, error) {
	if n.exec != nil {
		return n.exec(ctx, prepResult)
	}
	return n.BaseNode.Exec(ctx, prepResult)
}

func (n *funcNode) Post(ctx context.Context, shared *store.Store, prepResult, execResult any) (workflow.Action, error) {
	if n.post != nil {
		return n.post(ctx, shared, prepResult, execResult)
	}
	return n.BaseNode.Post(ctx, shared, prepResult, execResult)
}

func (n *funcNode) ExecFallback(prepResult any, err error) (any, error) {
	if n.fallback != nil {
		return n.fallback(prepResult, err)
	}
	return n.BaseNode.ExecFallback(prepResult, err)
}

// itemNode is a funcNode with element-wise exec.
type itemNode struct {
	*funcNode
	item func(ctx context.Context, item any) (any, error)
}

func batchNode(name string, opts ...workflow.NodeOption) *itemNode {
	return &itemNode{funcNode: node(name, opts...)}
}

func (n *itemNode) ItemExec(ctx context.Context, item any) (any, error) {
	return n.item(ctx, item)
}

// preparerNode is a funcNode exposing the batch-preparation hook.
type preparerNode struct {
	*funcNode
	batch func(ctx context.Context, shared *store.Store) ([]workflow.Params, error)
}

func (n *preparerNode) PrepBatch(ctx context.Context, shared *store.Store) ([]workflow.Params, error) {
	return n.batch(ctx, shared)
}

// recordingObserver captures boundary callbacks in order.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) add(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	copy(out, o.events)
	return out
}

func (o *recordingObserver) RunStarted(ctx context.Context, run workflow.RunInfo) context.Context {
	o.add("run started " + run.Flow)
	return ctx
}

func (o *recordingObserver) RunFinished(ctx context.Context, run workflow.RunInfo, action workflow.Action, err error) {
	if err != nil {
		o.add("run failed " + run.Flow)
		return
	}
	o.add("run finished " + run.Flow)
}

func (o *recordingObserver) StageStarted(ctx context.Context, stage workflow.StageInfo) context.Context {
	o.add(fmt.Sprintf("%s %s started", stage.Node, stage.Stage))
	return ctx
}

func (o *recordingObserver) StageFinished(ctx context.Context, stage workflow.StageInfo, err error) {
	if err != nil {
		o.add(fmt.Sprintf("%s %s failed", stage.Node, stage.Stage))
		return
	}
	o.add(fmt.Sprintf("%s %s finished", stage.Node, stage.Stage))
}
