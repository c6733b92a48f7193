package workflow

import (
	"context"
)

// Stage identifies one of the three lifecycle stages of a node execution.
type Stage string

const (
	StagePrep Stage = "prep"
	StageExec Stage = "exec"
	StagePost Stage = "post"
)

// RunInfo identifies a single flow run. Iteration is the batch iteration
// index, or -1 outside batch execution.
type RunInfo struct {
	RunID     string
	Flow      string
	Iteration int
}

// StageInfo identifies a single stage execution. Item is the batch element
// index for element-wise exec, or -1 otherwise.
type StageInfo struct {
	Run   RunInfo
	Node  string
	Stage Stage
	Item  int
}

// Observer receives callbacks at run and stage boundaries. The engine never
// performs I/O of its own; logging, tracing, and event publication are all
// observer implementations.
//
// The Started callbacks may derive a new context (for example to carry a
// span); the engine threads the returned context into the matching Finished
// callback and into the observed work.
type Observer interface {
	RunStarted(ctx context.Context, run RunInfo) context.Context
	RunFinished(ctx context.Context, run RunInfo, action Action, err error)
	StageStarted(ctx context.Context, stage StageInfo) context.Context
	StageFinished(ctx context.Context, stage StageInfo, err error)
}

// NoopObserver ignores every callback. It is the default observer.
type NoopObserver struct{}

func (NoopObserver) RunStarted(ctx context.Context, run RunInfo) context.Context { return ctx }

func (NoopObserver) RunFinished(ctx context.Context, run RunInfo, action Action, err error) {}

func (NoopObserver) StageStarted(ctx context.Context, stage StageInfo) context.Context { return ctx }

func (NoopObserver) StageFinished(ctx context.Context, stage StageInfo, err error) {}

// MultiObserver fans callbacks out to several observers in order. Contexts
// derived by earlier observers are passed to later ones.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) RunStarted(ctx context.Context, run RunInfo) context.Context {
	for _, o := range m {
		ctx = o.RunStarted(ctx, run)
	}
	return ctx
}

func (m multiObserver) RunFinished(ctx context.Context, run RunInfo, action Action, err error) {
	for _, o := range m {
		o.RunFinished(ctx, run, action, err)
	}
}

func (m multiObserver) StageStarted(ctx context.Context, stage StageInfo) context.Context {
	for _, o := range m {
		ctx = o.StageStarted(ctx, stage)
	}
	return ctx
}

func (m multiObserver) StageFinished(ctx context.Context, stage StageInfo, err error) {
	for _, o := range m {
		o.StageFinished(ctx, stage, err)
	}
}
