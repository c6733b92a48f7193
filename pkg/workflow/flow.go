package workflow

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/store"
)

// FlowOption configures a Flow and the flow variants built on it.
type FlowOption func(*Flow)

// WithObserver sets the observer notified at run and stage boundaries.
func WithObserver(obs Observer) FlowOption {
	return func(f *Flow) {
		if obs != nil {
			f.observer = obs
		}
	}
}

// WithLogger sets the logger used for the flow's routing diagnostics.
func WithLogger(logger *zap.Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
			f.BaseNode.logger = logger
		}
	}
}

// RunResult is the outcome of an asynchronously launched run.
type RunResult struct {
	Action Action
	Err    error
}

// Flow orchestrates sequential traversal of a node graph from a start node
// until termination. A Flow is itself a Node, so flows nest as sub-graphs:
// when reached during a parent's traversal, the nested flow runs its whole
// graph and its last action routes the parent.
type Flow struct {
	*BaseNode
	start    Node
	observer Observer
	logger   *zap.Logger
}

// flowNode is implemented by flow variants so a parent traversal can run
// them with their own semantics instead of the plain node lifecycle.
// params are the parent's effective params for this step; they become the
// nested traversal's defaults. setNodeParams is inherited from the parent:
// a sub-flow reached by a concurrent traversal must not mutate its nodes
// either.
type flowNode interface {
	runNested(ctx context.Context, shared *store.Store, params Params, run RunInfo, setNodeParams bool) (Action, error)
}

// NewFlow creates a Flow that starts traversal at start.
func NewFlow(name string, start Node, opts ...FlowOption) *Flow {
	f := &Flow{
		BaseNode: NewBaseNode(name),
		start:    start,
		observer: NoopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Start returns the flow's start node.
func (f *Flow) Start() Node { return f.start }

// Exec implements Node for nesting purposes only; invoking it directly is
// an error.
func (f *Flow) Exec(ctx context.Context, prepResult any) (any, error) {
	return nil, ErrExecNotSupported
}

// Run drives the graph from the start node until termination and returns
// the last action produced. Each call restarts from the start node; the
// shared store is supplied fresh by the caller.
func (f *Flow) Run(ctx context.Context, shared *store.Store) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	run := RunInfo{RunID: uuid.NewString(), Flow: f.name, Iteration: -1}
	rctx := f.observer.RunStarted(ctx, run)
	action, err := f.orchestrate(rctx, shared, f.Params(), run, true)
	f.observer.RunFinished(rctx, run, action, err)
	return action, err
}

// RunAsync launches Run on its own goroutine and delivers the single
// RunResult on the returned channel. Cancel ctx to abandon the run; store
// mutations already committed are retained.
func (f *Flow) RunAsync(ctx context.Context, shared *store.Store) <-chan RunResult {
	ch := make(chan RunResult, 1)
	go func() {
		action, err := f.Run(ctx, shared)
		ch <- RunResult{Action: action, Err: err}
	}()
	return ch
}

func (f *Flow) runNested(ctx context.Context, shared *store.Store, params Params, run RunInfo, setNodeParams bool) (Action, error) {
	if f.start == nil {
		return NoAction, ErrNoStartNode
	}
	return f.orchestrate(ctx, shared, params, run, setNodeParams)
}

// orchestrate is the sequential state machine: inject params into the
// current node, run its lifecycle, route on the returned action. It ends on
// NoAction, on a routing miss, or at a leaf. params are the flow-level
// defaults for this traversal; each node's explicit params override them.
//
// setNodeParams controls whether the merged defaults are also stored on the
// node itself. Sequential traversals do this so a node's own Params reflect
// the current iteration; concurrent traversals share node instances and
// must leave them untouched, carrying params on the context only.
func (f *Flow) orchestrate(ctx context.Context, shared *store.Store, params Params, run RunInfo, setNodeParams bool) (Action, error) {
	current := f.start
	last := NoAction
	for current != nil {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		effective := MergeParams(params, current.explicitParams())
		if setNodeParams {
			current.setRunParams(params)
		}
		nctx := withParams(ctx, effective)

		var action Action
		var err error
		if sub, ok := current.(flowNode); ok {
			action, err = sub.runNested(nctx, shared, effective, run, setNodeParams)
		} else {
			action, err = runNode(nctx, current, shared, run, f.observer)
		}
		if err != nil {
			return last, err
		}
		last = action

		if action == NoAction {
			return last, nil
		}
		successors := current.Successors()
		next, ok := successors[action]
		if !ok {
			if len(successors) > 0 {
				f.logger.Warn("flow ends: no successor for action",
					zap.String("flow", f.name),
					zap.String("node", current.Name()),
					zap.String("action", string(action)))
			}
			return last, nil
		}
		current = next
	}
	return last, nil
}
