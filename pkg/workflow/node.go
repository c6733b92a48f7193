package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/store"
)

// Action is a routing label returned by a node's Post stage. The flow looks
// it up in the current node's successors to pick the next node.
type Action string

const (
	// NoAction signals that the run should stop after the current node,
	// regardless of registered successors.
	NoAction Action = ""

	// DefaultAction is the conventional action for straight-line
	// continuation and the key used by ConnectDefault.
	DefaultAction Action = "default"
)

// Params holds node- or flow-level parameters as a string-keyed mapping of
// dynamic values.
type Params map[string]any

// MergeParams returns a new Params with every entry of base, overridden by
// every entry of overlay. Neither input is mutated.
func MergeParams(base, overlay Params) Params {
	merged := make(Params, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// Node is a graph vertex exposing the three-stage execution contract.
//
// Prep reads the shared store and the node's params and returns an
// intermediate value; it should not mutate the store. Exec is a pure
// transformation of the prep result and must not touch the store, which
// keeps it testable in isolation. Post is the only stage that may mutate
// the store; it returns the routing action, or NoAction to stop the run.
//
// Concrete nodes embed *BaseNode and override only the stages they need;
// the defaults are prep → nil, exec → identity, post → DefaultAction.
type Node interface {
	// Name returns the node's diagnostic name.
	Name() string

	// Prep gathers input from the shared store.
	Prep(ctx context.Context, shared *store.Store) (any, error)

	// Exec performs the node's computation on the prep result.
	Exec(ctx context.Context, prepResult any) (any, error)

	// Post writes results back to the shared store and returns the
	// routing action.
	Post(ctx context.Context, shared *store.Store, prepResult, execResult any) (Action, error)

	// ExecFallback is consulted after the exec retry budget is exhausted.
	// The default implementation returns the error unchanged.
	ExecFallback(prepResult any, err error) (any, error)

	// SetParams sets the node's explicit params. Explicit params take
	// precedence over flow-level defaults injected during a run.
	SetParams(params Params)

	// Params returns the node's effective params: flow-injected defaults
	// overridden by explicit ones.
	Params() Params

	// Successors returns the action → successor mapping.
	Successors() map[Action]Node

	// Connect registers next under action and returns next, so chains can
	// be built left to right. Registering over an occupied action
	// overwrites it and logs a warning.
	Connect(action Action, next Node) Node

	// ConnectDefault registers next under DefaultAction and returns next.
	ConnectDefault(next Node) Node

	// When begins a two-step registration: pick the action now, attach the
	// successor with Then.
	When(action Action) *Transition

	setRunParams(params Params)
	explicitParams() Params
	retryPolicy() (attempts int, wait time.Duration)
	nodeLogger() *zap.Logger
}

// ItemExecutor marks a batch node. When a node implements it, the flow
// treats the prep result as a sequence and applies ItemExec once per
// element, in input order, collecting the results into a []any. A nil or
// empty sequence produces an empty result, not an error.
type ItemExecutor interface {
	ItemExec(ctx context.Context, item any) (any, error)
}

// BatchPreparer is the batch-preparation hook a start node may expose.
// Batch flows call it to obtain one parameter set per iteration.
type BatchPreparer interface {
	PrepBatch(ctx context.Context, shared *store.Store) ([]Params, error)
}

// NodeOption configures a BaseNode.
type NodeOption func(*BaseNode)

// WithMaxRetries sets the number of exec attempts before ExecFallback is
// consulted. Values below 1 are treated as 1.
func WithMaxRetries(attempts int) NodeOption {
	return func(n *BaseNode) {
		if attempts < 1 {
			attempts = 1
		}
		n.maxRetries = attempts
	}
}

// WithRetryWait sets the pause between exec attempts.
func WithRetryWait(wait time.Duration) NodeOption {
	return func(n *BaseNode) {
		n.retryWait = wait
	}
}

// WithNodeLogger sets the logger used for the node's wiring diagnostics.
func WithNodeLogger(logger *zap.Logger) NodeOption {
	return func(n *BaseNode) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// BaseNode provides params, successor wiring, retry configuration, and
// default stage implementations. Embed a *BaseNode in every concrete node.
type BaseNode struct {
	name       string
	params     Params
	runParams  Params
	successors map[Action]Node
	maxRetries int
	retryWait  time.Duration
	logger     *zap.Logger
}

// NewBaseNode creates a BaseNode with the given diagnostic name.
func NewBaseNode(name string, opts ...NodeOption) *BaseNode {
	n := &BaseNode{
		name:       name,
		successors: make(map[Action]Node),
		maxRetries: 1,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the node's diagnostic name.
func (n *BaseNode) Name() string { return n.name }

// SetParams sets the node's explicit params.
func (n *BaseNode) SetParams(params Params) { n.params = params }

// Params returns the effective params: flow-injected defaults overridden by
// explicit ones.
func (n *BaseNode) Params() Params {
	if len(n.runParams) == 0 {
		return n.params
	}
	return MergeParams(n.runParams, n.params)
}

// Param resolves a single effective parameter. During a run the orchestrator
// carries the per-step params on the context, which is the only reliable
// source when graph executions run concurrently; outside a run the node's
// own params are consulted.
func (n *BaseNode) Param(ctx context.Context, key string) any {
	if p, ok := ParamsFromContext(ctx); ok {
		if v, ok := p[key]; ok {
			return v
		}
	}
	if v, ok := n.Params()[key]; ok {
		return v
	}
	return nil
}

// Successors returns the action → successor mapping.
func (n *BaseNode) Successors() map[Action]Node { return n.successors }

// Connect registers next under action and returns next. An empty action is
// treated as DefaultAction. Registering over an occupied action overwrites
// the previous successor and logs a warning.
func (n *BaseNode) Connect(action Action, next Node) Node {
	if next == nil {
		return nil
	}
	if action == NoAction {
		action = DefaultAction
	}
	if _, occupied := n.successors[action]; occupied {
		n.logger.Warn("overwriting successor",
			zap.String("node", n.name),
			zap.String("action", string(action)))
	}
	n.successors[action] = next
	return next
}

// ConnectDefault registers next under DefaultAction and returns next.
func (n *BaseNode) ConnectDefault(next Node) Node {
	return n.Connect(DefaultAction, next)
}

// Transition is a pending edge produced by When, waiting for Then.
type Transition struct {
	from   *BaseNode
	action Action
}

// When begins a two-step registration for the given action.
func (n *BaseNode) When(action Action) *Transition {
	return &Transition{from: n, action: action}
}

// Then attaches next under the transition's action and returns next.
func (t *Transition) Then(next Node) Node {
	return t.from.Connect(t.action, next)
}

// Prep is the default prep stage: no input.
func (n *BaseNode) Prep(ctx context.Context, shared *store.Store) (any, error) {
	return nil, nil
}

// Exec is the default exec stage: identity.
func (n *BaseNode) Exec(ctx context.Context, prepResult any) (any, error) {
	return prepResult, nil
}

// Post is the default post stage: no mutation, continue on DefaultAction.
func (n *BaseNode) Post(ctx context.Context, shared *store.Store, prepResult, execResult any) (Action, error) {
	return DefaultAction, nil
}

// ExecFallback is the default fallback: the error propagates.
func (n *BaseNode) ExecFallback(prepResult any, err error) (any, error) {
	return nil, err
}

func (n *BaseNode) setRunParams(params Params) { n.runParams = params }

func (n *BaseNode) explicitParams() Params { return n.params }

func (n *BaseNode) retryPolicy() (int, time.Duration) { return n.maxRetries, n.retryWait }

func (n *BaseNode) nodeLogger() *zap.Logger { return n.logger }
