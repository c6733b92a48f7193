// Package workflow provides a minimal graph-based orchestration engine:
// nodes connected by named actions, executed against a shared store, with
// sequential, batched, and concurrently-batched flow variants.
//
// # Nodes
//
// A node is a graph vertex with a three-stage lifecycle. Prep gathers input
// from the shared store, Exec computes, Post writes results back and
// returns the routing action. Concrete nodes embed *BaseNode and override
// only the stages they need; the defaults are prep → nil, exec → identity,
// post → DefaultAction. Exec runs under an optional retry budget
// (WithMaxRetries, WithRetryWait) with an ExecFallback hook consulted after
// the last attempt.
//
// A node implementing ItemExecutor is a batch node: its prep result is
// treated as a sequence and ItemExec is applied once per element, in input
// order, with the retry budget applied per element.
//
// # Wiring
//
// Connect and ConnectDefault register successors and return the added node,
// so straight-line paths chain left to right:
//
//	load.ConnectDefault(transform).ConnectDefault(save)
//	check.When("invalid").Then(reject)
//
// Registering a successor for an occupied action overwrites it and logs a
// warning.
//
// # Flows
//
// A Flow drives traversal from its start node: inject params, run the
// node's lifecycle, look the returned action up in the node's successors,
// repeat. The run terminates when a node returns NoAction, when the action
// has no matching successor (a warning when other successors exist, silence
// at a leaf), and the last action produced is the run's result. Flows
// implement Node, so a flow can be wired into another flow as a sub-graph.
//
// Flow-level params are defaults; a node's explicit params take precedence.
// The effective params for each step are also carried on the context and
// read with Param or ParamsFromContext.
//
// # Batch flows
//
// BatchFlow obtains a sequence of parameter sets from its batch-preparation
// hook and orchestrates the whole graph once per set, sequentially, against
// the same store. ParallelBatchFlow launches the iterations concurrently
// instead, optionally bounded by a limiter, and fails fast: the first fault
// cancels the remaining iterations and becomes the run's error. Because
// concurrent iterations share the store, cross-iteration aggregation must
// use the store's atomic Update or Append operations.
//
// # Cancellation and observability
//
// Every stage receives a context.Context; cancelling it abandons the run
// and keeps whatever store mutations had already committed. The engine does
// no I/O of its own: an Observer receives callbacks at run and stage
// boundaries, and logging, tracing, and event publication are observer
// implementations (see the observe and events packages).
package workflow
