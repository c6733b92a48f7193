package workflow

import (
	"errors"
	"fmt"
)

// Common errors returned by the engine.
var (
	// ErrNoStartNode is returned when a flow is run without a start node.
	ErrNoStartNode = errors.New("flow has no start node")

	// ErrExecNotSupported is returned when a flow's Exec stage is invoked
	// directly. Flows orchestrate; they are run, not executed.
	ErrExecNotSupported = errors.New("flows cannot exec directly; use Run")
)

// StageError wraps a fault raised inside a node stage with enough context to
// locate it. Stage faults are fatal to the enclosing run and propagate to
// the caller unchanged apart from this wrapping.
type StageError struct {
	// Node is the diagnostic name of the failing node.
	Node string
	// Stage is the lifecycle stage that failed.
	Stage Stage
	// Item is the batch element index, or -1 when not element-wise.
	Item int
	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("node %q: %s stage failed at item %d: %v", e.Node, e.Stage, e.Item, e.Cause)
	}
	return fmt.Sprintf("node %q: %s stage failed: %v", e.Node, e.Stage, e.Cause)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Cause }

func newStageError(node string, stage Stage, item int, cause error) *StageError {
	return &StageError{Node: node, Stage: stage, Item: item, Cause: cause}
}
