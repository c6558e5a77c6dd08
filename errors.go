package uberjob

import (
	"errors"
	"fmt"
)

// ErrNotTransformed is returned by a Registry-sourced placeholder's Call
// if it is ever invoked directly, which indicates a bug in the
// transformer or a plan that bypassed Run.
var ErrNotTransformed = errors.New("uberjob: source placeholder invoked directly; the plan was not transformed against its registry")

// ErrCycleDetected is wrapped by TransformerError when the physical plan
// contains a directed cycle across any edge kind.
var ErrCycleDetected = errors.New("uberjob: cycle detected in physical plan")

// ErrOutputUnreachable is wrapped by TransformerError when a requested
// output node does not belong to the plan being transformed.
var ErrOutputUnreachable = errors.New("uberjob: requested output does not belong to this plan")

// ConstructionError is raised synchronously from plan-builder operations:
// signature mismatch on Call, duplicate registry entry, a cross-plan
// edge, or a reference to a node that does not exist.
type ConstructionError struct {
	Op  string
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("uberjob: construction error in %s: %v", e.Op, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// TransformerError is raised before scheduling: cycle detected, or the
// requested output is not reachable.
type TransformerError struct {
	Err error
}

func (e *TransformerError) Error() string {
	return fmt.Sprintf("uberjob: transformer error: %v", e.Err)
}

func (e *TransformerError) Unwrap() error { return e.Err }

// CallError wraps an error raised by a user function or a ValueStore
// operation during execution. It carries the failing node's identity and
// its symbolic traceback; the original error is preserved as the cause.
type CallError struct {
	Node   *Node
	Cause  error
	frames []StackFrame
}

func newCallError(n *Node, cause error) *CallError {
	return &CallError{Node: n, Cause: cause, frames: n.frames}
}

func (e *CallError) Error() string {
	name := "<node>"
	if e.Node != nil {
		if fn, ok := e.Node.Fn(); ok {
			name = fn.Name
		}
	}
	return fmt.Sprintf("uberjob: call to %s failed: %v\n%s", name, e.Cause, renderSymbolicTraceback(e.frames))
}

func (e *CallError) Unwrap() error { return e.Cause }

// SymbolicTraceback renders the failing node's construction-site stack.
func (e *CallError) SymbolicTraceback() string {
	return renderSymbolicTraceback(e.frames)
}
