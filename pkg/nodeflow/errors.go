package nodeflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")
)

// Sentinel errors for execution.
var (
	// ErrMaxVisits indicates a node exceeded the per-run visit limit.
	ErrMaxVisits = errors.New("exceeded maximum visits")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrFlowExec indicates Exec was called directly on a Flow. A Flow's
	// execution is its internal graph; it has no Exec phase of its own.
	ErrFlowExec = errors.New("flow has no exec phase")
)

// NodeError wraps an error with node context.
// Op names the lifecycle phase that failed ("prep", "exec", "fallback",
// "post"). For "exec" and "fallback", Attempts is the number of Exec
// invocations made before giving up.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the lifecycle phase that failed.
	Op string
	// Attempts is the number of Exec attempts made (0 for prep/post).
	Attempts int
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("node %s: %s after %d attempts: %v", e.NodeID, e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a node lifecycle phase.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CycleLimitError indicates a node was visited more than maxVisits times
// within a single run. It is raised by the Flow executor, never by a node.
type CycleLimitError struct {
	// NodeID is the node whose visit count exceeded the limit.
	NodeID string
	// Order is the node's registration ordinal, for disambiguation when the
	// same implementation is registered under several IDs.
	Order int
	// Limit is the configured maximum visit count.
	Limit int
}

// Error implements the error interface.
func (e *CycleLimitError) Error() string {
	return fmt.Sprintf("maximum cycle count (%d) reached for node %s#%d", e.Limit, e.NodeID, e.Order)
}

// Unwrap returns ErrMaxVisits for errors.Is support.
func (e *CycleLimitError) Unwrap() error {
	return ErrMaxVisits
}

// CancellationError captures the state when a run was cancelled.
type CancellationError struct {
	// NodeID is the node that was about to execute or was waiting to retry.
	NodeID string
	// Cause is the underlying cancellation cause (context.Canceled or
	// context.DeadlineExceeded).
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
