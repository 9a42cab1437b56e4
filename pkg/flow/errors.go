package flow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph mutation and run validation.
var (
	// ErrNodeNotFound indicates an operation referenced a node id that
	// is not in the store.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound indicates an operation referenced an edge id that
	// is not in the store.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrDuplicateID indicates an insert collided with an existing id.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnknownKind indicates a node kind outside the closed set.
	ErrUnknownKind = errors.New("unknown node kind")

	// ErrKindImmutable indicates an attempt to change a node's kind
	// after creation.
	ErrKindImmutable = errors.New("node kind is immutable")

	// ErrInvalidConnection indicates a candidate edge failed the
	// validity gate (endpoints, self-loop, or the kind/handle table).
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrConnectionRefused indicates a candidate edge passed the
	// validity gate but was refused by the acceptance gate (duplicate
	// of an existing edge).
	ErrConnectionRefused = errors.New("connection refused")

	// ErrNotRunnable indicates Run was called on a kind with no run
	// behavior (pure sources).
	ErrNotRunnable = errors.New("node kind is not runnable")

	// ErrAlreadyRunning indicates Run was called on a node whose
	// previous run is still in flight.
	ErrAlreadyRunning = errors.New("node is already running")

	// ErrMissingInput indicates a required input edge is absent or its
	// resolved value is empty.
	ErrMissingInput = errors.New("missing required input")

	// ErrNoProvider indicates the engine has no collaborator configured
	// for the node kind being run.
	ErrNoProvider = errors.New("no provider configured")

	// ErrInvalidTransition indicates a run-status change the state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid run-state transition")
)

// ConnectionError describes why a candidate edge was rejected. It wraps
// ErrInvalidConnection or ErrConnectionRefused so callers can branch on
// the gate that fired.
type ConnectionError struct {
	Source       string
	Target       string
	TargetHandle string
	Reason       string
	Err          error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s -> %s[%s]: %s", e.Source, e.Target, e.TargetHandle, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RunError wraps a failure of one node run with the node and the phase
// that failed.
type RunError struct {
	NodeID string
	Kind   NodeKind
	Op     string // "resolve", "upload", "generate"
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s (%s): %s: %v", e.NodeID, e.Kind, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// BatchError aggregates the sub-call failures of a batch run in which
// every slot failed. Partial failures do not produce a BatchError; the
// run succeeds with the populated subset.
type BatchError struct {
	NodeID string
	Total  int
	Failed int
	Err    error // joined sub-call errors
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch run %s: all %d generations failed: %v", e.NodeID, e.Total, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// TransitionError reports a rejected run-status change.
type TransitionError struct {
	NodeID string
	From   RunStatus
	To     RunStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("node %s: cannot transition %s -> %s", e.NodeID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
