// Package flowerr defines the stable error codes surfaced by the flow-graph
// runtime and a small wrapper carrying context and a cause.
package flowerr

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

func (c Code) Error() string { return string(c) }

const (
	// TypeConflict reports an incompatible re-registration of a sample type.
	TypeConflict Code = "type_conflict"
	// SignatureMismatch reports an edge with no pair of agreeing signatures.
	SignatureMismatch Code = "signature_mismatch"
	// AmbiguousSignature reports a block left with multiple viable signatures.
	AmbiguousSignature Code = "ambiguous_signature"
	// FanInConflict reports a second producer connected to an input port.
	FanInConflict Code = "fan_in_conflict"
	// RateMismatch reports a block whose inputs carry inconsistent rates.
	RateMismatch Code = "rate_mismatch"
	// BlockInitFailed reports a block rejecting its resolved signature or rate.
	BlockInitFailed Code = "block_init_failed"
	// BlockRuntimeError reports a fatal failure inside a Process call.
	BlockRuntimeError Code = "block_runtime_error"
	// BufferClosed is end-of-stream on a drained buffer. It is consumed by
	// the worker loop and never surfaces to the user.
	BufferClosed Code = "buffer_closed"

	// Generic is the fallback for errors outside the canonical set.
	Generic Code = "error"
)

// E wraps a Code with the block or edge it concerns and an optional cause.
type E struct {
	C      Code
	Block  string
	Edge   string
	Detail string
	Err    error
}

func (e *E) Error() string {
	msg := string(e.C)
	if e.Block != "" {
		msg += " [block " + e.Block + "]"
	}
	if e.Edge != "" {
		msg += " [edge " + e.Edge + "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *E) Unwrap() error { return e.Err }

// Is makes errors.Is(err, code) match the wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an E with a formatted detail message.
func New(c Code, format string, args ...interface{}) *E {
	return &E{C: c, Detail: fmt.Sprintf(format, args...)}
}

// Block builds an E scoped to a block.
func Block(c Code, block string, err error) *E {
	return &E{C: c, Block: block, Err: err}
}

// Edge builds an E scoped to an edge.
func Edge(c Code, edge string, format string, args ...interface{}) *E {
	return &E{C: c, Edge: edge, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code from anywhere in an error tree, defaulting to
// Generic.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) {
		return e.C
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Generic
}
