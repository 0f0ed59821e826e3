package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spindrift-labs/statserve/stats"
)

// Machine-readable error kinds. The kind is prefixed onto every failure
// message so callers can distinguish failure classes from the wire text.
const (
	// KindTypeMismatch is returned when a parameter has the wrong kind,
	// including non-finite numbers in a series.
	KindTypeMismatch = "TYPE_MISMATCH"
	// KindEmptyInput is returned for a zero-length sequence parameter.
	KindEmptyInput = "EMPTY_INPUT"
	// KindShapeMismatch is returned when paired series lengths disagree.
	KindShapeMismatch = "SHAPE_MISMATCH"
	// KindInsufficientData is returned when a statistic needs more
	// observations than were supplied.
	KindInsufficientData = "INSUFFICIENT_DATA"
	// KindUnknownOperation is returned for an unregistered tool or an
	// operation name outside the supported set.
	KindUnknownOperation = "UNKNOWN_OPERATION"
	// KindDegenerateInput is returned when a computation is mathematically
	// undefined for the given input.
	KindDegenerateInput = "DEGENERATE_INPUT"
	// KindUpstreamFailure is returned when an outbound data provider call
	// fails or answers with a non-success status.
	KindUpstreamFailure = "UPSTREAM_FAILURE"
	// KindEncodingFailure is internal-only: result serialization failed and
	// was recovered into a generic failure.
	KindEncodingFailure = "ENCODING_FAILURE"
	// KindToolFailed is the generic fallback for faults the taxonomy does
	// not anticipate.
	KindToolFailed = "TOOL_FAILED"
)

// InvokeError is a structured invocation failure that flows from validation
// and handlers to the dispatcher boundary without losing its machine-readable
// kind.
type InvokeError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *InvokeError) Error() string {
	if e == nil {
		return ""
	}
	kind := strings.TrimSpace(e.Kind)
	if kind == "" {
		kind = KindToolFailed
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		return kind
	}
	return fmt.Sprintf("%s: %s", kind, msg)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *InvokeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewInvokeError builds an InvokeError with the given kind and message.
func NewInvokeError(kind, format string, args ...any) *InvokeError {
	return &InvokeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError converts an arbitrary handler error into an InvokeError.
// InvokeError values pass through unchanged; engine sentinels map onto their
// taxonomy kinds; anything else becomes a generic tool failure.
func WrapError(err error) *InvokeError {
	if err == nil {
		return nil
	}
	var invokeErr *InvokeError
	if errors.As(err, &invokeErr) {
		return invokeErr
	}
	switch {
	case errors.Is(err, stats.ErrEmptyInput):
		return &InvokeError{Kind: KindEmptyInput, Cause: err}
	case errors.Is(err, stats.ErrInsufficientData):
		return &InvokeError{Kind: KindInsufficientData, Cause: err}
	case errors.Is(err, stats.ErrShapeMismatch):
		return &InvokeError{Kind: KindShapeMismatch, Cause: err}
	case errors.Is(err, stats.ErrDegenerateInput):
		return &InvokeError{Kind: KindDegenerateInput, Cause: err}
	case errors.Is(err, stats.ErrUnknownOp):
		return &InvokeError{Kind: KindUnknownOperation, Cause: err}
	default:
		return &InvokeError{Kind: KindToolFailed, Message: "Tool failed: " + err.Error(), Cause: err}
	}
}

// KindOf extracts the taxonomy kind from an error, or KindToolFailed when the
// error carries none.
func KindOf(err error) string {
	var invokeErr *InvokeError
	if errors.As(err, &invokeErr) && invokeErr != nil && invokeErr.Kind != "" {
		return invokeErr.Kind
	}
	return KindToolFailed
}
