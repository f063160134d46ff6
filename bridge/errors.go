package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for local rejections.
var (
	// ErrToolNotAllowed indicates a call to a tool name absent from the
	// SDK generated for this execution.
	ErrToolNotAllowed = errors.New("bridge: tool not in execution tool set")

	// ErrInvalidArgs indicates arguments that failed schema validation.
	ErrInvalidArgs = errors.New("bridge: invalid tool arguments")

	// ErrCallLimit indicates the per-execution tool call cap was reached.
	ErrCallLimit = errors.New("bridge: tool call limit exceeded")

	// ErrProtocol indicates a malformed or out-of-order wire message.
	ErrProtocol = errors.New("bridge: protocol error")
)

// ToolError wraps a failure reported by the external executor. The
// original cause is carried verbatim, never reinterpreted.
type ToolError struct {
	// Tool is the name of the tool whose invocation failed.
	Tool string

	// Err is the executor's error, unmodified.
	Err error
}

// Error returns the tool name with the executor's message.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Err)
}

// Unwrap returns the executor's original error.
func (e *ToolError) Unwrap() error {
	return e.Err
}
