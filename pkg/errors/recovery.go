package errors

import (
	"fmt"
	"runtime/debug"
)

// FromPanic wraps a value recovered from a panic as ErrInternal. The stack
// of the panicking goroutine is kept under the "stack" detail and never
// reaches the response envelope.
func FromPanic(v any) *Error {
	if v == nil {
		return nil
	}
	cause, ok := v.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", v)
	}
	return ErrInternal.WithCause(cause).WithDetail("stack", string(debug.Stack()))
}
