package callx

import (
	"context"
	"fmt"
	"runtime"
)

// PanicError wraps a panic recovered inside a shared execution, together
// with the goroutine stack captured at the point of the panic.
//
// Coalescing primitives ([Debouncer], [Latest], [Batcher]) run the wrapped
// function on behalf of several parked callers at once; a raw panic there
// would unwind a goroutine none of them own and leave every waiter parked
// forever. Instead the panic is captured as a *PanicError and delivered to
// the waiting callers as an ordinary error.
type PanicError struct {
	// Value is what the wrapped function passed to panic().
	Value any

	// Stack is the stack trace of the panicking goroutine.
	Stack string
}

// Error formats the panic value followed by the captured stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap reports no cause: a PanicError is a root failure, not a
// wrapper around another error.
func (e *PanicError) Unwrap() error { return nil }

func newPanicError(v any) *PanicError {
	// A fixed 8 KiB buffer covers typical traces; runtime.Stack cuts the
	// output short when it does not fit.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}

// protect invokes fn, converting a panic into a *PanicError returned as
// the call's error.
func protect[A, T any](fn Func[A, T], ctx context.Context, in A) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			val, err = zero, newPanicError(r)
		}
	}()
	return fn(ctx, in)
}
