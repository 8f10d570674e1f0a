package callx

import (
	"context"
	"sync"
)

// Once wraps fn so that it executes at most one time ever. The first call
// runs fn; every call, concurrent or later, returns that first outcome,
// success or failure. A cached failure is permanent: Once is a
// single-flight-for-lifetime cache, not a retry mechanism.
//
// The execution runs in the first caller's goroutine with the first
// caller's context. Other callers block until it completes; their own ctx
// bounds only their wait, so a caller whose ctx is cancelled gets ctx.Err()
// while the shared execution continues undisturbed.
//
// If fn panics, the panic is re-raised in the first caller's goroutine and
// a *PanicError becomes the permanently cached failure seen by everyone
// else.
func Once[A, T any](fn Func[A, T]) Func[A, T] {
	var (
		mu      sync.Mutex
		started bool
		done    = make(chan struct{})
		val     T
		err     error
	)

	return func(ctx context.Context, in A) (T, error) {
		mu.Lock()
		if !started {
			started = true
			mu.Unlock()

			defer func() {
				if r := recover(); r != nil {
					err = newPanicError(r)
					close(done)
					panic(r)
				}
			}()

			val, err = fn(ctx, in)
			close(done)
			return val, err
		}
		mu.Unlock()

		select {
		case <-done:
			return val, err
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
