package callx

import "context"

// Func is the shape of a wrapped operation: a context-aware call taking a
// single input and producing a value or an error. Operations with multiple
// logical arguments use a struct or tuple-like input type.
type Func[A, T any] func(ctx context.Context, in A) (T, error)

// outcome is one delivered result: a value or an error, never both
// meaningful at once.
type outcome[T any] struct {
	val T
	err error
}

// pending represents one caller parked while a primitive is busy. It is
// resolved exactly once; the buffered channel lets the resolver proceed
// even if the waiter abandoned its wait.
type pending[T any] struct {
	ch chan outcome[T]
}

func newPending[T any]() *pending[T] {
	return &pending[T]{ch: make(chan outcome[T], 1)}
}

// resolve delivers the outcome. Must be called at most once per pending.
func (p *pending[T]) resolve(val T, err error) {
	p.ch <- outcome[T]{val, err}
}

// wait blocks until the pending is resolved or ctx is cancelled. On
// cancellation the caller gets ctx.Err(); the shared execution is not
// affected and the eventual resolution is discarded.
func (p *pending[T]) wait(ctx context.Context) (T, error) {
	select {
	case res := <-p.ch:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// resolveAll delivers one shared outcome to every pending in the slice.
func resolveAll[T any](ps []*pending[T], val T, err error) {
	for _, p := range ps {
		p.resolve(val, err)
	}
}
