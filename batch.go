package callx

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type batchConfig[A, T any] struct {
	unbatch                func(inputs []A, out T) []T
	disregardExecutionTime bool
}

// BatchOption configures a [Batcher].
type BatchOption[A, T any] func(*batchConfig[A, T])

// WithUnbatch registers a splitter that decomposes a batched execution's
// output into one output per queued caller, matched positionally to the
// input order. Without it, every queued caller shares the single output.
func WithUnbatch[A, T any](unbatch func(inputs []A, out T) []T) BatchOption[A, T] {
	return func(c *batchConfig[A, T]) {
		c.unbatch = unbatch
	}
}

// WithBatchDisregardExecutionTime mirrors [WithDisregardExecutionTime]
// for a [Batcher]: the next batching window starts purely on the timer,
// without additionally waiting for the current execution to finish.
func WithBatchDisregardExecutionTime[A, T any]() BatchOption[A, T] {
	return func(c *batchConfig[A, T]) {
		c.disregardExecutionTime = true
	}
}

// Batcher aggregates calls arriving during a busy window into a single
// execution of the wrapped function.
//
// The first call of an idle period executes immediately with its own
// arguments. Calls arriving while busy are queued until the trailing
// interval elapses. A lone queued call then runs unbatched with its own
// arguments; two or more are combined by the merge function into one
// input, the function runs once, and the single output is distributed to
// every queued caller (or split per caller, see [WithUnbatch]). A failed
// batched execution rejects every queued caller of that round
// identically.
//
// Instances must be created with [NewBatcher].
type Batcher[A, T any] struct {
	fn       Func[A, T]
	merge    func(inputs []A) A
	interval time.Duration
	cfg      batchConfig[A, T]

	mu    sync.Mutex
	idle  bool
	queue []batchCall[A, T]
}

// batchCall is one queued caller together with its own arguments, kept
// separately so a lone call can run unbatched and so unbatch can match
// outputs positionally.
type batchCall[A, T any] struct {
	in  A
	ctx context.Context
	p   *pending[T]
}

// NewBatcher wraps fn with batching semantics. merge combines the queued
// argument tuples of one window into a single input.
//
// An interval <= 0 degrades to direct pass-through: every call executes
// fn immediately with its own arguments, unbatched.
func NewBatcher[A, T any](fn Func[A, T], merge func(inputs []A) A, interval time.Duration, opts ...BatchOption[A, T]) *Batcher[A, T] {
	if fn == nil {
		panic("callx: NewBatcher requires fn")
	}
	if merge == nil {
		panic("callx: NewBatcher requires a merge function")
	}
	b := &Batcher[A, T]{
		fn:       fn,
		merge:    merge,
		interval: interval,
		idle:     true,
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// Call invokes the batched function. See [Batcher] for the windowing
// rules. ctx bounds this caller's wait when the call is queued; for an
// immediate (leading-edge) execution it is the context fn runs with.
func (b *Batcher[A, T]) Call(ctx context.Context, in A) (T, error) {
	if b.interval <= 0 {
		return b.fn(ctx, in)
	}

	b.mu.Lock()
	if b.idle {
		b.idle = false
		start := time.Now()
		b.mu.Unlock()

		if b.cfg.disregardExecutionTime {
			go b.trail(start)
			return b.fn(ctx, in)
		}

		defer func() { go b.trail(start) }()
		return b.fn(ctx, in)
	}

	p := newPending[T]()
	b.queue = append(b.queue, batchCall[A, T]{in: in, ctx: ctx, p: p})
	b.mu.Unlock()

	return p.wait(ctx)
}

// Pending returns the number of callers queued for the next batching
// window. The value may be stale in concurrent contexts.
func (b *Batcher[A, T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// trail is the trailing-edge driver for one busy period, structured like
// the [Debouncer] driver: one pending wakeup, fire-and-loop until a
// window closes with nothing queued.
func (b *Batcher[A, T]) trail(start time.Time) {
	for {
		if wait := time.Until(start.Add(b.interval)); wait > 0 {
			time.Sleep(wait)
		}

		b.mu.Lock()
		if len(b.queue) == 0 {
			b.idle = true
			b.mu.Unlock()
			return
		}
		queue := b.queue
		b.queue = nil
		start = time.Now()
		b.mu.Unlock()

		if b.cfg.disregardExecutionTime {
			go b.fire(queue)
		} else {
			b.fire(queue)
		}
	}
}

// fire runs one window's execution and resolves its callers.
func (b *Batcher[A, T]) fire(queue []batchCall[A, T]) {
	if len(queue) == 1 {
		// A lone queued call runs with its own arguments, unbatched.
		c := queue[0]
		val, err := protect(b.fn, c.ctx, c.in)
		c.p.resolve(val, err)
		return
	}

	inputs := make([]A, len(queue))
	for i, c := range queue {
		inputs[i] = c.in
	}

	merged, err := b.mergeInputs(inputs)
	if err != nil {
		var zero T
		for _, c := range queue {
			c.p.resolve(zero, err)
		}
		return
	}

	// The merged execution runs with the context of the window's latest
	// caller, matching the Debouncer's choice.
	val, err := protect(b.fn, queue[len(queue)-1].ctx, merged)
	if err != nil {
		for _, c := range queue {
			c.p.resolve(val, err)
		}
		return
	}

	if b.cfg.unbatch == nil {
		for _, c := range queue {
			c.p.resolve(val, nil)
		}
		return
	}

	outs, uerr := b.unbatchOutputs(inputs, val)
	if uerr == nil && len(outs) != len(queue) {
		uerr = fmt.Errorf("callx: unbatch returned %d outputs for %d inputs", len(outs), len(queue))
	}
	if uerr != nil {
		var zero T
		for _, c := range queue {
			c.p.resolve(zero, uerr)
		}
		return
	}
	for i, c := range queue {
		c.p.resolve(outs[i], nil)
	}
}

// mergeInputs calls the user merge function with panic capture, so a
// faulty merge rejects the round instead of unwinding the driver
// goroutine.
func (b *Batcher[A, T]) mergeInputs(inputs []A) (merged A, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero A
			merged, err = zero, newPanicError(r)
		}
	}()
	return b.merge(inputs), nil
}

// unbatchOutputs calls the user splitter with panic capture, so a faulty
// splitter rejects the round instead of unwinding the driver goroutine.
func (b *Batcher[A, T]) unbatchOutputs(inputs []A, out T) (outs []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			outs, err = nil, newPanicError(r)
		}
	}()
	return b.cfg.unbatch(inputs, out), nil
}
