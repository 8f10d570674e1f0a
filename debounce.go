package callx

import (
	"context"
	"sync"
	"time"
)

type debounceConfig struct {
	disregardExecutionTime bool
}

// DebounceOption configures a [Debouncer].
type DebounceOption func(*debounceConfig)

// WithDisregardExecutionTime makes the next execution eligible strictly
// one interval after the previous execution started, even if the previous
// execution is still running. Executions may then overlap.
//
// Without this option the trailing edge fires only once both the interval
// has elapsed and the previous execution has completed, so no two
// executions of the wrapped function ever overlap.
func WithDisregardExecutionTime() DebounceOption {
	return func(c *debounceConfig) {
		c.disregardExecutionTime = true
	}
}

// Debouncer coalesces bursts of calls into one execution per interval.
//
// A call arriving while the Debouncer is idle executes immediately, in the
// caller's goroutine. Calls arriving during the busy window are not
// executed individually: the latest arguments replace any previously
// queued ones, and every such caller shares the outcome of the single
// trailing execution. The trailing execution runs with the context of the
// latest caller, whose arguments it uses.
//
// Instances must be created with [NewDebouncer].
type Debouncer[A, T any] struct {
	fn       Func[A, T]
	interval time.Duration
	cfg      debounceConfig

	mu        sync.Mutex
	idle      bool
	queue     []*pending[T]
	latestIn  A
	latestCtx context.Context
}

// NewDebouncer wraps fn with debounce semantics using the given minimum
// interval between execution starts.
//
// An interval <= 0 degrades to direct pass-through: every call executes
// fn immediately with its own arguments, with no coalescing and no delay.
func NewDebouncer[A, T any](fn Func[A, T], interval time.Duration, opts ...DebounceOption) *Debouncer[A, T] {
	if fn == nil {
		panic("callx: NewDebouncer requires fn")
	}
	d := &Debouncer[A, T]{
		fn:       fn,
		interval: interval,
		idle:     true,
	}
	for _, opt := range opts {
		opt(&d.cfg)
	}
	return d
}

// Call invokes the debounced function. See [Debouncer] for the coalescing
// rules. ctx bounds this caller's wait when the call is coalesced; for an
// immediate (leading-edge) execution it is the context fn runs with.
func (d *Debouncer[A, T]) Call(ctx context.Context, in A) (T, error) {
	if d.interval <= 0 {
		return d.fn(ctx, in)
	}

	d.mu.Lock()
	if d.idle {
		d.idle = false
		start := time.Now()
		d.mu.Unlock()

		if d.cfg.disregardExecutionTime {
			// Timer-only scheduling: the trailing driver runs on the
			// interval regardless of how long this execution takes.
			go d.trail(start)
			return d.fn(ctx, in)
		}

		// Schedule the trailing driver even if fn panics, so the busy
		// window still closes.
		defer func() { go d.trail(start) }()
		return d.fn(ctx, in)
	}

	p := newPending[T]()
	d.queue = append(d.queue, p)
	d.latestIn = in
	d.latestCtx = ctx
	d.mu.Unlock()

	return p.wait(ctx)
}

// Pending returns the number of callers currently waiting on the trailing
// execution. The value may be stale in concurrent contexts.
func (d *Debouncer[A, T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// trail is the trailing-edge driver for one busy period. It owns the
// single pending wakeup: it sleeps out the remainder of the window, then
// either fires the coalesced execution and loops, or finds no queued work
// and returns the Debouncer to idle.
func (d *Debouncer[A, T]) trail(start time.Time) {
	for {
		if wait := time.Until(start.Add(d.interval)); wait > 0 {
			time.Sleep(wait)
		}

		d.mu.Lock()
		if len(d.queue) == 0 {
			d.idle = true
			d.mu.Unlock()
			return
		}
		queue, in, ctx := d.queue, d.latestIn, d.latestCtx
		d.queue = nil
		start = time.Now()
		d.mu.Unlock()

		if d.cfg.disregardExecutionTime {
			go d.fire(queue, ctx, in)
		} else {
			d.fire(queue, ctx, in)
		}
	}
}

// fire runs one coalesced execution and resolves its callers.
func (d *Debouncer[A, T]) fire(queue []*pending[T], ctx context.Context, in A) {
	val, err := protect(d.fn, ctx, in)
	resolveAll(queue, val, err)
}
