package callx

import (
	"context"
	"sync"
)

// UpdateArgsFunc merges a newly arrived call into the next scheduled
// round of a [Latest]. current is the arguments of the round in flight;
// scheduled/hasScheduled describe the next round computed so far (zero
// value and false when none is scheduled yet); incoming is the newest
// caller's arguments. The return value becomes the next round's
// arguments.
type UpdateArgsFunc[A any] func(current A, scheduled A, hasScheduled bool, incoming A) A

type latestConfig[A any] struct {
	equal  func(a, b A) bool
	update UpdateArgsFunc[A]
}

// LatestOption configures a [Latest].
type LatestOption[A any] func(*latestConfig[A])

// WithArgsEqual registers a predicate used to short-circuit scheduling:
// when the proposed next-round arguments are judged equal to the
// currently-running round's arguments, no additional round is scheduled
// and the caller simply shares the in-flight round's result.
func WithArgsEqual[A any](eq func(a, b A) bool) LatestOption[A] {
	return func(c *latestConfig[A]) {
		c.equal = eq
	}
}

// WithUpdateArgs replaces the default next-round merge policy, which is
// to use the most recently arrived arguments and discard intermediate
// ones.
func WithUpdateArgs[A any](update UpdateArgsFunc[A]) LatestOption[A] {
	return func(c *latestConfig[A]) {
		c.update = update
	}
}

// Latest runs the wrapped function so that every caller, including
// superseded ones, receives the result of the last round that ran. Calls
// arriving while a round executes never start concurrent executions;
// their arguments are folded into a single next round. When the in-flight
// round completes, the next round runs immediately, and so on until no
// round is pending. Every caller accumulated during the whole busy period
// then resolves with the final round's outcome, success or failure.
//
// Instances must be created with [NewLatest].
type Latest[A, T any] struct {
	fn  Func[A, T]
	cfg latestConfig[A]

	mu        sync.Mutex
	idle      bool
	current   A // arguments of the round in flight
	waiters   []*pending[T]
	scheduled bool
	nextIn    A
	nextCtx   context.Context
}

// NewLatest wraps fn with latest-wins semantics.
func NewLatest[A, T any](fn Func[A, T], opts ...LatestOption[A]) *Latest[A, T] {
	if fn == nil {
		panic("callx: NewLatest requires fn")
	}
	l := &Latest[A, T]{fn: fn, idle: true}
	for _, opt := range opts {
		opt(&l.cfg)
	}
	return l
}

// Call invokes the wrapped function with latest-wins semantics. The first
// caller of a busy period drives the run loop in its own goroutine;
// later callers park and share the final round's outcome. A parked
// caller's ctx bounds only its wait.
func (l *Latest[A, T]) Call(ctx context.Context, in A) (T, error) {
	l.mu.Lock()
	if l.idle {
		l.idle = false
		l.current = in
		l.mu.Unlock()
		return l.drive(ctx, in)
	}

	p := newPending[T]()
	l.waiters = append(l.waiters, p)

	proposed := in
	if l.cfg.update != nil {
		var scheduled A
		if l.scheduled {
			scheduled = l.nextIn
		}
		proposed = l.cfg.update(l.current, scheduled, l.scheduled, in)
	}
	if l.cfg.equal != nil && l.cfg.equal(proposed, l.current) {
		// Share the in-flight round; leave any already-scheduled round
		// untouched.
		l.mu.Unlock()
		return p.wait(ctx)
	}
	l.scheduled = true
	l.nextIn = proposed
	l.nextCtx = ctx
	l.mu.Unlock()

	return p.wait(ctx)
}

// drive runs rounds back to back until none is scheduled, then resolves
// every accumulated waiter with the final outcome.
func (l *Latest[A, T]) drive(ctx context.Context, in A) (T, error) {
	val, err := protect(l.fn, ctx, in)

	for {
		l.mu.Lock()
		if !l.scheduled {
			waiters := l.waiters
			l.waiters = nil
			l.idle = true
			l.mu.Unlock()
			resolveAll(waiters, val, err)
			return val, err
		}
		in, ctx = l.nextIn, l.nextCtx
		l.scheduled = false
		l.current = in
		l.mu.Unlock()

		val, err = protect(l.fn, ctx, in)
	}
}
