package callx

import (
	"context"
	"sync"
	"sync/atomic"
)

// RWValue guards a mutable value of type T with many-readers/one-writer
// admission. Guards are granted in strict FIFO order of request: a read
// arriving after a waiting writer queues behind it, so writers make
// progress even under continuous read pressure.
//
// The guarded value is exclusively owned by whichever guards are checked
// out. Replacing it is only possible through [WriteGuard.Release], which
// keeps divergent copies from existing.
type RWValue[T any] struct {
	mu      sync.Mutex
	value   T
	readers int
	writer  bool
	queue   []*acquisition
}

// acquisition is one parked Read or Write request. ready is closed when
// the guard is granted.
type acquisition struct {
	write bool
	ready chan struct{}
}

// NewRWValue creates an RWValue holding the given initial value.
func NewRWValue[T any](initial T) *RWValue[T] {
	return &RWValue[T]{value: initial}
}

// Read acquires a read guard. It blocks while a writer holds the value or
// while any earlier request is still queued, and unblocks with ctx.Err()
// if ctx is cancelled first. Multiple read guards may be held at once.
func (rw *RWValue[T]) Read(ctx context.Context) (*ReadGuard[T], error) {
	rw.mu.Lock()
	if !rw.writer && len(rw.queue) == 0 {
		rw.readers++
		rw.mu.Unlock()
		return &ReadGuard[T]{rw: rw}, nil
	}
	a := &acquisition{ready: make(chan struct{})}
	rw.queue = append(rw.queue, a)
	rw.mu.Unlock()

	if err := rw.await(ctx, a); err != nil {
		return nil, err
	}
	return &ReadGuard[T]{rw: rw}, nil
}

// TryRead acquires a read guard without blocking. It returns nil, false
// if a writer holds the value or any request is queued ahead.
func (rw *RWValue[T]) TryRead() (*ReadGuard[T], bool) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.writer || len(rw.queue) > 0 {
		return nil, false
	}
	rw.readers++
	return &ReadGuard[T]{rw: rw}, true
}

// Write acquires the write guard. It blocks until every earlier request
// has been granted and released and no readers remain, and unblocks with
// ctx.Err() if ctx is cancelled first. At most one write guard exists at
// any time.
func (rw *RWValue[T]) Write(ctx context.Context) (*WriteGuard[T], error) {
	rw.mu.Lock()
	if !rw.writer && rw.readers == 0 && len(rw.queue) == 0 {
		rw.writer = true
		v := rw.value
		rw.mu.Unlock()
		return &WriteGuard[T]{rw: rw, value: v}, nil
	}
	a := &acquisition{write: true, ready: make(chan struct{})}
	rw.queue = append(rw.queue, a)
	rw.mu.Unlock()

	if err := rw.await(ctx, a); err != nil {
		return nil, err
	}
	rw.mu.Lock()
	v := rw.value
	rw.mu.Unlock()
	return &WriteGuard[T]{rw: rw, value: v}, nil
}

// TryWrite acquires the write guard without blocking. It returns nil,
// false if any guard is held or any request is queued.
func (rw *RWValue[T]) TryWrite() (*WriteGuard[T], bool) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.writer || rw.readers > 0 || len(rw.queue) > 0 {
		return nil, false
	}
	rw.writer = true
	return &WriteGuard[T]{rw: rw, value: rw.value}, true
}

// await parks until a is granted or ctx is cancelled. On cancellation the
// request is withdrawn from the queue; a grant that raced ahead of the
// cancellation wins.
func (rw *RWValue[T]) await(ctx context.Context, a *acquisition) error {
	select {
	case <-a.ready:
		return nil
	case <-ctx.Done():
	}

	rw.mu.Lock()
	select {
	case <-a.ready:
		// Granted before we could withdraw. Keep the guard.
		rw.mu.Unlock()
		return nil
	default:
	}
	for i, q := range rw.queue {
		if q == a {
			rw.queue = append(rw.queue[:i], rw.queue[i+1:]...)
			break
		}
	}
	// Removing a waiting writer may unblock reads queued behind it.
	rw.dispatch()
	rw.mu.Unlock()
	return ctx.Err()
}

// dispatch grants as many queued requests as admission allows, in FIFO
// order. Called with rw.mu held after every release or withdrawal.
func (rw *RWValue[T]) dispatch() {
	for len(rw.queue) > 0 {
		head := rw.queue[0]
		if head.write {
			if rw.writer || rw.readers > 0 {
				return
			}
			rw.writer = true
			rw.queue = rw.queue[1:]
			close(head.ready)
			return
		}
		if rw.writer {
			return
		}
		rw.readers++
		rw.queue = rw.queue[1:]
		close(head.ready)
	}
}

// ReadGuard is a granted read acquisition. It must be released exactly
// once via [ReadGuard.Release].
type ReadGuard[T any] struct {
	rw       *RWValue[T]
	released atomic.Bool
}

// Value returns the guarded value. It must not be called after Release.
func (g *ReadGuard[T]) Value() T {
	g.rw.mu.Lock()
	defer g.rw.mu.Unlock()
	return g.rw.value
}

// Release returns the read slot. Panics on double release.
func (g *ReadGuard[T]) Release() {
	if g.released.Swap(true) {
		panic("callx: ReadGuard released twice")
	}
	g.rw.mu.Lock()
	g.rw.readers--
	g.rw.dispatch()
	g.rw.mu.Unlock()
}

// WriteGuard is the granted write acquisition. It must be released exactly
// once via [WriteGuard.Release], supplying the (possibly updated) value.
type WriteGuard[T any] struct {
	rw       *RWValue[T]
	value    T
	released atomic.Bool
}

// Value returns the guarded value as of the grant.
// It must not be called after Release.
func (g *WriteGuard[T]) Value() T {
	return g.value
}

// Release stores v as the new guarded value and returns the write slot.
// Panics on double release.
func (g *WriteGuard[T]) Release(v T) {
	if g.released.Swap(true) {
		panic("callx: WriteGuard released twice")
	}
	g.rw.mu.Lock()
	g.rw.value = v
	g.rw.writer = false
	g.rw.dispatch()
	g.rw.mu.Unlock()
}
