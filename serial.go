package callx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSuperseded is the cancellation outcome delivered for a round that a
// newer call has overtaken. It is a distinguished result, not a fault:
// check for it with errors.Is.
var ErrSuperseded = errors.New("callx: call superseded by a newer call")

// SerialFunc is the shape of an operation wrapped by [Serial]. The token
// identifies the round and exposes the cooperative cancellation probe;
// well-behaved operations poll tok.Err() at convenient points and stop
// when it reports [ErrSuperseded].
type SerialFunc[A, T any] func(ctx context.Context, tok *Token, in A) (T, error)

type serialConfig struct {
	onCancel func(round, latest uint64)
}

// SerialOption configures a [Serial].
type SerialOption func(*serialConfig)

// WithOnCancel registers a hook invoked when a round is observed to be
// superseded. It fires exactly once per superseded round, with that
// round's epoch and the latest epoch at the moment of observation. The
// hook runs in the goroutine that observed the staleness.
func WithOnCancel(fn func(round, latest uint64)) SerialOption {
	return func(c *serialConfig) {
		c.onCancel = fn
	}
}

// Serial runs the wrapped function on every call, but each call
// supersedes the one before it. Superseded rounds are cancelled
// cooperatively: the round's [Token] starts reporting [ErrSuperseded],
// and whatever the round computes is discarded in favor of that
// cancellation outcome.
//
// Cancellation is advisory. A round that never polls its token still runs
// to completion; the wrapper performs a final staleness check afterwards,
// so the contract degrades to last-writer-wins with unconditional
// cancellation of overtaken rounds.
//
// Instances must be created with [NewSerial].
type Serial[A, T any] struct {
	fn    SerialFunc[A, T]
	cfg   serialConfig
	epoch atomic.Uint64
}

// Token identifies one round of a [Serial] and carries its cooperative
// cancellation probe.
type Token struct {
	epoch  uint64
	latest *atomic.Uint64
	notify func(latest uint64)
	once   sync.Once
}

// Epoch returns the round's serial number. Epochs increase monotonically;
// the first round is 1.
func (t *Token) Epoch() uint64 {
	return t.epoch
}

// Err is the cancellation probe. It returns nil while the round is
// current and [ErrSuperseded] once a newer round has started. Operations
// should poll it at convenient points and return promptly when it reports
// cancellation.
func (t *Token) Err() error {
	latest := t.latest.Load()
	if latest == t.epoch {
		return nil
	}
	t.once.Do(func() { t.notify(latest) })
	return ErrSuperseded
}

// NewSerial wraps fn with serial-with-cancellation semantics.
func NewSerial[A, T any](fn SerialFunc[A, T], opts ...SerialOption) *Serial[A, T] {
	if fn == nil {
		panic("callx: NewSerial requires fn")
	}
	s := &Serial[A, T]{fn: fn}
	for _, opt := range opts {
		opt(&s.cfg)
	}
	return s
}

// Epoch returns the latest round's serial number, zero before any call.
// The value may be stale in concurrent contexts.
func (s *Serial[A, T]) Epoch() uint64 {
	return s.epoch.Load()
}

// Call starts a fresh round, superseding any round still in flight, and
// runs fn in the caller's goroutine. It returns fn's outcome if the round
// is still current when fn completes, and (zero, [ErrSuperseded])
// otherwise; a superseded round's error, panic or value is suppressed.
func (s *Serial[A, T]) Call(ctx context.Context, in A) (T, error) {
	tok := &Token{
		epoch:  s.epoch.Add(1),
		latest: &s.epoch,
	}
	tok.notify = func(latest uint64) {
		if s.cfg.onCancel != nil {
			s.cfg.onCancel(tok.epoch, latest)
		}
	}

	val, err := s.run(ctx, tok, in)

	// Final check: the body may never have polled the token, or may have
	// been overtaken after its last poll.
	if serr := tok.Err(); serr != nil {
		var zero T
		return zero, serr
	}
	if pe := (*PanicError)(nil); errors.As(err, &pe) {
		// The round is current, so its panic is the caller's to see.
		// Re-raise the original value, as if the wrapper were not there.
		panic(pe.Value)
	}
	return val, err
}

func (s *Serial[A, T]) run(ctx context.Context, tok *Token, in A) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			val, err = zero, newPanicError(r)
		}
	}()
	return s.fn(ctx, tok, in)
}
