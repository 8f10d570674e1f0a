// Package callx provides call-semantics decorators for asynchronous
// operations.
//
// Each primitive wraps a caller-supplied function and changes how repeated,
// overlapping invocations interact (coalescing, serializing, batching or
// superseding them) without changing what the function computes. The
// wrapped operation is uniformly
//
//	type Func[A, T any] func(ctx context.Context, in A) (T, error)
//
// and callers block on the decorated call until their shared or individual
// outcome is available.
//
// # Primitives
//
//   - [Once]: the function runs at most one time ever; every caller,
//     concurrent or later, shares the first outcome (success or failure).
//   - [RWValue]: a guarded mutable value with many-readers/one-writer
//     admission, granted in strict FIFO order so writers cannot starve.
//   - [Debouncer]: bursts of calls collapse into one execution per
//     interval; callers arriving during a busy window share the trailing
//     execution, which uses the most recently supplied arguments.
//   - [Serial]: every call starts a fresh round, superseding the previous
//     one. Superseded rounds observe cancellation through a polled [Token]
//     and resolve to [ErrSuperseded] instead of their computed result.
//   - [Latest]: the inverse of [Serial]: every caller, including
//     superseded ones, receives the result of the last round that ran.
//   - [Batcher]: calls arriving during a busy window are queued and, at
//     the trailing edge, merged into a single execution whose output is
//     shared or split back per caller.
//
// All six are independent; none depends on another.
//
// # Cancellation model
//
// Cancellation is cooperative and advisory. No primitive forcibly aborts
// an execution: a superseded [Serial] round is asked to stop via its
// [Token] and its outcome is disregarded; a hung function hangs its
// primitive. Contexts passed to decorated calls bound the caller's wait,
// not the shared execution.
//
// # Failure propagation
//
// No primitive retries or logs. Errors from the wrapped function surface
// to exactly the callers that share the affected round, at the same
// instant success would have. Panics inside executions that serve parked
// waiters are captured as [*PanicError] values and delivered as errors
// rather than unwinding an unrelated goroutine.
package callx
