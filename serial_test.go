package callx_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baxromumarov/callx"
)

func TestSerialSupersededRoundIsCancelled(t *testing.T) {
	var cancels atomic.Int32
	var gotRound, gotLatest atomic.Uint64

	// Polls the token between slices of work, like a well-behaved
	// long-running operation.
	fn := func(ctx context.Context, tok *callx.Token, in int) (int, error) {
		for i := 0; i < 3; i++ {
			time.Sleep(30 * time.Millisecond)
			if err := tok.Err(); err != nil {
				return 0, err
			}
		}
		return in * 10, nil
	}

	s := callx.NewSerial(fn, callx.WithOnCancel(func(round, latest uint64) {
		cancels.Add(1)
		gotRound.Store(round)
		gotLatest.Store(latest)
	}))

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = s.Call(context.Background(), 1)
	}()

	time.Sleep(45 * time.Millisecond) // A is mid-flight
	vB, errB := s.Call(context.Background(), 2)
	wg.Wait()

	if !errors.Is(errA, callx.ErrSuperseded) {
		t.Fatalf("superseded round: got %v, want ErrSuperseded", errA)
	}
	if errB != nil || vB != 20 {
		t.Fatalf("current round: got %d, %v; want 20, nil", vB, errB)
	}
	if got := cancels.Load(); got != 1 {
		t.Fatalf("onCancel fired %d times, want 1", got)
	}
	if gotRound.Load() != 1 || gotLatest.Load() != 2 {
		t.Fatalf("onCancel epochs: got (%d, %d), want (1, 2)", gotRound.Load(), gotLatest.Load())
	}
}

func TestSerialWithoutProbeDegradesToLastWriterWins(t *testing.T) {
	var calls atomic.Int32

	// Never touches the token; only the wrapper's final check applies.
	fn := func(ctx context.Context, _ *callx.Token, in int) (int, error) {
		calls.Add(1)
		if in == 1 {
			time.Sleep(60 * time.Millisecond)
		}
		return in * 10, nil
	}
	s := callx.NewSerial(fn)

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = s.Call(context.Background(), 1)
	}()
	time.Sleep(15 * time.Millisecond)
	vB, errB := s.Call(context.Background(), 2)
	wg.Wait()

	if got := calls.Load(); got != 2 {
		t.Fatalf("fn executed %d times, want 2", got)
	}
	if !errors.Is(errA, callx.ErrSuperseded) {
		t.Fatalf("overtaken round: got %v, want ErrSuperseded", errA)
	}
	if errB != nil || vB != 20 {
		t.Fatalf("latest round: got %d, %v; want 20, nil", vB, errB)
	}
}

func TestSerialErrorPropagation(t *testing.T) {
	boom := errors.New("boom")

	fn := func(ctx context.Context, _ *callx.Token, fail bool) (int, error) {
		if fail {
			return 0, boom
		}
		return 1, nil
	}
	s := callx.NewSerial(fn)

	// A current round's error propagates verbatim.
	if _, err := s.Call(context.Background(), true); !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if v, err := s.Call(context.Background(), false); err != nil || v != 1 {
		t.Fatalf("got %d, %v; want 1, nil", v, err)
	}
}

func TestSerialStaleErrorIsSuppressed(t *testing.T) {
	boom := errors.New("boom")

	fn := func(ctx context.Context, _ *callx.Token, in int) (int, error) {
		if in == 1 {
			time.Sleep(50 * time.Millisecond)
			return 0, boom
		}
		return in, nil
	}
	s := callx.NewSerial(fn)

	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errA = s.Call(context.Background(), 1)
	}()
	time.Sleep(15 * time.Millisecond)
	s.Call(context.Background(), 2)
	wg.Wait()

	// The stale round failed, but its failure is overridden by the
	// cancellation outcome.
	if !errors.Is(errA, callx.ErrSuperseded) {
		t.Fatalf("got %v, want ErrSuperseded", errA)
	}
	if errors.Is(errA, boom) {
		t.Fatal("stale round's own error leaked through")
	}
}

func TestSerialPanicPropagatesOnlyWhenCurrent(t *testing.T) {
	fn := func(ctx context.Context, _ *callx.Token, in int) (int, error) {
		if in == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		panic("kaboom")
	}
	s := callx.NewSerial(fn)

	// Stale round: the panic is suppressed in favor of cancellation.
	var wg sync.WaitGroup
	var errA error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("stale round panicked: %v", r)
			}
		}()
		_, errA = s.Call(context.Background(), 1)
	}()
	time.Sleep(15 * time.Millisecond)

	// Current round: the panic reaches the caller with its original value.
	func() {
		defer func() {
			switch r := recover(); r {
			case nil:
				t.Error("current round: expected a panic")
			case "kaboom":
			default:
				t.Errorf("current round: recovered %v, want the original panic value", r)
			}
		}()
		s.Call(context.Background(), 2)
	}()
	wg.Wait()

	if !errors.Is(errA, callx.ErrSuperseded) {
		t.Fatalf("stale round: got %v, want ErrSuperseded", errA)
	}
}

func TestSerialEpochs(t *testing.T) {
	fn := func(ctx context.Context, tok *callx.Token, _ struct{}) (uint64, error) {
		return tok.Epoch(), nil
	}
	s := callx.NewSerial(fn)

	if got := s.Epoch(); got != 0 {
		t.Fatalf("initial epoch: got %d, want 0", got)
	}
	for want := uint64(1); want <= 3; want++ {
		v, err := s.Call(context.Background(), struct{}{})
		if err != nil || v != want {
			t.Fatalf("round %d: got %d, %v", want, v, err)
		}
	}
	if got := s.Epoch(); got != 3 {
		t.Fatalf("epoch after 3 rounds: got %d, want 3", got)
	}
}
