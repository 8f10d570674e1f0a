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

// Hammer tests: many goroutines against one instance, meant to run under
// the race detector. Assertions are deliberately weak; the point is the
// absence of races and deadlocks.

func TestRaceOnce(t *testing.T) {
	var calls atomic.Int32
	fn := callx.Once(func(ctx context.Context, _ struct{}) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := fn(context.Background(), struct{}{}); err != nil || v != 1 {
				t.Errorf("got %d, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn executed %d times, want 1", got)
	}
}

func TestRaceRWValue(t *testing.T) {
	rw := callx.NewRWValue(0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := rw.Read(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			_ = r.Value()
			r.Release()
		}()
		go func() {
			defer wg.Done()
			w, err := rw.Write(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			w.Release(w.Value() + 1)
		}()
	}
	wg.Wait()

	r, _ := rw.Read(context.Background())
	defer r.Release()
	if v := r.Value(); v != 32 {
		t.Fatalf("final value: got %d, want 32", v)
	}
}

func TestRaceDebouncer(t *testing.T) {
	d := callx.NewDebouncer(func(ctx context.Context, in int) (int, error) {
		return in, nil
	}, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Call(context.Background(), i); err != nil {
				t.Errorf("call %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
}

func TestRaceSerial(t *testing.T) {
	s := callx.NewSerial(func(ctx context.Context, tok *callx.Token, in int) (int, error) {
		if err := tok.Err(); err != nil {
			return 0, err
		}
		return in, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Call(context.Background(), i); err != nil && !errors.Is(err, callx.ErrSuperseded) {
				t.Errorf("call %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	if got := s.Epoch(); got != 64 {
		t.Fatalf("epoch: got %d, want 64", got)
	}
}

func TestRaceLatest(t *testing.T) {
	l := callx.NewLatest(func(ctx context.Context, in int) (int, error) {
		return in, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Call(context.Background(), i); err != nil {
				t.Errorf("call %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
}

func TestRaceBatcher(t *testing.T) {
	b := callx.NewBatcher(func(ctx context.Context, in int) (int, error) {
		return in, nil
	}, sum, 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Call(context.Background(), i); err != nil {
				t.Errorf("call %d: %v", i, err)
			}
		}()
	}
	wg.Wait()
}
