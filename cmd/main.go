package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/baxromumarov/callx"
)

func main() {
	// Scratch driver: fire a burst of searches at a debounced "backend"
	// and a pair of overlapping calls at a serial one.

	d := callx.NewDebouncer(func(ctx context.Context, q string) (string, error) {
		fmt.Println("  executing search:", q)
		time.Sleep(30 * time.Millisecond)
		return "hits for " + q, nil
	}, 100*time.Millisecond)

	now := time.Now()
	done := make(chan struct{})
	for i, q := range []string{"g", "go", "gol", "golang"} {
		q := q
		last := i == 3
		go func() {
			v, err := d.Call(context.Background(), q)
			fmt.Printf("  %q -> %q (%v)\n", q, v, err)
			if last {
				close(done)
			}
		}()
		time.Sleep(10 * time.Millisecond)
	}
	<-done
	fmt.Println("debounce burst took", time.Since(now))

	s := callx.NewSerial(func(ctx context.Context, tok *callx.Token, n int) (int, error) {
		for i := 0; i < n; i++ {
			time.Sleep(20 * time.Millisecond)
			if err := tok.Err(); err != nil {
				return 0, err
			}
		}
		return n, nil
	})

	go s.Call(context.Background(), 10)
	time.Sleep(50 * time.Millisecond)
	v, err := s.Call(context.Background(), 1)
	fmt.Println("serial:", v, errors.Is(err, callx.ErrSuperseded))
}
