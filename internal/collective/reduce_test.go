package collective

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tagfreq/internal/freq"
)

func partialFor(rank int) freq.Pair {
	p := freq.NewPair()
	p.Lang.AddN("en", uint64(rank+1))
	p.Lang.AddN(fmt.Sprintf("l%d", rank%3), 2)
	p.Tags.AddN("#shared", 1)
	p.Tags.AddN(fmt.Sprintf("#r%d", rank), uint64(10*rank+1))
	return p
}

func TestReduce_MatchesSequentialMerge(t *testing.T) {
	t.Parallel()

	for size := 1; size <= 8; size++ {
		size := size
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			t.Parallel()

			want := freq.NewPair()
			for r := 0; r < size; r++ {
				want.Merge(partialFor(r))
			}

			g := NewLocalGroup(size)
			defer g.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			results := make([]freq.Pair, size)
			errs := make([]error, size)
			var wg sync.WaitGroup
			for r := 0; r < size; r++ {
				wg.Add(1)
				go func(r int) {
					defer wg.Done()
					results[r], errs[r] = Reduce(ctx, g.Comm(r), partialFor(r), ReduceOptions{})
				}(r)
			}
			wg.Wait()

			for r, err := range errs {
				if err != nil {
					t.Fatalf("rank %d: %v", r, err)
				}
			}
			if !results[0].Equal(want) {
				t.Fatalf("rank 0 got %v, want %v", results[0], want)
			}
			for r := 1; r < size; r++ {
				if !results[r].Empty() {
					t.Fatalf("rank %d kept %v after sending", r, results[r])
				}
			}
		})
	}
}

func TestReduce_EmptyPartials(t *testing.T) {
	t.Parallel()

	g := NewLocalGroup(3)
	defer g.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	var root freq.Pair
	var rootErr error
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			p := freq.NewPair()
			if r == 2 {
				p.Lang.Add("en")
			}
			got, err := Reduce(ctx, g.Comm(r), p, ReduceOptions{})
			if r == 0 {
				root, rootErr = got, err
			}
		}(r)
	}
	wg.Wait()
	if rootErr != nil {
		t.Fatalf("Reduce: %v", rootErr)
	}
	if !root.Lang.Equal(freq.Table{"en": 1}) || len(root.Tags) != 0 {
		t.Fatalf("root = %v", root)
	}
}

func TestReduce_MissingPeerTimesOut(t *testing.T) {
	t.Parallel()

	g := NewLocalGroup(2)
	defer g.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Rank 1 never shows up.
	_, err := Reduce(ctx, g.Comm(0), freq.NewPair(), ReduceOptions{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestLocalGroup_CloseUnblocks(t *testing.T) {
	t.Parallel()

	g := NewLocalGroup(2)
	done := make(chan error, 1)
	go func() {
		_, err := g.Comm(0).Recv(context.Background(), 1, 0)
		done <- err
	}()
	g.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if err := g.Comm(0).Send(context.Background(), 5, 0, nil); err == nil {
		t.Fatalf("expected out-of-range peer error")
	}
}
