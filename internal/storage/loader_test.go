package storage

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"tagfreq/internal/freq"
)

func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 8)
	for i := 0; i < 7; i++ {
		in <- []any{i, "x"}
	}
	close(in)

	var calls int32
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c1", "c2"}, in, 3, copyFn)
	if err != nil {
		t.Fatalf("LoadBatches error: %v", err)
	}
	if total != 7 {
		t.Fatalf("total rows %d, want 7", total)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("copyFn calls %d, want 3 (3+3+1)", got)
	}
}

func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	in := make(chan []any, 5)
	for i := 0; i < 5; i++ {
		in <- []any{i}
	}
	close(in)

	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		return 0, errCopy
	}
	if _, err := LoadBatches(context.Background(), []string{"c"}, in, 2, copyFn); !errors.Is(err, errCopy) {
		t.Fatalf("err = %v, want %v", err, errCopy)
	}
	if batches != 1 {
		t.Fatalf("batches = %d, want 1", batches)
	}
}

func TestLoadBatches_BadArgsAndCancel(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, []string, [][]any) (int64, error) { return 0, nil }
	if _, err := LoadBatches(context.Background(), nil, nil, 0, noop); err == nil {
		t.Fatalf("expected batchSize error")
	}
	if _, err := LoadBatches(context.Background(), nil, nil, 1, nil); err == nil {
		t.Fatalf("expected nil copyFn error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := LoadBatches(ctx, nil, make(chan []any), 1, noop); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestSaveResults(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	p := freq.Pair{
		Lang: freq.Table{"es": 1, "en": 2},
		Tags: freq.Table{"#foo": 2},
	}
	n, err := SaveResults(context.Background(), repo, "run-1", p, 2)
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
	var got [][]any
	for _, b := range repo.batches {
		got = append(got, b...)
	}
	want := [][]any{
		{"run-1", KindLang, "en", int64(2)},
		{"run-1", KindLang, "es", int64(1)},
		{"run-1", KindHashtag, "#foo", int64(2)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
}

func TestSaveResults_CopyError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{copyErr: errCopy}
	p := freq.NewPair()
	for i := 0; i < 50; i++ {
		p.Tags.AddN(string(rune('a'+i%26))+string(rune('a'+i/26)), 1)
	}
	if _, err := SaveResults(context.Background(), repo, "r", p, 4); !errors.Is(err, errCopy) {
		t.Fatalf("err = %v, want %v", err, errCopy)
	}
}
