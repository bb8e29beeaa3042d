package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

// CopyFn is a backend's bulk insert: it writes rows, aligned to columns,
// and reports how many it inserted. It must return promptly once ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains in into batches of batchSize rows and hands each
// non-empty batch to copyFn. It stops at the first copy error or when ctx is
// done, returning the rows inserted so far.
func LoadBatches(ctx context.Context, columns []string, in <-chan []any, batchSize int, copyFn CopyFn) (int64, error) {
	switch {
	case batchSize <= 0:
		return 0, errors.New("loader: batch size must be positive")
	case copyFn == nil:
		return 0, errors.New("loader: nil copy function")
	}

	var (
		total int64
		seq   int
		start = time.Now()
	)
	batch := make([][]any, 0, batchSize)
	for {
		done, err := fill(ctx, in, &batch, batchSize)
		if err != nil {
			return total, err
		}
		if len(batch) > 0 {
			seq++
			n, err := copyFn(ctx, columns, batch)
			total += n
			if err != nil {
				log.Printf("loader: batch #%d failed after %s rows: %v", seq, humanize.Comma(total), err)
				return total, err
			}
			batch = batch[:0]
		}
		if done {
			if seq > 0 {
				log.Printf("loader: %s rows in %d batches (%s)", humanize.Comma(total), seq, time.Since(start).Truncate(time.Millisecond))
			}
			return total, nil
		}
	}
}

// fill appends rows from in until the batch is full or in is closed; done
// reports the latter.
func fill(ctx context.Context, in <-chan []any, batch *[][]any, size int) (done bool, err error) {
	for len(*batch) < size {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case row, ok := <-in:
			if !ok {
				return true, nil
			}
			*batch = append(*batch, row)
		}
	}
	return false, nil
}
