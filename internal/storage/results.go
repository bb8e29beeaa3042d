package storage

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"tagfreq/internal/freq"
)

// ResultColumns is the column order of the results table.
var ResultColumns = []string{"run_id", "kind", "item", "occurrences"}

// Row kinds stored in the kind column.
const (
	KindLang    = "lang"
	KindHashtag = "hashtag"
)

// DefaultBatchSize is used when SaveResults gets a non-positive batch size.
const DefaultBatchSize = 5000

// NewRunID returns a fresh identifier for one run's rows.
func NewRunID() string { return uuid.NewString() }

// SaveResults writes every entry of p as (runID, kind, item, occurrences)
// rows through repo in batches. Items are written in sorted order.
func SaveResults(ctx context.Context, repo Repository, runID string, p freq.Pair, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan []any, batchSize)
	go func() {
		defer close(rows)
		for _, tbl := range []struct {
			kind string
			t    freq.Table
		}{{KindLang, p.Lang}, {KindHashtag, p.Tags}} {
			for _, k := range sortedKeys(tbl.t) {
				n := tbl.t[k]
				if n > math.MaxInt64 {
					n = math.MaxInt64
				}
				select {
				case rows <- []any{runID, tbl.kind, k, int64(n)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	n, err := LoadBatches(ctx, ResultColumns, rows, batchSize, repo.CopyFrom)
	if err != nil {
		return n, fmt.Errorf("save results %s: %w", runID, err)
	}
	return n, nil
}

func sortedKeys(t freq.Table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
