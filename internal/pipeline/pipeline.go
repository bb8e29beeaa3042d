// Package pipeline runs one rank of a count: partition the input by rank,
// scan the rank's range with a worker pool, then reduce across the group.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"tagfreq/internal/collective"
	"tagfreq/internal/datasource"
	"tagfreq/internal/freq"
	"tagfreq/internal/metrics"
	"tagfreq/internal/partition"
	"tagfreq/internal/scan"
)

// Options configures a run.
type Options struct {
	Source  datasource.Source
	Scan    scan.Config
	Reduce  collective.ReduceOptions
	Verbose bool
}

// Result is what one rank ends up with.
type Result struct {
	Rank  int
	Range partition.Range
	Pair  freq.Pair  // group total on rank 0, empty elsewhere
	Stats scan.Stats // this rank's scan statistics
}

// Run executes rank c.Rank() of the group.
func Run(ctx context.Context, c collective.Comm, opts Options) (Result, error) {
	res := Result{Rank: c.Rank()}
	if opts.Source == nil {
		return res, fmt.Errorf("pipeline: no input source")
	}
	total, err := opts.Source.Size(ctx)
	if err != nil {
		return res, err
	}
	res.Range = partition.Partition(total, c.Size(), c.Rank())
	if opts.Verbose {
		log.Printf("pipeline: rank %d/%d owns %v of %s", c.Rank(), c.Size(), res.Range, humanize.Bytes(uint64(total)))
	}

	start := time.Now()
	local, st, err := scan.Section(ctx, opts.Source, res.Range, opts.Scan)
	metrics.RecordStep(opts.Scan.Job, "scan", err, time.Since(start))
	if err != nil {
		return res, err
	}
	res.Stats = st
	if opts.Verbose {
		log.Printf("pipeline: rank %d scanned %s in %s (%d records, %d langs, %d hashtags)",
			c.Rank(), humanize.Bytes(uint64(st.Bytes)), time.Since(start).Truncate(time.Millisecond),
			st.Records, len(local.Lang), len(local.Tags))
	}

	done := metrics.StartStep(opts.Scan.Job, "reduce")
	pair, err := collective.Reduce(ctx, c, local, opts.Reduce)
	done(err)
	if err != nil {
		return res, err
	}
	res.Pair = pair
	return res, nil
}

// RunLocal runs a group of size ranks inside this process, one goroutine per
// rank over an in-memory Comm. It returns rank 0's result with the scan
// statistics of every rank summed. The first failing rank cancels the rest.
func RunLocal(ctx context.Context, size int, opts Options) (Result, error) {
	g := collective.NewLocalGroup(size)
	defer g.Close()

	var (
		mu    sync.Mutex
		root  Result
		stats scan.Stats
	)
	eg, ectx := errgroup.WithContext(ctx)
	for rank := 0; rank < g.Size(); rank++ {
		eg.Go(func() error {
			res, err := Run(ectx, g.Comm(rank), opts)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			mu.Lock()
			defer mu.Unlock()
			stats.Add(res.Stats)
			if rank == 0 {
				root = res
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	root.Stats = stats
	return root, nil
}
