package scan

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tagfreq/internal/datasource"
	"tagfreq/internal/freq"
	"tagfreq/internal/metrics"
	"tagfreq/internal/partition"
	"tagfreq/internal/skiplog"
)

// Config drives one process's section scan.
type Config struct {
	Workers    int   // goroutines; defaults to GOMAXPROCS
	ChunkSize  int64 // bytes per work unit; defaults to partition.DefaultChunkSize
	Classifier Classifier
	Skips      *skiplog.Log
	BufSize    int
	Job        string // metrics job label
	Verbose    bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = partition.DefaultChunkSize
	}
	return c
}

// Section counts every record owned by rng of src.
//
// rng is cut into chunks of cfg.ChunkSize; workers claim chunks from a shared
// counter, scan them into a private Pair through their own file handle, and
// merge into the section result once, when they run out of chunks. The
// first error cancels the remaining workers.
func Section(ctx context.Context, src datasource.Source, rng partition.Range, cfg Config) (freq.Pair, Stats, error) {
	cfg = cfg.withDefaults()
	out := freq.NewPair()
	var total Stats
	if cfg.Classifier == nil {
		return out, total, fmt.Errorf("scan: classifier is required")
	}

	chunks := partition.Split(rng, cfg.ChunkSize)
	if len(chunks) == 0 {
		return out, total, nil
	}
	workers := min(cfg.Workers, len(chunks))
	if cfg.Verbose {
		log.Printf("scan: range %v: %d chunks, %d workers", rng, len(chunks), workers)
	}

	var (
		mu   sync.Mutex
		next atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			ra, err := src.OpenReaderAt(gctx)
			if err != nil {
				return err
			}
			defer ra.Close()

			local := freq.NewPair()
			var st Stats
			opts := Options{BufSize: cfg.BufSize, Skips: cfg.Skips}
			for {
				i := int(next.Add(1) - 1)
				if i >= len(chunks) {
					break
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				cs, err := ScanRange(ra, chunks[i], cfg.Classifier, local, opts)
				metrics.RecordStep(cfg.Job, "scan_chunk", err, time.Since(start))
				if err != nil {
					return err
				}
				st.Add(cs)
			}

			start := time.Now()
			mu.Lock()
			out.Merge(local)
			total.Add(st)
			mu.Unlock()
			metrics.RecordStep(cfg.Job, "merge_worker", nil, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return freq.NewPair(), total, fmt.Errorf("scan section %v: %w", rng, err)
	}

	metrics.RecordBytes(cfg.Job, total.Bytes)
	metrics.RecordRecords(cfg.Job, "lines", total.Lines)
	metrics.RecordRecords(cfg.Job, "counted", total.Records)
	metrics.RecordRecords(cfg.Job, "skipped", total.Skipped)
	if cfg.Verbose {
		log.Printf("scan: range %v: lines=%d records=%d skipped=%d", rng, total.Lines, total.Records, total.Skipped)
	}
	return out, total, nil
}
