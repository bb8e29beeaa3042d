// Command tagfreq counts tweet languages and hashtags in a large JSON corpus
// and prints the top entries of each.
//
// A run is a group of ranks. Each rank scans its share of the input with a
// pool of goroutines; the partial tables are then reduced into rank 0, which
// prints the results. Ranks are either separate processes connected over TCP
// (-size, -rank, -peers) or goroutines of one process (-local N).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tagfreq/internal/collective"
	"tagfreq/internal/collective/rpccomm"
	"tagfreq/internal/config"
	"tagfreq/internal/datasource/file"
	"tagfreq/internal/langcode"
	"tagfreq/internal/metrics"
	"tagfreq/internal/metrics/datadog"
	"tagfreq/internal/metrics/prompush"
	"tagfreq/internal/parser/tweet"
	"tagfreq/internal/pipeline"
	"tagfreq/internal/report"
	"tagfreq/internal/scan"
	"tagfreq/internal/skiplog"
	"tagfreq/internal/storage"

	// register all backends with the storage factory.
	_ "tagfreq/internal/storage/all"
)

const usage = "usage: tagfreq [flags] <input.json> <lang_codes.csv>"

func main() {
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)

	fs := flag.NewFlagSet("tagfreq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
		fs.PrintDefaults()
	}
	cfg, err := config.LoadFromArgs(fs, getenv, args)
	if err != nil {
		return 1
	}
	if len(cfg.Args) < 2 {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	issues := config.ValidateConfig(*cfg, storage.ListKinds())
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return 1
	}

	if cfg.Local == 0 {
		log.SetPrefix(fmt.Sprintf("[rank %d] ", cfg.Rank))
	} else {
		log.SetPrefix("[local] ")
	}
	defer log.SetPrefix("")

	if err := execute(context.Background(), cfg, stdout); err != nil {
		log.Printf("%v", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	start := time.Now()

	codes, err := langcode.Load(cfg.LangCodes)
	if err != nil {
		return err
	}
	src := file.NewLocal(cfg.Input)
	if _, err := src.Size(ctx); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	cls, err := tweet.New(tweet.DefaultPattern)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		log.Printf("tagfreq: %d ranks over %s, top %d", cfg.GroupSize(), src.Path(), cfg.Top)
	}

	flush := setupMetrics(cfg)
	defer flush()

	skips, err := skiplog.New(skippedPath(cfg), cfg.SkippedLimit)
	if err != nil {
		return err
	}
	defer func() {
		skips.Summarize()
		if err := skips.Close(); err != nil {
			log.Printf("skiplog: close: %v", err)
		}
	}()

	opts := pipeline.Options{
		Source: src,
		Scan: scan.Config{
			Workers:    cfg.Workers,
			ChunkSize:  cfg.ChunkSize,
			Classifier: cls,
			Skips:      skips,
			BufSize:    cfg.BufSize,
			Job:        cfg.Job,
			Verbose:    cfg.Verbose,
		},
		Reduce: collective.ReduceOptions{
			Limits:  collective.DefaultLimits(cfg.MaxFrame),
			Job:     cfg.Job,
			Verbose: cfg.Verbose,
		},
		Verbose: cfg.Verbose,
	}

	var res pipeline.Result
	switch {
	case cfg.Local > 0:
		res, err = pipeline.RunLocal(ctx, cfg.Local, opts)
	case cfg.Size <= 1:
		g := collective.NewLocalGroup(1)
		res, err = pipeline.Run(ctx, g.Comm(0), opts)
		g.Close()
	default:
		var c *rpccomm.Comm
		c, err = rpccomm.New(rpccomm.Config{
			Rank:        cfg.Rank,
			Peers:       cfg.Peers,
			Listen:      cfg.Listen,
			DialTimeout: cfg.DialTimeout,
			MaxFrame:    cfg.MaxFrame,
			Verbose:     cfg.Verbose,
		})
		if err != nil {
			return err
		}
		res, err = pipeline.Run(ctx, c, opts)
		if cerr := c.Close(); cerr != nil && cfg.Verbose {
			log.Printf("rpccomm: close: %v", cerr)
		}
	}
	if err != nil {
		return err
	}
	if cfg.Verbose {
		log.Printf("scan: lines=%d records=%d skipped=%d", res.Stats.Lines, res.Stats.Records, res.Stats.Skipped)
	}
	if res.Rank != 0 {
		return nil
	}

	if err := report.Print(stdout, "Language Freq Results", res.Pair.Lang, cfg.Top, codes.Format); err != nil {
		return err
	}
	if err := report.Print(stdout, "Hashtag Freq Results", res.Pair.Tags, cfg.Top, nil); err != nil {
		return err
	}
	if cfg.Store != "" {
		if err := store(ctx, cfg, res); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "\n[*] Time cost: %s\n", time.Since(start).Truncate(time.Millisecond))
	return nil
}

// setupMetrics installs the configured backend and returns its flush.
func setupMetrics(cfg *config.Config) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(cfg.MetricsBackend) {
	case "prometheus":
		b, err = prompush.NewBackend(cfg.Job, cfg.PushgatewayURL, cfg.Rank)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  "tagfreq.",
			GlobalTags: []string{fmt.Sprintf("rank:%d", cfg.Rank)},
		})
	default:
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: %v; using nop", err)
		return func() {}
	}
	if cfg.Verbose {
		log.Printf("metrics: backend=%s job=%s", cfg.MetricsBackend, cfg.Job)
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// skippedPath gives each process of a multi-process group its own file.
func skippedPath(cfg *config.Config) string {
	if cfg.SkippedCSV == "" || cfg.Local > 0 || cfg.GroupSize() <= 1 {
		return cfg.SkippedCSV
	}
	ext := filepath.Ext(cfg.SkippedCSV)
	return fmt.Sprintf("%s.rank%d%s", strings.TrimSuffix(cfg.SkippedCSV, ext), cfg.Rank, ext)
}

func store(ctx context.Context, cfg *config.Config, res pipeline.Result) error {
	repo, err := storage.New(ctx, storage.Config{
		Kind:    cfg.Store,
		DSN:     cfg.StoreDSN,
		Table:   cfg.StoreTable,
		Columns: storage.ResultColumns,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	if err := storage.EnsureTable(ctx, cfg.Store, repo, cfg.StoreTable); err != nil {
		return err
	}
	runID := storage.NewRunID()
	n, err := storage.SaveResults(ctx, repo, runID, res.Pair, cfg.BatchSize)
	if err != nil {
		return err
	}
	log.Printf("storage: run %s: %d rows written to %s", runID, n, cfg.StoreTable)
	return nil
}
