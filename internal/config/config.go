// Package config centralizes tagfreq configuration. Every knob is a
// command-line flag whose default is seeded from a TAGFREQ_* environment
// variable, so `-help` shows the effective defaults and containers can be
// configured through the environment alone.
//
// LoadFromArgs takes the flag set, environment and arguments explicitly, so
// tests stay hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-workers=4", "in.json", "codes.csv"})
package config

import (
	"flag"
	"runtime"
	"strconv"
	"strings"
	"time"

	"tagfreq/internal/collective"
	"tagfreq/internal/partition"
	"tagfreq/internal/report"
)

// EnvPrefix prefixes every environment variable read by LoadFromArgs.
const EnvPrefix = "TAGFREQ_"

// Config holds the configuration of one rank. It is a plain value and may be
// copied freely after construction.
type Config struct {
	// Positional arguments.
	Input     string // input corpus
	LangCodes string // language-code table
	Args      []string

	// Group membership.
	Rank        int
	Size        int
	Peers       []string // host:port per rank, rank order
	Listen      string   // local listen override
	Local       int      // >0 runs that many ranks in-process
	DialTimeout time.Duration
	MaxFrame    int64

	// Scan tunables.
	Workers   int
	ChunkSize int64
	BufSize   int

	// Output.
	Top          int
	SkippedCSV   string
	SkippedLimit int
	Verbose      bool

	// Metrics.
	Job            string
	MetricsBackend string // none, prometheus, datadog
	PushgatewayURL string
	StatsdAddr     string

	// Result sink.
	Store      string // storage kind, empty disables
	StoreDSN   string
	StoreTable string
	BatchSize  int
}

// LoadFromArgs defines flags on fs, seeds each default from getenv and then
// parses args. Explicit flags override the environment. Positional
// arguments are the input path and the language-code table path.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	env := func(k string) string { return getenv(EnvPrefix + k) }
	str := func(k, d string) string {
		if v := env(k); v != "" {
			return v
		}
		return d
	}
	num := func(k string, d int) int {
		if v := env(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	num64 := func(k string, d int64) int64 {
		if v := env(k); v != "" {
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return i
			}
		}
		return d
	}
	boolean := func(k string, d bool) bool {
		switch strings.ToLower(env(k)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return d
	}
	dur := func(k string, d time.Duration) time.Duration {
		if v := env(k); v != "" {
			if x, err := time.ParseDuration(v); err == nil {
				return x
			}
		}
		return d
	}

	var peers string
	fs.IntVar(&cfg.Rank, "rank", num("RANK", 0), "This process's rank in the group.")
	fs.IntVar(&cfg.Size, "size", num("SIZE", 1), "Number of processes in the group.")
	fs.StringVar(&peers, "peers", str("PEERS", ""), "Comma-separated host:port of every rank, in rank order.")
	fs.StringVar(&cfg.Listen, "listen", str("LISTEN", ""), "Listen address override (defaults to this rank's peer address).")
	fs.IntVar(&cfg.Local, "local", num("LOCAL", 0), "Run N ranks inside this process.")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", dur("DIAL_TIMEOUT", 30*time.Second), "How long to keep dialing a peer.")
	fs.Int64Var(&cfg.MaxFrame, "max-frame", num64("MAX_FRAME", collective.DefaultMaxBytes), "Largest accepted reduction frame in bytes.")

	fs.IntVar(&cfg.Workers, "workers", num("WORKERS", runtime.GOMAXPROCS(0)), "Scan goroutines per rank.")
	fs.Int64Var(&cfg.ChunkSize, "chunk", num64("CHUNK", partition.DefaultChunkSize), "Bytes per scan work unit.")
	fs.IntVar(&cfg.BufSize, "bufsize", num("BUFSIZE", 1<<20), "Read buffer per scan worker.")

	fs.IntVar(&cfg.Top, "top", num("TOP", report.DefaultTop), "Places to print per table (ties included).")
	fs.StringVar(&cfg.SkippedCSV, "skipped", str("SKIPPED", ""), "Write skipped records to this CSV file.")
	fs.IntVar(&cfg.SkippedLimit, "skipped-limit", num("SKIPPED_LIMIT", 20), "Skipped-record messages kept for the summary.")
	fs.BoolVar(&cfg.Verbose, "v", boolean("VERBOSE", false), "Verbose progress logging.")

	fs.StringVar(&cfg.Job, "job", str("JOB", "tagfreq"), "Job name for metrics and stored runs.")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", str("METRICS_BACKEND", "none"), "Metrics backend: none, prometheus or datadog.")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", str("PUSHGATEWAY_URL", ""), "Prometheus Pushgateway URL.")
	fs.StringVar(&cfg.StatsdAddr, "statsd-addr", str("STATSD_ADDR", "127.0.0.1:8125"), "DogStatsD address.")

	fs.StringVar(&cfg.Store, "store", str("STORE", ""), "Persist results to this storage kind (sqlite, postgres, mssql, mysql).")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", str("STORE_DSN", ""), "Storage DSN.")
	fs.StringVar(&cfg.StoreTable, "store-table", str("STORE_TABLE", "tag_frequencies"), "Storage table.")
	fs.IntVar(&cfg.BatchSize, "batch-size", num("BATCH_SIZE", 5000), "Rows per storage batch.")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Peers = splitList(peers)
	cfg.Args = fs.Args()
	if len(cfg.Args) > 0 {
		cfg.Input = cfg.Args[0]
	}
	if len(cfg.Args) > 1 {
		cfg.LangCodes = cfg.Args[1]
	}
	return cfg, nil
}

// GroupSize is the number of ranks taking part in the run.
func (c *Config) GroupSize() int {
	if c.Local > 0 {
		return c.Local
	}
	return c.Size
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
