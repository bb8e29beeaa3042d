package config

import (
	"fmt"
	"slices"
	"strings"
)

// IssueSeverity is the severity of a configuration issue.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateConfig lints c without mutating it. storeKinds lists the storage
// kinds compiled into the binary; nil skips that check.
func ValidateConfig(c Config, storeKinds []string) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if c.Input == "" || c.LangCodes == "" {
		add(SeverityError, "args", "usage: tagfreq [flags] <input.json> <lang_codes.csv>")
	}
	if len(c.Args) > 2 {
		add(SeverityWarning, "args", "ignoring %d extra arguments", len(c.Args)-2)
	}

	switch {
	case c.Local < 0:
		add(SeverityError, "local", "must be >= 0")
	case c.Local > 0:
		if c.Size > 1 || len(c.Peers) > 0 {
			add(SeverityWarning, "local", "-local runs in-process; -size and -peers are ignored")
		}
	default:
		if c.Size < 1 {
			add(SeverityError, "size", "must be >= 1")
		} else if c.Rank < 0 || c.Rank >= c.Size {
			add(SeverityError, "rank", "rank %d out of range [0,%d)", c.Rank, c.Size)
		}
		if c.Size > 1 && len(c.Peers) != c.Size {
			add(SeverityError, "peers", "need %d peer addresses, got %d", c.Size, len(c.Peers))
		}
	}

	if c.Workers < 0 {
		add(SeverityError, "workers", "must be >= 0 (0 means GOMAXPROCS)")
	}
	if c.ChunkSize < 0 {
		add(SeverityError, "chunk", "must be >= 0")
	}
	if c.Top < 1 {
		add(SeverityError, "top", "must be >= 1")
	}
	if c.MaxFrame <= 0 {
		add(SeverityError, "max-frame", "must be > 0")
	}
	if c.DialTimeout <= 0 {
		add(SeverityWarning, "dial-timeout", "non-positive; the default is used")
	}

	switch strings.ToLower(c.MetricsBackend) {
	case "", "none":
	case "prometheus":
		if c.PushgatewayURL == "" {
			add(SeverityError, "pushgateway-url", "required for the prometheus backend")
		}
	case "datadog":
		if c.StatsdAddr == "" {
			add(SeverityError, "statsd-addr", "required for the datadog backend")
		}
	default:
		add(SeverityError, "metrics-backend", "unknown backend %q (want none, prometheus or datadog)", c.MetricsBackend)
	}

	if c.Store != "" {
		if storeKinds != nil && !slices.Contains(storeKinds, c.Store) {
			add(SeverityError, "store", "unknown storage kind %q (have %s)", c.Store, strings.Join(storeKinds, ", "))
		}
		if c.StoreDSN == "" {
			add(SeverityError, "store-dsn", "required when -store is set")
		}
		if c.StoreTable == "" {
			add(SeverityError, "store-table", "must not be empty")
		}
		if c.BatchSize < 1 {
			add(SeverityWarning, "batch-size", "non-positive; the default is used")
		}
	}
	return issues
}
