// Package datadog sends run metrics to a DogStatsD agent.
package datadog

import (
	"errors"
	"sort"
	"strings"
	"time"

	"tagfreq/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config selects the agent and the tags every metric carries.
type Config struct {
	Addr       string   // "host:port" or "unix:///path"
	Namespace  string   // metric name prefix, e.g. "tagfreq."
	GlobalTags []string // e.g. "rank:0"
}

// Backend implements metrics.Backend. Step durations go out as timings;
// every other observation is a distribution.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials the agent described by cfg.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: agent address is required")
	}
	opts := []statsd.Option{statsd.WithoutTelemetry()}
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Backend{client: c}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	_ = b.client.Count(name, int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name == metrics.StepDuration {
		d := time.Duration(value * float64(time.Second))
		_ = b.client.Timing(name, d, tags(labels), 1)
		return
	}
	_ = b.client.Distribution(name, value, tags(labels), 1)
}

// Flush sends what is buffered and closes the client; the backend is
// unusable afterwards.
func (b *Backend) Flush() error {
	if err := b.client.Flush(); err != nil {
		return err
	}
	return b.client.Close()
}

// tags renders labels as sorted "key:value" tags. DogStatsD reserves ',' and
// '|' in tag values, so they are replaced with '_'.
func tags(l metrics.Labels) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for k, v := range l {
		out = append(out, k+":"+tagValue.Replace(v))
	}
	sort.Strings(out)
	return out
}

var tagValue = strings.NewReplacer(",", "_", "|", "_")
