// Package prompush pushes run metrics to a Prometheus Pushgateway.
//
// Collectors are registered on a private registry and pushed once per rank
// when the run finishes; the rank becomes an extra grouping key so that
// concurrent ranks of the same job do not overwrite each other.
package prompush

import (
	"fmt"
	"strconv"

	"tagfreq/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	rank       int
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec
	stepDuration *prometheus.SummaryVec
	records      *prometheus.CounterVec
	bytes        prometheus.Counter
	frames       *prometheus.CounterVec
}

// NewBackend constructs a Pushgateway backend for one rank of jobName.
func NewBackend(jobName, gatewayURL string, rank int) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "tagfreq"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		rank:       rank,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Step executions, partitioned by step and status.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Step duration in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records per kind (lines, counted, skipped).",
		}, []string{"kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BytesTotal,
			Help: "Input bytes consumed by scan workers.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FramesTotal,
			Help: "Reduction frames per direction (sent, received).",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.records, b.bytes, b.frames} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BytesTotal:
		b.bytes.Add(delta)
	case metrics.FramesTotal:
		b.frames.WithLabelValues(labels["direction"]).Add(delta)
	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Grouping("rank", strconv.Itoa(b.rank)).
		Gatherer(b.reg).
		Push()
}
