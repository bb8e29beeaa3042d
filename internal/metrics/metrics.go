// Package metrics records what a counting run did: how long each step took,
// how many lines, records and bytes the scan saw, and how many frames the
// reduction exchanged.
//
// Instrumented code calls the package-level helpers. They forward to one
// process-wide Backend, a no-op until SetBackend installs a real one (see
// the prompush and datadog subpackages).
package metrics

import (
	"sync/atomic"
	"time"
)

// Metric names.
const (
	StepTotal    = "tagfreq_step_total"
	StepDuration = "tagfreq_step_duration_seconds"
	RecordsTotal = "tagfreq_records_total"
	BytesTotal   = "tagfreq_bytes_scanned_total"
	FramesTotal  = "tagfreq_frames_total"
)

// Labels are attached to a single observation.
type Labels map[string]string

// Backend receives observations. Implementations must be safe for
// concurrent use; scan workers report from many goroutines.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush delivers buffered observations, e.g. a Pushgateway push.
	Flush() error
}

type discard struct{}

func (discard) IncCounter(string, float64, Labels)       {}
func (discard) ObserveHistogram(string, float64, Labels) {}
func (discard) Flush() error                             { return nil }

type holder struct{ b Backend }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{discard{}}) }

func load() Backend { return current.Load().b }

// SetBackend installs b for all later observations. nil is ignored.
func SetBackend(b Backend) {
	if b != nil {
		current.Store(&holder{b})
	}
}

// Flush flushes the installed backend.
func Flush() error { return load().Flush() }

// RecordStep counts one finished step and observes its duration. The status
// label is "failure" when err is non-nil.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	l := Labels{"job": job, "step": step, "status": status}
	b := load()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDuration, d.Seconds(), l)
}

// StartStep starts timing step; calling the returned func records it.
//
//	done := metrics.StartStep(job, "reduce")
//	err := reduce()
//	done(err)
func StartStep(job, step string) func(err error) {
	start := time.Now()
	return func(err error) { RecordStep(job, step, err, time.Since(start)) }
}

// RecordRecords adds delta to the record counter of kind: "lines",
// "counted" or "skipped".
func RecordRecords(job, kind string, delta int64) {
	count(RecordsTotal, delta, Labels{"job": job, "kind": kind})
}

// RecordBytes adds delta scanned bytes.
func RecordBytes(job string, delta int64) {
	count(BytesTotal, delta, Labels{"job": job})
}

// RecordFrames adds delta reduction frames; direction is "sent" or
// "received".
func RecordFrames(job, direction string, delta int64) {
	count(FramesTotal, delta, Labels{"job": job, "direction": direction})
}

func count(name string, delta int64, l Labels) {
	if delta > 0 {
		load().IncCounter(name, float64(delta), l)
	}
}
