package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type observation struct {
	kind   string // "counter" or "histogram"
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	mu      sync.Mutex
	obs     []observation
	flushes int
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	r.obs = append(r.obs, observation{"counter", name, delta, labels})
	r.mu.Unlock()
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	r.obs = append(r.obs, observation{"histogram", name, value, labels})
	r.mu.Unlock()
}

func (r *recorder) Flush() error {
	r.mu.Lock()
	r.flushes++
	r.mu.Unlock()
	return nil
}

// install swaps in a recorder for the duration of the test.
func install(t *testing.T) *recorder {
	t.Helper()
	prev := load()
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(prev) })
	return r
}

func TestRecordStep(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		d      time.Duration
		status string
	}{
		{"success", nil, 2 * time.Second, "success"},
		{"failure", errors.New("peer gone"), 1500 * time.Millisecond, "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := install(t)
			RecordStep("run1", "reduce_round", tt.err, tt.d)

			if len(r.obs) != 2 {
				t.Fatalf("observations = %d, want 2", len(r.obs))
			}
			c, h := r.obs[0], r.obs[1]
			if c.kind != "counter" || c.name != StepTotal || c.value != 1 {
				t.Fatalf("counter = %+v", c)
			}
			if c.labels["status"] != tt.status || c.labels["step"] != "reduce_round" || c.labels["job"] != "run1" {
				t.Fatalf("labels = %v", c.labels)
			}
			if h.kind != "histogram" || h.name != StepDuration || h.value != tt.d.Seconds() {
				t.Fatalf("histogram = %+v, want %v", h, tt.d.Seconds())
			}
		})
	}
}

func TestStartStep(t *testing.T) {
	r := install(t)
	done := StartStep("run1", "scan")
	done(nil)
	if len(r.obs) != 2 || r.obs[0].labels["step"] != "scan" || r.obs[1].value < 0 {
		t.Fatalf("observations = %+v", r.obs)
	}
}

func TestCounters(t *testing.T) {
	r := install(t)

	RecordRecords("j", "counted", 3)
	RecordRecords("j", "skipped", 0)
	RecordBytes("j", 1024)
	RecordBytes("j", -1)
	RecordFrames("j", "sent", 8)

	want := []struct {
		name  string
		value float64
		key   string
		label string
	}{
		{RecordsTotal, 3, "kind", "counted"},
		{BytesTotal, 1024, "job", "j"},
		{FramesTotal, 8, "direction", "sent"},
	}
	if len(r.obs) != len(want) {
		t.Fatalf("observations = %d, want %d (non-positive deltas dropped)", len(r.obs), len(want))
	}
	for i, w := range want {
		o := r.obs[i]
		if o.name != w.name || o.value != w.value || o.labels[w.key] != w.label {
			t.Errorf("obs[%d] = %+v, want %s=%v %s=%s", i, o, w.name, w.value, w.key, w.label)
		}
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	r := install(t)
	SetBackend(nil)
	if load() != Backend(r) {
		t.Fatal("SetBackend(nil) replaced the backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if r.flushes != 1 {
		t.Fatalf("flushes = %d, want 1", r.flushes)
	}
}
