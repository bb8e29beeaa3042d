package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tagfreq/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func readCounterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var m dto.Metric
	for pm := range ch {
		if err := pm.Write(&m); err != nil {
			t.Fatalf("write metric: %v", err)
		}
	}
	if m.Counter == nil {
		t.Fatalf("metric has no counter value")
	}
	return m.Counter.GetValue()
}

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		job     string
		url     string
		wantErr bool
		wantJob string
	}{
		{name: "missing gateway URL returns error", job: "x", url: "", wantErr: true},
		{name: "default job name", job: "", url: "http://localhost:9091", wantJob: "tagfreq"},
		{name: "explicit job name", job: "nightly", url: "http://localhost:9091", wantJob: "nightly"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewBackend(tc.job, tc.url, 0)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.jobName != tc.wantJob {
				t.Fatalf("jobName = %q, want %q", b.jobName, tc.wantJob)
			}
		})
	}
}

func TestIncCounter_Routing(t *testing.T) {
	b, err := NewBackend("j", "http://localhost:9091", 2)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.RecordsTotal, 5, metrics.Labels{"kind": "counted"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"kind": "counted"})
	b.IncCounter(metrics.BytesTotal, 4096, nil)
	b.IncCounter(metrics.FramesTotal, 8, metrics.Labels{"direction": "sent"})
	b.IncCounter("unknown_metric", 1, nil)

	if got := readCounterValue(t, b.records.WithLabelValues("counted")); got != 7 {
		t.Fatalf("records{counted} = %v, want 7", got)
	}
	if got := readCounterValue(t, b.bytes); got != 4096 {
		t.Fatalf("bytes = %v, want 4096", got)
	}
	if got := readCounterValue(t, b.frames.WithLabelValues("sent")); got != 8 {
		t.Fatalf("frames{sent} = %v, want 8", got)
	}
}

func TestFlush_PushesWithRankGrouping(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		body  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		body = string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("job1", srv.URL, 3)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "reduce", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(paths) != 1 {
		t.Fatalf("push requests = %d, want 1", len(paths))
	}
	if want := "/metrics/job/job1/rank/3"; paths[0] != want {
		t.Fatalf("push path = %q, want %q", paths[0], want)
	}
	if !strings.Contains(body, metrics.StepTotal) {
		t.Fatalf("pushed body does not mention %s", metrics.StepTotal)
	}
}
