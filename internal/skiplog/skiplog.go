// Package skiplog records input records that were skipped during a scan.
//
// A Log keeps per-reason counts and the first few messages for the end-of-run
// summary, and optionally appends every skipped record to a CSV file
// (reason, byte_offset, error, raw_record). It is safe for concurrent use by
// all scan workers of a process.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// maxRawLen caps how much of a raw record is written to the CSV.
const maxRawLen = 512

// Log aggregates skipped records.
type Log struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	reasons map[string]int

	f *os.File
	w *csv.Writer
}

// New returns a Log that keeps the first limit messages. When path is not
// empty every skipped record is also written to a CSV file at path.
func New(path string, limit int) (*Log, error) {
	l := &Log{limit: limit, reasons: make(map[string]int)}
	if path == "" {
		return l, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("skiplog: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("skiplog: create %s: %w", path, err)
	}
	l.f = f
	l.w = csv.NewWriter(f)
	_ = l.w.Write([]string{"reason", "byte_offset", "error", "raw_record"})
	return l, nil
}

// Add records one skipped record found at byte offset off.
func (l *Log) Add(reason string, off int64, err error, raw []byte) {
	if l == nil {
		return
	}
	msg := reason
	if err != nil {
		msg = fmt.Sprintf("%s at offset %d: %v", reason, off, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	if l.count < l.limit {
		l.first = append(l.first, msg)
	}
	l.count++
	if l.w != nil {
		if len(raw) > maxRawLen {
			raw = raw[:maxRawLen]
		}
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		_ = l.w.Write([]string{reason, strconv.FormatInt(off, 10), errText, string(raw)})
	}
}

// Count returns the number of skipped records.
func (l *Log) Count() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Reasons returns a copy of the per-reason counts.
func (l *Log) Reasons() map[string]int {
	out := make(map[string]int)
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Summarize logs the totals and the first messages.
func (l *Log) Summarize() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	log.Printf("skipped records: %d (showing first %d)", l.count, len(l.first))
	for i, s := range l.first {
		log.Printf("  #%03d: %s", i+1, s)
	}
	keys := make([]string, 0, len(l.reasons))
	for k := range l.reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		log.Printf("  reason=%s count=%d", k, l.reasons[k])
	}
}

// Close flushes and closes the CSV file, if any.
func (l *Log) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	l.f, l.w = nil, nil
	if werr != nil {
		return werr
	}
	return cerr
}
