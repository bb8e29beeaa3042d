// Package scan counts languages and hashtags over byte ranges of the input.
//
// ScanRange is the per-worker aggregator: it owns its destination tables and
// never synchronizes while reading. Section runs a pool of such workers over
// one process's range and merges their tables under a mutex.
//
// Line ownership: a range starting past offset 0 discards everything up to
// and including the first '\n' at or after its start, then reads lines while
// its cursor is <= End. If a line ends exactly on End, the line that starts
// at End+1 is read as well, because the next range discarded it. Every line
// is therefore processed by exactly one range, whatever the split points.
package scan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"tagfreq/internal/freq"
	"tagfreq/internal/parser/tweet"
	"tagfreq/internal/partition"
	"tagfreq/internal/skiplog"
)

const defaultBufSize = 1 << 20 // 1 MiB per worker

// Classifier maps a clean JSON record to its language and hashtags.
type Classifier interface {
	Classify(rec []byte) (tweet.Result, error)
}

// Options tunes a single range scan.
type Options struct {
	BufSize int          // read buffer size; defaults to 1 MiB
	Skips   *skiplog.Log // optional sink for malformed records
}

// Stats counts what a scan saw.
type Stats struct {
	Lines   int64 // physical lines read
	Records int64 // records classified and counted
	Skipped int64 // malformed records skipped
	Bytes   int64 // bytes consumed, including resynchronization
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Records += o.Records
	s.Skipped += o.Skipped
	s.Bytes += o.Bytes
}

// ScanRange scans rng of r and counts into dst. An empty range reads nothing.
func ScanRange(r io.ReaderAt, rng partition.Range, cls Classifier, dst freq.Pair, opts Options) (Stats, error) {
	var st Stats
	if rng.Empty() {
		return st, nil
	}
	bufSize := opts.BufSize
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	// Small ranges only read a line or two past their end.
	if n := rng.Len() + 4096; n < int64(bufSize) {
		bufSize = int(n)
	}
	br := bufio.NewReaderSize(io.NewSectionReader(r, rng.Start, math.MaxInt64-rng.Start), bufSize)

	cur := rng.Start
	if rng.Start > 0 {
		n, err := skipLine(br)
		cur += n
		st.Bytes += n
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("scan %v: resync: %w", rng, err)
		}
	}

	var scratch []byte
	for cur <= rng.End+1 {
		line, err := readLine(br, &scratch)
		if len(line) == 0 && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return st, fmt.Errorf("scan %v at %d: %w", rng, cur, err)
		}
		off := cur
		cur += int64(len(line))
		st.Bytes += int64(len(line))
		st.Lines++

		if n := len(line); n > 0 && line[n-1] == '\n' {
			line = line[:n-1]
		}
		rec, final := ExtractRecord(line)
		if rec != nil {
			if res, cerr := cls.Classify(rec); cerr != nil {
				st.Skipped++
				opts.Skips.Add(skipReason(cerr), off, cerr, rec)
			} else {
				st.Records++
				dst.Lang.Add(res.Lang)
				for _, h := range res.Hashtags {
					dst.Tags.Add(h)
				}
			}
		}
		if final || err == io.EOF {
			break
		}
	}
	return st, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, tweet.ErrMissingField):
		return "missing_field"
	case errors.Is(err, tweet.ErrBadLang):
		return "bad_lang"
	default:
		return "decode"
	}
}

// skipLine discards bytes through the next '\n' and returns how many it read.
func skipLine(br *bufio.Reader) (int64, error) {
	var n int64
	for {
		frag, err := br.ReadSlice('\n')
		n += int64(len(frag))
		if err == bufio.ErrBufferFull {
			continue
		}
		return n, err
	}
}

// readLine returns the next line including its '\n', if any. The result is
// valid until the next call; long lines are assembled in *scratch.
func readLine(br *bufio.Reader, scratch *[]byte) ([]byte, error) {
	buf := (*scratch)[:0]
	for {
		frag, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			buf = append(buf, frag...)
			continue
		}
		if len(buf) == 0 {
			return frag, err
		}
		buf = append(buf, frag...)
		*scratch = buf
		return buf, err
	}
}
