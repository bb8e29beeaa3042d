// Package report prints the tie-inclusive top of a frequency table.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"tagfreq/internal/freq"
)

// DefaultTop is the number of places printed per table.
const DefaultTop = 10

// Entry is one key of a table with its count.
type Entry struct {
	Key   string
	Count uint64
}

// Sorted returns every entry of t by count descending, then key ascending.
func Sorted(t freq.Table) []Entry {
	out := make([]Entry, 0, len(t))
	for k, n := range t {
		out = append(out, Entry{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Top returns the first n entries of t plus every later entry tied with the
// n-th count. Tables with fewer than n keys are returned whole.
func Top(t freq.Table, n int) []Entry {
	all := Sorted(t)
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if len(all) <= n {
		return all
	}
	cut := all[n-1].Count
	end := n
	for end < len(all) && all[end].Count == cut {
		end++
	}
	return all[:end]
}

// Print writes title and the top n entries of t, one "<place>. <key>, <count>"
// line each. format renders keys; nil prints them unchanged.
func Print(w io.Writer, title string, t freq.Table, n int, format func(string) string) error {
	if format == nil {
		format = func(s string) string { return s }
	}
	if _, err := fmt.Fprintf(w, "\n[*] %s\n", title); err != nil {
		return err
	}
	for i, e := range Top(t, n) {
		if _, err := fmt.Fprintf(w, "%d. %s, %s\n", i+1, format(e.Key), humanize.Comma(int64(e.Count))); err != nil {
			return err
		}
	}
	return nil
}
