// Package freq holds the frequency tables produced at every level of a run:
// per worker, per process and, after the collective reduction, per group.
//
// A Table is owned by exactly one goroutine until it is merged into a parent.
// Merging adds counts into the destination; the source should be dropped by
// the caller afterwards.
package freq

// Table maps a key (language code or lowercase hashtag) to its count.
type Table map[string]uint64

// NewTable returns an empty table.
func NewTable() Table { return make(Table) }

// Add increments key by one, inserting it when absent.
func (t Table) Add(key string) { t[key]++ }

// AddN increments key by n.
func (t Table) AddN(key string, n uint64) { t[key] += n }

// Merge adds every count of src into t.
func (t Table) Merge(src Table) {
	for k, n := range src {
		t[k] += n
	}
}

// Total returns the sum of all counts.
func (t Table) Total() uint64 {
	var sum uint64
	for _, n := range t {
		sum += n
	}
	return sum
}

// Equal reports whether t and o hold the same keys with the same counts.
func (t Table) Equal(o Table) bool {
	if len(t) != len(o) {
		return false
	}
	for k, n := range t {
		if m, ok := o[k]; !ok || m != n {
			return false
		}
	}
	return true
}

// Pair is the unit of work passed between layers: languages and hashtags.
type Pair struct {
	Lang Table
	Tags Table
}

// NewPair returns a pair of empty tables.
func NewPair() Pair {
	return Pair{Lang: NewTable(), Tags: NewTable()}
}

// Merge merges both tables of src into p.
func (p Pair) Merge(src Pair) {
	p.Lang.Merge(src.Lang)
	p.Tags.Merge(src.Tags)
}

// Empty reports whether both tables are empty.
func (p Pair) Empty() bool { return len(p.Lang) == 0 && len(p.Tags) == 0 }

// Equal reports whether both tables of p and o are equal.
func (p Pair) Equal(o Pair) bool {
	return p.Lang.Equal(o.Lang) && p.Tags.Equal(o.Tags)
}
