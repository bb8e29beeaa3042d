// Package partition splits a byte span into contiguous inclusive ranges.
//
// The same arithmetic is used at two levels: the whole input file across the
// ranks of a group, and one rank's range across worker chunks. Range
// boundaries fall on arbitrary bytes; the scanner resynchronizes on line
// terminators, so ranges are never aligned to lines here.
package partition

import "fmt"

// DefaultChunkSize is the target size of one worker unit inside a process.
const DefaultChunkSize int64 = 200 * 1000 * 1000

// Range is an inclusive [Start, End] byte interval. It is empty when
// End == Start-1.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in r.
func (r Range) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Empty reports whether r covers no bytes.
func (r Range) Empty() bool { return r.End < r.Start }

func (r Range) String() string { return fmt.Sprintf("[%d,%d]", r.Start, r.End) }

// Partition returns the range owned by worker index out of workers over a
// span of total bytes starting at offset 0.
//
// chunk = ceil(total/workers); start = index*chunk;
// end = min(total, (index+1)*chunk) - 1. The last worker always ends at
// total-1. Workers starting past the end get the empty range [total, total-1].
func Partition(total int64, workers, index int) Range {
	if total <= 0 || workers < 1 {
		return Range{Start: 0, End: -1}
	}
	w := int64(workers)
	chunk := total / w
	if total%w != 0 {
		chunk++
	}
	start := int64(index) * chunk
	if start >= total {
		return Range{Start: total, End: total - 1}
	}
	end := min(total, (int64(index)+1)*chunk) - 1
	if index == workers-1 {
		end = total - 1
	}
	return Range{Start: start, End: end}
}

// Split cuts parent into ceil(len/chunkSize) contiguous sub-ranges using
// Partition. An empty parent yields no sub-ranges.
func Split(parent Range, chunkSize int64) []Range {
	n := parent.Len()
	if n == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	count := n / chunkSize
	if n%chunkSize != 0 {
		count++
	}
	out := make([]Range, 0, count)
	for i := 0; i < int(count); i++ {
		r := Partition(n, int(count), i)
		if r.Empty() {
			continue
		}
		out = append(out, Range{Start: parent.Start + r.Start, End: parent.Start + r.End})
	}
	return out
}
