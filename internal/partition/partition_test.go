package partition

import "testing"

// checkCover asserts that ranges partition [0,total-1] exactly.
func checkCover(t *testing.T, total int64, ranges []Range) {
	t.Helper()
	var next int64
	for i, r := range ranges {
		if r.End < r.Start-1 {
			t.Fatalf("range %d %v: end < start-1", i, r)
		}
		if r.Empty() {
			continue
		}
		if r.Start != next {
			t.Fatalf("range %d %v: starts at %d, want %d (gap or overlap)", i, r, r.Start, next)
		}
		next = r.End + 1
	}
	if next != total {
		t.Fatalf("ranges cover [0,%d), want [0,%d)", next, total)
	}
}

func TestPartition_Coverage(t *testing.T) {
	t.Parallel()

	for total := int64(0); total <= 64; total++ {
		for workers := 1; workers <= 12; workers++ {
			ranges := make([]Range, workers)
			for i := range ranges {
				ranges[i] = Partition(total, workers, i)
			}
			checkCover(t, total, ranges)
			if last := ranges[workers-1]; last.End != total-1 {
				t.Fatalf("total=%d workers=%d: last range %v does not end at %d", total, workers, last, total-1)
			}
		}
	}
}

func TestPartition_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		total          int64
		workers, index int
		want           Range
	}{
		{"even split first", 100, 4, 0, Range{0, 24}},
		{"even split last", 100, 4, 3, Range{75, 99}},
		{"remainder absorbed", 10, 3, 2, Range{8, 9}},
		{"more workers than chunks", 5, 4, 3, Range{5, 4}},
		{"empty file", 0, 3, 1, Range{0, -1}},
		{"single worker", 7, 1, 0, Range{0, 6}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Partition(tc.total, tc.workers, tc.index); got != tc.want {
				t.Fatalf("Partition(%d,%d,%d) = %v, want %v", tc.total, tc.workers, tc.index, got, tc.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	parent := Range{Start: 1000, End: 1999}
	subs := Split(parent, 300)
	if len(subs) != 4 {
		t.Fatalf("len(Split) = %d, want 4", len(subs))
	}
	if subs[0].Start != parent.Start || subs[len(subs)-1].End != parent.End {
		t.Fatalf("Split does not span parent: %v", subs)
	}
	for i := 1; i < len(subs); i++ {
		if subs[i].Start != subs[i-1].End+1 {
			t.Fatalf("gap between %v and %v", subs[i-1], subs[i])
		}
		if subs[i].Len() > 300 {
			t.Fatalf("sub-range %v exceeds chunk size", subs[i])
		}
	}

	if got := Split(Range{Start: 5, End: 4}, 10); got != nil {
		t.Fatalf("Split(empty) = %v, want nil", got)
	}
}
