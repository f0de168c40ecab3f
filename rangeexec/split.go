package rangeexec

// Bounds is the sub-range [Start, End) assigned to worker Index.
// The last worker's range is closed at the domain end.
type Bounds struct {
	Index      int
	Start, End float64
}

// Split divides [start, end] into n contiguous sub-ranges. Every bound comes
// from the same expression, so worker i's End is bit-identical to worker
// i+1's Start, and the last End is exactly end. n must be at least 1.
func Split(start, end float64, n int) []Bounds {
	bound := func(i int) float64 {
		if i == n {
			return end
		}
		return start + float64(i)*(end-start)/float64(n)
	}

	out := make([]Bounds, n)
	lo := bound(0)
	for i := range out {
		hi := bound(i + 1)
		out[i] = Bounds{Index: i, Start: lo, End: hi}
		lo = hi
	}
	return out
}
