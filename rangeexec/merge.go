package rangeexec

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Output is what a kernel computes for one sub-range: paired domain and value
// samples plus optional auxiliary results that are carried through unmerged.
type Output struct {
	Domain []float64
	Values []float64
	Aux    []any
}

// Partial is one worker's Output tagged with its sub-range.
type Partial struct {
	Bounds
	Output
}

// Merged is the combined result of a run.
type Merged struct {
	Domain []float64
	Values []float64
	// Aux holds every partial's Aux, in worker-index order.
	Aux []any
}

// Merge combines partials into one result ordered by ascending domain.
//
// Partials are concatenated in worker-index order whatever order they arrive
// in, then stably sorted by domain, so equal domain values keep that order.
// NaN values become 0. Every partial must have as many values as domain samples.
func Merge(partials []Partial) (Merged, error) {
	ordered := slices.Clone(partials)
	slices.SortFunc(ordered, func(a, b Partial) int { return cmp.Compare(a.Index, b.Index) })

	var total int
	for _, p := range ordered {
		if len(p.Domain) != len(p.Values) {
			return Merged{}, fmt.Errorf("partial %d: %d domain samples but %d values",
				p.Index, len(p.Domain), len(p.Values))
		}
		total += len(p.Domain)
	}

	domain := make([]float64, 0, total)
	values := make([]float64, 0, total)
	var aux []any
	for _, p := range ordered {
		domain = append(domain, p.Domain...)
		values = append(values, p.Values...)
		aux = append(aux, p.Aux...)
	}

	perm := make([]int, total)
	for i := range perm {
		perm[i] = i
	}
	// cmp.Compare orders NaN first, keeping the sort a strict weak order.
	slices.SortStableFunc(perm, func(i, j int) int { return cmp.Compare(domain[i], domain[j]) })

	out := Merged{
		Domain: make([]float64, total),
		Values: make([]float64, total),
		Aux:    aux,
	}
	for dst, src := range perm {
		out.Domain[dst] = domain[src]
		v := values[src]
		if math.IsNaN(v) {
			v = 0
		}
		out.Values[dst] = v
	}
	return out, nil
}
