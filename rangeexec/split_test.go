package rangeexec_test

import (
	"math"
	"testing"

	"github.com/on-the-ground/wrapkit/rangeexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EvenDomain(t *testing.T) {
	got := rangeexec.Split(0, 10, 5)

	assert.Equal(t, []rangeexec.Bounds{
		{Index: 0, Start: 0, End: 2},
		{Index: 1, Start: 2, End: 4},
		{Index: 2, Start: 4, End: 6},
		{Index: 3, Start: 6, End: 8},
		{Index: 4, Start: 8, End: 10},
	}, got)
}

func TestSplit_NoGapNoOverlap(t *testing.T) {
	cases := []struct {
		start, end float64
		n          int
	}{
		{0, 1, 3},
		{0.1, 0.7, 7},
		{-3.3, 12.9, 11},
		{1e-9, 1e9, 13},
		{5, 5, 4},
		{10, 0, 3},
	}
	for _, c := range cases {
		got := rangeexec.Split(c.start, c.end, c.n)
		require.Len(t, got, c.n)
		assert.Equal(t, c.start, got[0].Start)
		assert.Equal(t, c.end, got[c.n-1].End)
		for i := 1; i < c.n; i++ {
			assert.Equal(t, math.Float64bits(got[i-1].End), math.Float64bits(got[i].Start),
				"boundary %d of [%g, %g]/%d", i, c.start, c.end, c.n)
			assert.Equal(t, i, got[i].Index)
		}
	}
}

func TestSplit_SingleWorker(t *testing.T) {
	assert.Equal(t, []rangeexec.Bounds{{Index: 0, Start: -1, End: 1}}, rangeexec.Split(-1, 1, 1))
}
