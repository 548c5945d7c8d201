package climatology

import (
	"math"

	"github.com/rtm0/marineclim/internal/grid"
)

// accumulator keeps a running per-cell sum and valid-sample count.
type accumulator struct {
	sum   []float64
	count []int64
}

func newAccumulator(size int) *accumulator {
	return &accumulator{
		sum:   make([]float64, size),
		count: make([]int64, size),
	}
}

// add folds one time step in, skipping NaN samples.
func (a *accumulator) add(f grid.Field) {
	for i, v := range f {
		if math.IsNaN(v) {
			continue
		}
		a.sum[i] += v
		a.count[i]++
	}
}

// mean returns sum/count per cell, NaN where count is zero.
func (a *accumulator) mean() []float64 {
	m := make([]float64, len(a.sum))
	for i, n := range a.count {
		if n == 0 {
			m[i] = math.NaN()
			continue
		}
		m[i] = a.sum[i] / float64(n)
	}
	return m
}
