package climatology

import (
	"fmt"

	"github.com/rtm0/marineclim/internal/grid"
)

// span is a contiguous range [begin, end) of time steps.
type span struct {
	begin, end int
}

// monthSpans returns the contiguous runs of steps that fall in month m,
// each at most limit steps long.
func monthSpans(months []int, m, limit int) []span {
	var spans []span
	for i := 0; i < len(months); {
		if months[i] != m {
			i++
			continue
		}
		begin := i
		for i < len(months) && months[i] == m && i-begin < limit {
			i++
		}
		spans = append(spans, span{begin, i})
	}
	return spans
}

// month reduces only the steps of month m, one span at a time.
func (r *reducer) month(m int) (*accumulator, error) {
	acc := newAccumulator(r.v.Size())
	steps := 0
	for _, s := range monthSpans(r.months, m, r.chunk) {
		fields, err := r.v.ReadSteps(s.begin, s.end)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", MonthLabel(m), err)
		}
		for _, f := range fields {
			acc.add(f)
		}
		steps += len(fields)
	}
	r.rec.StepsRead("monthly", steps)
	r.logger.Info("Calculated monthly climatology", "variable", r.v.Name, "month", m, "steps", steps)
	return acc, nil
}

// annual accumulates the whole time axis in blocks of r.chunk steps.
func (r *reducer) annual() (*accumulator, error) {
	acc := newAccumulator(r.v.Size())
	err := r.blocks("annual", func(_ int, fields []grid.Field) {
		for _, f := range fields {
			acc.add(f)
		}
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// singlePass fills the 12 monthly accumulators and the annual one from a
// single chunked scan.
func (r *reducer) singlePass() ([12]*accumulator, *accumulator, error) {
	var monthly [12]*accumulator
	for i := range monthly {
		monthly[i] = newAccumulator(r.v.Size())
	}
	annual := newAccumulator(r.v.Size())
	err := r.blocks("single", func(begin int, fields []grid.Field) {
		for j, f := range fields {
			monthly[r.months[begin+j]-1].add(f)
			annual.add(f)
		}
	})
	return monthly, annual, err
}

// blocks reads the time axis in contiguous blocks and hands each to fn.
func (r *reducer) blocks(pass string, fn func(begin int, fields []grid.Field)) error {
	n := r.v.Len()
	for begin := 0; begin < n; begin += r.chunk {
		end := min(begin+r.chunk, n)
		fields, err := r.v.ReadSteps(begin, end)
		if err != nil {
			return fmt.Errorf("%s steps %d to %d: %w", pass, begin, end, err)
		}
		fn(begin, fields)
		r.rec.StepsRead(pass, len(fields))
		r.logger.Info("Processed time steps", "variable", r.v.Name, "pass", pass, "from", begin, "to", end)
	}
	return nil
}
