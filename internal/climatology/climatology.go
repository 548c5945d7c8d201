// Package climatology reduces a time series of 2-D fields into per-month and
// overall mean and valid-count layers.
package climatology

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rtm0/marineclim/internal/grid"
)

// Strategy selects how the source is scanned.
type Strategy int

const (
	// TwoPass reads each month's steps separately, then scans the whole time
	// axis again in chunks for the annual statistic. At most one month or one
	// chunk of samples is in memory at a time.
	TwoPass Strategy = iota
	// SinglePass scans the time axis once in chunks and keeps 13
	// accumulators (12 months plus annual) instead of one.
	SinglePass
)

func (s Strategy) String() string {
	if s == SinglePass {
		return "single-pass"
	}
	return "two-pass"
}

// ParseStrategy parses the names returned by Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "two-pass", "":
		return TwoPass, nil
	case "single-pass":
		return SinglePass, nil
	}
	return 0, fmt.Errorf("unknown strategy %q (want two-pass or single-pass)", s)
}

// AnnualLabel is the period label of the whole-series layers.
const AnnualLabel = "overall_annual"

// Recorder receives the number of time steps read by each scan.
type Recorder interface {
	StepsRead(pass string, n int)
}

// Options controls a reduction.
type Options struct {
	// ChunkSize is the number of time steps loaded per block. Must be positive.
	ChunkSize int
	Strategy  Strategy
	Logger    *slog.Logger
	Recorder  Recorder
}

// MonthLabel returns the period label of month m (1..12).
func MonthLabel(m int) string {
	return fmt.Sprintf("month_%02d", m)
}

// MeanName returns the name of the mean layer of variable for label.
func MeanName(variable, label string) string {
	return fmt.Sprintf("%s_avg_%s", variable, label)
}

// CountName returns the name of the count layer of variable for label.
func CountName(variable, label string) string {
	return fmt.Sprintf("%s_count_%s", variable, label)
}

// Reduce computes the 12 monthly climatologies and the overall annual mean
// and count of v. The result holds 26 layers: mean and count for month_01 to
// month_12, then overall_annual.
func Reduce(v *grid.Variable, opts Options) (*grid.Dataset, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	r := &reducer{
		v:      v,
		months: grid.Months(v.Time),
		chunk:  opts.ChunkSize,
		logger: opts.Logger,
		rec:    opts.Recorder,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.rec == nil {
		r.rec = nopRecorder{}
	}
	r.logger.Info("Computing climatology", "variable", v.Name, "steps", v.Len(),
		"cells", v.Size(), "chunkSize", opts.ChunkSize, "strategy", opts.Strategy)

	var (
		monthly [12]*accumulator
		annual  *accumulator
		err     error
	)
	switch opts.Strategy {
	case TwoPass:
		for m := 1; m <= 12; m++ {
			if monthly[m-1], err = r.month(m); err != nil {
				return nil, err
			}
		}
		annual, err = r.annual()
	case SinglePass:
		monthly, annual, err = r.singlePass()
	default:
		err = errors.New("unknown strategy")
	}
	if err != nil {
		return nil, err
	}

	ds := grid.NewDataset(v.Y, v.X)
	for m := 1; m <= 12; m++ {
		r.addLayers(ds, MonthLabel(m), monthly[m-1])
	}
	r.addLayers(ds, AnnualLabel, annual)
	return ds, nil
}

type reducer struct {
	v      *grid.Variable
	months []int
	chunk  int
	logger *slog.Logger
	rec    Recorder
}

func (r *reducer) addLayers(ds *grid.Dataset, label string, acc *accumulator) {
	meanAttrs := r.v.Attrs.Without(grid.PackingAttrs...)
	ds.Add(grid.NewMeanLayer(MeanName(r.v.Name, label), meanAttrs, acc.mean()))

	countAttrs := grid.Attributes{
		{Name: "long_name", Value: fmt.Sprintf("Number of valid observations for %s average", label)},
		{Name: "units", Value: "1"},
	}
	ds.Add(grid.NewCountLayer(CountName(r.v.Name, label), countAttrs, acc.count))
}

type nopRecorder struct{}

func (nopRecorder) StepsRead(string, int) {}
