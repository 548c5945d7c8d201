// Package peak reduces a pair of vector components to the per-cell maximum
// of their magnitude over time.
package peak

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/rtm0/marineclim/internal/grid"
)

// DefaultName is the name of the output layer when Options.Name is empty.
const DefaultName = "velocity_magnitude_max"

// Options controls a reduction.
type Options struct {
	// Name of the output layer.
	Name string
	// ChunkSize is the number of time steps loaded per block. Must be positive.
	ChunkSize int
	Logger    *slog.Logger
}

// Magnitude returns sqrt(east^2 + north^2).
func Magnitude(east, north float64) float64 {
	return math.Sqrt(east*east + north*north)
}

// Reduce computes max over time of Magnitude(east, north) per cell. Cells
// where every magnitude is NaN are NaN. east and north must share their time
// and spatial axes.
func Reduce(east, north *grid.Variable, opts Options) (*grid.Dataset, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if err := grid.SameAxes(east, north); err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	peak := make([]float64, east.Size())
	for i := range peak {
		peak[i] = math.NaN()
	}
	n := east.Len()
	for begin := 0; begin < n; begin += opts.ChunkSize {
		end := min(begin+opts.ChunkSize, n)
		us, err := east.ReadSteps(begin, end)
		if err != nil {
			return nil, err
		}
		vs, err := north.ReadSteps(begin, end)
		if err != nil {
			return nil, err
		}
		for t := range us {
			for c, u := range us[t] {
				m := Magnitude(u, vs[t][c])
				if math.IsNaN(m) {
					continue
				}
				if math.IsNaN(peak[c]) || m > peak[c] {
					peak[c] = m
				}
			}
		}
		logger.Debug("Processed time steps", "from", begin, "to", end)
	}

	attrs := grid.Attributes{{Name: "long_name", Value: "Maximum velocity magnitude over time"}}
	if units := east.Attrs.String("units"); units != "" {
		attrs = attrs.Set("units", units)
	}
	attrs = attrs.Set("source_variables", east.Name+" "+north.Name)

	ds := grid.NewDataset(east.Y, east.X)
	ds.Add(grid.NewMeanLayer(name, attrs, peak))
	return ds, nil
}
