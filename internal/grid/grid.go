// Package grid holds the labeled array model shared by the reducers: a time
// series of 2-D spatial fields read from a gridded file, and the 2-D layers
// derived from it.
package grid

import (
	"fmt"
	"slices"
	"time"
)

// Attr is a single metadata entry of a variable or dataset.
type Attr struct {
	Name  string
	Value any
}

// Attributes is an ordered attribute list. Names are unique.
type Attributes []Attr

// Get returns the value stored under name.
func (a Attributes) Get(name string) (any, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return nil, false
}

// String returns the value under name if it is a string.
func (a Attributes) String(name string) string {
	v, _ := a.Get(name)
	s, _ := v.(string)
	return s
}

// Set returns a copy of a with name set to value, replacing an existing
// entry in place or appending a new one.
func (a Attributes) Set(name string, value any) Attributes {
	out := slices.Clone(a)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Attr{Name: name, Value: value})
}

// Without returns a copy of a lacking the named entries.
func (a Attributes) Without(names ...string) Attributes {
	out := make(Attributes, 0, len(a))
	for _, at := range a {
		if !slices.Contains(names, at.Name) {
			out = append(out, at)
		}
	}
	return out
}

// Axis is a 1-D spatial coordinate.
type Axis struct {
	Name   string
	Values []float64
	Attrs  Attributes
}

// Len returns the number of coordinate values.
func (a Axis) Len() int {
	return len(a.Values)
}

// Equal reports whether both axes have the same name and coordinate values.
func (a Axis) Equal(b Axis) bool {
	return a.Name == b.Name && slices.Equal(a.Values, b.Values)
}

// Field is one time step of a variable in row-major (y, x) order. Missing
// samples are NaN.
type Field []float64

// StepReader materialises time steps [begin, end) of a variable.
type StepReader interface {
	ReadSteps(begin, end int) ([]Field, error)
}

// Variable is a named quantity sampled over a time axis and a fixed 2-D
// spatial grid. Samples are only loaded on ReadSteps.
type Variable struct {
	Name  string
	Attrs Attributes
	Time  []time.Time
	Y     Axis
	X     Axis

	steps StepReader
}

// NewVariable creates a variable whose samples are served by r.
func NewVariable(name string, attrs Attributes, times []time.Time, y, x Axis, r StepReader) *Variable {
	return &Variable{
		Name:  name,
		Attrs: attrs,
		Time:  times,
		Y:     y,
		X:     x,
		steps: r,
	}
}

// Len returns the number of time steps.
func (v *Variable) Len() int {
	return len(v.Time)
}

// Size returns the number of spatial cells.
func (v *Variable) Size() int {
	return v.Y.Len() * v.X.Len()
}

// ReadSteps loads time steps [begin, end). end is clamped to Len.
func (v *Variable) ReadSteps(begin, end int) ([]Field, error) {
	if end > v.Len() {
		end = v.Len()
	}
	if begin < 0 || begin > end {
		return nil, fmt.Errorf("invalid time range [%d, %d) for %d steps", begin, end, v.Len())
	}
	if begin == end {
		return nil, nil
	}
	fields, err := v.steps.ReadSteps(begin, end)
	if err != nil {
		return nil, err
	}
	if len(fields) != end-begin {
		return nil, fmt.Errorf("read %d steps of %q, want %d", len(fields), v.Name, end-begin)
	}
	for i, f := range fields {
		if len(f) != v.Size() {
			return nil, fmt.Errorf("step %d of %q has %d cells, want %d", begin+i, v.Name, len(f), v.Size())
		}
	}
	return fields, nil
}

// CheckTime returns an error unless the time axis is strictly increasing.
func (v *Variable) CheckTime() error {
	for i := 1; i < len(v.Time); i++ {
		if !v.Time[i].After(v.Time[i-1]) {
			return fmt.Errorf("time axis of %q is not strictly increasing at step %d (%s after %s)",
				v.Name, i, v.Time[i].Format(time.RFC3339), v.Time[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

// SameAxes returns an error unless a and b share identical time and spatial
// axes.
func SameAxes(a, b *Variable) error {
	if !slices.EqualFunc(a.Time, b.Time, time.Time.Equal) {
		return fmt.Errorf("time axes of %q and %q differ", a.Name, b.Name)
	}
	if !a.Y.Equal(b.Y) || !a.X.Equal(b.X) {
		return fmt.Errorf("spatial axes of %q and %q differ", a.Name, b.Name)
	}
	return nil
}

// Months returns the calendar month (1..12) of every timestamp.
func Months(times []time.Time) []int {
	months := make([]int, len(times))
	for i, t := range times {
		months[i] = int(t.UTC().Month())
	}
	return months
}

// MemSteps serves time steps from memory.
type MemSteps []Field

// ReadSteps implements StepReader.
func (m MemSteps) ReadSteps(begin, end int) ([]Field, error) {
	if begin < 0 || end > len(m) || begin > end {
		return nil, fmt.Errorf("invalid time range [%d, %d) for %d steps", begin, end, len(m))
	}
	return m[begin:end], nil
}
