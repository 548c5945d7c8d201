package grid

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/rtm0/marineclim/internal/apperr"
)

// File is an opened gridded file in NetCDF format (CDF or HDF5).
type File struct {
	path string
	nc   api.Group
}

// Open opens the gridded file at path.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NewInputNotFound(path, err)
		}
		return nil, apperr.NewIO(path, err)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, apperr.NewIO(path, err)
	}
	return &File{path: path, nc: nc}, nil
}

// Close closes the file.
func (f *File) Close() {
	f.nc.Close()
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Variables lists the variable names in the file.
func (f *File) Variables() []string {
	return f.nc.ListVariables()
}

// Summary returns information about the file suitable for logging.
func (f *File) Summary() []any {
	return []any{
		"path", f.path,
		"variables", f.nc.ListVariables(),
	}
}

// Variable looks up a (time, y, x) variable by name and decodes its
// coordinates. Samples stay on disk until ReadSteps.
func (f *File) Variable(name string) (*Variable, error) {
	if !slices.Contains(f.nc.ListVariables(), name) {
		return nil, apperr.NewVariableNotFound(f.path, name, nil)
	}
	vg, err := f.nc.GetVarGetter(name)
	if err != nil {
		return nil, apperr.NewIO(f.path, fmt.Errorf("variable %q: %w", name, err))
	}
	dims := vg.Dimensions()
	if len(dims) != 3 {
		return nil, apperr.NewIO(f.path, fmt.Errorf("variable %q has dimensions %v, want (time, y, x)", name, dims))
	}

	tVals, tAttrs, err := f.coordinate(dims[0])
	if err != nil {
		return nil, err
	}
	times, err := DecodeTimes(tVals, tAttrs.String("units"))
	if err != nil {
		return nil, apperr.NewIO(f.path, fmt.Errorf("time axis %q: %w", dims[0], err))
	}
	yVals, yAttrs, err := f.coordinate(dims[1])
	if err != nil {
		return nil, err
	}
	xVals, xAttrs, err := f.coordinate(dims[2])
	if err != nil {
		return nil, err
	}

	attrs := attributes(vg.Attributes())
	v := NewVariable(name, attrs, times,
		Axis{Name: dims[1], Values: yVals, Attrs: yAttrs},
		Axis{Name: dims[2], Values: xVals, Attrs: xAttrs},
		&steps{
			path: f.path,
			name: name,
			vg:   vg,
			size: len(yVals) * len(xVals),
			pack: packingOf(attrs),
		})
	if err := v.CheckTime(); err != nil {
		return nil, apperr.NewIO(f.path, err)
	}
	return v, nil
}

func (f *File) coordinate(dim string) ([]float64, Attributes, error) {
	if !slices.Contains(f.nc.ListVariables(), dim) {
		return nil, nil, apperr.NewVariableNotFound(f.path, dim, errors.New("missing coordinate variable"))
	}
	vg, err := f.nc.GetVarGetter(dim)
	if err != nil {
		return nil, nil, apperr.NewIO(f.path, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, nil, apperr.NewIO(f.path, err)
	}
	vals, err := toFloat64s(v)
	if x, ok := scalar(v); err != nil && ok {
		vals, err = []float64{x}, nil
	}
	if err != nil {
		return nil, nil, apperr.NewIO(f.path, fmt.Errorf("coordinate %q: %w", dim, err))
	}
	return vals, attributes(vg.Attributes()), nil
}

func attributes(am api.AttributeMap) Attributes {
	if am == nil {
		return nil
	}
	keys := am.Keys()
	attrs := make(Attributes, 0, len(keys))
	for _, k := range keys {
		v, _ := am.Get(k)
		attrs = append(attrs, Attr{Name: k, Value: v})
	}
	return attrs
}

// packing describes how stored values map to physical values.
type packing struct {
	fills  []float64
	scale  float64
	offset float64
}

// PackingAttrs are the attributes that only describe how samples are stored
// on disk. They do not carry over to derived layers.
var PackingAttrs = []string{"_FillValue", "missing_value", "scale_factor", "add_offset"}

func packingOf(attrs Attributes) packing {
	p := packing{scale: 1}
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs.Get(name); ok {
			if f, ok := scalar(v); ok {
				p.fills = append(p.fills, f)
			}
		}
	}
	if v, ok := attrs.Get("scale_factor"); ok {
		if f, ok := scalar(v); ok {
			p.scale = f
		}
	}
	if v, ok := attrs.Get("add_offset"); ok {
		if f, ok := scalar(v); ok {
			p.offset = f
		}
	}
	return p
}

func (p packing) decode(raw float64) float64 {
	if math.IsNaN(raw) || slices.Contains(p.fills, raw) {
		return math.NaN()
	}
	return raw*p.scale + p.offset
}

// steps reads blocks of time steps with VarGetter.GetSlice so that only
// the requested block is held in memory.
type steps struct {
	path string
	name string
	vg   api.VarGetter
	size int
	pack packing
}

func (s *steps) ReadSteps(begin, end int) ([]Field, error) {
	v, err := s.vg.GetSlice(int64(begin), int64(end))
	if err != nil {
		return nil, apperr.NewIO(s.path, fmt.Errorf("read %q steps [%d, %d): %w", s.name, begin, end, err))
	}
	var fields []Field
	switch blk := v.(type) {
	case [][][]float64:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]float32:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]int64:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]int32:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]int16:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]int8:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]uint64:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]uint32:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]uint16:
		fields = decodeBlock(blk, s.size, s.pack)
	case [][][]uint8:
		fields = decodeBlock(blk, s.size, s.pack)
	default:
		return nil, apperr.NewIO(s.path, fmt.Errorf("variable %q has unsupported sample type %T", s.name, v))
	}
	return fields, nil
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func decodeBlock[T number](blk [][][]T, size int, p packing) []Field {
	fields := make([]Field, len(blk))
	for t, plane := range blk {
		f := make(Field, 0, size)
		for _, row := range plane {
			for _, raw := range row {
				f = append(f, p.decode(float64(raw)))
			}
		}
		fields[t] = f
	}
	return fields
}

func toFloat64s(v any) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		return slices.Clone(vals), nil
	case []float32:
		return convert(vals), nil
	case []int64:
		return convert(vals), nil
	case []int32:
		return convert(vals), nil
	case []int16:
		return convert(vals), nil
	case []int8:
		return convert(vals), nil
	case []uint64:
		return convert(vals), nil
	case []uint32:
		return convert(vals), nil
	case []uint16:
		return convert(vals), nil
	case []uint8:
		return convert(vals), nil
	}
	return nil, fmt.Errorf("unsupported coordinate type %T", v)
}

func convert[T number](vals []T) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

// scalar converts a numeric attribute to float64. Attributes holding a
// one-element slice are accepted too.
func scalar(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint8:
		return float64(x), true
	}
	if vals, err := toFloat64s(v); err == nil && len(vals) == 1 {
		return vals[0], true
	}
	return 0, false
}

// DecodeTimes converts raw time coordinate values to timestamps using a CF
// units string such as "seconds since 1970-01-01 00:00:00".
func DecodeTimes(vals []float64, units string) ([]time.Time, error) {
	step, epoch, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	// Offsets are split into whole days and a remainder so that epochs
	// centuries away (days since 0001-01-01) stay within time.Duration.
	perDay := float64(oneDay / step)
	times := make([]time.Time, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid time value at step %d", i)
		}
		days := math.Floor(v / perDay)
		if math.Abs(days) > maxOffsetDays {
			return nil, fmt.Errorf("time value %g at step %d is out of range", v, i)
		}
		rem := time.Duration(math.Round((v - days*perDay) * float64(step)))
		times[i] = epoch.AddDate(0, 0, int(days)).Add(rem)
	}
	return times, nil
}

const (
	oneDay        = 24 * time.Hour
	maxOffsetDays = 1e7
)
