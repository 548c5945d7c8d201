package grid

import (
	"fmt"
	"math"
)

// LayerKind tells how a layer's values are stored.
type LayerKind int

const (
	// Mean layers hold float64 values, NaN where no valid samples existed.
	Mean LayerKind = iota
	// Count layers hold non-negative integers.
	Count
)

// DType is the on-disk storage type of a layer.
type DType int

const (
	Float64 DType = iota
	Float32
	Int32
	Int64
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "float"
	case Int32:
		return "int"
	case Int64:
		return "int64"
	default:
		return "double"
	}
}

// Encoding holds per-layer write options.
type Encoding struct {
	Compression      bool
	CompressionLevel int
	// FillValue is written as the _FillValue attribute when set.
	FillValue   *float64
	StorageType DType
}

// Validate checks the option ranges.
func (e Encoding) Validate() error {
	if e.CompressionLevel < 0 || e.CompressionLevel > 9 {
		return fmt.Errorf("compression level %d out of range 0..9", e.CompressionLevel)
	}
	return nil
}

// MeanEncoding is the encoding used for mean layers: doubles with NaN fill
// and deflate level 4. Write stores classic CDF, which cannot deflate, so
// the compression settings are validated and recorded but not applied.
func MeanEncoding() Encoding {
	fill := math.NaN()
	return Encoding{Compression: true, CompressionLevel: 4, FillValue: &fill, StorageType: Float64}
}

// CountEncoding is the encoding used for count layers: 32-bit integers with
// -1 reserved as fill and deflate level 4. Counts are never negative so the
// fill value never occurs in practice. As with MeanEncoding, the compression
// settings are not applied by Write.
func CountEncoding() Encoding {
	fill := -1.0
	return Encoding{Compression: true, CompressionLevel: 4, FillValue: &fill, StorageType: Int32}
}

// Layer is a 2-D array derived from a variable by reducing over time.
type Layer struct {
	Name     string
	Kind     LayerKind
	Attrs    Attributes
	Encoding Encoding

	Mean  []float64
	Count []int64
}

// NewMeanLayer creates a mean layer with MeanEncoding.
func NewMeanLayer(name string, attrs Attributes, values []float64) *Layer {
	return &Layer{Name: name, Kind: Mean, Attrs: attrs, Encoding: MeanEncoding(), Mean: values}
}

// NewCountLayer creates a count layer with CountEncoding.
func NewCountLayer(name string, attrs Attributes, counts []int64) *Layer {
	return &Layer{Name: name, Kind: Count, Attrs: attrs, Encoding: CountEncoding(), Count: counts}
}

// Len returns the number of cells.
func (l *Layer) Len() int {
	if l.Kind == Count {
		return len(l.Count)
	}
	return len(l.Mean)
}

// At returns cell i as a float64.
func (l *Layer) At(i int) float64 {
	if l.Kind == Count {
		return float64(l.Count[i])
	}
	return l.Mean[i]
}

// Dataset is a set of layers sharing the same spatial axes, written as one
// artifact.
type Dataset struct {
	Attrs Attributes
	Y     Axis
	X     Axis

	layers []*Layer
	index  map[string]int
}

// NewDataset creates an empty dataset over the given axes.
func NewDataset(y, x Axis) *Dataset {
	return &Dataset{Y: y, X: x, index: make(map[string]int)}
}

// Add appends l. A duplicate name or a layer of the wrong shape is a
// programming error and panics.
func (d *Dataset) Add(l *Layer) {
	if _, ok := d.index[l.Name]; ok {
		panic(fmt.Sprintf("grid: duplicate layer name %q", l.Name))
	}
	if want := d.Y.Len() * d.X.Len(); l.Len() != want {
		panic(fmt.Sprintf("grid: layer %q has %d cells, want %d", l.Name, l.Len(), want))
	}
	d.index[l.Name] = len(d.layers)
	d.layers = append(d.layers, l)
}

// Layers returns the layers in insertion order.
func (d *Dataset) Layers() []*Layer {
	return d.layers
}

// Layer returns the layer called name.
func (d *Dataset) Layer(name string) (*Layer, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.layers[i], true
}

// Merge adds every layer of o to d. Both datasets must share their spatial
// axes.
func (d *Dataset) Merge(o *Dataset) error {
	if !d.Y.Equal(o.Y) || !d.X.Equal(o.X) {
		return fmt.Errorf("cannot merge datasets over different grids (%s×%s vs %s×%s)",
			d.Y.Name, d.X.Name, o.Y.Name, o.X.Name)
	}
	for _, l := range o.Layers() {
		d.Add(l)
	}
	return nil
}
