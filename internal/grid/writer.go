package grid

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/rtm0/marineclim/internal/apperr"
)

// Write stores ds at path in NetCDF classic format. The file is written
// next to path under a temporary name and renamed into place, so path either
// holds the complete dataset or is left untouched.
//
// The classic format has no per-variable deflate, so Encoding.Compression and
// Encoding.CompressionLevel are validated but data is stored uncompressed.
// FillValue and StorageType are honoured.
func Write(path string, ds *Dataset) (err error) {
	for _, l := range ds.Layers() {
		if err := l.Encoding.Validate(); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.NewIO(path, err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		return apperr.NewIO(path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	cw, err := cdf.OpenWriter(tmpPath)
	if err != nil {
		return apperr.NewIO(path, err)
	}
	if err := writeDataset(cw, ds); err != nil {
		cw.Close()
		return apperr.NewIO(path, err)
	}
	if err := cw.Close(); err != nil {
		return apperr.NewIO(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return apperr.NewIO(path, err)
	}
	return nil
}

func writeDataset(cw *cdf.CDFWriter, ds *Dataset) error {
	if len(ds.Attrs) > 0 {
		am, err := attributeMap(ds.Attrs)
		if err != nil {
			return err
		}
		if err := cw.AddGlobalAttrs(am); err != nil {
			return fmt.Errorf("global attributes: %w", err)
		}
	}
	for _, ax := range []Axis{ds.Y, ds.X} {
		am, err := attributeMap(ax.Attrs)
		if err != nil {
			return err
		}
		if err := cw.AddVar(ax.Name, api.Variable{
			Values:     ax.Values,
			Dimensions: []string{ax.Name},
			Attributes: am,
		}); err != nil {
			return fmt.Errorf("coordinate %q: %w", ax.Name, err)
		}
	}
	dims := []string{ds.Y.Name, ds.X.Name}
	ny, nx := ds.Y.Len(), ds.X.Len()
	for _, l := range ds.Layers() {
		attrs := l.Attrs.Without("_FillValue")
		if fv := l.Encoding.FillValue; fv != nil {
			attrs = attrs.Set("_FillValue", storageScalar(*fv, l.Encoding.StorageType))
		}
		am, err := attributeMap(attrs)
		if err != nil {
			return err
		}
		if err := cw.AddVar(l.Name, api.Variable{
			Values:     storageValues(l, ny, nx),
			Dimensions: dims,
			Attributes: am,
		}); err != nil {
			return fmt.Errorf("layer %q: %w", l.Name, err)
		}
	}
	return nil
}

func storageScalar(v float64, dt DType) any {
	switch dt {
	case Float32:
		return float32(v)
	case Int32:
		return int32(v)
	case Int64:
		return int64(v)
	default:
		return v
	}
}

func storageValues(l *Layer, ny, nx int) any {
	switch l.Encoding.StorageType {
	case Float32:
		return reshape(l, ny, nx, func(v float64) float32 { return float32(v) })
	case Int32:
		return reshape(l, ny, nx, func(v float64) int32 { return int32(v) })
	case Int64:
		return reshape(l, ny, nx, func(v float64) int64 { return int64(v) })
	default:
		return reshape(l, ny, nx, func(v float64) float64 { return v })
	}
}

func reshape[T number](l *Layer, ny, nx int, conv func(float64) T) [][]T {
	out := make([][]T, ny)
	for y := range out {
		row := make([]T, nx)
		for x := range row {
			row[x] = conv(l.At(y*nx + x))
		}
		out[y] = row
	}
	return out
}

// attributeMap keeps the string and numeric attributes the CDF writer can
// store and drops anything else.
func attributeMap(attrs Attributes) (api.AttributeMap, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(attrs))
	vals := make(map[string]any, len(attrs))
	for _, a := range attrs {
		switch a.Value.(type) {
		case string, float64, float32, int64, int32, int16, int8,
			[]float64, []float32, []int64, []int32, []int16, []int8:
			keys = append(keys, a.Name)
			vals[a.Name] = a.Value
		}
	}
	om, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return om, nil
}
