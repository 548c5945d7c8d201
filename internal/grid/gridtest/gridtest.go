// Package gridtest writes small NetCDF fixtures for tests.
package gridtest

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"
)

// Series describes one (time, lat, lon) variable. Steps holds one row-major
// lat*lon field per timestamp; NaN marks missing samples.
type Series struct {
	Name  string
	Units string
	Times []time.Time
	Lat   []float64
	Lon   []float64
	Steps [][]float64

	// When Scale is non-zero the samples are packed as int16 with
	// scale_factor, add_offset and a _FillValue of Fill.
	Scale  float64
	Offset float64
	Fill   int16
}

// Write stores all series in one file under t.TempDir() and returns its
// path. The series must share their axes.
func Write(t *testing.T, name string, series ...Series) string {
	t.Helper()
	require.NotEmpty(t, series)
	path := filepath.Join(t.TempDir(), name)

	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	s0 := series[0]
	secs := make([]float64, len(s0.Times))
	for i, ts := range s0.Times {
		secs[i] = float64(ts.Unix())
	}
	require.NoError(t, cw.AddVar("time", api.Variable{
		Values:     secs,
		Dimensions: []string{"time"},
		Attributes: attrs(t, []string{"units", "standard_name"}, map[string]any{
			"units":         "seconds since 1970-01-01 00:00:00",
			"standard_name": "time",
		}),
	}))
	require.NoError(t, cw.AddVar("latitude", api.Variable{
		Values:     s0.Lat,
		Dimensions: []string{"latitude"},
		Attributes: attrs(t, []string{"units"}, map[string]any{"units": "degrees_north"}),
	}))
	require.NoError(t, cw.AddVar("longitude", api.Variable{
		Values:     s0.Lon,
		Dimensions: []string{"longitude"},
		Attributes: attrs(t, []string{"units"}, map[string]any{"units": "degrees_east"}),
	}))
	for _, s := range series {
		require.NoError(t, cw.AddVar(s.Name, variable(t, s)))
	}
	require.NoError(t, cw.Close())
	return path
}

func variable(t *testing.T, s Series) api.Variable {
	dims := []string{"time", "latitude", "longitude"}
	ny, nx := len(s.Lat), len(s.Lon)
	if s.Scale == 0 {
		vals := make([][][]float64, len(s.Steps))
		for i, step := range s.Steps {
			require.Len(t, step, ny*nx)
			vals[i] = make([][]float64, ny)
			for y := range vals[i] {
				vals[i][y] = step[y*nx : (y+1)*nx]
			}
		}
		return api.Variable{
			Values:     vals,
			Dimensions: dims,
			Attributes: attrs(t, []string{"units", "long_name"}, map[string]any{
				"units":     s.Units,
				"long_name": s.Name + " fixture",
			}),
		}
	}
	vals := make([][][]int16, len(s.Steps))
	for i, step := range s.Steps {
		require.Len(t, step, ny*nx)
		vals[i] = make([][]int16, ny)
		for y := range vals[i] {
			row := make([]int16, nx)
			for x := range row {
				v := step[y*nx+x]
				if math.IsNaN(v) {
					row[x] = s.Fill
					continue
				}
				row[x] = int16(math.Round((v - s.Offset) / s.Scale))
			}
			vals[i][y] = row
		}
	}
	return api.Variable{
		Values:     vals,
		Dimensions: dims,
		Attributes: attrs(t, []string{"units", "scale_factor", "add_offset", "_FillValue"}, map[string]any{
			"units":        s.Units,
			"scale_factor": s.Scale,
			"add_offset":   s.Offset,
			"_FillValue":   s.Fill,
		}),
	}
}

func attrs(t *testing.T, keys []string, vals map[string]any) api.AttributeMap {
	om, err := util.NewOrderedMap(keys, vals)
	require.NoError(t, err)
	return om
}
