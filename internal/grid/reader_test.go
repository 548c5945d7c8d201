package grid

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/marineclim/internal/apperr"
	"github.com/rtm0/marineclim/internal/grid/gridtest"
)

var nan = math.NaN()

func fixture() gridtest.Series {
	return gridtest.Series{
		Name:  "SPM",
		Units: "g m-3",
		Times: []time.Time{day(2017, 1, 1), day(2017, 1, 2), day(2017, 2, 1)},
		Lat:   []float64{49, 50},
		Lon:   []float64{-8, -7, -6},
		Steps: [][]float64{
			{1, 2, 3, 4, 5, 6},
			{nan, 2, 3, 4, 5, nan},
			{7, 8, 9, 10, 11, 12},
		},
	}
}

func TestOpen_InputNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInputNotFound)
}

func TestFile_VariableNotFound(t *testing.T) {
	f, err := Open(gridtest.Write(t, "spm.nc", fixture()))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Variable("ZSD")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrVariableNotFound)
	assert.Contains(t, err.Error(), "ZSD")
}

func TestFile_Variable(t *testing.T) {
	s := fixture()
	f, err := Open(gridtest.Write(t, "spm.nc", s))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.Variable("SPM")
	require.NoError(t, err)

	assert.Equal(t, "g m-3", v.Attrs.String("units"))
	assert.Equal(t, "latitude", v.Y.Name)
	assert.Equal(t, s.Lat, v.Y.Values)
	assert.Equal(t, "longitude", v.X.Name)
	assert.Equal(t, s.Lon, v.X.Values)
	require.Equal(t, 3, v.Len())
	for i, ts := range s.Times {
		assert.True(t, ts.Equal(v.Time[i]), "step %d: %s", i, v.Time[i])
	}

	fields, err := v.ReadSteps(1, 3)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.True(t, math.IsNaN(fields[0][0]))
	assert.Equal(t, 2.0, fields[0][1])
	assert.True(t, math.IsNaN(fields[0][5]))
	assert.Equal(t, Field{7, 8, 9, 10, 11, 12}, fields[1])
}

func TestFile_VariableUnpacksInt16(t *testing.T) {
	s := fixture()
	s.Name = "analysed_sst"
	s.Units = "kelvin"
	s.Steps = [][]float64{
		{273.15, 280.5, nan, 290, 285.25, 281},
		{274, 275, 276, 277, 278, 279},
		{280, 281, 282, nan, 284, 285},
	}
	s.Scale = 0.01
	s.Offset = 273.15
	s.Fill = -32768

	f, err := Open(gridtest.Write(t, "sst.nc", s))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.Variable("analysed_sst")
	require.NoError(t, err)
	fields, err := v.ReadSteps(0, 3)
	require.NoError(t, err)

	for i, step := range s.Steps {
		for c, want := range step {
			got := fields[i][c]
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(got), "step %d cell %d", i, c)
				continue
			}
			assert.InDelta(t, want, got, 0.005, "step %d cell %d", i, c)
		}
	}
}
