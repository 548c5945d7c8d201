package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/marineclim/internal/grid/gridtest"
	"github.com/rtm0/marineclim/internal/observability"
)

var nan = math.NaN()

func spmFixture(t *testing.T) string {
	day := func(m time.Month, d int) time.Time { return time.Date(2020, m, d, 0, 0, 0, 0, time.UTC) }
	return gridtest.Write(t, "spm_raw_data.nc", gridtest.Series{
		Name:  "SPM",
		Units: "g m-3",
		Times: []time.Time{day(time.January, 3), day(time.January, 20), day(time.February, 1)},
		Lat:   []float64{49, 50},
		Lon:   []float64{-8, -7},
		Steps: [][]float64{
			{1, 2, 3, 4},
			{nan, 2, 3, 4},
			{5, 6, 7, 8},
		},
	})
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: marineclim")

	code, _, stderr = runCmd(t, "interpolate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "interpolate"`)

	code, _, _ = runCmd(t, "climatology", "-no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRun_Climatology(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC))
	observability.SetClock(fc)
	t.Cleanup(func() { observability.SetClock(nil) })

	in := spmFixture(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "spm_averages.nc")
	metrics := filepath.Join(dir, "marineclim.prom")

	code, _, stderr := runCmd(t, "climatology", "-in", in, "-out", out, "-var", "SPM", "-chunk", "2", "-metrics-file", metrics)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Calculated monthly climatology")

	nc, err := netcdf.Open(out)
	require.NoError(t, err)
	defer nc.Close()
	assert.Len(t, nc.ListVariables(), 28)
	jan, err := nc.GetVariable("SPM_count_month_01")
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{1, 2}, {2, 2}}, jan.Values)
	annual, err := nc.GetVariable("SPM_count_overall_annual")
	require.NoError(t, err)
	assert.Equal(t, [][]int32{{2, 3}, {3, 3}}, annual.Values)
	history, ok := nc.Attributes().Get("history")
	require.True(t, ok)
	assert.Contains(t, history, "2025-03-01T12:00:00Z: marineclim climatology -in")

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `marineclim_runs_total{command="climatology",outcome="success"} 1`)
	assert.Contains(t, string(prom), "marineclim_layers_written_total 26")
	assert.Contains(t, string(prom), `marineclim_time_steps_read_total{pass="annual"} 3`)
}

func TestRun_ClimatologyMissingVariable(t *testing.T) {
	in := spmFixture(t)
	out := filepath.Join(t.TempDir(), "out.nc")

	code, _, stderr := runCmd(t, "climatology", "-in", in, "-out", out, "-var", "ZSD")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "variable not found")
	assert.Contains(t, stderr, "ZSD")
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output may be written")
}

func TestRun_ClimatologyKeepGoing(t *testing.T) {
	in := spmFixture(t)
	out := filepath.Join(t.TempDir(), "out.nc")

	code, _, stderr := runCmd(t, "climatology", "-in", in, "-out", out, "-var", "ZSD,SPM", "-keep-going", "-strategy", "single-pass")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Skipping variable")

	nc, err := netcdf.Open(out)
	require.NoError(t, err)
	defer nc.Close()
	assert.Contains(t, nc.ListVariables(), "SPM_avg_overall_annual")
	assert.NotContains(t, nc.ListVariables(), "ZSD_avg_overall_annual")
}

func TestRun_ClimatologyMissingInput(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := runCmd(t, "climatology", "-in", filepath.Join(dir, "nope.nc"), "-out", filepath.Join(dir, "out.nc"), "-var", "SPM")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "input not found")
}

func TestRun_Peak(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}
	in := gridtest.Write(t, "vel_hrly_2024.nc",
		gridtest.Series{Name: "uo", Units: "m s-1", Times: times, Lat: []float64{49}, Lon: []float64{-8, -7},
			Steps: [][]float64{{3, nan}, {0, 1}}},
		gridtest.Series{Name: "vo", Units: "m s-1", Times: times, Lat: []float64{49}, Lon: []float64{-8, -7},
			Steps: [][]float64{{4, 1}, {1, 0}}},
	)
	out := filepath.Join(t.TempDir(), "vel_max.nc")

	code, _, stderr := runCmd(t, "peak", "-in", in, "-out", out, "-chunk", "1")
	require.Equal(t, 0, code, stderr)

	nc, err := netcdf.Open(out)
	require.NoError(t, err)
	defer nc.Close()
	v, err := nc.GetVariable("velocity_magnitude_max")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5, 1}}, v.Values)
}

func TestRun_PeakMissingComponent(t *testing.T) {
	in := spmFixture(t)
	out := filepath.Join(t.TempDir(), "vel_max.nc")
	code, _, stderr := runCmd(t, "peak", "-in", in, "-out", out)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `\"uo\"`)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_FetchWithoutCredentials(t *testing.T) {
	for _, k := range []string{"COPERNICUSMARINE_SERVICE_USERNAME", "COPERNICUSMARINE_SERVICE_PASSWORD", "USRNAME", "USRNM", "PASSWD"} {
		t.Setenv(k, "")
	}
	code, _, stderr := runCmd(t, "fetch", "-dataset", "spm", "-dir", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "authentication failed")
}

func TestRun_FetchUnknownPreset(t *testing.T) {
	code, _, stderr := runCmd(t, "fetch", "-dataset", "salinity")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown dataset preset")
}

func TestRun_Catalog(t *testing.T) {
	code, stdout, _ := runCmd(t, "catalog")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "cmems_obs-oc_atl_bgc-transp_my_l3-multi-1km_P1D")
	assert.Contains(t, stdout, "copernicus-data/plank2017-2024.nc")
	assert.Contains(t, stdout, "velocity")
}
