package vm

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/marineclim/internal/grid"
)

func dataset() *grid.Dataset {
	ds := grid.NewDataset(
		grid.Axis{Name: "latitude", Values: []float64{49, 50}},
		grid.Axis{Name: "longitude", Values: []float64{-8, -7.5}},
	)
	ds.Add(grid.NewMeanLayer("SPM_avg_overall_annual", nil, []float64{1.5, math.NaN(), 3, 4}))
	ds.Add(grid.NewCountLayer("SPM_count_overall_annual", nil, []int64{2, 0, 1, 7}))
	return ds
}

func TestPoints(t *testing.T) {
	pts := Points(dataset())
	require.Len(t, pts, 7)
	assert.Equal(t, Point{Layer: "SPM_avg_overall_annual", Latitude: 49, Longitude: -8, Value: 1.5}, pts[0])
	assert.Equal(t, Point{Layer: "SPM_avg_overall_annual", Latitude: 50, Longitude: -8, Value: 3}, pts[1])
	assert.Equal(t, Point{Layer: "SPM_count_overall_annual", Latitude: 49, Longitude: -7.5, Value: 0}, pts[4])
}

func TestPoints_SkipsInf(t *testing.T) {
	ds := grid.NewDataset(
		grid.Axis{Name: "latitude", Values: []float64{49}},
		grid.Axis{Name: "longitude", Values: []float64{-8, -7.5, -7}},
	)
	ds.Add(grid.NewMeanLayer("uo_max", nil, []float64{math.Inf(1), 0.4, math.Inf(-1)}))

	pts := Points(ds)
	require.Len(t, pts, 1)
	assert.Equal(t, Point{Layer: "uo_max", Latitude: 49, Longitude: -7.5, Value: 0.4}, pts[0])

	var sb strings.Builder
	pointToInfluxDB(&sb, &pts[0], 0, "clim")
	assert.NotContains(t, sb.String(), "Inf")
}

func TestNewClient_Invalid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := NewClient(logger, "http://localhost:8428/write", "bad-prefix!")
	assert.ErrorContains(t, err, "regular expression")
	_, err = NewClient(logger, "http://localhost:8428/api/v1/import/prometheus", "spm")
	assert.ErrorContains(t, err, "not supported")
}

func TestClient_ExportInflux(t *testing.T) {
	var bodies []string
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		query = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, srv.URL+"/write", "clim")
	require.NoError(t, err)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := c.Export(dataset(), ts, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.Len(t, bodies, 3)
	assert.Equal(t, "precision=ms", query)
	assert.Equal(t,
		"clim,la=49.0000,lo=-8.0000 SPM_avg_overall_annual=1.5 1735689600000",
		strings.Split(bodies[0], "\n")[0])
}

func TestClient_ExportCSV(t *testing.T) {
	var body, format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		format = r.URL.Query().Get("format")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, srv.URL+"/api/v1/import/csv", "clim")
	require.NoError(t, err)

	_, err = c.Export(dataset(), time.UnixMilli(1000), 100)
	require.NoError(t, err)
	assert.Equal(t, "1:time:unix_ms,2:label:la,3:label:lo,4:label:layer,5:metric:clim", format)
	assert.Contains(t, body, "1000,50.0000,-7.5000,SPM_count_overall_annual,7\n")
}

func TestClient_ExportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClient(logger, srv.URL+"/write", "clim")
	require.NoError(t, err)
	_, err = c.Export(dataset(), time.Now(), 100)
	assert.ErrorContains(t, err, "unexpected status 400")
}
