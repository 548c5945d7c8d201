package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/marineclim/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.Logging{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "variable", "SPM")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "variable=SPM")
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.Logging{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("Processed time steps", "from", 0, "to", 500)
	assert.Contains(t, buf.String(), `"msg":"Processed time steps"`)
	assert.Contains(t, buf.String(), `"to":500`)
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(config.Logging{Level: "verbose"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "log level")
	_, err = NewLogger(config.Logging{Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "log format")
}

func TestMetrics_StepsRead(t *testing.T) {
	m := NewMetrics()
	m.StepsRead("annual", 500)
	m.StepsRead("annual", 120)
	m.StepsRead("monthly", 31)

	assert.Equal(t, 620.0, testutil.ToFloat64(m.StepsReadTotal.WithLabelValues("annual")))
	assert.Equal(t, 31.0, testutil.ToFloat64(m.StepsReadTotal.WithLabelValues("monthly")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RunsTotal.WithLabelValues("climatology", "success").Inc()
	m.LayersWritten.Add(26)

	path := filepath.Join(t.TempDir(), "marineclim.prom")
	require.NoError(t, m.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `marineclim_runs_total{command="climatology",outcome="success"} 1`)
	assert.Contains(t, string(b), "marineclim_layers_written_total 26")
}

func TestHistory(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC))
	SetClock(fc)
	t.Cleanup(func() { SetClock(nil) })

	start := Now()
	fc.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, Since(start))
	assert.Equal(t, "2024-04-26T15:11:30Z: marineclim climatology -var SPM", History([]string{"climatology", "-var", "SPM"}))
}
