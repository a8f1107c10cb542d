package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daysim/daysim/sim"
)

func parseOutput(t *testing.T, buf *bytes.Buffer) RunOutput {
	t.Helper()
	text := buf.String()
	require.True(t, strings.HasPrefix(text, "=== Run Summary ===\n"), "summary header must be printed")
	var out RunOutput
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(text, "=== Run Summary ===\n")), &out))
	return out
}

func TestRun_Central(t *testing.T) {
	// GIVEN a short central run with phase tracing and a metrics file
	cfg := DefaultConfig()
	cfg.Days = 5
	cfg.Workers = 2
	cfg.Trace = "phases"
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")
	var buf bytes.Buffer

	// WHEN it runs
	require.NoError(t, Run(context.Background(), cfg, &buf, metricsPath))

	// THEN the summary covers every day
	out := parseOutput(t, &buf)
	assert.Equal(t, "central", out.Layout)
	assert.Equal(t, 5, out.Days)
	assert.Zero(t, out.Faults)
	assert.Equal(t, 5, out.Economy.Days)
	require.NotNil(t, out.Trace)
	assert.Equal(t, 5*sim.NumPhases, out.Trace.Resolutions)

	// AND the metrics file holds the day gauge
	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "daysim_schedule_day 5")
}

func TestRun_Decentralized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 4
	cfg.Decentralized = true
	cfg.Trace = "phases"
	var buf bytes.Buffer

	require.NoError(t, Run(context.Background(), cfg, &buf, ""))

	out := parseOutput(t, &buf)
	assert.Equal(t, "decentralized", out.Layout)
	assert.Equal(t, 4, out.Days)
	assert.Equal(t, 4, out.Economy.Days)
	require.NotNil(t, out.Trace)
	assert.Equal(t, 4*sim.NumPhases, out.Trace.Resolutions)
}

func TestRun_CanceledContext(t *testing.T) {
	// GIVEN a context canceled before the run starts
	cfg := DefaultConfig()
	cfg.Days = 1000
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// THEN the run stops with a cancellation error short of the last day
	err := Run(ctx, cfg, &bytes.Buffer{}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrCanceled)
}
