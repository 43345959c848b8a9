package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withPaths points the global --config and --data flags into a temp dir
func withPaths(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	oldConfig, oldData := configPath, dataPath
	configPath = filepath.Join(dir, "config", "forecast.yaml")
	dataPath = filepath.Join(dir, "data", "history.json")
	t.Cleanup(func() { configPath, dataPath = oldConfig, oldData })
	return dir
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, setupLogging(os.Stderr, "debug", true))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	assert.Error(t, setupLogging(os.Stderr, "loud", true))
	require.NoError(t, setupLogging(os.Stderr, "info", true))
}

func TestProgressConfig(t *testing.T) {
	plain, err := progressConfig("plain")
	require.NoError(t, err)
	assert.True(t, plain.ShowProgress)

	none, err := progressConfig("none")
	require.NoError(t, err)
	assert.False(t, none.ShowProgress)

	_, err = progressConfig("fancy")
	assert.Error(t, err)
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	withPaths(t)
	var out bytes.Buffer

	require.NoError(t, runConfigInit(&out, false, false))
	assert.Error(t, runConfigInit(&out, false, false))
	assert.NoError(t, runConfigInit(&out, true, false))
}

func TestEndToEnd(t *testing.T) {
	dir := withPaths(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runConfigInit(&out, false, true))
	require.NoError(t, runConfigValidate(ctx, &out, true))

	csvPath := filepath.Join(dir, "out", "road.csv")
	jsonPath := filepath.Join(dir, "out", "road.json")
	err := runForecast(ctx, &out, &forecastOptions{
		entity:  "road_transport",
		region:  "global",
		csvPath: csvPath,
		jsonOut: jsonPath,
	})
	require.NoError(t, err)
	assert.FileExists(t, csvPath)
	assert.FileExists(t, jsonPath)
	assert.Contains(t, out.String(), "road_transport / global")

	outDir := filepath.Join(dir, "batch")
	metricsFile := filepath.Join(dir, "metrics.prom")
	err = runBatch(ctx, &out, &batchOptions{
		workers:     2,
		outDir:      outDir,
		metricsFile: metricsFile,
		progress:    "none",
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "summary.csv"))
	assert.FileExists(t, filepath.Join(outDir, "road_transport_global.csv"))

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "disruptrun_forecasts_total")
}

func TestBatchReportsFailures(t *testing.T) {
	dir := withPaths(t)
	var out bytes.Buffer
	require.NoError(t, runConfigInit(&out, false, true))

	err := runBatch(context.Background(), &out, &batchOptions{
		regions:  []string{"global", "atlantis"},
		outDir:   filepath.Join(dir, "batch"),
		progress: "none",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 forecasts failed")
	assert.FileExists(t, filepath.Join(dir, "batch", "summary.csv"))
}
