package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestGenerateForecastExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEOECO_DATA_DIR", dir)

	require.NoError(t, run(t, "generate",
		"--sites", "30", "--companies", "3", "--years", "4", "--monthly", "6",
		"--alerts", "1", "--per-region-floor", "1", "--min-km", "2", "--seed", "11",
		"--log-level", "error"))
	assert.FileExists(t, filepath.Join(dir, "core.db"))

	require.NoError(t, run(t, "forecast", "--years-ahead", "2", "--months-ahead", "3", "--log-level", "error"))
	assert.FileExists(t, filepath.Join(dir, "forecasts.db"))

	require.NoError(t, run(t, "export", "--log-level", "error"))
	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".msgpack.gz"))
}

func TestExport_UploadWithoutStorage(t *testing.T) {
	t.Setenv("GEOECO_DATA_DIR", t.TempDir())
	t.Setenv("SNAPSHOT_ENABLED", "false")

	err := run(t, "export", "--upload", "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_ENABLED")
	exportUpload = false
}

func TestForecast_RejectsNegativeHorizon(t *testing.T) {
	t.Setenv("GEOECO_DATA_DIR", t.TempDir())

	err := run(t, "forecast", "--years-ahead", "-1", "--log-level", "error")
	require.Error(t, err)
	forecastYears = 3
}

// Runs last: pflag keeps Changed set once a flag is parsed.
func TestDataDirFlagOverridesEnv(t *testing.T) {
	t.Setenv("GEOECO_DATA_DIR", t.TempDir())
	override := filepath.Join(t.TempDir(), "nested")

	require.NoError(t, run(t, "export", "--data-dir", override, "--log-level", "error"))
	assert.DirExists(t, filepath.Join(override, "snapshots"))
}
