package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "affy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
layout:
  selection: mm
samples:
  masked: true
  workers: 2
  timeout: 30s
polish:
  max_iter: 25
output:
  format: xlsx
`)
	t.Setenv("AFFY_POLISH_MAX_ITER", "40")
	t.Setenv("AFFY_SAMPLES_DECOMPRESSOR", "inprocess")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mm", cfg.Layout.Selection)
	assert.True(t, cfg.Samples.Masked)
	assert.Equal(t, 2, cfg.Samples.Workers)
	assert.Equal(t, 30*time.Second, cfg.Samples.Timeout)
	assert.Equal(t, "inprocess", cfg.Samples.Decompressor)
	assert.Equal(t, 40, cfg.Polish.MaxIter)
	assert.Equal(t, 0.01, cfg.Polish.Eps)
	assert.True(t, cfg.Polish.Enabled)
	assert.Equal(t, "xlsx", cfg.Output.Format)
	assert.Equal(t, "gunzip", cfg.Samples.GunzipCommand)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"line ending", func(c *Config) { c.Layout.LineEnding = 3 }, "line_ending"},
		{"decompressor", func(c *Config) { c.Samples.Decompressor = "zcat" }, "decompressor"},
		{"unbounded iterations", func(c *Config) { c.Polish.MaxIter = -1 }, "max_iter"},
		{"eps", func(c *Config) { c.Polish.Eps = 0 }, "eps"},
		{"format", func(c *Config) { c.Output.Format = "csv" }, "format"},
		{"workers", func(c *Config) { c.Samples.Workers = 0 }, "workers"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "polish:\n  iterations: 3\n"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("AFFY_POLISH_EPS", "tiny")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadIgnoresBareEnvironment(t *testing.T) {
	for _, name := range []string{"PATH", "FORMAT", "LEVEL", "TIMEOUT", "WORKERS", "MASKED", "SELECTION", "EPS"} {
		t.Setenv(name, "bogus")
	}
	t.Setenv("PATH", "/usr/local/bin:/usr/bin:/bin")
	t.Setenv("MASKED", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvNames(t *testing.T) {
	t.Setenv("AFFY_OUTPUT_PATH", "expr.tsv")
	t.Setenv("AFFY_LOGGING_LEVEL", "debug")
	t.Setenv("AFFY_SAMPLES_GUNZIP_COMMAND", "pigz")
	t.Setenv("AFFY_METRICS_TEXT_FILE", "affy.prom")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "expr.tsv", cfg.Output.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "pigz", cfg.Samples.GunzipCommand)
	assert.Equal(t, "affy.prom", cfg.Metrics.TextFile)
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("AFFY_POLISH_MAX_ITER", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.Polish.MaxIter = 5
	assert.NoError(t, cfg.Validate())
}

func TestUnknownSelectionIsValid(t *testing.T) {
	cfg := Default()
	cfg.Layout.Selection = "both"
	assert.NoError(t, cfg.Validate())
}
