package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-affy/internal/fixture"
)

func writeInputs(t *testing.T) (string, []string) {
	t.Helper()
	layout := fixture.Layout{
		Name: "cli",
		Rows: 3,
		Cols: 3,
		Units: []fixture.Unit{
			{Name: "g1", Probes: []fixture.Probe{fixture.PM(0, 0), fixture.PM(1, 0), fixture.PM(2, 0)}},
			{Name: "a0", Probes: []fixture.Probe{fixture.PM(0, 1), fixture.PM(1, 1), fixture.PM(2, 1)}},
		},
	}
	var samples []string
	for j, name := range []string{"s0.cel", "s1.cel.gz"} {
		s := fixture.Sample{Rows: 3, Cols: 3, Intensities: make([]float32, 9)}
		for k := range s.Intensities {
			s.Intensities[k] = float32(math.Exp2(float64(k + 1 + j)))
		}
		data := s.V4()
		if j == 1 {
			data = fixture.Gzip(data)
		}
		samples = append(samples, fixture.WriteFile(t, name, data))
	}
	return fixture.WriteFile(t, "cli.cdf", layout.Bytes()), samples
}

func TestRunWritesTSV(t *testing.T) {
	cdf, samples := writeInputs(t)
	metricsPath := filepath.Join(t.TempDir(), "affy.prom")

	var stdout, stderr bytes.Buffer
	args := append([]string{"-cdf", cdf, "-decompressor", "inprocess", "-log-format", "text", "-metrics", metricsPath}, samples...)
	code := run(context.Background(), args, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Equal(t, "probeset\ts0\ts1\na0\t5\t6\ng1\t2\t3\n", stdout.String())
	assert.Contains(t, stderr.String(), "run_id=")

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `affy_files_decoded_total{format="v4 binary",kind="cel"} 2`)
	assert.Contains(t, string(prom), `affy_probesets_summarized_total{converged="true"} 2`)
}

func TestRunWritesWorkbook(t *testing.T) {
	cdf, samples := writeInputs(t)
	out := filepath.Join(t.TempDir(), "expr.xlsx")

	var stdout, stderr bytes.Buffer
	args := append([]string{"-cdf", cdf, "-decompressor", "inprocess", "-format", "xlsx", "-o", out, "-no-polish"}, samples...)
	code := run(context.Background(), args, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Empty(t, stdout.String())

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunUsage(t *testing.T) {
	cdf, samples := writeInputs(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no arguments", nil, exitUsage},
		{"no samples", []string{"-cdf", cdf}, exitUsage},
		{"unknown flag", []string{"-bogus"}, exitUsage},
		{"zero iterations", append([]string{"-cdf", cdf, "-max-iter", "0"}, samples...), exitUsage},
		{"missing sample", []string{"-cdf", cdf, "-decompressor", "inprocess", filepath.Join(t.TempDir(), "none.cel")}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(context.Background(), tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunUnknownSelectionWarns(t *testing.T) {
	cdf, samples := writeInputs(t)

	var stdout, stderr bytes.Buffer
	args := append([]string{"-cdf", cdf, "-decompressor", "inprocess", "-log-format", "text", "-selection", "both"}, samples...)
	code := run(context.Background(), args, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	assert.Contains(t, stderr.String(), "level=WARN")
	assert.Contains(t, stderr.String(), `unrecognized probe selection \"both\", using \"pm\"`)
	assert.Equal(t, "probeset\ts0\ts1\na0\t5\t6\ng1\t2\t3\n", stdout.String())
}

func TestRunFlagsOverrideInvalidEnv(t *testing.T) {
	cdf, samples := writeInputs(t)
	t.Setenv("AFFY_POLISH_MAX_ITER", "0")

	var stdout, stderr bytes.Buffer
	args := append([]string{"-cdf", cdf, "-decompressor", "inprocess"}, samples...)
	assert.Equal(t, exitUsage, run(context.Background(), args, &stdout, &stderr))

	stdout.Reset()
	stderr.Reset()
	args = append([]string{"-cdf", cdf, "-decompressor", "inprocess", "-max-iter", "5"}, samples...)
	assert.Equal(t, exitOK, run(context.Background(), args, &stdout, &stderr), stderr.String())
}
