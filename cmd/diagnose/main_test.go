package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-affy/affy"
	"github.com/robert-malhotra/go-affy/internal/fixture"
)

func TestDiagnoseLayout(t *testing.T) {
	path := fixture.WriteFile(t, "chip.cdf.gz", fixture.Gzip(fixture.Layout{
		Name:  "chip",
		Rows:  2,
		Cols:  2,
		Units: []fixture.Unit{{Name: "g1", Probes: []fixture.Probe{fixture.PM(0, 0), fixture.MM(1, 0)}}},
	}.Bytes()))

	var out bytes.Buffer
	require.NoError(t, diagnose(&out, path))
	assert.Contains(t, out.String(), "Chip: chip\n")
	assert.Contains(t, out.String(), "Grid: 2x2 (4 cells)\n")
	assert.Contains(t, out.String(), "  g1: 2 cells\n")
}

func TestDiagnoseCommandConsole(t *testing.T) {
	s := fixture.Grid(2, 2)
	path := fixture.WriteFile(t, "s.cel", s.CommandConsole(fixture.CommandConsoleOptions{}))

	var out bytes.Buffer
	require.NoError(t, diagnose(&out, path))
	assert.Contains(t, out.String(), "Format: command console\n")
	assert.Contains(t, out.String(), "Intensity range: 1 .. 4\n")
	assert.Contains(t, out.String(), `Data set "Intensity":`)
	assert.Contains(t, out.String(), "Created: 2024-03-01 10:20:30 UTC\n")
}

func TestDiagnoseBinary(t *testing.T) {
	s := fixture.Grid(2, 2)
	s.Subgrids = 1
	var out bytes.Buffer
	require.NoError(t, diagnose(&out, fixture.WriteFile(t, "s.cel", s.V4())))
	assert.Contains(t, out.String(), "Format: v4 binary\n")
	assert.Contains(t, out.String(), "Algorithm: Percentile\n")
	assert.Contains(t, out.String(), "Subgrids: 1\n")
}

func TestDiagnoseGarbage(t *testing.T) {
	var out bytes.Buffer
	err := diagnose(&out, fixture.WriteFile(t, "junk", []byte("junk\n")))
	assert.ErrorIs(t, err, affy.ErrUnsupportedFormat)
}

func TestDiagnoseAllContinuesAfterErrors(t *testing.T) {
	good := fixture.WriteFile(t, "s.cel", fixture.Grid(2, 2).V3())
	junk := fixture.WriteFile(t, "junk", []byte("junk\n"))

	var out bytes.Buffer
	assert.False(t, diagnoseAll(&out, []string{junk, good}))
	assert.Contains(t, out.String(), "ERROR: failed to read intensities")
	assert.Contains(t, out.String(), "Format: v3 text\n")

	out.Reset()
	assert.True(t, diagnoseAll(&out, []string{good}))
	assert.NotContains(t, out.String(), "ERROR")
}
