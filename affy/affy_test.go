package affy

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-affy/internal/fixture"
)

func TestRoundTrip(t *testing.T) {
	layoutPath := fixture.WriteFile(t, "tiny.cdf", fixture.Layout{
		Name: "tiny",
		Rows: 2,
		Cols: 2,
		Units: []fixture.Unit{{Name: "g1", Atoms: 4, Probes: []fixture.Probe{
			fixture.PM(0, 0), fixture.PM(1, 0), fixture.PM(0, 1), fixture.PM(1, 1),
		}}},
	}.Bytes())
	samplePath := fixture.WriteFile(t, "tiny.cel", fixture.Grid(2, 2).V3())

	layout, err := ReadCDF(layoutPath, WithSelection("all"))
	require.NoError(t, err)
	g, ok := layout.Group("g1")
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, g.Indices)

	v, err := ReadIntensities(samplePath, WithGeometry(layout.Geometry))
	require.NoError(t, err)

	m, err := ProbeMatrix(*g, v)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Rows)
	assert.Equal(t, 1, m.Cols)
	assert.Equal(t, []float32{1, 2, 3, 4}, m.Data)
}

func TestEncodingsAgree(t *testing.T) {
	s := fixture.Grid(4, 4)
	files := map[string][]byte{
		"v3.cel":    s.V3(),
		"v4.cel.gz": fixture.Gzip(s.V4()),
		"cc.cel":    s.CommandConsole(fixture.CommandConsoleOptions{}),
	}
	want := map[string]Format{
		"v3.cel":    FormatText,
		"v4.cel.gz": FormatBinary,
		"cc.cel":    FormatCommandConsole,
	}
	for name, data := range files {
		f, err := ReadCEL(fixture.WriteFile(t, name, data), WithDecompressor(InProcessGunzip))
		require.NoError(t, err, name)
		assert.Equal(t, want[name], f.Format, name)
		assert.Equal(t, Geometry{Rows: 4, Cols: 4}, f.Geometry, name)
		assert.Equal(t, s.Intensities, f.Intensities, name)
	}
}

func TestReadErrorsCarryPath(t *testing.T) {
	path := fixture.WriteFile(t, "old.cdf", fixture.Layout{Name: "old", Rows: 1, Cols: 1, Version: "GC2.0"}.Bytes())
	_, err := ReadCDF(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, path, fe.Path)
	assert.ErrorIs(t, err, ErrBadVersion)

	missing := filepath.Join(t.TempDir(), "missing.cel")
	_, err = ReadCEL(missing)
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, missing, re.Path)
}

func TestMaskedIntensities(t *testing.T) {
	s := fixture.Grid(3, 3)
	s.Masked = []Coord{{X: 1, Y: 2}}
	path := fixture.WriteFile(t, "masked.cel", s.V4())

	v, err := ReadIntensities(path)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(float64(v[7])))

	v, err = ReadIntensities(path, WithMaskedCells(true))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(v[7])))
}

func TestProbeMatrix(t *testing.T) {
	g := Group{Name: "g", Indices: []int{2, 0}}
	m, err := ProbeMatrix(g, []float32{1, 2, 3}, []float32{10, 20, 30})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 30, 1, 10}, m.Data)

	_, err = ProbeMatrix(Group{Name: "empty"}, []float32{1})
	assert.ErrorIs(t, err, ErrEmptyMatrix)
	_, err = ProbeMatrix(g)
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = ProbeMatrix(g, []float32{1, 2})
	var ie *IntegrityError
	assert.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSamplesFromPaths(t *testing.T) {
	got := SamplesFromPaths("/data/S1.CEL.gz", "x.cel", "plain")
	assert.Equal(t, []Sample{
		{Name: "S1", Path: "/data/S1.CEL.gz"},
		{Name: "x", Path: "x.cel"},
		{Name: "plain", Path: "plain"},
	}, got)
}

type recorder struct {
	mu      sync.Mutex
	decodes map[string]int
	fits    int
}

func (r *recorder) ObserveDecode(kind, format string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decodes == nil {
		r.decodes = map[string]int{}
	}
	if err != nil {
		format = "error"
	}
	r.decodes[kind+" "+format]++
}

func (r *recorder) ObservePolish(bool, int) {
	r.mu.Lock()
	r.fits++
	r.mu.Unlock()
}

// summaryLayout is a 3×3 grid with two probesets of three PM cells each.
// Cell k of sample j holds 2^(k+1+j), so on the log2 scale every probeset
// is exactly additive.
func summaryLayout() fixture.Layout {
	return fixture.Layout{
		Name: "sum",
		Rows: 3,
		Cols: 3,
		Units: []fixture.Unit{
			{Name: "g1", Probes: []fixture.Probe{fixture.PM(0, 0), fixture.PM(1, 0), fixture.PM(2, 0)}},
			{Name: "a0", Probes: []fixture.Probe{fixture.PM(0, 1), fixture.PM(1, 1), fixture.PM(2, 1)}},
		},
	}
}

func summarySample(j int) fixture.Sample {
	s := fixture.Sample{Rows: 3, Cols: 3, Intensities: make([]float32, 9)}
	for k := range s.Intensities {
		s.Intensities[k] = float32(math.Exp2(float64(k + 1 + j)))
	}
	return s
}

func loadSummaryBatch(t *testing.T, opts ...Option) (*Layout, *Batch) {
	t.Helper()
	layout, err := ReadCDF(fixture.WriteFile(t, "sum.cdf", summaryLayout().Bytes()))
	require.NoError(t, err)

	paths := []string{
		fixture.WriteFile(t, "s0.cel", summarySample(0).V3()),
		fixture.WriteFile(t, "s1.cel.gz", fixture.Gzip(summarySample(1).V4())),
		fixture.WriteFile(t, "s2.cel", summarySample(2).CommandConsole(fixture.CommandConsoleOptions{})),
	}
	opts = append([]Option{WithWorkers(2), WithDecompressor(InProcessGunzip)}, opts...)
	b, err := NewAssembler(layout, opts...).Load(context.Background(), SamplesFromPaths(paths...))
	require.NoError(t, err)
	return layout, b
}

func TestAssemblerLoad(t *testing.T) {
	rec := &recorder{}
	_, b := loadSummaryBatch(t, WithObserver(rec))

	assert.Equal(t, []string{"s0", "s1", "s2"}, b.Samples)
	assert.Equal(t, []Format{FormatText, FormatBinary, FormatCommandConsole}, b.Formats)
	for j, v := range b.Intensities {
		assert.Equal(t, summarySample(j).Intensities, v)
	}
	assert.Equal(t, map[string]int{
		"cel v3 text":         1,
		"cel v4 binary":       1,
		"cel command console": 1,
	}, rec.decodes)
}

func TestAssemblerFailure(t *testing.T) {
	layout, err := ReadCDF(fixture.WriteFile(t, "sum.cdf", summaryLayout().Bytes()))
	require.NoError(t, err)

	good := fixture.WriteFile(t, "good.cel", summarySample(0).V3())
	wrongGrid := fixture.WriteFile(t, "wrong.cel", fixture.Grid(4, 4).V4())

	_, err = NewAssembler(layout).Load(context.Background(), SamplesFromPaths(good, wrongGrid))
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, wrongGrid, ie.Path)
	assert.Contains(t, err.Error(), "sample wrong")

	_, err = NewAssembler(layout).Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyMatrix)
}

func TestSummarize(t *testing.T) {
	layout, b := loadSummaryBatch(t)

	for _, polish := range []bool{true, false} {
		rec := &recorder{}
		e, err := Summarize(layout, b, WithLog2(true), WithPolish(polish), WithObserver(rec))
		require.NoError(t, err)

		assert.Equal(t, []string{"a0", "g1"}, e.Groups)
		assert.Equal(t, []string{"s0", "s1", "s2"}, e.Samples)
		require.Len(t, e.Values, 2)
		assert.InDeltaSlice(t, []float64{5, 6, 7}, e.Values[0], 1e-9)
		assert.InDeltaSlice(t, []float64{2, 3, 4}, e.Values[1], 1e-9)
		if polish {
			assert.Equal(t, 2, e.Converged)
			assert.Equal(t, 2, rec.fits)
		} else {
			assert.Zero(t, e.Converged)
			assert.Zero(t, rec.fits)
		}
	}
}

func TestSummarizeMaskedCells(t *testing.T) {
	layout, b := loadSummaryBatch(t)
	b.Intensities[0][0] = float32(math.NaN())

	e, err := Summarize(layout, b, WithLog2(true))
	require.NoError(t, err)
	for _, row := range e.Values {
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestSummarizeGeometryMismatch(t *testing.T) {
	layout, b := loadSummaryBatch(t)
	b.Geometry = Geometry{Rows: 3, Cols: 2}

	_, err := Summarize(layout, b)
	var ie *IntegrityError
	assert.ErrorAs(t, err, &ie)
}

func TestMedianPolish(t *testing.T) {
	m := Matrix[float64]{Rows: 2, Cols: 2, Data: []float64{1, 2, 3, 4}}

	r, err := MedianPolish(m, WithCopy(true))
	require.NoError(t, err)
	assert.True(t, r.Converged)
	assert.Equal(t, []float64{1, 2, 3, 4}, m.Data)
	for i := range 2 {
		for j := range 2 {
			got := r.Overall + r.RowEffects[i] + r.ColEffects[j] + r.Residuals.At(i, j)
			assert.InDelta(t, m.At(i, j), got, 1e-12)
		}
	}

	_, err = MedianPolish(m, WithMaxIter(0))
	assert.ErrorIs(t, err, ErrInvalidOptions)

	missing := Matrix[float32]{Rows: 2, Cols: 2, Data: []float32{1, float32(math.NaN()), 3, 4}}
	rm, err := MedianPolishMissing(missing)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rm.Residuals.At(0, 1)))
	for _, c := range [][2]int{{0, 0}, {1, 0}, {1, 1}} {
		i, j := c[0], c[1]
		got := rm.Overall + rm.RowEffects[i] + rm.ColEffects[j] + rm.Residuals.At(i, j)
		assert.InDelta(t, float64(missing.At(i, j)), got, 1e-9)
	}
}
