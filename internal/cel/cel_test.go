package cel

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/fixture"
)

func decodeBytes(t *testing.T, data []byte, opts Options) (*File, error) {
	t.Helper()
	return Decode(bytes.NewReader(data), opts)
}

func encodings(s fixture.Sample) map[Format][]byte {
	return map[Format][]byte{
		FormatText:           s.V3(),
		FormatBinary:         s.V4(),
		FormatCommandConsole: s.CommandConsole(fixture.CommandConsoleOptions{}),
	}
}

func TestSniff(t *testing.T) {
	assert.Equal(t, FormatCommandConsole, Sniff(59))
	assert.Equal(t, FormatBinary, Sniff(64))
	assert.Equal(t, FormatText, Sniff('['))
	assert.Equal(t, "v4 binary", FormatBinary.String())
}

func TestEncodingsAgree(t *testing.T) {
	s := fixture.Grid(3, 4)
	s.Intensities[5] = 1234.5
	s.Intensities[7] = 0.125

	for format, data := range encodings(s) {
		t.Run(format.String(), func(t *testing.T) {
			f, err := decodeBytes(t, data, Options{})
			require.NoError(t, err)
			assert.Equal(t, format, f.Format)
			assert.Equal(t, decode.Geometry{Rows: 3, Cols: 4}, f.Geometry)
			assert.Equal(t, s.Intensities, f.Intensities)
		})
	}
}

func TestRoundTripTwoByTwo(t *testing.T) {
	f, err := decodeBytes(t, fixture.Grid(2, 2).V3(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, f.Intensities)
}

func TestAddressing(t *testing.T) {
	g := decode.Geometry{Rows: 3, Cols: 4}
	s := fixture.Sample{Rows: 3, Cols: 4, Intensities: make([]float32, g.Cells())}
	placed := map[[2]int]float32{{0, 0}: 10, {2, 1}: 20, {1, 3}: 30}
	for xy, v := range placed {
		s.Intensities[g.Index(xy[0], xy[1])] = v
	}
	for format, data := range encodings(s) {
		f, err := decodeBytes(t, data, Options{})
		require.NoError(t, err, format.String())
		for xy, v := range placed {
			assert.Equal(t, v, f.Intensities[f.Geometry.Index(xy[0], xy[1])], "%s at %v", format, xy)
		}
	}
}

func maskedSample() fixture.Sample {
	s := fixture.Grid(3, 3)
	s.Masked = []decode.Coord{{X: 1, Y: 0}, {X: 2, Y: 2}}
	s.Outliers = []decode.Coord{{X: 0, Y: 1}}
	s.Subgrids = 2
	return s
}

func nanPositions(v []float32) []int {
	var out []int
	for i, x := range v {
		if math.IsNaN(float64(x)) {
			out = append(out, i)
		}
	}
	return out
}

func TestMasking(t *testing.T) {
	s := maskedSample()
	encoded := map[Format][]byte{
		FormatBinary:         s.V4(),
		FormatCommandConsole: s.CommandConsole(fixture.CommandConsoleOptions{}),
	}

	tests := []struct {
		name string
		opts Options
		want []int
	}{
		{"off", Options{}, nil},
		{"masked", Options{Masked: true}, []int{1, 8}},
		{"outliers", Options{Outliers: true}, []int{3}},
		{"both", Options{Masked: true, Outliers: true}, []int{1, 3, 8}},
	}
	for format, data := range encoded {
		for _, tt := range tests {
			t.Run(format.String()+"/"+tt.name, func(t *testing.T) {
				f, err := decodeBytes(t, data, tt.opts)
				require.NoError(t, err)
				assert.Equal(t, s.Masked, f.Masked)
				assert.Equal(t, s.Outliers, f.Outliers)
				assert.Equal(t, tt.want, nanPositions(f.Intensities))
				for i, v := range f.Intensities {
					if !math.IsNaN(float64(v)) {
						assert.Equal(t, s.Intensities[i], v)
					}
				}
			})
		}
	}
}

func TestTextIgnoresMasking(t *testing.T) {
	f, err := decodeBytes(t, maskedSample().V3(), Options{Masked: true, Outliers: true})
	require.NoError(t, err)
	assert.Empty(t, nanPositions(f.Intensities))
}

func TestMaskOutsideGrid(t *testing.T) {
	s := fixture.Grid(2, 2)
	s.Masked = []decode.Coord{{X: 2, Y: 0}}

	_, err := decodeBytes(t, s.V4(), Options{Masked: true})
	var ie *decode.IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, decode.ErrOutOfRange)

	_, err = decodeBytes(t, s.V4(), Options{})
	assert.NoError(t, err)
}

func TestBinaryMetadata(t *testing.T) {
	f, err := decodeBytes(t, maskedSample().V4(), Options{})
	require.NoError(t, err)

	cols, ok := f.Header.Get("Cols")
	require.True(t, ok)
	assert.Equal(t, "3", cols)
	assert.Equal(t, "Percentile", f.Algorithm)
	p, ok := f.AlgorithmParams.Get("Percentile")
	require.True(t, ok)
	assert.Equal(t, "75", p)
	assert.Equal(t, "CellMargin", f.AlgorithmParams[1].Tag)
	assert.Equal(t, int32(2), f.CellMargin)
	require.Len(t, f.Subgrids, 2)
	assert.Equal(t, int32(3), f.Subgrids[0].Rows)
}

func TestCommandConsoleGeometry(t *testing.T) {
	s := fixture.Grid(3, 3)
	s.Masked = []decode.Coord{{X: 2, Y: 1}}
	data := s.CommandConsole(fixture.CommandConsoleOptions{NoGeometry: true})

	f, err := decodeBytes(t, data, Options{})
	require.NoError(t, err)
	assert.False(t, f.Geometry.Valid())
	assert.Len(t, f.Intensities, 9)

	_, err = decodeBytes(t, data, Options{Masked: true})
	assert.ErrorIs(t, err, decode.ErrMalformedField)

	f, err = decodeBytes(t, data, Options{Masked: true, Geometry: decode.Geometry{Rows: 3, Cols: 3}})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, nanPositions(f.Intensities))

	_, err = decodeBytes(t, data, Options{Geometry: decode.Geometry{Rows: 2, Cols: 2}})
	assert.ErrorIs(t, err, decode.ErrCountMismatch)
}

func TestCommandConsoleMetadata(t *testing.T) {
	f, err := decodeBytes(t, fixture.Grid(2, 2).CommandConsole(fixture.CommandConsoleOptions{Pad: true}), Options{})
	require.NoError(t, err)
	require.NotNil(t, f.Generic)
	assert.Equal(t, "Feature Extraction Cell Generation", f.Algorithm)
	require.Len(t, f.Generic.Headers, 2)
	assert.Equal(t, []int{1}, f.Generic.Headers[0].Parents)

	std, ok := f.Generic.Groups[0].DataSet("StdDev")
	require.True(t, ok)
	assert.Nil(t, std.Data)
}

func TestGeometryMismatch(t *testing.T) {
	for format, data := range encodings(fixture.Grid(2, 3)) {
		_, err := decodeBytes(t, data, Options{Geometry: decode.Geometry{Rows: 3, Cols: 2}})
		var ie *decode.IntegrityError
		assert.ErrorAs(t, err, &ie, format.String())
	}
}

func TestDecodeErrors(t *testing.T) {
	v3 := string(fixture.Grid(2, 2).V3())
	v4 := fixture.Grid(2, 2).V4()

	badVersion := bytes.Clone(v4)
	badVersion[4] = 5
	badCells := bytes.Clone(v4)
	badCells[16] = 5

	tests := []struct {
		name      string
		data      []byte
		integrity bool
		sentinel  error
	}{
		{"empty", nil, false, decode.ErrTruncated},
		{"v3 version", []byte(strings.Replace(v3, "Version=3", "Version=4", 1)), false, decode.ErrBadVersion},
		{"v3 missing version", []byte(strings.Replace(v3, "Version=3", "Build=3", 1)), false, decode.ErrHeaderMismatch},
		{"unknown encoding", []byte("PK\x03\x04 not a CEL file\n"), false, decode.ErrUnsupportedFormat},
		{"v3 count", []byte(strings.Replace(v3, "NumberCells=4", "NumberCells=5", 1)), true, decode.ErrCountMismatch},
		{"v3 truncated", []byte(v3[:strings.Index(v3, "  1\t  1")]), false, decode.ErrTruncated},
		{"v3 bad value", []byte(strings.Replace(v3, "\t3\t", "\tthree\t", 1)), false, decode.ErrMalformedField},
		{"v4 version", badVersion, false, decode.ErrBadVersion},
		{"v4 cell count", badCells, true, decode.ErrCountMismatch},
		{"v4 truncated", v4[:len(v4)-5], false, decode.ErrTruncated},
		{"command console groups", fixture.Grid(2, 2).CommandConsole(fixture.CommandConsoleOptions{Groups: 2}), false, decode.ErrCountMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeBytes(t, tt.data, Options{})
			require.Error(t, err)
			if tt.integrity {
				var ie *decode.IntegrityError
				assert.ErrorAs(t, err, &ie)
			} else {
				var fe *decode.FormatError
				assert.ErrorAs(t, err, &fe)
			}
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseTagValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want TagValues
	}{
		{"lines", "Cols=2\r\nRows=3\n\nAlgorithm=Percentile\n", TagValues{{"Cols", "2"}, {"Rows", "3"}, {"Algorithm", "Percentile"}}},
		{"joined", "Percentile:75;CellMargin:2;OutlierHigh:1.500", TagValues{{"Percentile", "75"}, {"CellMargin", "2"}, {"OutlierHigh", "1.500"}}},
		{"value with colon", "DatHeader=[0..1]  chip:CLS=2", TagValues{{"DatHeader", "[0..1]  chip:CLS=2"}}},
		{"continuation", "Note=first\n  second\nNext=1", TagValues{{"Note", "first\nsecond"}, {"Next", "1"}}},
		{"latin1", "Operator=J\xf6rg", TagValues{{"Operator", "Jörg"}}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTagValues([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseTagValues([]byte("no delimiters here"))
	assert.ErrorIs(t, err, decode.ErrMalformedField)
}
