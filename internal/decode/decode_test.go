package decode

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryIndexUsesRowStride(t *testing.T) {
	g := Geometry{Rows: 3, Cols: 5}

	assert.Equal(t, 0, g.Index(0, 0))
	assert.Equal(t, 4, g.Index(4, 0))
	assert.Equal(t, 3, g.Index(0, 1), "stride is the row count")
	assert.Equal(t, 15, g.Cells())
	assert.True(t, g.Contains(4, 2))
	assert.False(t, g.Contains(5, 0))
	assert.False(t, g.Contains(0, 3))
	assert.False(t, g.Contains(-1, 0))
	assert.Equal(t, "3x5", g.String())
}

func TestTypedErrorsWrapSentinels(t *testing.T) {
	err := Formatf("reading header", "%w: got %d", ErrBadMagic, 12)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, "format error: reading header: bad magic number: got 12", err.Error())

	WithPath(err, "/data/a.CEL")
	assert.Equal(t, "/data/a.CEL", fe.Path)
	assert.Contains(t, err.Error(), "in /data/a.CEL")

	// An existing path is kept.
	WithPath(err, "/other")
	assert.Equal(t, "/data/a.CEL", fe.Path)

	ierr := Integrity("cells", ErrCountMismatch)
	var ie *IntegrityError
	require.True(t, errors.As(WithPath(ierr, "x"), &ie))
	assert.Equal(t, "x", ie.Path)
	assert.False(t, errors.As(ierr, &fe))

	rerr := Resource("open", errors.New("no such file"))
	var re *ResourceError
	require.True(t, errors.As(rerr, &re))
}

func TestConfigWarning(t *testing.T) {
	w := &ConfigWarning{Option: "probe selection", Value: "xx", Fallback: "pm"}
	assert.Equal(t, `unrecognized probe selection "xx", using "pm"`, w.Error())
}

func TestMaskCells(t *testing.T) {
	g := Geometry{Rows: 2, Cols: 2}
	v := []float32{1, 2, 3, 4}

	require.NoError(t, MaskCells(v, g, []Coord{{X: 1, Y: 1}, {X: 0, Y: 0}}, "mask"))
	assert.True(t, math.IsNaN(float64(v[0])))
	assert.Equal(t, float32(2), v[1])
	assert.Equal(t, float32(3), v[2])
	assert.True(t, math.IsNaN(float64(v[3])))

	err := MaskCells(v, g, []Coord{{X: 2, Y: 0}}, "mask")
	assert.ErrorIs(t, err, ErrOutOfRange)
	var ie *IntegrityError
	assert.ErrorAs(t, err, &ie)
}
