package decode

import (
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Geometry is the cell grid of an array design.
type Geometry struct {
	Rows int
	Cols int
}

// Cells returns the number of cells on the grid.
func (g Geometry) Cells() int {
	return g.Rows * g.Cols
}

// Index returns the linear index of the cell at column x, row y.
// The stride is the row count, not the column count; every decoder and the
// layout file agree on this addressing.
func (g Geometry) Index(x, y int) int {
	return g.Rows*y + x
}

// Contains reports whether (x, y) lies on the grid.
func (g Geometry) Contains(x, y int) bool {
	return x >= 0 && x < g.Cols && y >= 0 && y < g.Rows
}

// Valid reports whether both dimensions are positive.
func (g Geometry) Valid() bool {
	return g.Rows > 0 && g.Cols > 0
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Rows, g.Cols)
}

// Coord is a cell coordinate as stored in mask and outlier lists.
type Coord struct {
	X int16
	Y int16
}

// Logger returns l, or a logger that discards everything when l is nil.
func Logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MaskCells overwrites the intensities at coords with NaN.
func MaskCells(v []float32, g Geometry, coords []Coord, op string) error {
	nan := float32(math.NaN())
	for _, c := range coords {
		x, y := int(c.X), int(c.Y)
		if !g.Contains(x, y) {
			return Integrityf(op, "%w: (%d, %d) on %s grid", ErrOutOfRange, x, y, g)
		}
		idx := g.Index(x, y)
		if idx >= len(v) {
			return Integrityf(op, "%w: index %d beyond %d intensities", ErrOutOfRange, idx, len(v))
		}
		v[idx] = nan
	}
	return nil
}
