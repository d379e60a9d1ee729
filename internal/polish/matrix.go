package polish

import (
	"errors"
	"fmt"
)

// Float is the set of element types the engine accepts.
type Float interface {
	~float32 | ~float64
}

var (
	// ErrEmptyMatrix is returned for a matrix with no rows or no columns.
	ErrEmptyMatrix = errors.New("polish: empty matrix")
	// ErrShape is returned when Data does not hold Rows*Cols elements.
	ErrShape = errors.New("polish: data length does not match shape")
	// ErrInvalidOptions is returned for a negative tolerance or an
	// iteration bound that is neither positive nor Unlimited.
	ErrInvalidOptions = errors.New("polish: invalid options")
)

// Matrix is a dense row-major matrix. In summarization rows are probes and
// columns are samples.
type Matrix[T Float] struct {
	Rows, Cols int
	Data       []T
}

// NewMatrix allocates a zero rows×cols matrix.
func NewMatrix[T Float](rows, cols int) Matrix[T] {
	return Matrix[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
}

// FromRows builds a matrix from equal-length rows.
func FromRows[T Float](rows [][]T) (Matrix[T], error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Matrix[T]{}, ErrEmptyMatrix
	}
	m := NewMatrix[T](len(rows), len(rows[0]))
	for i, r := range rows {
		if len(r) != m.Cols {
			return Matrix[T]{}, fmt.Errorf("row %d has %d values, want %d: %w", i, len(r), m.Cols, ErrShape)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// At returns m[i][j].
func (m Matrix[T]) At(i, j int) T {
	return m.Data[i*m.Cols+j]
}

// Set assigns m[i][j].
func (m Matrix[T]) Set(i, j int, v T) {
	m.Data[i*m.Cols+j] = v
}

// Row returns row i, sharing storage with m.
func (m Matrix[T]) Row(i int) []T {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Col copies column j into dst, which must have room for Rows values.
func (m Matrix[T]) Col(j int, dst []T) []T {
	dst = dst[:m.Rows]
	for i := range dst {
		dst[i] = m.Data[i*m.Cols+j]
	}
	return dst
}

// Clone returns a deep copy.
func (m Matrix[T]) Clone() Matrix[T] {
	return Matrix[T]{Rows: m.Rows, Cols: m.Cols, Data: append([]T(nil), m.Data...)}
}

// Validate checks the shape.
func (m Matrix[T]) Validate() error {
	if m.Rows <= 0 || m.Cols <= 0 {
		return ErrEmptyMatrix
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("%d values for %dx%d: %w", len(m.Data), m.Rows, m.Cols, ErrShape)
	}
	return nil
}

// ColumnMedians returns the median of every column, ignoring NaN. A column
// with no values yields NaN.
func ColumnMedians[T Float](m Matrix[T]) []T {
	out := make([]T, m.Cols)
	col := make([]T, m.Rows)
	scratch := make([]T, m.Rows)
	for j := range out {
		v, ok := medianSkipNaN(m.Col(j, col), scratch)
		if !ok {
			v = nan[T]()
		}
		out[j] = v
	}
	return out
}
