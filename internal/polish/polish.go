package polish

import (
	"fmt"
	"math"
	"slices"
)

// Unlimited as MaxIter sweeps until convergence.
const Unlimited = -1

// Defaults for Options.
const (
	DefaultEps     = 0.01
	DefaultMaxIter = 10
)

// Options control the sweep loop.
type Options struct {
	// Eps is the relative tolerance on the change in the sum of absolute
	// residuals.
	Eps float64

	// MaxIter bounds the number of sweeps; Unlimited removes the bound.
	MaxIter int

	// Copy leaves the input untouched. Otherwise Polish works in place and
	// the residual matrix shares storage with the input.
	Copy bool
}

// DefaultOptions returns Eps 0.01, MaxIter 10, in place.
func DefaultOptions() Options {
	return Options{Eps: DefaultEps, MaxIter: DefaultMaxIter}
}

// Validate checks the tolerance and iteration bound.
func (o Options) Validate() error {
	if o.Eps < 0 || math.IsNaN(o.Eps) || math.IsInf(o.Eps, 0) {
		return fmt.Errorf("eps %v: %w", o.Eps, ErrInvalidOptions)
	}
	if o.MaxIter == 0 || o.MaxIter < Unlimited {
		return fmt.Errorf("max iterations %d: %w", o.MaxIter, ErrInvalidOptions)
	}
	return nil
}

// Result is the additive decomposition of a matrix.
type Result[T Float] struct {
	Residuals  Matrix[T]
	RowEffects []T
	ColEffects []T
	Overall    T

	Converged  bool
	Iterations int
}

// Summary returns ColEffects[j] + Overall for every column, the per-sample
// expression value of a probeset.
func (r *Result[T]) Summary() []T {
	out := make([]T, len(r.ColEffects))
	for j, c := range r.ColEffects {
		out[j] = c + r.Overall
	}
	return out
}

// Polish runs median polish on m at its own precision.
func Polish[T Float](m Matrix[T], opts Options) (*Result[T], error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Copy {
		m = m.Clone()
	}
	return sweep(m, opts, median[T], absSum[T]), nil
}

// PolishMissing runs median polish in float64, ignoring NaN cells in
// medians and in the residual sum. A row or column without values gets no
// adjustment in that sweep. For float64 input without Copy the residuals
// share storage with m; other inputs are converted into a new matrix.
func PolishMissing[T Float](m Matrix[T], opts Options) (*Result[float64], error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var z Matrix[float64]
	if data, ok := any(m.Data).([]float64); ok && !opts.Copy {
		z = Matrix[float64]{Rows: m.Rows, Cols: m.Cols, Data: data}
	} else {
		z = NewMatrix[float64](m.Rows, m.Cols)
		for i, v := range m.Data {
			z.Data[i] = float64(v)
		}
	}
	return sweep(z, opts, medianSkipNaN[float64], absSumSkipNaN[float64]), nil
}

type medianFunc[T Float] func(v, scratch []T) (T, bool)

func sweep[T Float](z Matrix[T], opts Options, med medianFunc[T], sum func([]T) float64) *Result[T] {
	r := &Result[T]{
		Residuals:  z,
		RowEffects: make([]T, z.Rows),
		ColEffects: make([]T, z.Cols),
	}
	scratch := make([]T, max(z.Rows, z.Cols))
	col := make([]T, z.Rows)

	var prev float64
	for iter := 1; opts.MaxIter == Unlimited || iter <= opts.MaxIter; iter++ {
		r.Iterations = iter

		for i := range z.Rows {
			row := z.Row(i)
			d, ok := med(row, scratch)
			if !ok {
				continue
			}
			for j := range row {
				row[j] -= d
			}
			r.RowEffects[i] += d
		}
		r.Overall += recenter(r.RowEffects, scratch, med)

		for j := range z.Cols {
			d, ok := med(z.Col(j, col), scratch)
			if !ok {
				continue
			}
			for i := range z.Rows {
				z.Data[i*z.Cols+j] -= d
			}
			r.ColEffects[j] += d
		}
		r.Overall += recenter(r.ColEffects, scratch, med)

		s := sum(z.Data)
		if s == 0 || math.Abs(s-prev) < opts.Eps*s {
			r.Converged = true
			break
		}
		prev = s
	}
	return r
}

// recenter subtracts the median of effects from each effect and returns it.
func recenter[T Float](effects, scratch []T, med medianFunc[T]) T {
	d, ok := med(effects, scratch)
	if !ok {
		return 0
	}
	for i := range effects {
		effects[i] -= d
	}
	return d
}

// median returns the median of v, averaging the two middle values of an
// even-length slice. v is not modified.
func median[T Float](v, scratch []T) (T, bool) {
	if len(v) == 0 {
		return 0, false
	}
	s := append(scratch[:0], v...)
	return middle(s), true
}

func medianSkipNaN[T Float](v, scratch []T) (T, bool) {
	s := scratch[:0]
	for _, x := range v {
		if x == x {
			s = append(s, x)
		}
	}
	if len(s) == 0 {
		return 0, false
	}
	return middle(s), true
}

func middle[T Float](s []T) T {
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func absSum[T Float](v []T) float64 {
	var s float64
	for _, x := range v {
		s += math.Abs(float64(x))
	}
	return s
}

func absSumSkipNaN[T Float](v []T) float64 {
	var s float64
	for _, x := range v {
		if x == x {
			s += math.Abs(float64(x))
		}
	}
	return s
}

func nan[T Float]() T {
	return T(math.NaN())
}
