package affy

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/polish"
)

// PolishResult is the additive decomposition of a probe matrix.
type PolishResult[T Float] = polish.Result[T]

// Unlimited as WithMaxIter sweeps until convergence.
const Unlimited = polish.Unlimited

// MedianPolish fits m = overall + row + column + residual at the precision
// of m. Without WithCopy the residuals overwrite m.
func MedianPolish[T Float](m Matrix[T], opts ...Option) (*PolishResult[T], error) {
	o := collect(opts)
	r, err := polish.Polish(m, o.polishOptions())
	if err == nil && o.observer != nil {
		o.observer.ObservePolish(r.Converged, r.Iterations)
	}
	return r, err
}

// MedianPolishMissing is MedianPolish in float64 with NaN cells left out of
// every median and residual sum.
func MedianPolishMissing[T Float](m Matrix[T], opts ...Option) (*PolishResult[float64], error) {
	o := collect(opts)
	r, err := polish.PolishMissing(m, o.polishOptions())
	if err == nil && o.observer != nil {
		o.observer.ObservePolish(r.Converged, r.Iterations)
	}
	return r, err
}

// Expression holds one value per probeset and sample.
type Expression struct {
	Groups  []string
	Samples []string

	// Values[i][j] is the value of Groups[i] in Samples[j].
	Values [][]float64

	// Converged counts the probesets whose median polish converged.
	Converged int
}

// Summarize computes an expression value for every probeset of layout,
// ordered by name. With median polish (the default) the value is the
// column effect plus the overall effect; WithPolish(false) uses the
// per-sample median instead. Probesets without retained cells are skipped.
func Summarize(layout *Layout, b *Batch, opts ...Option) (*Expression, error) {
	o := collect(opts)
	log := decode.Logger(o.logger)
	if layout.Geometry != b.Geometry {
		return nil, decode.Integrityf("summarizing", "%w: layout %s, samples %s",
			ErrCountMismatch, layout.Geometry, b.Geometry)
	}

	groups := slices.Clone(layout.Groups)
	slices.SortStableFunc(groups, func(x, y Group) int {
		return strings.Compare(x.Name, y.Name)
	})

	e := &Expression{Samples: slices.Clone(b.Samples)}
	for _, g := range groups {
		if len(g.Indices) == 0 {
			log.Debug("skipping empty probeset", slog.String("probeset", g.Name))
			continue
		}
		m, err := b.Matrix(g)
		if err != nil {
			return nil, err
		}
		z := polish.NewMatrix[float64](m.Rows, m.Cols)
		for i, v := range m.Data {
			z.Data[i] = float64(v)
			if o.log2 {
				z.Data[i] = math.Log2(z.Data[i])
			}
		}

		var values []float64
		if o.polish {
			r, err := polish.PolishMissing(z, o.polishOptions())
			if err != nil {
				return nil, fmt.Errorf("probeset %s: %w", g.Name, err)
			}
			if o.observer != nil {
				o.observer.ObservePolish(r.Converged, r.Iterations)
			}
			if r.Converged {
				e.Converged++
			}
			values = r.Summary()
		} else {
			values = polish.ColumnMedians(z)
		}
		e.Groups = append(e.Groups, g.Name)
		e.Values = append(e.Values, values)
	}
	log.Info("summarized probesets",
		slog.Int("probesets", len(e.Groups)),
		slog.Int("samples", len(e.Samples)),
		slog.Int("converged", e.Converged))
	return e, nil
}
