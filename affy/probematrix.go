package affy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/polish"
)

// Float is the element constraint of probe matrices.
type Float = polish.Float

// Matrix is a dense row-major matrix: rows are probes, columns samples.
type Matrix[T Float] = polish.Matrix[T]

// ProbeMatrix gathers the cells of g from each intensity vector. Row i
// holds cell g.Indices[i] and column j comes from samples[j].
func ProbeMatrix(g Group, samples ...[]float32) (Matrix[float32], error) {
	if len(g.Indices) == 0 || len(samples) == 0 {
		return Matrix[float32]{}, fmt.Errorf("probeset %q with %d samples: %w", g.Name, len(samples), ErrEmptyMatrix)
	}
	m := polish.NewMatrix[float32](len(g.Indices), len(samples))
	for j, v := range samples {
		for i, idx := range g.Indices {
			if idx < 0 || idx >= len(v) {
				return Matrix[float32]{}, decode.Integrityf("assembling probeset "+g.Name,
					"%w: cell %d of sample %d with %d cells", ErrOutOfRange, idx, j, len(v))
			}
			m.Set(i, j, v[idx])
		}
	}
	return m, nil
}

// Sample names one intensity file.
type Sample struct {
	Name string
	Path string
}

// SamplesFromPaths names each path after its base name without the .gz
// and .cel extensions.
func SamplesFromPaths(paths ...string) []Sample {
	out := make([]Sample, len(paths))
	for i, p := range paths {
		name := filepath.Base(p)
		for _, ext := range []string{".gz", ".cel"} {
			if strings.HasSuffix(strings.ToLower(name), ext) {
				name = name[:len(name)-len(ext)]
			}
		}
		out[i] = Sample{Name: name, Path: p}
	}
	return out
}

// Batch holds the decoded intensities of several samples on one grid.
type Batch struct {
	Geometry    Geometry
	Samples     []string
	Formats     []Format
	Intensities [][]float32
}

// Matrix returns the probe matrix of g over every sample of the batch.
func (b *Batch) Matrix(g Group) (Matrix[float32], error) {
	return ProbeMatrix(g, b.Intensities...)
}

// Assembler decodes the samples of one chip type.
type Assembler struct {
	layout *Layout
	opts   *options
}

// NewAssembler returns an Assembler for samples laid out as layout. The
// sample options (masking, decompressor, workers, logger, observer) apply
// to every file.
func NewAssembler(layout *Layout, opts ...Option) *Assembler {
	o := collect(opts)
	o.geometry = layout.Geometry
	return &Assembler{layout: layout, opts: o}
}

// Load decodes every sample, up to the configured number at a time. The
// first failure cancels the remaining decodes and is returned.
func (a *Assembler) Load(ctx context.Context, samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples: %w", ErrEmptyMatrix)
	}
	log := decode.Logger(a.opts.logger)

	b := &Batch{
		Geometry:    a.layout.Geometry,
		Samples:     make([]string, len(samples)),
		Formats:     make([]Format, len(samples)),
		Intensities: make([][]float32, len(samples)),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.workers)
	for i, s := range samples {
		b.Samples[i] = s.Name
		g.Go(func() error {
			f, err := readCEL(gctx, s.Path, a.opts)
			if err != nil {
				return fmt.Errorf("sample %s: %w", s.Name, err)
			}
			log.Debug("decoded sample",
				slog.String("sample", s.Name),
				slog.String("format", f.Format.String()),
				slog.Int("cells", len(f.Intensities)))
			b.Formats[i] = f.Format
			b.Intensities[i] = f.Intensities
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return b, nil
}
