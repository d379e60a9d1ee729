package affy

import (
	"log/slog"
	"time"

	"github.com/robert-malhotra/go-affy/internal/cdf"
	"github.com/robert-malhotra/go-affy/internal/gzpipe"
	"github.com/robert-malhotra/go-affy/internal/polish"
)

// Observer receives timing and outcome reports. *metrics.Metrics from the
// command line tools satisfies it.
type Observer interface {
	ObserveDecode(kind, format string, elapsed time.Duration, err error)
	ObservePolish(converged bool, iterations int)
}

// Decompressor selects how gzip input is decompressed.
type Decompressor = gzpipe.Mode

// Decompressors.
const (
	// ExternalGunzip runs the gunzip command writing into a private named
	// pipe.
	ExternalGunzip = gzpipe.External
	// InProcessGunzip decompresses in the calling process.
	InProcessGunzip = gzpipe.InProcess
)

// Option configures the readers, the assembler and the summarization
// calls. Each call ignores options that do not apply to it.
type Option func(*options)

type options struct {
	selection  string
	lineEnding int

	masked   bool
	outliers bool
	geometry Geometry
	mode     gzpipe.Mode
	command  string

	eps     float64
	maxIter int
	copy    bool
	polish  bool
	log2    bool

	workers  int
	logger   *slog.Logger
	observer Observer
}

func defaultOptions() *options {
	return &options{
		selection: string(cdf.SelectPM),
		mode:      gzpipe.External,
		command:   gzpipe.DefaultCommand,
		eps:       polish.DefaultEps,
		maxIter:   polish.DefaultMaxIter,
		polish:    true,
		workers:   1,
	}
}

func collect(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) polishOptions() polish.Options {
	return polish.Options{Eps: o.eps, MaxIter: o.maxIter, Copy: o.copy}
}

// WithSelection picks the layout cells to keep: "pm", "mm" or "all".
// Unknown values fall back to "pm" and are reported in Layout.Warnings.
func WithSelection(s string) Option {
	return func(o *options) {
		o.selection = s
	}
}

// WithLineEnding sets the terminator width of layout lines (1 or 2).
// The default strips "\n" and "\r\n" alike.
func WithLineEnding(n int) Option {
	return func(o *options) {
		o.lineEnding = n
	}
}

// WithMaskedCells replaces masked cells with NaN.
func WithMaskedCells(on bool) Option {
	return func(o *options) {
		o.masked = on
	}
}

// WithOutlierCells replaces outlier cells with NaN.
func WithOutlierCells(on bool) Option {
	return func(o *options) {
		o.outliers = on
	}
}

// WithGeometry sets the grid a sample must have, usually the layout's.
func WithGeometry(g Geometry) Option {
	return func(o *options) {
		o.geometry = g
	}
}

// WithDecompressor selects how gzip input is decompressed.
func WithDecompressor(m Decompressor) Option {
	return func(o *options) {
		if m == gzpipe.External || m == gzpipe.InProcess {
			o.mode = m
		}
	}
}

// WithGunzipCommand sets the external decompressor.
func WithGunzipCommand(cmd string) Option {
	return func(o *options) {
		if cmd != "" {
			o.command = cmd
		}
	}
}

// WithEps sets the relative convergence tolerance of median polish.
func WithEps(eps float64) Option {
	return func(o *options) {
		o.eps = eps
	}
}

// WithMaxIter bounds the median polish sweeps; polish.Unlimited removes
// the bound.
func WithMaxIter(n int) Option {
	return func(o *options) {
		o.maxIter = n
	}
}

// WithCopy keeps median polish from overwriting its input.
func WithCopy(on bool) Option {
	return func(o *options) {
		o.copy = on
	}
}

// WithPolish chooses between median polish and a plain per-sample median
// in Summarize.
func WithPolish(on bool) Option {
	return func(o *options) {
		o.polish = on
	}
}

// WithLog2 makes Summarize work on log2 intensities.
func WithLog2(on bool) Option {
	return func(o *options) {
		o.log2 = on
	}
}

// WithWorkers sets how many samples the Assembler decodes at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger for decode warnings and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver reports decode and polish outcomes to ob.
func WithObserver(ob Observer) Option {
	return func(o *options) {
		o.observer = ob
	}
}
