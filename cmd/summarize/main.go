// Command summarize computes probeset expression values from a chip
// description file and a set of intensity files.
//
//	summarize -cdf HG-U133A.cdf [flags] sample1.cel.gz sample2.cel ...
//
// Intensities are log2 transformed and summarized by median polish. The
// table is written as TSV (stdout by default) or as an Excel workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robert-malhotra/go-affy/affy"
	"github.com/robert-malhotra/go-affy/internal/config"
	"github.com/robert-malhotra/go-affy/internal/export"
	"github.com/robert-malhotra/go-affy/internal/gzpipe"
	"github.com/robert-malhotra/go-affy/internal/logging"
	"github.com/robert-malhotra/go-affy/internal/metrics"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	configPath string
	cdfPath    string

	selection    string
	masked       bool
	outliers     bool
	decompressor string
	workers      int

	noPolish bool
	noLog2   bool
	eps      float64
	maxIter  int

	output    string
	format    string
	metrics   string
	logLevel  string
	logFormat string
}

func newFlagSet(f *flags) *flag.FlagSet {
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&f.cdfPath, "cdf", "", "chip description file (required)")
	fs.StringVar(&f.selection, "selection", "", "cells to keep: pm, mm or all")
	fs.BoolVar(&f.masked, "masked", false, "treat masked cells as missing")
	fs.BoolVar(&f.outliers, "outliers", false, "treat outlier cells as missing")
	fs.StringVar(&f.decompressor, "decompressor", "", "gzip handling: external or inprocess")
	fs.IntVar(&f.workers, "workers", 0, "samples decoded in parallel")
	fs.BoolVar(&f.noPolish, "no-polish", false, "use per-sample medians instead of median polish")
	fs.BoolVar(&f.noLog2, "no-log2", false, "summarize raw intensities")
	fs.Float64Var(&f.eps, "eps", 0, "median polish convergence tolerance")
	fs.IntVar(&f.maxIter, "max-iter", 0, "median polish iteration bound")
	fs.StringVar(&f.output, "o", "", "output file (default stdout)")
	fs.StringVar(&f.format, "format", "", "output format: tsv or xlsx")
	fs.StringVar(&f.metrics, "metrics", "", "write Prometheus metrics to this file")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "json or text")
	return fs
}

// apply overrides cfg with the flags given on the command line.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "selection":
			cfg.Layout.Selection = f.selection
		case "masked":
			cfg.Samples.Masked = f.masked
		case "outliers":
			cfg.Samples.Outliers = f.outliers
		case "decompressor":
			cfg.Samples.Decompressor = f.decompressor
		case "workers":
			cfg.Samples.Workers = f.workers
		case "no-polish":
			cfg.Polish.Enabled = !f.noPolish
		case "no-log2":
			cfg.Polish.Log2 = !f.noLog2
		case "eps":
			cfg.Polish.Eps = f.eps
		case "max-iter":
			cfg.Polish.MaxIter = f.maxIter
		case "o":
			cfg.Output.Path = f.output
		case "format":
			cfg.Output.Format = f.format
		case "metrics":
			cfg.Metrics.TextFile = f.metrics
		case "log-level":
			cfg.Logging.Level = f.logLevel
		case "log-format":
			cfg.Logging.Format = f.logFormat
		}
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var f flags
	fs := newFlagSet(&f)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if f.cdfPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: summarize -cdf FILE [flags] SAMPLE...")
		fs.PrintDefaults()
		return exitUsage
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	log, runID, err := logging.New(stderr, cfg.Logging)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	var m *metrics.Metrics
	if cfg.Metrics.TextFile != "" {
		m = metrics.New()
	}
	err = summarize(ctx, cfg, f.cdfPath, fs.Args(), stdout, log, m)
	if werr := m.WriteTextfile(cfg.Metrics.TextFile); werr != nil {
		log.Error("writing metrics", slog.String("path", cfg.Metrics.TextFile), slog.Any("error", werr))
	}
	if err != nil {
		log.Error("summarize failed", slog.Any("error", err))
		return exitError
	}
	log.Info("done", slog.String("run_id", runID))
	return exitOK
}

func summarize(ctx context.Context, cfg *config.Config, cdfPath string, paths []string, stdout io.Writer, log *slog.Logger, m *metrics.Metrics) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Samples.Timeout)
	defer cancel()

	mode, _ := gzpipe.ParseMode(cfg.Samples.Decompressor)
	opts := []affy.Option{
		affy.WithSelection(cfg.Layout.Selection),
		affy.WithLineEnding(cfg.Layout.LineEnding),
		affy.WithMaskedCells(cfg.Samples.Masked),
		affy.WithOutlierCells(cfg.Samples.Outliers),
		affy.WithDecompressor(mode),
		affy.WithGunzipCommand(cfg.Samples.GunzipCommand),
		affy.WithWorkers(cfg.Samples.Workers),
		affy.WithPolish(cfg.Polish.Enabled),
		affy.WithLog2(cfg.Polish.Log2),
		affy.WithEps(cfg.Polish.Eps),
		affy.WithMaxIter(cfg.Polish.MaxIter),
		affy.WithLogger(log),
		affy.WithObserver(m),
	}

	layout, err := affy.ReadCDFContext(ctx, cdfPath, opts...)
	if err != nil {
		return err
	}
	for _, w := range layout.Warnings {
		log.Warn("layout option", slog.Any("warning", w))
	}
	log.Info("decoded layout",
		slog.String("chip", layout.Name),
		slog.String("grid", layout.Geometry.String()),
		slog.Int("probesets", len(layout.Groups)),
		slog.Int("cells", layout.NumIndices()))

	batch, err := affy.NewAssembler(layout, opts...).Load(ctx, affy.SamplesFromPaths(paths...))
	if err != nil {
		return err
	}
	expr, err := affy.Summarize(layout, batch, opts...)
	if err != nil {
		return err
	}

	t := &export.Table{Groups: expr.Groups, Samples: expr.Samples, Values: expr.Values}
	if cfg.Output.Path == "" && cfg.Output.Format == export.FormatTSV {
		return export.WriteTSV(stdout, t)
	}
	if err := export.WriteFile(cfg.Output.Path, cfg.Output.Format, cfg.Output.Sheet, t); err != nil {
		return err
	}
	log.Info("wrote expression table", slog.String("path", cfg.Output.Path), slog.String("format", cfg.Output.Format))
	return nil
}
