package affy

import (
	"context"
	"errors"
	"time"

	"github.com/robert-malhotra/go-affy/internal/cdf"
	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/gzpipe"
)

// Layout types.
type (
	Layout    = cdf.Layout
	Group     = cdf.Group
	Selection = cdf.Selection
	Geometry  = decode.Geometry
	Coord     = decode.Coord
)

// Cell selections.
const (
	SelectPM  = cdf.SelectPM
	SelectMM  = cdf.SelectMM
	SelectAll = cdf.SelectAll
)

// ReadCDF decodes the chip description file at path. Gzip-compressed files
// are accepted.
func ReadCDF(path string, opts ...Option) (*Layout, error) {
	return ReadCDFContext(context.Background(), path, opts...)
}

// ReadCDFContext is ReadCDF with a context bounding the external
// decompressor.
func ReadCDFContext(ctx context.Context, path string, opts ...Option) (*Layout, error) {
	o := collect(opts)
	start := time.Now()
	layout, err := readCDF(ctx, path, o)
	if o.observer != nil {
		o.observer.ObserveDecode("layout", "text", time.Since(start), err)
	}
	return layout, err
}

func readCDF(ctx context.Context, path string, o *options) (layout *Layout, err error) {
	rc, err := gzpipe.Open(ctx, path, gzpipe.Options{Mode: o.mode, Command: o.command, Logger: o.logger})
	if err != nil {
		return nil, decode.WithPath(err, path)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			layout = nil
			err = errors.Join(cerr, err)
		}
	}()

	layout, err = cdf.Parse(rc, cdf.Options{
		Selection:  o.selection,
		LineEnding: o.lineEnding,
		Logger:     o.logger,
	})
	if err != nil {
		return nil, decode.WithPath(err, path)
	}
	return layout, nil
}
