package affy

import (
	"context"
	"errors"
	"time"

	"github.com/robert-malhotra/go-affy/internal/cel"
	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/gzpipe"
)

// CEL is a decoded intensity file.
type CEL = cel.File

// Format identifies a CEL encoding.
type Format = cel.Format

// CEL encodings.
const (
	FormatText           = cel.FormatText
	FormatBinary         = cel.FormatBinary
	FormatCommandConsole = cel.FormatCommandConsole
)

// ReadCEL decodes the intensity file at path in any of the three
// encodings, compressed or not.
func ReadCEL(path string, opts ...Option) (*CEL, error) {
	return ReadCELContext(context.Background(), path, opts...)
}

// ReadCELContext is ReadCEL with a context bounding the external
// decompressor. Cancelling ctx stops the helper process.
func ReadCELContext(ctx context.Context, path string, opts ...Option) (*CEL, error) {
	return readCEL(ctx, path, collect(opts))
}

// ReadIntensities returns only the intensity vector of the file at path,
// one value per cell with NaN for cells removed by masking.
func ReadIntensities(path string, opts ...Option) ([]float32, error) {
	f, err := ReadCEL(path, opts...)
	if err != nil {
		return nil, err
	}
	return f.Intensities, nil
}

func readCEL(ctx context.Context, path string, o *options) (*CEL, error) {
	start := time.Now()
	f, err := decodeCEL(ctx, path, o)
	if o.observer != nil {
		format := "unknown"
		if f != nil {
			format = f.Format.String()
		}
		o.observer.ObserveDecode("cel", format, time.Since(start), err)
	}
	return f, err
}

func decodeCEL(ctx context.Context, path string, o *options) (f *CEL, err error) {
	rc, err := gzpipe.Open(ctx, path, gzpipe.Options{Mode: o.mode, Command: o.command, Logger: o.logger})
	if err != nil {
		return nil, decode.WithPath(err, path)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			f = nil
			err = errors.Join(cerr, err)
		}
	}()

	f, err = cel.Decode(rc, cel.Options{
		Masked:   o.masked,
		Outliers: o.outliers,
		Geometry: o.geometry,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, decode.WithPath(err, path)
	}
	return f, nil
}
