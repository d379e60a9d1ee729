// Package gzpipe opens input files that may be gzip-compressed.
//
// Compressed files are either decompressed by an external gunzip process
// writing into a private named pipe, or in-process. Callers always read a
// plain stream and must Close it to release the helper process and the
// temporary pipe.
package gzpipe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Mode selects how compressed input is decompressed.
type Mode string

// Decompression modes.
const (
	External  Mode = "external"
	InProcess Mode = "inprocess"
)

// DefaultCommand is the external decompressor.
const DefaultCommand = "gunzip"

// ParseMode maps a configuration string to a Mode. The second result is
// false for unrecognized values, which map to External.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case External, "":
		return External, true
	case InProcess:
		return InProcess, true
	}
	return External, false
}

// Options configures Open.
type Options struct {
	Mode Mode

	// Command is the external decompressor, run as "<Command> -c <path>".
	Command string

	Logger *slog.Logger
}

// IsGzip reports whether the file at path is a gzip stream from which at
// least one byte can be decompressed.
func IsGzip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, &decode.ResourceError{Path: path, Op: "opening input", Err: err}
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return false, nil
	}
	defer zr.Close()

	var b [1]byte
	if _, err := io.ReadFull(zr, b[:]); err != nil {
		return false, nil
	}
	return true, nil
}

// Open returns a plain stream for path, decompressing it when it is gzip.
func Open(ctx context.Context, path string, opts Options) (io.ReadCloser, error) {
	log := decode.Logger(opts.Logger)

	compressed, err := IsGzip(path)
	if err != nil {
		return nil, err
	}
	if !compressed {
		f, err := os.Open(path)
		if err != nil {
			return nil, &decode.ResourceError{Path: path, Op: "opening input", Err: err}
		}
		return f, nil
	}

	mode := opts.Mode
	if mode == "" {
		mode = External
	}
	log.Debug("opening compressed input", slog.String("path", path), slog.String("mode", string(mode)))

	if mode == InProcess || !pipeSupported {
		return openInProcess(path)
	}
	cmd := opts.Command
	if cmd == "" {
		cmd = DefaultCommand
	}
	return openPipe(ctx, path, cmd, log)
}

// multiReadCloser closes multiple io.Closers when Close is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openInProcess(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &decode.ResourceError{Path: path, Op: "opening input", Err: err}
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, &decode.FormatError{Path: path, Op: "reading gzip header", Err: err}
	}
	return &multiReadCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
}
