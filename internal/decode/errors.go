// Package decode holds the types shared by the layout and intensity decoders:
// the error taxonomy, grid geometry and cell coordinates.
package decode

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by the typed errors below.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrHeaderMismatch    = errors.New("header literal mismatch")
	ErrBadMagic          = errors.New("bad magic number")
	ErrBadVersion        = errors.New("bad version")
	ErrMalformedField    = errors.New("malformed field")
	ErrTruncated         = errors.New("unexpected end of input")
	ErrCountMismatch     = errors.New("declared counts do not reconcile")
	ErrOutOfRange        = errors.New("coordinate outside grid")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrOffsetMismatch    = errors.New("record offset mismatch")
)

// FormatError reports input that does not follow the container grammar:
// literal, magic or version mismatches, malformed fixed fields, truncation
// and unsupported encodings.
type FormatError struct {
	Path string
	Op   string
	Err  error
}

func (e *FormatError) Error() string {
	return describe("format error", e.Path, e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IntegrityError reports declared counts or coordinates that do not reconcile.
type IntegrityError struct {
	Path string
	Op   string
	Err  error
}

func (e *IntegrityError) Error() string {
	return describe("integrity error", e.Path, e.Op, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ResourceError reports failures to open inputs, create pipes or run the
// decompression helper.
type ResourceError struct {
	Path string
	Op   string
	Err  error
}

func (e *ResourceError) Error() string {
	return describe("resource error", e.Path, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ConfigWarning is a non-fatal report that an option value was replaced by
// its documented default.
type ConfigWarning struct {
	Option   string
	Value    string
	Fallback string
}

func (w *ConfigWarning) Error() string {
	return fmt.Sprintf("unrecognized %s %q, using %q", w.Option, w.Value, w.Fallback)
}

func describe(kind, path, op string, err error) string {
	msg := kind
	if path != "" {
		msg += " in " + path
	}
	if op != "" {
		msg += ": " + op
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	return msg
}

// Format wraps err as a FormatError for op.
func Format(op string, err error) error {
	return &FormatError{Op: op, Err: err}
}

// Formatf builds a FormatError from a format string; use %w to keep a sentinel.
func Formatf(op, format string, args ...any) error {
	return &FormatError{Op: op, Err: fmt.Errorf(format, args...)}
}

// Integrity wraps err as an IntegrityError for op.
func Integrity(op string, err error) error {
	return &IntegrityError{Op: op, Err: err}
}

// Integrityf builds an IntegrityError from a format string.
func Integrityf(op, format string, args ...any) error {
	return &IntegrityError{Op: op, Err: fmt.Errorf(format, args...)}
}

// Resource wraps err as a ResourceError for op.
func Resource(op string, err error) error {
	return &ResourceError{Op: op, Err: err}
}

// WithPath records path on a typed decode error that has none yet.
// Other errors are returned unchanged.
func WithPath(err error, path string) error {
	var fe *FormatError
	var ie *IntegrityError
	var re *ResourceError
	switch {
	case errors.As(err, &fe):
		if fe.Path == "" {
			fe.Path = path
		}
	case errors.As(err, &ie):
		if ie.Path == "" {
			ie.Path = path
		}
	case errors.As(err, &re):
		if re.Path == "" {
			re.Path = path
		}
	}
	return err
}
