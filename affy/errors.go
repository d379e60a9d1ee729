package affy

import (
	"github.com/robert-malhotra/go-affy/internal/decode"
	"github.com/robert-malhotra/go-affy/internal/polish"
)

// Error types. Failures while reading files (ReadCDF, ReadCEL, Assembler.Load)
// are one of the first three and wrap one of the decode sentinels below.
// Matrix and polish calls return ErrEmptyMatrix, ErrShape or
// ErrInvalidOptions wrapped with fmt.Errorf, except for ProbeMatrix cell
// indices outside a sample, which are an IntegrityError.
type (
	FormatError    = decode.FormatError
	IntegrityError = decode.IntegrityError
	ResourceError  = decode.ResourceError
	ConfigWarning  = decode.ConfigWarning
)

// Common errors
var (
	ErrUnsupportedFormat = decode.ErrUnsupportedFormat
	ErrHeaderMismatch    = decode.ErrHeaderMismatch
	ErrBadMagic          = decode.ErrBadMagic
	ErrBadVersion        = decode.ErrBadVersion
	ErrMalformedField    = decode.ErrMalformedField
	ErrTruncated         = decode.ErrTruncated
	ErrCountMismatch     = decode.ErrCountMismatch
	ErrOutOfRange        = decode.ErrOutOfRange
	ErrDuplicate         = decode.ErrDuplicate
	ErrOffsetMismatch    = decode.ErrOffsetMismatch

	ErrEmptyMatrix    = polish.ErrEmptyMatrix
	ErrShape          = polish.ErrShape
	ErrInvalidOptions = polish.ErrInvalidOptions
)
