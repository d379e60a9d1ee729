package cel

import (
	"bufio"
	"errors"
	"io"
	"log/slog"

	"github.com/robert-malhotra/go-affy/internal/calvin"
	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Format identifies a CEL encoding.
type Format int

// CEL encodings.
const (
	FormatText Format = iota + 3
	FormatBinary
	FormatCommandConsole
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "v3 text"
	case FormatBinary:
		return "v4 binary"
	case FormatCommandConsole:
		return "command console"
	}
	return "unknown"
}

// Sniff maps the first byte of a file to its encoding.
func Sniff(first byte) Format {
	switch first {
	case calvin.Magic:
		return FormatCommandConsole
	case binaryMagic:
		return FormatBinary
	}
	return FormatText
}

// Subgrid is one subgrid record of a version 4 file.
type Subgrid struct {
	Rows, Cols int32

	UpperLeftX, UpperLeftY   float32
	UpperRightX, UpperRightY float32
	LowerLeftX, LowerLeftY   float32
	LowerRightX, LowerRightY float32

	Left, Top, Right, Bottom int32
}

// File is a decoded CEL file.
type File struct {
	Format   Format
	Geometry decode.Geometry

	// Intensities holds one value per cell in linear order.
	Intensities []float32

	Masked   []decode.Coord
	Outliers []decode.Coord

	// Header holds the version 3 [HEADER] section or the version 4 header
	// block. Command Console metadata is in Generic instead.
	Header          TagValues
	Algorithm       string
	AlgorithmParams TagValues
	CellMargin      int32
	Subgrids        []Subgrid

	Generic *calvin.File
}

// Options configures Decode.
type Options struct {
	// Masked and Outliers replace the listed cells with NaN.
	Masked   bool
	Outliers bool

	// Geometry is the expected grid. The zero value accepts whatever the
	// file declares.
	Geometry decode.Geometry

	Logger *slog.Logger
}

// Decode reads a CEL file of any supported encoding from r.
func Decode(r io.Reader, opts Options) (*File, error) {
	log := decode.Logger(opts.Logger)
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 256*1024)
	}
	first, err := br.Peek(1)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, decode.Formatf("detecting CEL format", "%w: empty input", decode.ErrTruncated)
		}
		return nil, decode.Resource("detecting CEL format", err)
	}

	format := Sniff(first[0])
	log.Debug("detected CEL format", slog.String("format", format.String()))

	var f *File
	switch format {
	case FormatCommandConsole:
		f, err = decodeCommandConsole(br, log)
	case FormatBinary:
		f, err = decodeBinary(br, log)
	default:
		f, err = decodeText(br, log)
	}
	if err != nil {
		return nil, err
	}
	f.Format = format

	if !f.Geometry.Valid() && opts.Geometry.Valid() {
		if opts.Geometry.Cells() != len(f.Intensities) {
			return nil, decode.Integrityf("decoding intensities", "%w: %d intensities for expected %s grid",
				decode.ErrCountMismatch, len(f.Intensities), opts.Geometry)
		}
		f.Geometry = opts.Geometry
	}
	if opts.Geometry.Valid() && f.Geometry != opts.Geometry {
		return nil, decode.Integrityf("decoding intensities", "%w: file grid %s, expected %s",
			decode.ErrCountMismatch, f.Geometry, opts.Geometry)
	}
	if err := f.mask(opts, log); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) mask(opts Options, log *slog.Logger) error {
	if f.Format == FormatText {
		if opts.Masked || opts.Outliers {
			log.Debug("version 3 files carry no mask or outlier lists")
		}
		return nil
	}
	if !f.Geometry.Valid() && (opts.Masked && len(f.Masked) > 0 || opts.Outliers && len(f.Outliers) > 0) {
		return decode.Formatf("masking cells", "%w: grid geometry unknown", decode.ErrMalformedField)
	}
	if opts.Masked {
		if err := decode.MaskCells(f.Intensities, f.Geometry, f.Masked, "masking cells"); err != nil {
			return err
		}
	}
	if opts.Outliers {
		if err := decode.MaskCells(f.Intensities, f.Geometry, f.Outliers, "masking outliers"); err != nil {
			return err
		}
	}
	if opts.Masked || opts.Outliers {
		log.Debug("masked cells",
			slog.Int("masked", len(f.Masked)),
			slog.Int("outliers", len(f.Outliers)),
			slog.Bool("apply_masked", opts.Masked),
			slog.Bool("apply_outliers", opts.Outliers))
	}
	return nil
}
