package cel

import (
	"errors"
	"io"
	"log/slog"

	"github.com/robert-malhotra/go-affy/internal/binary"
	"github.com/robert-malhotra/go-affy/internal/decode"
)

const (
	binaryMagic   = 64
	binaryVersion = 4

	// Per-cell record: float32 mean, float32 stddev, int16 pixel count.
	cellRecordSize = 10

	// Coordinate lists above this length are treated as corruption.
	maxCoords = 1 << 26
)

type binaryDecoder struct {
	r   *binary.Reader
	log *slog.Logger
}

func (d *binaryDecoder) truncated(err error, what string) error {
	if errors.Is(err, binary.ErrNegativeLength) || errors.Is(err, binary.ErrBlockTooLarge) {
		return decode.Formatf("decoding v4 intensities", "%w: %s: %v", decode.ErrMalformedField, what, err)
	}
	return decode.Formatf("decoding v4 intensities", "%w: reading %s at offset %d: %v",
		decode.ErrTruncated, what, d.r.Pos(), err)
}

func (d *binaryDecoder) int32(what string) (int32, error) {
	v, err := d.r.ReadInt32()
	if err != nil {
		return 0, d.truncated(err, what)
	}
	return v, nil
}

func (d *binaryDecoder) tagValues(what string) (TagValues, error) {
	raw, err := d.r.ReadPrefixed()
	if err != nil {
		return nil, d.truncated(err, what)
	}
	tv, err := ParseTagValues(raw)
	if err != nil {
		return nil, err
	}
	return tv, nil
}

func (d *binaryDecoder) coords(n uint32, what string) ([]decode.Coord, error) {
	if n > maxCoords {
		return nil, decode.Formatf("decoding v4 intensities", "%w: %d %s", decode.ErrMalformedField, n, what)
	}
	out := make([]decode.Coord, n)
	for i := range out {
		x, err := d.r.ReadInt16()
		if err != nil {
			return nil, d.truncated(err, what)
		}
		y, err := d.r.ReadInt16()
		if err != nil {
			return nil, d.truncated(err, what)
		}
		out[i] = decode.Coord{X: x, Y: y}
	}
	return out, nil
}

// decodeBinary reads a version 4 little-endian file.
func decodeBinary(r io.Reader, log *slog.Logger) (*File, error) {
	d := &binaryDecoder{r: binary.NewReader(r, binary.DefaultConfig()), log: log}

	magic, err := d.int32("magic")
	if err != nil {
		return nil, err
	}
	if magic != binaryMagic {
		return nil, decode.Formatf("decoding v4 intensities", "%w: got %d, want %d", decode.ErrBadMagic, magic, binaryMagic)
	}
	version, err := d.int32("version")
	if err != nil {
		return nil, err
	}
	if version != binaryVersion {
		return nil, decode.Formatf("decoding v4 intensities", "%w: got %d, want %d", decode.ErrBadVersion, version, binaryVersion)
	}
	cols, err := d.int32("column count")
	if err != nil {
		return nil, err
	}
	rows, err := d.int32("row count")
	if err != nil {
		return nil, err
	}
	cells, err := d.int32("cell count")
	if err != nil {
		return nil, err
	}
	if rows <= 0 || cols <= 0 {
		return nil, decode.Formatf("decoding v4 intensities", "%w: grid %dx%d", decode.ErrMalformedField, rows, cols)
	}
	f := &File{Geometry: decode.Geometry{Rows: int(rows), Cols: int(cols)}}
	if int64(rows)*int64(cols) != int64(cells) {
		return nil, decode.Integrityf("decoding v4 intensities", "%w: %d cells on %s grid",
			decode.ErrCountMismatch, cells, f.Geometry)
	}
	if int64(cells)*cellRecordSize > 1<<32 {
		return nil, decode.Formatf("decoding v4 intensities", "%w: %d cells", decode.ErrMalformedField, cells)
	}

	if f.Header, err = d.tagValues("header"); err != nil {
		return nil, err
	}
	algo, err := d.r.ReadPrefixed()
	if err != nil {
		return nil, d.truncated(err, "algorithm name")
	}
	f.Algorithm = string(algo)
	if f.AlgorithmParams, err = d.tagValues("algorithm parameters"); err != nil {
		return nil, err
	}
	if f.CellMargin, err = d.int32("cell margin"); err != nil {
		return nil, err
	}
	nOutliers, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "outlier count")
	}
	nMasked, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "masked count")
	}
	nSubgrids, err := d.int32("subgrid count")
	if err != nil {
		return nil, err
	}
	if nSubgrids < 0 || nSubgrids > 1<<16 {
		return nil, decode.Formatf("decoding v4 intensities", "%w: %d subgrids", decode.ErrMalformedField, nSubgrids)
	}

	log.Debug("read version 4 header",
		slog.String("grid", f.Geometry.String()),
		slog.String("algorithm", f.Algorithm),
		slog.Int("cell_margin", int(f.CellMargin)),
		slog.Int("outliers", int(nOutliers)),
		slog.Int("masked", int(nMasked)),
		slog.Int("subgrids", int(nSubgrids)))

	f.Intensities = make([]float32, cells)
	for i := range f.Intensities {
		if f.Intensities[i], err = d.r.ReadFloat32(); err != nil {
			return nil, d.truncated(err, "cell intensity")
		}
		// Standard deviation and pixel count.
		if err := d.r.Skip(cellRecordSize - 4); err != nil {
			return nil, d.truncated(err, "cell record")
		}
	}

	if f.Masked, err = d.coords(nMasked, "masked cells"); err != nil {
		return nil, err
	}
	if f.Outliers, err = d.coords(nOutliers, "outlier cells"); err != nil {
		return nil, err
	}

	f.Subgrids = make([]Subgrid, nSubgrids)
	for i := range f.Subgrids {
		if err := d.subgrid(&f.Subgrids[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (d *binaryDecoder) subgrid(s *Subgrid) error {
	ints := []*int32{&s.Rows, &s.Cols}
	floats := []*float32{
		&s.UpperLeftX, &s.UpperLeftY, &s.UpperRightX, &s.UpperRightY,
		&s.LowerLeftX, &s.LowerLeftY, &s.LowerRightX, &s.LowerRightY,
	}
	edges := []*int32{&s.Left, &s.Top, &s.Right, &s.Bottom}

	var err error
	for _, p := range ints {
		if *p, err = d.int32("subgrid"); err != nil {
			return err
		}
	}
	for _, p := range floats {
		if *p, err = d.r.ReadFloat32(); err != nil {
			return d.truncated(err, "subgrid")
		}
	}
	for _, p := range edges {
		if *p, err = d.int32("subgrid"); err != nil {
			return err
		}
	}
	return nil
}
