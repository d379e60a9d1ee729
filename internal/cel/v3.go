package cel

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// decodeText reads a version 3 text file. Only the header and the
// [INTENSITY] section are interpreted.
func decodeText(r io.Reader, log *slog.Logger) (*File, error) {
	lr := decode.NewLineReader(r, 0, "intensities")

	// Text is the fallback for any unrecognized first byte, so a missing
	// [CEL] line means none of the encodings matched.
	line, err := lr.NextNonBlank()
	if err != nil {
		return nil, lr.Truncated(err, "[CEL]")
	}
	if strings.TrimSpace(line) != "[CEL]" {
		return nil, lr.Fail(decode.ErrUnsupportedFormat, "not a v3, v4 or Command Console CEL file: first line %.40q", line)
	}
	line, err = lr.NextNonBlank()
	if err != nil {
		return nil, lr.Truncated(err, "Version=")
	}
	version, ok := strings.CutPrefix(strings.TrimSpace(line), "Version=")
	if !ok {
		return nil, lr.Fail(decode.ErrHeaderMismatch, "expected Version=, got %q", line)
	}
	if version != "3" {
		return nil, lr.Fail(decode.ErrBadVersion, "Version=%q, want 3", version)
	}

	f := &File{}
	var rows, cols, cells int
	for cells == 0 {
		line, err := lr.Next()
		if err != nil {
			return nil, lr.Truncated(err, "NumberCells=")
		}
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "Rows", "Cols", "NumberCells":
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil || n <= 0 {
				return nil, lr.Fail(decode.ErrMalformedField, "%s=%q", key, val)
			}
			switch key {
			case "Rows":
				rows = n
			case "Cols":
				cols = n
			default:
				cells = n
			}
		}
		if key != "NumberCells" {
			f.Header = append(f.Header, TagValue{Tag: key, Value: strings.TrimSpace(val)})
		}
	}

	if rows > 0 && cols > 0 {
		f.Geometry = decode.Geometry{Rows: rows, Cols: cols}
		if f.Geometry.Cells() != cells {
			return nil, decode.Integrityf("decoding intensities", "%w: NumberCells=%d on %s grid",
				decode.ErrCountMismatch, cells, f.Geometry)
		}
	}

	// Column header line.
	if _, err := lr.Next(); err != nil {
		return nil, lr.Truncated(err, "CellHeader=")
	}

	f.Intensities = make([]float32, cells)
	for i := range f.Intensities {
		line, err := lr.Next()
		if err != nil {
			return nil, lr.Truncated(err, "intensity record")
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, lr.Fail(decode.ErrMalformedField, "intensity record has %d fields, need 3", len(fields))
		}
		v, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return nil, lr.Fail(decode.ErrMalformedField, "intensity %q", fields[2])
		}
		f.Intensities[i] = float32(v)
	}

	log.Debug("decoded version 3 intensities",
		slog.Int("cells", cells),
		slog.String("grid", f.Geometry.String()))
	return f, nil
}
