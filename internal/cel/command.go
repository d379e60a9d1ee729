package cel

import (
	"io"
	"log/slog"

	"github.com/robert-malhotra/go-affy/internal/calvin"
	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Data set and parameter names used by Command Console CEL files.
const (
	intensityDataSet = "Intensity"
	outlierDataSet   = "Outlier"
	maskDataSet      = "Mask"

	rowsParam = "affymetrix-cel-rows"
	colsParam = "affymetrix-cel-cols"
	algoParam = "affymetrix-algorithm-name"
)

func keepCELDataSet(_, name string) bool {
	switch name {
	case intensityDataSet, outlierDataSet, maskDataSet:
		return true
	}
	return false
}

// decodeCommandConsole reads a Command Console CEL file, which must hold
// exactly one data group.
func decodeCommandConsole(r io.Reader, log *slog.Logger) (*File, error) {
	gf, err := calvin.Read(r, calvin.Options{Groups: 1, Keep: keepCELDataSet, Logger: log})
	if err != nil {
		return nil, err
	}
	f := &File{Generic: gf}

	h := gf.Header()
	if p, ok := h.Param(algoParam); ok {
		f.Algorithm = p.String()
	}
	rows, rok := intParam(h, rowsParam)
	cols, cok := intParam(h, colsParam)
	if rok && cok {
		f.Geometry = decode.Geometry{Rows: rows, Cols: cols}
	}

	group := &gf.Groups[0]
	ds, ok := group.DataSet(intensityDataSet)
	if !ok {
		return nil, decode.Formatf("decoding command console intensities", "%w: no %q data set in group %q",
			decode.ErrMalformedField, intensityDataSet, group.Name)
	}
	if len(ds.Columns) != 1 || ds.Columns[0].Name != intensityDataSet {
		return nil, decode.Formatf("decoding command console intensities", "%w: %q data set has %d columns, want one %q column",
			decode.ErrMalformedField, intensityDataSet, len(ds.Columns), intensityDataSet)
	}
	if f.Intensities, err = ds.Float32Column(intensityDataSet); err != nil {
		return nil, err
	}
	if f.Geometry.Valid() && f.Geometry.Cells() != len(f.Intensities) {
		return nil, decode.Integrityf("decoding command console intensities", "%w: %d intensities on %s grid",
			decode.ErrCountMismatch, len(f.Intensities), f.Geometry)
	}

	if f.Outliers, err = coordDataSet(group, outlierDataSet); err != nil {
		return nil, err
	}
	if f.Masked, err = coordDataSet(group, maskDataSet); err != nil {
		return nil, err
	}

	log.Debug("decoded command console intensities",
		slog.Int("cells", len(f.Intensities)),
		slog.String("grid", f.Geometry.String()),
		slog.Int("outliers", len(f.Outliers)),
		slog.Int("masked", len(f.Masked)))
	return f, nil
}

func intParam(h *calvin.DataHeader, name string) (int, bool) {
	p, ok := h.Param(name)
	if !ok {
		return 0, false
	}
	n, ok := p.Int()
	return n, ok && n > 0
}

// coordDataSet reads an optional X/Y coordinate data set.
func coordDataSet(g *calvin.DataGroup, name string) ([]decode.Coord, error) {
	ds, ok := g.DataSet(name)
	if !ok {
		return nil, nil
	}
	xs, err := ds.Int16Column("X")
	if err != nil {
		return nil, err
	}
	ys, err := ds.Int16Column("Y")
	if err != nil {
		return nil, err
	}
	out := make([]decode.Coord, len(xs))
	for i := range out {
		out[i] = decode.Coord{X: xs[i], Y: ys[i]}
	}
	return out, nil
}
