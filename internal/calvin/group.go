package calvin

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// DataGroup is a named collection of data sets.
type DataGroup struct {
	Name     string
	DataSets []DataSet
}

// DataSet returns the data set with the given name.
func (g *DataGroup) DataSet(name string) (*DataSet, bool) {
	for i := range g.DataSets {
		if g.DataSets[i].Name == name {
			return &g.DataSets[i], true
		}
	}
	return nil, false
}

// Column describes one column of a data set.
type Column struct {
	Name  string
	Type  ValueType
	Width int
}

// DataSet is a table of fixed-width rows.
type DataSet struct {
	Name    string
	Params  []Param
	Columns []Column
	Rows    int

	// Data holds the raw row bytes, or nil if the data set was skipped.
	Data []byte
}

// RowWidth returns the sum of the column widths.
func (ds *DataSet) RowWidth() int {
	w := 0
	for _, c := range ds.Columns {
		w += c.Width
	}
	return w
}

// Param returns the first data set parameter with the given name.
func (ds *DataSet) Param(name string) (Param, bool) {
	return findParam(ds.Params, name)
}

// column locates a column and checks its type.
func (ds *DataSet) column(name string, typ ValueType) (offset int, err error) {
	if ds.Data == nil {
		return 0, fmt.Errorf("data set %q was not retained", ds.Name)
	}
	for _, c := range ds.Columns {
		if c.Name == name {
			if c.Type != typ || c.Width != typ.Width() {
				return 0, decode.Formatf("reading data set "+ds.Name, "%w: column %q is %s/%d, want %s/%d",
					decode.ErrMalformedField, name, c.Type, c.Width, typ, typ.Width())
			}
			return offset, nil
		}
		offset += c.Width
	}
	return 0, decode.Formatf("reading data set "+ds.Name, "%w: no column %q", decode.ErrMalformedField, name)
}

// Float32Column extracts a float column.
func (ds *DataSet) Float32Column(name string) ([]float32, error) {
	off, err := ds.column(name, ValueFloat)
	if err != nil {
		return nil, err
	}
	stride := ds.RowWidth()
	out := make([]float32, ds.Rows)
	for i := range out {
		p := i*stride + off
		out[i] = math.Float32frombits(be.Uint32(ds.Data[p:]))
	}
	return out, nil
}

// Int16Column extracts a signed 16-bit column.
func (ds *DataSet) Int16Column(name string) ([]int16, error) {
	off, err := ds.column(name, ValueInt16)
	if err != nil {
		return nil, err
	}
	stride := ds.RowWidth()
	out := make([]int16, ds.Rows)
	for i := range out {
		p := i*stride + off
		out[i] = int16(be.Uint16(ds.Data[p:]))
	}
	return out, nil
}

func (d *reader) group() (*DataGroup, error) {
	if _, err := d.r.ReadUint32(); err != nil {
		return nil, d.truncated(err, "next group offset")
	}
	firstSet, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "first data set offset")
	}
	n, err := d.count("data set count")
	if err != nil {
		return nil, err
	}
	g := &DataGroup{}
	if g.Name, err = d.wstring("group name"); err != nil {
		return nil, err
	}
	if n > 0 {
		if err := d.expect(firstSet, "first data set of group "+g.Name); err != nil {
			return nil, err
		}
	}
	g.DataSets = make([]DataSet, 0, min(n, 64))
	for range n {
		ds, err := d.dataSet(g.Name)
		if err != nil {
			return nil, err
		}
		g.DataSets = append(g.DataSets, *ds)
	}
	return g, nil
}

func (d *reader) dataSet(group string) (*DataSet, error) {
	dataPos, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "data offset")
	}
	nextPos, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "next data set offset")
	}
	ds := &DataSet{}
	if ds.Name, err = d.wstring("data set name"); err != nil {
		return nil, err
	}
	if ds.Params, err = d.params(); err != nil {
		return nil, err
	}
	ncols, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "column count")
	}
	if ncols > 1<<16 {
		return nil, decode.Formatf("reading data set "+ds.Name, "%w: %d columns", decode.ErrMalformedField, ncols)
	}
	ds.Columns = make([]Column, 0, ncols)
	for range ncols {
		var c Column
		if c.Name, err = d.wstring("column name"); err != nil {
			return nil, err
		}
		t, err := d.r.ReadInt8()
		if err != nil {
			return nil, d.truncated(err, "column type")
		}
		w, err := d.r.ReadInt32()
		if err != nil {
			return nil, d.truncated(err, "column width")
		}
		if w < 0 {
			return nil, decode.Formatf("reading data set "+ds.Name, "%w: column %q width %d",
				decode.ErrMalformedField, c.Name, w)
		}
		c.Type, c.Width = ValueType(t), int(w)
		ds.Columns = append(ds.Columns, c)
	}
	rows, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "row count")
	}
	ds.Rows = int(rows)

	if err := d.expect(dataPos, "data of "+ds.Name); err != nil {
		return nil, err
	}
	size := int64(rows) * int64(ds.RowWidth())
	if size > maxPayload {
		return nil, decode.Formatf("reading data set "+ds.Name, "%w: %d bytes of row data",
			decode.ErrMalformedField, size)
	}
	if d.opts.Keep == nil || d.opts.Keep(group, ds.Name) {
		if ds.Data, err = d.r.ReadBytes(int(size)); err != nil {
			return nil, d.truncated(err, "rows of "+ds.Name)
		}
		if ds.Data == nil {
			ds.Data = []byte{}
		}
	} else if err := d.r.Skip(size); err != nil {
		return nil, d.truncated(err, "rows of "+ds.Name)
	}

	// Some writers leave a single pad byte after the rows.
	switch gap := int64(nextPos) - d.r.Pos(); {
	case gap == 0:
	case gap == 1:
		d.log.Warn("skipping pad byte after data set",
			slog.String("dataset", ds.Name),
			slog.Int64("offset", d.r.Pos()))
		if err := d.r.Skip(1); err != nil {
			return nil, d.truncated(err, "pad byte after "+ds.Name)
		}
	default:
		return nil, d.expect(nextPos, "data set following "+ds.Name)
	}
	d.log.Debug("read data set",
		slog.String("group", group),
		slog.String("dataset", ds.Name),
		slog.Int("rows", ds.Rows),
		slog.Int("columns", len(ds.Columns)),
		slog.Bool("retained", ds.Data != nil))
	return ds, nil
}
