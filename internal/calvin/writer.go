package calvin

import (
	"bytes"
	"io"

	"github.com/robert-malhotra/go-affy/internal/binary"
)

// WriteOptions control Write.
type WriteOptions struct {
	// Pad writes one extra byte after every data set, as some writers do.
	Pad bool
}

// Write encodes f, computing every recorded offset. Headers[0] and the
// Parents links describe the header tree; Data set rows are written as
// stored.
func Write(w io.Writer, f *File, opts WriteOptions) error {
	var hdr bytes.Buffer
	hw := binary.NewWriter(&hdr, binary.BigEndian())
	if len(f.Headers) > 0 {
		writeHeader(hw, f.Headers, 0)
	} else {
		writeHeader(hw, []DataHeader{{}}, 0)
	}
	if err := hw.Err(); err != nil {
		return err
	}

	version := f.Version
	if version == 0 {
		version = Version
	}
	bw := binary.NewWriter(w, binary.BigEndian())
	bw.WriteUint8(Magic)
	bw.WriteUint8(version)
	bw.WriteInt32(int32(len(f.Groups)))
	bw.WriteUint32(uint32(10 + hdr.Len()))
	bw.WriteBytes(hdr.Bytes())

	for i := range f.Groups {
		g := encodeGroup(&f.Groups[i], uint32(bw.Pos()), i == len(f.Groups)-1, opts)
		bw.WriteBytes(g)
	}
	return bw.Err()
}

func writeHeader(w *binary.Writer, nodes []DataHeader, i int) {
	h := &nodes[i]
	w.WritePrefixed([]byte(h.DataTypeID))
	w.WritePrefixed([]byte(h.FileID))
	writeWString(w, h.Created)
	writeWString(w, h.Locale)
	writeParams(w, h.Params)
	w.WriteInt32(int32(len(h.Parents)))
	for _, p := range h.Parents {
		writeHeader(w, nodes, p)
	}
}

func writeWString(w *binary.Writer, s string) {
	b := EncodeUTF16(s)
	w.WriteInt32(int32(len(b) / 2))
	w.WriteBytes(b)
}

func writeParams(w *binary.Writer, params []Param) {
	w.WriteInt32(int32(len(params)))
	for _, p := range params {
		writeWString(w, p.Name)
		w.WritePrefixed(p.Raw)
		writeWString(w, p.Type)
	}
}

func encodeGroup(g *DataGroup, start uint32, last bool, opts WriteOptions) []byte {
	var name bytes.Buffer
	writeWString(binary.NewWriter(&name, binary.BigEndian()), g.Name)

	pos := start + 12 + uint32(name.Len())
	firstSet := pos
	var sets bytes.Buffer
	for i := range g.DataSets {
		b := encodeDataSet(&g.DataSets[i], pos, opts)
		sets.Write(b)
		pos += uint32(len(b))
	}

	next := pos
	if last {
		next = 0
	}
	var out bytes.Buffer
	w := binary.NewWriter(&out, binary.BigEndian())
	w.WriteUint32(next)
	w.WriteUint32(firstSet)
	w.WriteInt32(int32(len(g.DataSets)))
	w.WriteBytes(name.Bytes())
	w.WriteBytes(sets.Bytes())
	return out.Bytes()
}

func encodeDataSet(ds *DataSet, start uint32, opts WriteOptions) []byte {
	var prefix bytes.Buffer
	pw := binary.NewWriter(&prefix, binary.BigEndian())
	writeWString(pw, ds.Name)
	writeParams(pw, ds.Params)
	pw.WriteUint32(uint32(len(ds.Columns)))
	for _, c := range ds.Columns {
		writeWString(pw, c.Name)
		pw.WriteInt8(int8(c.Type))
		pw.WriteInt32(int32(c.Width))
	}
	pw.WriteUint32(uint32(ds.Rows))

	dataPos := start + 8 + uint32(prefix.Len())
	next := dataPos + uint32(len(ds.Data))
	if opts.Pad {
		next++
	}

	var out bytes.Buffer
	w := binary.NewWriter(&out, binary.BigEndian())
	w.WriteUint32(dataPos)
	w.WriteUint32(next)
	w.WriteBytes(prefix.Bytes())
	w.WriteBytes(ds.Data)
	if opts.Pad {
		w.WriteZeros(1)
	}
	return out.Bytes()
}

// NewParam builds a parameter from a Go value; see EncodeParamValue.
func NewParam(name string, v any) Param {
	typ, raw := EncodeParamValue(v)
	p := Param{Name: name, Type: typ, Raw: raw}
	p.Value, _ = decodeParamValue(name, typ, raw)
	return p
}

// Float32Rows packs a single float column as big-endian rows.
func Float32Rows(v []float32) []byte {
	var buf bytes.Buffer
	w := binary.NewWriter(&buf, binary.BigEndian())
	for _, x := range v {
		w.WriteFloat32(x)
	}
	return buf.Bytes()
}

// CoordRows packs (X, Y) int16 pairs as big-endian rows.
func CoordRows(xy [][2]int16) []byte {
	var buf bytes.Buffer
	w := binary.NewWriter(&buf, binary.BigEndian())
	for _, c := range xy {
		w.WriteInt16(c[0])
		w.WriteInt16(c[1])
	}
	return buf.Bytes()
}
