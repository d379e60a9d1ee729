// Package fixture builds synthetic layout and intensity files for tests:
// CDF text, CEL version 3 text, CEL version 4 binary and Command Console
// CEL, optionally gzip-compressed.
package fixture

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/robert-malhotra/go-affy/internal/binary"
	"github.com/robert-malhotra/go-affy/internal/calvin"
	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Probe is one cell record of a layout unit.
type Probe struct {
	X, Y       int
	Ref, Probe byte
}

// PM returns a perfect-match probe at (x, y).
func PM(x, y int) Probe { return Probe{X: x, Y: y, Ref: 'A', Probe: 'T'} }

// MM returns a mismatch probe at (x, y).
func MM(x, y int) Probe { return Probe{X: x, Y: y, Ref: 'A', Probe: 'A'} }

// Unit is one probeset. Atoms defaults to the number of PM probes.
type Unit struct {
	Name   string
	Atoms  int
	Probes []Probe
}

// Layout describes a CDF file.
type Layout struct {
	Name       string
	Rows, Cols int
	Units      []Unit

	// Version defaults to GC3.0.
	Version string
	// CRLF terminates lines with "\r\n" instead of "\n".
	CRLF bool
	// QC adds a [QC1] section before the units, which decoders must skip.
	QC bool
}

// Bytes renders the layout as CDF text.
func (l Layout) Bytes() []byte {
	var b strings.Builder
	eol := "\n"
	if l.CRLF {
		eol = "\r\n"
	}
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString(eol)
	}
	version := l.Version
	if version == "" {
		version = "GC3.0"
	}

	line("[CDF]")
	line("Version=%s", version)
	line("")
	line("[Chip]")
	line("Name=%s", l.Name)
	line("Rows=%d", l.Rows)
	line("Cols=%d", l.Cols)
	line("NumberOfUnits=%d", len(l.Units))
	line("MaxUnit=%d", len(l.Units))
	line("NumQCUnits=0")
	line("ChipReference=")
	line("")
	if l.QC {
		line("[QC1]")
		line("Type=1")
		line("NumberCells=1")
		line("CellHeader=X\tY\tPROBE\tPLEN\tATOM\tINDEX\tMATCH\tBG")
		line("Cell1=0\t0\tN\t25\t0\t0\t0\t0")
		line("")
	}
	for i, u := range l.Units {
		atoms := u.Atoms
		if atoms == 0 {
			for _, p := range u.Probes {
				if p.Ref != p.Probe {
					atoms++
				}
			}
		}
		line("[Unit%d]", i+1)
		line("Name=NONE")
		line("Direction=1")
		line("NumAtoms=%d", atoms)
		line("NumCells=%d", len(u.Probes))
		line("UnitNumber=%d", i+1)
		line("UnitType=3")
		line("NumberBlocks=1")
		line("")
		line("[Unit%d_Block1]", i+1)
		line("Name=%s", u.Name)
		line("BlockNumber=1")
		line("NumAtoms=%d", atoms)
		line("NumCells=%d", len(u.Probes))
		line("StartPosition=0")
		line("StopPosition=%d", atoms-1)
		line("CellHeader=X\tY\tPROBE\tFEAT\tQUAL\tEXPOS\tPOS\tCBASE\tPBASE\tTBASE\tATOM\tINDEX\tCODONIND\tCODON\tREGIONTYPE\tREGION")
		for k, p := range u.Probes {
			line("Cell%d=%d\t%d\tN\tcontrol\t%s\t%d\t%d\t%c\t%c\t%c\t%d\t%d\t-1\t-1\t99\t",
				k+1, p.X, p.Y, u.Name, k, k, p.Ref, p.Probe, p.Probe, k, l.Rows*p.Y+p.X)
		}
		line("")
	}
	return []byte(b.String())
}

// Sample describes the content of one CEL file.
type Sample struct {
	Rows, Cols int

	// Intensities in linear order, Rows*y + x.
	Intensities []float32

	Masked   []decode.Coord
	Outliers []decode.Coord

	// Header and AlgorithmParams are raw tag/value text for version 4.
	// Empty values get realistic defaults.
	Header          string
	Algorithm       string
	AlgorithmParams string

	// Subgrids is the number of zeroed subgrid records in version 4.
	Subgrids int
}

// Grid returns a Rows×Cols sample whose intensity at index i is i+1.
func Grid(rows, cols int) Sample {
	v := make([]float32, rows*cols)
	for i := range v {
		v[i] = float32(i + 1)
	}
	return Sample{Rows: rows, Cols: cols, Intensities: v}
}

// V3 renders the sample as version 3 text.
func (s Sample) V3() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "[CEL]\nVersion=3\n\n[HEADER]\nCols=%d\nRows=%d\nTotalX=%d\nTotalY=%d\nAlgorithm=Percentile\n\n", s.Cols, s.Rows, s.Cols, s.Rows)
	fmt.Fprintf(&b, "[INTENSITY]\nNumberCells=%d\nCellHeader=X\tY\tMEAN\tSTDV\tNPIXELS\n", len(s.Intensities))
	for i, v := range s.Intensities {
		x, y := i%s.Rows, i/s.Rows
		fmt.Fprintf(&b, "%3d\t%3d\t%g\t%.1f\t%d\n", x, y, v, v/10, 16)
	}
	fmt.Fprintf(&b, "\n[MASKS]\nNumberCells=0\nCellHeader=X\tY\n\n[OUTLIERS]\nNumberCells=0\nCellHeader=X\tY\n")
	return []byte(b.String())
}

func (s Sample) header() string {
	if s.Header != "" {
		return s.Header
	}
	return fmt.Sprintf("Cols=%d\nRows=%d\nTotalX=%d\nTotalY=%d\nOffsetX=0\nOffsetY=0\nAxis-invertX=0\nAxisInvertY=0\nswapXY=0\nDatHeader=[0..46101]  test:CLS=%d RWS=%d\x14 \x14GridVerify=None\nAlgorithm=Percentile\n",
		s.Cols, s.Rows, s.Cols, s.Rows, s.Cols, s.Rows)
}

func (s Sample) algorithm() (string, string) {
	name, params := s.Algorithm, s.AlgorithmParams
	if name == "" {
		name = "Percentile"
	}
	if params == "" {
		params = "Percentile:75;CellMargin:2;OutlierHigh:1.500;OutlierLow:1.004;AlgVersion:6.0;FixedCellSize:TRUE"
	}
	return name, params
}

// V4 renders the sample as version 4 little-endian binary.
func (s Sample) V4() []byte {
	var buf bytes.Buffer
	w := binary.NewWriter(&buf, binary.DefaultConfig())
	w.WriteInt32(64)
	w.WriteInt32(4)
	w.WriteInt32(int32(s.Cols))
	w.WriteInt32(int32(s.Rows))
	w.WriteInt32(int32(len(s.Intensities)))
	w.WritePrefixed(latin1(s.header()))
	name, params := s.algorithm()
	w.WritePrefixed([]byte(name))
	w.WritePrefixed(latin1(params))
	w.WriteInt32(2)
	w.WriteUint32(uint32(len(s.Outliers)))
	w.WriteUint32(uint32(len(s.Masked)))
	w.WriteInt32(int32(s.Subgrids))
	for _, v := range s.Intensities {
		w.WriteFloat32(v)
		w.WriteFloat32(v / 10)
		w.WriteInt16(16)
	}
	for _, c := range s.Masked {
		w.WriteInt16(c.X)
		w.WriteInt16(c.Y)
	}
	for _, c := range s.Outliers {
		w.WriteInt16(c.X)
		w.WriteInt16(c.Y)
	}
	for range s.Subgrids {
		w.WriteInt32(int32(s.Rows))
		w.WriteInt32(int32(s.Cols))
		for range 8 {
			w.WriteFloat32(0)
		}
		for range 4 {
			w.WriteInt32(0)
		}
	}
	if err := w.Err(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// latin1 encodes s as ISO-8859-1; s must only contain runes below 256.
func latin1(s string) []byte {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return b
}

// CommandConsoleOptions adjust the Command Console rendering.
type CommandConsoleOptions struct {
	// NoGeometry omits the affymetrix-cel-rows/cols parameters.
	NoGeometry bool
	// Pad writes a pad byte after every data set.
	Pad bool
	// Groups is the number of data groups written; default 1.
	Groups int
}

// CommandConsoleFile returns the sample as a generic data file structure.
func (s Sample) CommandConsoleFile(opts CommandConsoleOptions) *calvin.File {
	params := []calvin.Param{
		calvin.NewParam("affymetrix-algorithm-name", "Feature Extraction Cell Generation"),
	}
	if !opts.NoGeometry {
		params = append(params,
			calvin.NewParam("affymetrix-cel-rows", int32(s.Rows)),
			calvin.NewParam("affymetrix-cel-cols", int32(s.Cols)))
	}
	std := make([]float32, len(s.Intensities))
	for i, v := range s.Intensities {
		std[i] = v / 10
	}
	coords := func(cs []decode.Coord) [][2]int16 {
		out := make([][2]int16, len(cs))
		for i, c := range cs {
			out[i] = [2]int16{c.X, c.Y}
		}
		return out
	}
	xy := []calvin.Column{
		{Name: "X", Type: calvin.ValueInt16, Width: 2},
		{Name: "Y", Type: calvin.ValueInt16, Width: 2},
	}
	group := calvin.DataGroup{
		Name: "Default Group",
		DataSets: []calvin.DataSet{
			{
				Name:    "Intensity",
				Columns: []calvin.Column{{Name: "Intensity", Type: calvin.ValueFloat, Width: 4}},
				Rows:    len(s.Intensities),
				Data:    calvin.Float32Rows(s.Intensities),
			},
			{
				Name:    "StdDev",
				Columns: []calvin.Column{{Name: "StdDev", Type: calvin.ValueFloat, Width: 4}},
				Rows:    len(std),
				Data:    calvin.Float32Rows(std),
			},
			{Name: "Outlier", Columns: xy, Rows: len(s.Outliers), Data: calvin.CoordRows(coords(s.Outliers))},
			{Name: "Mask", Columns: xy, Rows: len(s.Masked), Data: calvin.CoordRows(coords(s.Masked))},
		},
	}
	groups := max(opts.Groups, 1)
	f := &calvin.File{
		Version: calvin.Version,
		Headers: []calvin.DataHeader{
			{
				DataTypeID: "affymetrix-calvin-intensity",
				FileID:     "0000065535-1700000000-0000012345-0000006789-0000001234",
				Created:    "2024-03-01T10:20:30Z",
				Locale:     "en-US",
				Params:     params,
				Parents:    []int{1},
			},
			{
				DataTypeID: "affymetrix-calvin-scan-acquisition",
				Locale:     "en-US",
				Params:     []calvin.Param{calvin.NewParam("affymetrix-scanner-type", "GeneChip Scanner 3000")},
				Depth:      1,
			},
		},
	}
	for range groups {
		f.Groups = append(f.Groups, group)
	}
	return f
}

// CommandConsole renders the sample as a Command Console CEL file.
func (s Sample) CommandConsole(opts CommandConsoleOptions) []byte {
	var buf bytes.Buffer
	if err := calvin.Write(&buf, s.CommandConsoleFile(opts), calvin.WriteOptions{Pad: opts.Pad}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Gzip compresses data.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside a per-test temporary directory and
// returns the path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}
