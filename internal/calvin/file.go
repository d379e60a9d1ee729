package calvin

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/robert-malhotra/go-affy/internal/binary"
	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Format constants.
const (
	Magic   = 59
	Version = 1

	// MaxHeaderDepth bounds parent header nesting.
	MaxHeaderDepth = 64

	// maxPayload bounds a single data set's row data.
	maxPayload = 1 << 31
)

// DataHeader is one node of the data header tree.
type DataHeader struct {
	DataTypeID string
	FileID     string
	Created    string
	Locale     string
	Params     []Param

	// Parents indexes File.Headers.
	Parents []int
	Depth   int
}

// CreatedTime parses Created, returning the zero time if it is empty or not
// RFC 3339.
func (h *DataHeader) CreatedTime() time.Time {
	t, err := time.Parse(time.RFC3339, h.Created)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Param returns the first parameter with the given name.
func (h *DataHeader) Param(name string) (Param, bool) {
	return findParam(h.Params, name)
}

func findParam(params []Param, name string) (Param, bool) {
	for _, p := range params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// File is a decoded generic data file.
type File struct {
	Version uint8

	// Headers holds the data header tree in pre-order; Headers[0] describes
	// the file itself.
	Headers []DataHeader
	Groups  []DataGroup
}

// Header returns the file's own data header.
func (f *File) Header() *DataHeader {
	return &f.Headers[0]
}

// Options control Read.
type Options struct {
	// Groups, when positive, is the exact number of data groups required.
	Groups int

	// Keep selects which data sets retain their row data. Data sets it
	// rejects are skipped. Nil keeps everything.
	Keep func(group, dataset string) bool

	Logger *slog.Logger
}

// Read decodes a generic data file from r. The magic byte must not have
// been consumed.
func Read(r io.Reader, opts Options) (*File, error) {
	br := binary.NewReader(r, binary.BigEndian())
	d := &reader{r: br, opts: opts, log: decode.Logger(opts.Logger)}
	return d.file()
}

type reader struct {
	r    *binary.Reader
	opts Options
	log  *slog.Logger
}

func (d *reader) truncated(err error, what string) error {
	return decode.Formatf("reading generic data file", "%w: reading %s at offset %d: %v",
		decode.ErrTruncated, what, d.r.Pos(), err)
}

func (d *reader) file() (*File, error) {
	magic, err := d.r.ReadUint8()
	if err != nil {
		return nil, d.truncated(err, "magic")
	}
	if magic != Magic {
		return nil, decode.Formatf("reading generic data file", "%w: got %d, want %d", decode.ErrBadMagic, magic, Magic)
	}
	version, err := d.r.ReadUint8()
	if err != nil {
		return nil, d.truncated(err, "version")
	}
	if version != Version {
		return nil, decode.Formatf("reading generic data file", "%w: got %d, want %d", decode.ErrBadVersion, version, Version)
	}
	ngroups, err := d.r.ReadInt32()
	if err != nil {
		return nil, d.truncated(err, "group count")
	}
	if ngroups < 0 {
		return nil, decode.Formatf("reading generic data file", "%w: negative group count %d", decode.ErrMalformedField, ngroups)
	}
	if d.opts.Groups > 0 && int(ngroups) != d.opts.Groups {
		return nil, decode.Formatf("reading generic data file", "%w: %d data groups, want %d",
			decode.ErrCountMismatch, ngroups, d.opts.Groups)
	}
	firstGroup, err := d.r.ReadUint32()
	if err != nil {
		return nil, d.truncated(err, "first group offset")
	}

	headers, err := d.headers()
	if err != nil {
		return nil, err
	}
	if err := d.expect(firstGroup, "first data group"); err != nil {
		return nil, err
	}

	f := &File{Version: version, Headers: headers, Groups: make([]DataGroup, 0, ngroups)}
	for i := 0; i < int(ngroups); i++ {
		g, err := d.group()
		if err != nil {
			return nil, err
		}
		f.Groups = append(f.Groups, *g)
	}
	d.log.Debug("read generic data file",
		slog.Int("headers", len(headers)),
		slog.Int("groups", len(f.Groups)),
		slog.Int64("bytes", d.r.Pos()))
	return f, nil
}

// expect checks a recorded offset against the bytes consumed so far.
func (d *reader) expect(off uint32, what string) error {
	if int64(off) != d.r.Pos() {
		return decode.Formatf("reading generic data file", "%w: %s recorded at %d, reader at %d",
			decode.ErrOffsetMismatch, what, off, d.r.Pos())
	}
	return nil
}

// headers reads the data header tree without recursion.
func (d *reader) headers() ([]DataHeader, error) {
	type frame struct{ node, remaining int }

	root, n, err := d.header(0)
	if err != nil {
		return nil, err
	}
	nodes := []DataHeader{*root}
	stack := []frame{{0, n}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.remaining == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		top.remaining--
		parent := top.node

		depth := len(stack)
		if depth > MaxHeaderDepth {
			return nil, decode.Formatf("reading data header", "%w: parent headers nested deeper than %d",
				decode.ErrMalformedField, MaxHeaderDepth)
		}
		h, n, err := d.header(depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *h)
		idx := len(nodes) - 1
		nodes[parent].Parents = append(nodes[parent].Parents, idx)
		stack = append(stack, frame{idx, n})
	}
	return nodes, nil
}

// header reads one data header up to and including its parent count.
func (d *reader) header(depth int) (*DataHeader, int, error) {
	h := &DataHeader{Depth: depth}
	var err error
	if h.DataTypeID, err = d.string("data type identifier"); err != nil {
		return nil, 0, err
	}
	if h.FileID, err = d.string("file identifier"); err != nil {
		return nil, 0, err
	}
	if h.Created, err = d.wstring("creation time"); err != nil {
		return nil, 0, err
	}
	if h.Locale, err = d.wstring("locale"); err != nil {
		return nil, 0, err
	}
	if h.Params, err = d.params(); err != nil {
		return nil, 0, err
	}
	n, err := d.count("parent header count")
	if err != nil {
		return nil, 0, err
	}
	return h, n, nil
}

func (d *reader) count(what string) (int, error) {
	n, err := d.r.ReadInt32()
	if err != nil {
		return 0, d.truncated(err, what)
	}
	if n < 0 {
		return 0, decode.Formatf("reading generic data file", "%w: negative %s %d", decode.ErrMalformedField, what, n)
	}
	return int(n), nil
}

func (d *reader) string(what string) (string, error) {
	b, err := d.bytes(what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *reader) bytes(what string) ([]byte, error) {
	b, err := d.r.ReadPrefixed()
	if err != nil {
		return nil, d.prefixed(err, what)
	}
	return b, nil
}

func (d *reader) prefixed(err error, what string) error {
	if errors.Is(err, binary.ErrNegativeLength) || errors.Is(err, binary.ErrBlockTooLarge) {
		return decode.Formatf("reading generic data file", "%w: %s: %v", decode.ErrMalformedField, what, err)
	}
	return d.truncated(err, what)
}

func (d *reader) wstring(what string) (string, error) {
	n, err := d.r.ReadInt32()
	if err != nil {
		return "", d.truncated(err, what)
	}
	if n < 0 || int64(n)*2 > binary.MaxBlockSize {
		return "", decode.Formatf("reading generic data file", "%w: %s length %d", decode.ErrMalformedField, what, n)
	}
	b, err := d.r.ReadBytes(int(n) * 2)
	if err != nil {
		return "", d.truncated(err, what)
	}
	s, err := DecodeUTF16(b)
	if err != nil {
		return "", decode.Formatf("reading generic data file", "%w: %s: %v", decode.ErrMalformedField, what, err)
	}
	return s, nil
}

func (d *reader) params() ([]Param, error) {
	n, err := d.count("parameter count")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	params := make([]Param, 0, min(n, 256))
	for range n {
		var p Param
		if p.Name, err = d.wstring("parameter name"); err != nil {
			return nil, err
		}
		if p.Raw, err = d.bytes("parameter value"); err != nil {
			return nil, err
		}
		if p.Type, err = d.wstring("parameter type"); err != nil {
			return nil, err
		}
		if p.Value, err = decodeParamValue(p.Name, p.Type, p.Raw); err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}
