package cdf

import (
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// Selection chooses which cells of each probeset are kept.
type Selection string

// Probe selection modes.
const (
	SelectPM  Selection = "pm"
	SelectMM  Selection = "mm"
	SelectAll Selection = "all"
)

// DefaultSelection is used when no selection, or an unknown one, is given.
const DefaultSelection = SelectPM

// ParseSelection maps a configuration string to a Selection.
// The second result is false for unrecognized values.
func ParseSelection(s string) (Selection, bool) {
	switch Selection(strings.ToLower(strings.TrimSpace(s))) {
	case SelectPM, "":
		return SelectPM, true
	case SelectMM:
		return SelectMM, true
	case SelectAll:
		return SelectAll, true
	}
	return DefaultSelection, false
}

// keeps reports whether a cell with the given bases is retained.
func (s Selection) keeps(ref, probe byte) bool {
	switch s {
	case SelectMM:
		return ref == probe
	case SelectAll:
		return true
	default:
		return ref != probe
	}
}

// Options configures Parse.
type Options struct {
	// Selection is one of "pm", "mm" or "all". Empty means "pm"; anything
	// else also falls back to "pm" with a ConfigWarning.
	Selection string

	// LineEnding is the number of terminator bytes on each line (1 or 2).
	// Zero strips "\n" or "\r\n" automatically.
	LineEnding int

	Logger *slog.Logger
}

// Group is one probeset and the linear indices of its retained cells.
type Group struct {
	Name    string
	Indices []int
}

// Layout is the decoded content of a CDF file.
type Layout struct {
	Name      string
	Geometry  decode.Geometry
	Selection Selection
	Groups    []Group

	// Warnings holds non-fatal configuration problems.
	Warnings []error
}

// Group returns the probeset with the given name.
func (l *Layout) Group(name string) (*Group, bool) {
	for i := range l.Groups {
		if l.Groups[i].Name == name {
			return &l.Groups[i], true
		}
	}
	return nil, false
}

// NumIndices returns the total number of retained cells over all groups.
func (l *Layout) NumIndices() int {
	n := 0
	for _, g := range l.Groups {
		n += len(g.Indices)
	}
	return n
}

var unitBlockHeader = regexp.MustCompile(`^\[Unit(\d+)_Block(\d+)\]$`)

// Parse decodes a CDF file from r.
func Parse(r io.Reader, opts Options) (*Layout, error) {
	log := decode.Logger(opts.Logger)

	if opts.LineEnding < 0 || opts.LineEnding > 2 {
		return nil, decode.Formatf("parsing layout", "%w: line ending width %d", decode.ErrMalformedField, opts.LineEnding)
	}

	sel, ok := ParseSelection(opts.Selection)
	layout := &Layout{Selection: sel}
	if !ok {
		w := &decode.ConfigWarning{Option: "probe selection", Value: opts.Selection, Fallback: string(sel)}
		layout.Warnings = append(layout.Warnings, w)
		log.Warn("Unrecognized probe selection, falling back",
			slog.String("selection", opts.Selection),
			slog.String("fallback", string(sel)))
	}

	lr := decode.NewLineReader(r, opts.LineEnding, "layout")
	p := &parser{lr: lr}

	if err := p.expectLiteral("[CDF]"); err != nil {
		return nil, err
	}
	version, err := p.expectKey("Version")
	if err != nil {
		return nil, err
	}
	if version != "GC3.0" {
		return nil, lr.Fail(decode.ErrBadVersion, "Version=%q, want GC3.0", version)
	}
	if err := p.expectLiteral("[Chip]"); err != nil {
		return nil, err
	}

	name, err := p.expectKey("Name")
	if err != nil {
		return nil, err
	}
	rows, err := p.expectInt("Rows")
	if err != nil {
		return nil, err
	}
	cols, err := p.expectInt("Cols")
	if err != nil {
		return nil, err
	}
	units, err := p.expectInt("NumberOfUnits")
	if err != nil {
		return nil, err
	}
	if rows <= 0 || cols <= 0 {
		return nil, lr.Fail(decode.ErrMalformedField, "grid %dx%d", rows, cols)
	}
	if units < 0 {
		return nil, lr.Fail(decode.ErrMalformedField, "NumberOfUnits=%d", units)
	}

	layout.Name = name
	layout.Geometry = decode.Geometry{Rows: rows, Cols: cols}
	layout.Groups = make([]Group, 0, units)

	log.Debug("Parsed CDF chip header",
		slog.String("name", name),
		slog.Int("rows", rows),
		slog.Int("cols", cols),
		slog.Int("units", units))

	seen := make(map[string]struct{}, units)
	for u := 0; u < units; u++ {
		g, err := p.readGroup(layout.Geometry, sel)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[g.Name]; dup {
			return nil, decode.Integrityf("parsing layout", "%w: probeset %q", decode.ErrDuplicate, g.Name)
		}
		seen[g.Name] = struct{}{}
		layout.Groups = append(layout.Groups, g)
	}

	log.Debug("Parsed CDF probesets",
		slog.Int("groups", len(layout.Groups)),
		slog.Int("cells", layout.NumIndices()),
		slog.String("selection", string(sel)))

	return layout, nil
}

type parser struct {
	lr *decode.LineReader
}

func (p *parser) expectLiteral(lit string) error {
	line, err := p.lr.NextNonBlank()
	if err != nil {
		return p.lr.Truncated(err, lit)
	}
	if line != lit {
		return p.lr.Fail(decode.ErrHeaderMismatch, "expected %q, got %q", lit, line)
	}
	return nil
}

func (p *parser) expectKey(key string) (string, error) {
	line, err := p.lr.NextNonBlank()
	if err != nil {
		return "", p.lr.Truncated(err, key+"=")
	}
	val, ok := strings.CutPrefix(line, key+"=")
	if !ok {
		return "", p.lr.Fail(decode.ErrHeaderMismatch, "expected %s=, got %q", key, line)
	}
	return val, nil
}

func (p *parser) expectInt(key string) (int, error) {
	val, err := p.expectKey(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, p.lr.Fail(decode.ErrMalformedField, "%s=%q is not an integer", key, val)
	}
	return n, nil
}

// readGroup scans to the next unit block and reads its cells.
func (p *parser) readGroup(geom decode.Geometry, sel Selection) (Group, error) {
	for {
		line, err := p.lr.Next()
		if err != nil {
			return Group{}, p.lr.Truncated(err, "[Unit<N>_Block<M>]")
		}
		if unitBlockHeader.MatchString(strings.TrimSpace(line)) {
			break
		}
	}

	name, err := p.expectKey("Name")
	if err != nil {
		return Group{}, err
	}
	if _, err := p.expectInt("BlockNumber"); err != nil {
		return Group{}, err
	}
	atoms, err := p.expectInt("NumAtoms")
	if err != nil {
		return Group{}, err
	}
	cells, err := p.expectInt("NumCells")
	if err != nil {
		return Group{}, err
	}
	if atoms < 0 || cells < 0 {
		return Group{}, p.lr.Fail(decode.ErrMalformedField, "probeset %q: NumAtoms=%d NumCells=%d", name, atoms, cells)
	}

	expected := atoms
	if sel == SelectAll {
		expected = cells
	}
	g := Group{Name: name, Indices: make([]int, 0, expected)}
	used := make(map[int]struct{}, expected)

	first := true
	for k := 0; k < cells; k++ {
		line, err := p.nextCellLine(first)
		if err != nil {
			return Group{}, err
		}
		first = false

		x, y, ref, probe, err := p.parseCell(line)
		if err != nil {
			return Group{}, err
		}
		if !geom.Contains(x, y) {
			return Group{}, decode.Integrityf("parsing layout", "%w: probeset %q cell (%d, %d) on %s grid",
				decode.ErrOutOfRange, name, x, y, geom)
		}
		if !sel.keeps(ref, probe) {
			continue
		}
		idx := geom.Index(x, y)
		if idx >= geom.Cells() {
			return Group{}, decode.Integrityf("parsing layout", "%w: probeset %q cell (%d, %d) has index %d on %s grid",
				decode.ErrOutOfRange, name, x, y, idx, geom)
		}
		if _, dup := used[idx]; dup {
			return Group{}, decode.Integrityf("parsing layout", "%w: probeset %q cell index %d", decode.ErrDuplicate, name, idx)
		}
		used[idx] = struct{}{}
		g.Indices = append(g.Indices, idx)
	}

	if len(g.Indices) != expected {
		return Group{}, decode.Integrityf("parsing layout", "%w: probeset %q kept %d %s cells, expected %d",
			decode.ErrCountMismatch, name, len(g.Indices), sel, expected)
	}
	return g, nil
}

// nextCellLine returns the next Cell<k>= record. Before the first record,
// intervening keys such as StartPosition and CellHeader are skipped.
func (p *parser) nextCellLine(first bool) (string, error) {
	for {
		line, err := p.lr.Next()
		if err != nil {
			return "", p.lr.Truncated(err, "Cell<k>=")
		}
		if isCellRecord(line) {
			return line, nil
		}
		if !first {
			return "", p.lr.Fail(decode.ErrMalformedField, "expected cell record, got %q", line)
		}
	}
}

func isCellRecord(line string) bool {
	rest, ok := strings.CutPrefix(line, "Cell")
	if !ok || rest == "" || rest[0] < '0' || rest[0] > '9' {
		return false
	}
	return strings.IndexByte(rest, '=') > 0
}

// parseCell reads "Cell<k>=<x> <y> N control <q> <e> <p> <ref> <probe> ...".
func (p *parser) parseCell(line string) (x, y int, ref, probe byte, err error) {
	_, rec, _ := strings.Cut(line, "=")
	f := strings.Fields(rec)
	if len(f) < 9 {
		return 0, 0, 0, 0, p.lr.Fail(decode.ErrMalformedField, "cell record has %d fields, need 9", len(f))
	}
	if x, err = strconv.Atoi(f[0]); err != nil {
		return 0, 0, 0, 0, p.lr.Fail(decode.ErrMalformedField, "cell x %q", f[0])
	}
	if y, err = strconv.Atoi(f[1]); err != nil {
		return 0, 0, 0, 0, p.lr.Fail(decode.ErrMalformedField, "cell y %q", f[1])
	}
	if f[2] != "N" || f[3] != "control" {
		return 0, 0, 0, 0, p.lr.Fail(decode.ErrMalformedField, "cell record %q %q, want \"N\" \"control\"", f[2], f[3])
	}
	if len(f[7]) != 1 || len(f[8]) != 1 {
		return 0, 0, 0, 0, p.lr.Fail(decode.ErrMalformedField, "cell bases %q %q", f[7], f[8])
	}
	return x, y, f[7][0], f[8][0], nil
}
