// Diagnostic tool for inspecting layout and intensity files
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/robert-malhotra/go-affy/affy"
	"github.com/robert-malhotra/go-affy/internal/calvin"
	"github.com/robert-malhotra/go-affy/internal/gzpipe"
)

// Number of probesets listed for a layout.
const listGroups = 10

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/diagnose/main.go <file.cdf|file.cel[.gz]>...")
		os.Exit(1)
	}

	if !diagnoseAll(os.Stdout, os.Args[1:]) {
		os.Exit(1)
	}
}

// diagnoseAll describes every file and reports whether all succeeded.
func diagnoseAll(w io.Writer, filenames []string) bool {
	ok := true
	for _, filename := range filenames {
		if err := diagnose(w, filename); err != nil {
			fmt.Fprintf(w, "ERROR: %v\n", err)
			ok = false
		}
		fmt.Fprintln(w)
	}
	return ok
}

func diagnose(w io.Writer, filename string) error {
	fmt.Fprintf(w, "=== Analyzing %s ===\n\n", filename)

	layout, err := isLayout(filename)
	if err != nil {
		return err
	}
	if layout {
		return describeLayout(w, filename)
	}
	return describeCEL(w, filename)
}

// isLayout reports whether the file, once decompressed, starts like a CDF.
func isLayout(filename string) (bool, error) {
	rc, err := gzpipe.Open(context.Background(), filename, gzpipe.Options{Mode: gzpipe.InProcess})
	if err != nil {
		return false, err
	}
	defer rc.Close()

	b := make([]byte, 5)
	n, _ := io.ReadFull(rc, b)
	return string(b[:n]) == "[CDF]", nil
}

func describeLayout(w io.Writer, filename string) error {
	layout, err := affy.ReadCDF(filename, affy.WithSelection("all"), affy.WithDecompressor(affy.InProcessGunzip))
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}

	fmt.Fprintf(w, "Chip: %s\n", layout.Name)
	fmt.Fprintf(w, "Grid: %s (%d cells)\n", layout.Geometry, layout.Geometry.Cells())
	fmt.Fprintf(w, "Probesets: %d\n", len(layout.Groups))
	fmt.Fprintf(w, "Cells in probesets: %d\n", layout.NumIndices())

	for i, g := range layout.Groups {
		if i == listGroups {
			fmt.Fprintf(w, "  ... %d more\n", len(layout.Groups)-listGroups)
			break
		}
		fmt.Fprintf(w, "  %s: %d cells\n", g.Name, len(g.Indices))
	}
	return nil
}

func describeCEL(w io.Writer, filename string) error {
	f, err := affy.ReadCEL(filename, affy.WithDecompressor(affy.InProcessGunzip))
	if err != nil {
		return fmt.Errorf("failed to read intensities: %w", err)
	}

	fmt.Fprintf(w, "Format: %s\n", f.Format)
	fmt.Fprintf(w, "Grid: %s\n", f.Geometry)
	fmt.Fprintf(w, "Cells: %d\n", len(f.Intensities))
	if len(f.Intensities) > 0 {
		lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
		for _, v := range f.Intensities {
			lo, hi = min(lo, v), max(hi, v)
		}
		fmt.Fprintf(w, "Intensity range: %g .. %g\n", lo, hi)
	}
	fmt.Fprintf(w, "Masked: %d  Outliers: %d\n", len(f.Masked), len(f.Outliers))

	if f.Algorithm != "" {
		fmt.Fprintf(w, "Algorithm: %s\n", f.Algorithm)
	}
	for _, tv := range f.AlgorithmParams {
		fmt.Fprintf(w, "  %s = %s\n", tv.Tag, tv.Value)
	}
	if len(f.Subgrids) > 0 {
		fmt.Fprintf(w, "Subgrids: %d\n", len(f.Subgrids))
	}

	if f.Generic != nil {
		fmt.Fprintln(w)
		walkHeaders(w, f.Generic)
		walkGroups(w, f.Generic)
	}
	return nil
}

func walkHeaders(w io.Writer, f *calvin.File) {
	for _, h := range f.Headers {
		indent := strings.Repeat("  ", h.Depth)
		if h.Depth > 20 {
			fmt.Fprintf(w, "%s[MAX DEPTH REACHED]\n", indent)
			continue
		}
		fmt.Fprintf(w, "%sHeader %q:\n", indent, h.DataTypeID)
		fmt.Fprintf(w, "%s  File ID: %s\n", indent, h.FileID)
		if t := h.CreatedTime(); !t.IsZero() {
			fmt.Fprintf(w, "%s  Created: %s\n", indent, t.UTC().Format("2006-01-02 15:04:05 MST"))
		} else if h.Created != "" {
			fmt.Fprintf(w, "%s  Created: %q (unparsed)\n", indent, h.Created)
		}
		fmt.Fprintf(w, "%s  Params: %d  Parents: %d\n", indent, len(h.Params), len(h.Parents))
		for _, p := range h.Params {
			fmt.Fprintf(w, "%s    %s = %s\n", indent, p.Name, p)
		}
	}
}

func walkGroups(w io.Writer, f *calvin.File) {
	for _, g := range f.Groups {
		fmt.Fprintf(w, "Group %q:\n", g.Name)
		fmt.Fprintf(w, "  Data sets: %d\n", len(g.DataSets))
		for _, ds := range g.DataSets {
			fmt.Fprintf(w, "  Data set %q:\n", ds.Name)
			fmt.Fprintf(w, "    Rows: %d\n", ds.Rows)
			cols := make([]string, len(ds.Columns))
			for i, c := range ds.Columns {
				cols[i] = fmt.Sprintf("%s:%s", c.Name, c.Type)
			}
			fmt.Fprintf(w, "    Columns: %s\n", strings.Join(cols, ", "))
			if ds.Data == nil {
				fmt.Fprintf(w, "    [NOT RETAINED]\n")
			}
		}
	}
}
