// Package export writes probeset-by-sample expression tables as
// tab-separated text or Excel workbooks.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Supported formats.
const (
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

// headerLabel heads the probeset name column in both formats.
const headerLabel = "probeset"

// ErrShape is returned when a table's values do not match its labels.
var ErrShape = errors.New("export: table shape mismatch")

// Table is an expression matrix: one row per probeset, one column per
// sample.
type Table struct {
	Groups  []string
	Samples []string
	Values  [][]float64
}

// Validate checks that Values is len(Groups) × len(Samples).
func (t *Table) Validate() error {
	if len(t.Values) != len(t.Groups) {
		return fmt.Errorf("%d rows for %d groups: %w", len(t.Values), len(t.Groups), ErrShape)
	}
	for i, row := range t.Values {
		if len(row) != len(t.Samples) {
			return fmt.Errorf("row %s has %d values for %d samples: %w", t.Groups[i], len(row), len(t.Samples), ErrShape)
		}
	}
	return nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}

// WriteTSV writes a header line of sample names followed by one line per
// probeset. Missing values are written as NA.
func WriteTSV(w io.Writer, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append([]string{headerLabel}, t.Samples...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(t.Samples)+1)
	for i, g := range t.Groups {
		rec[0] = g
		for j, v := range t.Values[i] {
			rec[j+1] = formatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX saves the table to a workbook at path with a single sheet.
// Missing values are left as empty cells.
func WriteXLSX(path, sheet string, t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("opening sheet writer: %w", err)
	}

	header := make([]any, len(t.Samples)+1)
	header[0] = headerLabel
	for j, s := range t.Samples {
		header[j+1] = s
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, g := range t.Groups {
		row := make([]any, len(t.Samples)+1)
		row[0] = g
		for j, v := range t.Values[i] {
			if !math.IsNaN(v) {
				row[j+1] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// WriteFile writes t to path in the given format. An empty path with the
// TSV format writes to stdout.
func WriteFile(path, format, sheet string, t *Table) error {
	switch format {
	case FormatXLSX:
		if path == "" {
			return errors.New("export: xlsx output needs a file path")
		}
		return WriteXLSX(path, sheet, t)
	case FormatTSV, "":
		if path == "" {
			return WriteTSV(os.Stdout, t)
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := WriteTSV(f, t); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return fmt.Errorf("export: unknown format %q", format)
}
