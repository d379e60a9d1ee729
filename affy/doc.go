// Package affy reads Affymetrix microarray files and summarizes probesets.
//
// A chip description (CDF) file gives the grid geometry and the cells of
// every probeset. Intensity (CEL) files come in three encodings, text
// version 3, binary version 4 and the Command Console container, and may be
// gzip-compressed. ProbeMatrix gathers the cells of one probeset across
// samples and MedianPolish fits the additive model used to summarize them.
//
//	layout, err := affy.ReadCDF("chip.cdf")
//	...
//	v, err := affy.ReadIntensities("sample.cel.gz", affy.WithMaskedCells(true))
//	...
//	g, _ := layout.Group("1007_s_at")
//	m, err := affy.ProbeMatrix(*g, v)
//	...
//	fit, err := affy.MedianPolish(m)
package affy
