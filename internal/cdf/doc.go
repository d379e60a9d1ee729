// Package cdf parses Brainarray custom CDF layout files (version GC3.0).
//
// A CDF file is line-oriented text made of [Section] headers and Key=Value
// lines. The parser reads it in a single forward pass:
//
//	[CDF]
//	Version=GC3.0
//
//	[Chip]
//	Name=HGU133Plus2_Hs_ENTREZG
//	Rows=1164
//	Cols=1164
//	NumberOfUnits=18930
//	...
//	[Unit1_Block1]
//	Name=10000_at
//	BlockNumber=1
//	NumAtoms=11
//	NumCells=22
//	StartPosition=0
//	StopPosition=10
//	CellHeader=X	Y	PROBE	FEAT	QUAL	EXPOS	POS	CBASE	PBASE	TBASE	...
//	Cell1=1006	1094	N	control	10000_at	0	13	A	T	A	...
//
// The chip header is matched literally; any deviation aborts the parse.
// After it, each of NumberOfUnits probesets is located by scanning forward
// to the next [Unit<N>_Block<M>] section, so QC sections and per-unit
// summary sections are skipped without being interpreted.
//
// # Probe selection
//
// Every cell record carries a reference base and a probe base. Perfect-match
// probes (pm) are the cells where the two differ, mismatch probes (mm) the
// cells where they are equal, and "all" keeps every cell. The number of kept
// cells must equal NumAtoms for pm and mm, and NumCells for all.
//
// # Addressing
//
// Cell (x, y) is stored at linear index Rows*y + x, using the row count from
// the same file. Intensity vectors decoded from CEL files use the same
// addressing.
package cdf
