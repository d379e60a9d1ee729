// Package cel decodes Affymetrix CEL intensity files.
//
// Three encodings are recognised by their first byte:
//
//	59   Command Console generic data (big-endian), see package calvin
//	64   version 4 binary (little-endian)
//	else version 3 text
//
// Every decoder produces one float32 intensity per grid cell in linear
// order, so that the value for cell (x, y) is found at Rows*y + x. Masked
// and outlier cells may be replaced by NaN; version 3 files carry no such
// lists and are never masked.
//
// Decoding is strictly sequential and never seeks, so the input may be a
// decompression pipe.
package cel
