// Package calvin reads Affymetrix Command Console ("Calvin") generic data
// files, the self-describing container used by newer CEL files.
//
// All integers are big-endian. Strings come in two flavours: "string" is an
// int32 byte count followed by bytes, "wstring" is an int32 character count
// followed by UTF-16BE code units.
//
// # File Layout
//
//	File header
//	  uint8   magic (59)
//	  uint8   version (1)
//	  int32   number of data groups
//	  uint32  offset of the first data group
//	Data header (recursive)
//	  string  data type identifier
//	  string  file identifier
//	  wstring creation time
//	  wstring locale
//	  int32   parameter count, then (wstring name, string value, wstring type)...
//	  int32   parent header count, then parent data headers of the same shape
//	Data group...
//	  uint32  offset of the next data group
//	  uint32  offset of the first data set
//	  int32   number of data sets
//	  wstring name
//	  Data set...
//	    uint32  offset of the first data row
//	    uint32  offset of the next data set
//	    wstring name
//	    int32   parameter count, then parameters
//	    uint32  column count, then (wstring name, int8 type, int32 width)...
//	    uint32  row count
//	    rows × Σwidth bytes of row data
//
// The format has no resynchronisation marks: every section must be consumed
// exactly as declared or all later offsets are wrong. The reader checks the
// recorded offsets against its own byte count wherever the file states one.
//
// # Parent Headers
//
// Each data header may embed the headers of the files it was derived from,
// with no depth limit in the format. Headers are stored as a flat slice of
// nodes linked by index and are read with an explicit stack; nesting deeper
// than [MaxHeaderDepth] is rejected.
package calvin
