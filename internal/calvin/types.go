package calvin

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

// MIME types used to tag parameter values.
const (
	TypeText   = "text/plain"
	TypeASCII  = "text/ascii"
	TypeFloat  = "text/x-calvin-float"
	TypeInt8   = "text/x-calvin-integer-8"
	TypeUint8  = "text/x-calvin-unsigned-integer-8"
	TypeInt16  = "text/x-calvin-integer-16"
	TypeUint16 = "text/x-calvin-unsigned-integer-16"
	TypeInt32  = "text/x-calvin-integer-32"
	TypeUint32 = "text/x-calvin-unsigned-integer-32"
)

// ValueType identifies the storage type of a data set column.
type ValueType int8

// Column value types.
const (
	ValueInt8 ValueType = iota
	ValueUint8
	ValueInt16
	ValueUint16
	ValueInt32
	ValueUint32
	ValueFloat
	ValueString
	ValueWString
)

var valueTypeNames = [...]string{"int8", "uint8", "int16", "uint16", "int32", "uint32", "float", "string", "wstring"}

func (t ValueType) String() string {
	if t >= 0 && int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("ValueType(%d)", int8(t))
}

// Width returns the storage width of fixed-size types, or 0 for strings and
// unknown types.
func (t ValueType) Width() int {
	switch t {
	case ValueInt8, ValueUint8:
		return 1
	case ValueInt16, ValueUint16:
		return 2
	case ValueInt32, ValueUint32, ValueFloat:
		return 4
	}
	return 0
}

var be = binary.BigEndian

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// DecodeUTF16 decodes big-endian UTF-16 text and drops trailing NULs.
func DecodeUTF16(b []byte) (string, error) {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	s, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(s), "\x00"), nil
}

// EncodeUTF16 encodes s as big-endian UTF-16 without a byte order mark.
func EncodeUTF16(s string) []byte {
	b, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// The encoder replaces invalid UTF-8; an error here is a bug.
		panic(err)
	}
	return b
}

// Param is a typed name/value pair from a header or data set.
type Param struct {
	Name string
	Type string
	Raw  []byte

	// Value holds the decoded value: string, float32, or a sized integer.
	// Unknown types keep the raw bytes.
	Value any
}

// String formats the decoded value.
func (p Param) String() string {
	if b, ok := p.Value.([]byte); ok {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprint(p.Value)
}

// Int returns the value as an int for any integer parameter type.
func (p Param) Int() (int, bool) {
	switch v := p.Value.(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	}
	return 0, false
}

// decodeParamValue interprets raw according to its MIME type. Numeric values
// occupy the leading bytes of a possibly padded buffer.
func decodeParamValue(name, typ string, raw []byte) (any, error) {
	need := func(n int) error {
		if len(raw) < n {
			return decode.Formatf("decoding parameter "+name, "%w: %s value has %d bytes, need %d",
				decode.ErrMalformedField, typ, len(raw), n)
		}
		return nil
	}

	switch typ {
	case TypeText:
		s, err := DecodeUTF16(raw)
		if err != nil {
			return nil, decode.Formatf("decoding parameter "+name, "%w: %v", decode.ErrMalformedField, err)
		}
		return s, nil
	case TypeASCII:
		return strings.TrimRight(string(raw), "\x00"), nil
	case TypeFloat:
		if err := need(4); err != nil {
			return nil, err
		}
		return math.Float32frombits(be.Uint32(raw)), nil
	case TypeInt8:
		if err := need(1); err != nil {
			return nil, err
		}
		return int8(raw[0]), nil
	case TypeUint8:
		if err := need(1); err != nil {
			return nil, err
		}
		return raw[0], nil
	case TypeInt16:
		if err := need(2); err != nil {
			return nil, err
		}
		return int16(be.Uint16(raw)), nil
	case TypeUint16:
		if err := need(2); err != nil {
			return nil, err
		}
		return be.Uint16(raw), nil
	case TypeInt32:
		if err := need(4); err != nil {
			return nil, err
		}
		return int32(be.Uint32(raw)), nil
	case TypeUint32:
		if err := need(4); err != nil {
			return nil, err
		}
		return be.Uint32(raw), nil
	}
	return raw, nil
}

// EncodeParamValue is the inverse of the parameter decoding, used to build
// files. Numeric values are padded to 16 bytes as written by Command Console.
func EncodeParamValue(v any) (typ string, raw []byte) {
	raw = make([]byte, 16)
	switch x := v.(type) {
	case string:
		b := EncodeUTF16(x)
		return TypeText, append(b, 0, 0)
	case float32:
		be.PutUint32(raw, math.Float32bits(x))
		return TypeFloat, raw
	case int8:
		raw[0] = byte(x)
		return TypeInt8, raw
	case uint8:
		raw[0] = x
		return TypeUint8, raw
	case int16:
		be.PutUint16(raw, uint16(x))
		return TypeInt16, raw
	case uint16:
		be.PutUint16(raw, x)
		return TypeUint16, raw
	case int32:
		be.PutUint32(raw, uint32(x))
		return TypeInt32, raw
	case uint32:
		be.PutUint32(raw, x)
		return TypeUint32, raw
	}
	panic(fmt.Sprintf("calvin: cannot encode parameter of type %T", v))
}
