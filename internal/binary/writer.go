package binary

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer writes fixed-width values to a stream in a configured byte order.
// The first write error is kept and returned by every later call, so a
// sequence of writes can be checked once with Err.
type Writer struct {
	w     io.Writer
	order binary.ByteOrder
	pos   int64
	err   error
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.Writer, cfg Config) *Writer {
	order := cfg.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{w: w, order: order}
}

// Pos returns the number of bytes written so far.
func (w *Writer) Pos() int64 {
	return w.pos
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

// WriteBytes writes data verbatim.
func (w *Writer) WriteBytes(data []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.Write(data)
	w.pos += int64(n)
	if err != nil {
		w.err = err
	}
	return w.err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteInt8 writes a signed 8-bit integer.
func (w *Writer) WriteInt8(v int8) error {
	return w.WriteUint8(uint8(v))
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	w.order.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteInt16 writes a signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	w.order.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteInt32 writes a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteFloat32 writes an IEEE 754 single-precision float.
func (w *Writer) WriteFloat32(v float32) error {
	return w.WriteUint32(math.Float32bits(v))
}

// WritePrefixed writes a signed 32-bit length followed by data.
func (w *Writer) WritePrefixed(data []byte) error {
	if len(data) > MaxBlockSize {
		w.err = fmt.Errorf("%w: %d", ErrBlockTooLarge, len(data))
		return w.err
	}
	if err := w.WriteInt32(int32(len(data))); err != nil {
		return err
	}
	return w.WriteBytes(data)
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}
