// Package binary provides low-level binary I/O for microarray container parsing.
//
// Both binary CEL encodings are read strictly front to back: gzip input arrives
// through a pipe, so nothing here seeks. The reader counts every byte it
// consumes so that callers can check the absolute offsets recorded inside the
// Command Console container.
package binary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MaxBlockSize bounds a single length-prefixed block. Larger declared
// lengths are treated as corruption rather than allocated.
const MaxBlockSize = 1 << 28

var (
	// ErrNegativeLength is returned when a length prefix is negative.
	ErrNegativeLength = errors.New("negative length prefix")
	// ErrBlockTooLarge is returned when a length prefix exceeds MaxBlockSize.
	ErrBlockTooLarge = errors.New("length prefix exceeds maximum block size")
)

// Reader reads fixed-width values from a stream in a configured byte order.
type Reader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	pos   int64
	buf   [8]byte
}

// Config holds reader configuration.
type Config struct {
	ByteOrder binary.ByteOrder
}

// DefaultConfig returns the little-endian configuration used by version 4 CEL files.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian}
}

// BigEndian returns the configuration used by Command Console files.
func BigEndian() Config {
	return Config{ByteOrder: binary.BigEndian}
}

// NewReader creates a binary reader with the given configuration.
// If r is already a *bufio.Reader it is used directly, so bytes peeked
// by the caller are not lost.
func NewReader(r io.Reader, cfg Config) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 64*1024)
	}
	order := cfg.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{r: br, order: order}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes. A short read is reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) readFull(buf []byte) error {
	n, err := io.ReadFull(r.r, buf)
	r.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (r *Reader) fixed(n int) ([]byte, error) {
	b := r.buf[:n]
	if err := r.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.fixed(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE 754 single-precision float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadPrefixed reads a signed 32-bit length followed by that many raw bytes.
func (r *Reader) ReadPrefixed() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	if n > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d", ErrBlockTooLarge, n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.ReadBytes(int(n))
}

// Skip consumes and discards n bytes.
func (r *Reader) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	got, err := io.CopyN(io.Discard, r.r, n)
	r.pos += got
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
