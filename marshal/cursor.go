// Package marshal implements the value marshaller: reading and writing
// typed values on the wire across the four argument encodings (by
// reference, by value, by shared memory, by method handle / lambda),
// primitive boxing, typed-array packing, UTF-16 strings, and the
// Map/Set/List/slice-triple structural containers.
//
// Grounded on the teacher's transport codec style: scalars go big-endian,
// a Reader/Writer pair owns one payload buffer at a time and is not meant
// to be shared across goroutines, matching wire.Reader/wire.Writer's
// single-owner framing discipline.
package marshal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/wire"
)

// Reader decodes values out of one frame payload. Not safe for concurrent
// use; each dispatch owns its own Reader over its own payload.
type Reader struct {
	b   []byte
	pos int
}

func NewReader(payload []byte) *Reader { return &Reader{b: payload} }

func (r *Reader) Remaining() int { return len(r.b) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return &cos.ErrMalformedRequest{Reason: fmt.Sprintf("need %d bytes, have %d", n, r.Remaining())}
	}
	return nil
}

func (r *Reader) Byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	return b != 0, err
}

func (r *Reader) I16() (int16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(r.b[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *Reader) I32() (int32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(r.b[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *Reader) U32() (uint32, error) {
	v, err := r.I32()
	return uint32(v), err
}

func (r *Reader) I64() (int64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(r.b[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *Reader) U64() (uint64, error) {
	v, err := r.I64()
	return uint64(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.I32()
	return math.Float32frombits(uint32(v)), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.I64()
	return math.Float64frombits(uint64(v)), err
}

// Bytes reads exactly n raw bytes, returning a slice that aliases the
// underlying payload (callers that retain it beyond the dispatch must copy).
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.b[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// UTF16String reads a 4-byte byte-count followed by that many BOM-prefixed
// UTF-16 bytes. A zero count decodes to the empty string.
func (r *Reader) UTF16String() (string, error) {
	n, err := r.I32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	raw, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return wire.DecodeUTF16BOM(raw)
}

// Writer encodes values into a growable payload buffer, flushed out as one
// frame payload by the caller.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) Byte(b byte) { w.buf.WriteByte(b) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) I16(v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf.Write(b[:])
}

func (w *Writer) I32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *Writer) U32(v uint32) { w.I32(int32(v)) }

func (w *Writer) I64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

func (w *Writer) U64(v uint64) { w.I64(int64(v)) }

func (w *Writer) F32(v float32) { w.I32(int32(math.Float32bits(v))) }

func (w *Writer) F64(v float64) { w.I64(int64(math.Float64bits(v))) }

func (w *Writer) Raw(b []byte) { w.buf.Write(b) }

// UTF16String writes a 4-byte byte-count followed by BOM-prefixed UTF-16
// bytes.
func (w *Writer) UTF16String(s string) {
	enc := wire.EncodeUTF16BOM(s)
	w.I32(int32(len(enc)))
	w.buf.Write(enc)
}
