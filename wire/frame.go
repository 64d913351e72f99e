// Package wire implements the frame codec: the fixed-header,
// variable-payload framing used on every connection, plus the versioned
// handshake exchanged before the first frame.
//
// Grounded on the teacher's transport package framing style (a fixed header
// laid out field-by-field, length-prefixed payload, single-writer-per-
// connection discipline) adapted from an object-stream shape to the
// RMI engine's 17-byte frame header.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
)

// HeaderSize is the fixed frame header length: 1B kind + 8B client-thread-id
// + 4B request-id + 4B payload size.
const HeaderSize = 1 + 8 + 4 + 4

// MaxPayloadSize bounds a single frame's payload so a corrupt or hostile
// size field cannot force an unbounded allocation.
const MaxPayloadSize = 256 << 20 // 256MiB

// Frame is one message on the wire: a header plus its payload bytes.
type Frame struct {
	Kind           Kind
	ClientThreadID uint64
	RequestID      uint32
	Payload        []byte
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s[thread=%d req=%d size=%d]", f.Kind, f.ClientThreadID, f.RequestID, len(f.Payload))
}

// Reader reads frames off a single ordered byte stream. Reads are strictly
// sequential; Reader is not safe for concurrent use by multiple goroutines.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64<<10)}
}

// ReadFrame reads one header-then-payload frame. Any header-short read,
// EOF, or truncated payload is returned as-is (io.EOF / io.ErrUnexpectedEOF
// or a wrapped *cos.ErrMalformedRequest); the caller decides whether that's
// a clean connection close or a protocol violation worth an exception
// frame.
func (r *Reader) ReadFrame() (*Frame, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r.r, hdr[:]); err != nil {
		return nil, err
	}

	kind := Kind(hdr[0])
	if !validKind(kind) {
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("unknown message kind byte 0x%02x", hdr[0])}
	}

	f := &Frame{
		Kind:           kind,
		ClientThreadID: binary.BigEndian.Uint64(hdr[1:9]),
		RequestID:      binary.BigEndian.Uint32(hdr[9:13]),
	}

	size := binary.BigEndian.Uint32(hdr[13:17])
	if size > MaxPayloadSize {
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("payload size %d exceeds max %d", size, MaxPayloadSize)}
	}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err := io.ReadFull(r.r, f.Payload); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return f, nil
}

func validKind(k Kind) bool {
	_, ok := kindNames[k]
	return ok
}

// Writer writes frames to a single ordered byte stream. Sends are mutually
// exclusive per connection: WriteFrame goes through a 64KiB buffer and
// flushes once, so a frame that fits the buffer is one OS write (a larger
// one takes several), and a mutex enforces that two goroutines never
// interleave their writes.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64<<10)}
}

// WriteFrame serialises and flushes one frame. Safe for concurrent callers;
// the whole engine relies on this to guarantee one writer's frame is never
// interleaved with another's.
func (w *Writer) WriteFrame(f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return &cos.ErrMalformedRequest{Reason: fmt.Sprintf("payload size %d exceeds max %d", len(f.Payload), MaxPayloadSize)}
	}

	var hdr [HeaderSize]byte
	hdr[0] = byte(f.Kind)
	binary.BigEndian.PutUint64(hdr[1:9], f.ClientThreadID)
	binary.BigEndian.PutUint32(hdr[9:13], f.RequestID)
	binary.BigEndian.PutUint32(hdr[13:17], uint32(len(f.Payload)))

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.w.Write(f.Payload); err != nil {
			return err
		}
	}
	return w.w.Flush()
}
