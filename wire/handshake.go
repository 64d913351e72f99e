package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
)

// ProtocolMajor/ProtocolMinor identify this wire format. The minor number
// bumps on any wire-format change; the major number bumps only on a
// backward-incompatible redesign of the frame/handshake shape itself.
const (
	ProtocolMajor = 1
	ProtocolMinor = 13
)

// Banner is the fixed ASCII handshake banner exchanged byte-for-byte by
// both peers before the first frame.
func Banner() string {
	return fmt.Sprintf("PJRMI_%d.%d", ProtocolMajor, ProtocolMinor)
}

// WriteBanner writes the literal banner with no trailing newline or length
// prefix — the peer knows its exact byte length in advance.
func WriteBanner(w io.Writer) error {
	_, err := io.WriteString(w, Banner())
	return err
}

// ReadBanner reads exactly len(Banner()) bytes and compares them against
// the expected banner. A mismatch is a protocol-version error, not a
// malformed-request error: the peer is speaking a different wire format
// entirely.
func ReadBanner(r io.Reader) error {
	want := Banner()
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		return err
	}
	if string(got) != want {
		return fmt.Errorf("wire: banner mismatch: got %q, want %q", got, want)
	}
	return nil
}

// ClientHello is what the client sends immediately after the banner
// exchange: an optional UTF-16 command string plus its own PID and a
// 64-bit instance ID used to disambiguate sibling connections from the
// same client process.
type ClientHello struct {
	Command    string
	PID        uint32
	InstanceID uint64
}

// WriteClientHello encodes and writes a ClientHello.
func WriteClientHello(w io.Writer, h *ClientHello) error {
	cmd := EncodeUTF16BOM(h.Command)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(cmd)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(cmd) > 0 {
		if _, err := w.Write(cmd); err != nil {
			return err
		}
	}

	var tail [12]byte
	binary.BigEndian.PutUint32(tail[0:4], h.PID)
	binary.BigEndian.PutUint64(tail[4:12], h.InstanceID)
	_, err := w.Write(tail[:])
	return err
}

// ReadClientHello decodes a ClientHello from r.
func ReadClientHello(r io.Reader) (*ClientHello, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxPayloadSize {
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("client command length %d exceeds max", n)}
	}

	var cmd string
	if n > 0 {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		s, err := DecodeUTF16BOM(buf)
		if err != nil {
			return nil, err
		}
		cmd = s
	}

	var tail [12]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return nil, err
	}
	return &ClientHello{
		Command:    cmd,
		PID:        binary.BigEndian.Uint32(tail[0:4]),
		InstanceID: binary.BigEndian.Uint64(tail[4:12]),
	}, nil
}

// FeaturePooled is bit 0 of the server's feature-flags byte: set when the
// server dispatches in pooled/worker mode rather than direct mode.
const FeaturePooled = 1 << 0

// WriteServerHello writes the server's accept response: a positive 1-byte
// name length, the UTF-8 name, and one feature-flags byte.
func WriteServerHello(w io.Writer, name string, flags byte) error {
	if len(name) == 0 || len(name) > 127 {
		return fmt.Errorf("wire: server name length %d out of range", len(name))
	}
	buf := make([]byte, 0, 2+len(name))
	buf = append(buf, byte(len(name)))
	buf = append(buf, name...)
	buf = append(buf, flags)
	_, err := w.Write(buf)
	return err
}

// WriteServerReject writes the server's reject response: a negative 1-byte
// length (the two's-complement magnitude of the message length) followed by
// a short UTF-8 error message.
func WriteServerReject(w io.Writer, reason string) error {
	if len(reason) > 127 {
		reason = reason[:127]
	}
	buf := make([]byte, 0, 1+len(reason))
	buf = append(buf, byte(-int8(len(reason))))
	buf = append(buf, reason...)
	_, err := w.Write(buf)
	return err
}

// ReadServerHello reads the server's accept-or-reject response. On reject
// it returns a non-nil error carrying the server's message; on accept it
// returns the server's name and feature-flags byte.
func ReadServerHello(r io.Reader) (name string, flags byte, err error) {
	var lenByte [1]byte
	if _, err = io.ReadFull(r, lenByte[:]); err != nil {
		return "", 0, err
	}
	n := int8(lenByte[0])
	if n < 0 {
		msg := make([]byte, -n)
		if _, err = io.ReadFull(r, msg); err != nil {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("wire: server rejected connection: %s", msg)
	}

	body := make([]byte, int(n)+1)
	if _, err = io.ReadFull(r, body); err != nil {
		return "", 0, err
	}
	return string(body[:n]), body[n], nil
}
