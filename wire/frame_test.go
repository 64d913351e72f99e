package wire_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/pjrmi/pjrmi-go/wire"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)

	in := &wire.Frame{
		Kind:           wire.KindCall,
		ClientThreadID: 0xDEADBEEF,
		RequestID:      42,
		Payload:        []byte("hello"),
	}
	if err := w.WriteFrame(in); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := wire.NewReader(&buf)
	out, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if out.Kind != in.Kind || out.ClientThreadID != in.ClientThreadID || out.RequestID != in.RequestID {
		t.Fatalf("header mismatch: got %+v, want %+v", out, in)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch: got %q, want %q", out.Payload, in.Payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteFrame(&wire.Frame{Kind: wire.KindAck}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	out, err := wire.NewReader(&buf).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(out.Payload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(out.Payload))
	}
}

func TestFrameMalformedKind(t *testing.T) {
	var buf bytes.Buffer
	var hdr [wire.HeaderSize]byte
	hdr[0] = 0xFF // not a registered kind
	buf.Write(hdr[:])

	if _, err := wire.NewReader(&buf).ReadFrame(); err == nil {
		t.Fatal("expected an error for an unrecognised kind byte")
	}
}

func TestFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	w := wire.NewWriter(&buf)
	if err := w.WriteFrame(&wire.Frame{Kind: wire.KindCall, Payload: []byte("0123456789")}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	full := buf.Bytes()
	truncated := bytes.NewReader(full[:wire.HeaderSize+3])
	_, err := wire.NewReader(truncated).ReadFrame()
	if err == nil {
		t.Fatal("expected an error reading a truncated payload")
	}
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteBanner(&buf); err != nil {
		t.Fatalf("WriteBanner: %v", err)
	}
	if err := wire.ReadBanner(&buf); err != nil {
		t.Fatalf("ReadBanner: %v", err)
	}

	hello := &wire.ClientHello{Command: "init", PID: 4242, InstanceID: 0x1122334455667788}
	if err := wire.WriteClientHello(&buf, hello); err != nil {
		t.Fatalf("WriteClientHello: %v", err)
	}
	got, err := wire.ReadClientHello(&buf)
	if err != nil {
		t.Fatalf("ReadClientHello: %v", err)
	}
	if got.Command != hello.Command || got.PID != hello.PID || got.InstanceID != hello.InstanceID {
		t.Fatalf("hello mismatch: got %+v, want %+v", got, hello)
	}

	if err := wire.WriteServerHello(&buf, "engine-1", wire.FeaturePooled); err != nil {
		t.Fatalf("WriteServerHello: %v", err)
	}
	name, flags, err := wire.ReadServerHello(&buf)
	if err != nil {
		t.Fatalf("ReadServerHello: %v", err)
	}
	if name != "engine-1" || flags != wire.FeaturePooled {
		t.Fatalf("server hello mismatch: name=%q flags=%x", name, flags)
	}
}

func TestHandshakeReject(t *testing.T) {
	var buf bytes.Buffer
	if err := wire.WriteServerReject(&buf, "host not permitted"); err != nil {
		t.Fatalf("WriteServerReject: %v", err)
	}
	if _, _, err := wire.ReadServerHello(&buf); err == nil {
		t.Fatal("expected an error from a rejected handshake")
	}
}

func TestHandshakeBannerMismatch(t *testing.T) {
	buf := bytes.NewBufferString("PJRMI_9.99")
	if err := wire.ReadBanner(buf); err == nil {
		t.Fatal("expected a banner mismatch error")
	}
}

func TestUTF16RoundTrip(t *testing.T) {
	cases := []string{"", "hello", "héllo wörld", "日本語"}
	for _, s := range cases {
		enc := wire.EncodeUTF16BOM(s)
		dec, err := wire.DecodeUTF16BOM(enc)
		if err != nil {
			t.Fatalf("DecodeUTF16BOM(%q): %v", s, err)
		}
		if dec != s {
			t.Fatalf("round trip mismatch: got %q, want %q", dec, s)
		}
	}
}
