// Package pickle wraps the value marshaller's wire types in an opaque,
// pluggable serialisation codec for the dispatcher's by-pickle return
// formats. The wire byte-format itself is treated as a black box by the
// rest of the engine - only this package's Codec interface is consumed -
// so a deployment can swap in whatever codec its client speaks without
// touching dispatch.
package pickle

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"

	"github.com/pjrmi/pjrmi-go/marshal"
)

// Codec turns a decoded Arg into an opaque byte form and back. The default
// implementation (New) adapts github.com/tinylib/msgp's generated
// marshal/unmarshal pattern to a dynamic (non-generated) container shape so
// it can cover the marshaller's family of Arg/container values without
// per-type code generation.
type Codec interface {
	Marshal(v marshal.Arg) ([]byte, error)
	Unmarshal(b []byte) (marshal.Arg, error)
}

// msgpCodec is the default Codec: it walks an Arg tree into msgp's
// self-describing wire format (the same varint-tagged map/array/scalar
// encoding msgp's generated code emits), byte for byte compatible with any
// other msgp reader.
type msgpCodec struct{}

// New returns the engine's built-in pickle codec.
func New() Codec { return msgpCodec{} }

func (msgpCodec) Marshal(v marshal.Arg) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := writeArg(w, v); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpCodec) Unmarshal(b []byte) (marshal.Arg, error) {
	r := msgp.NewReader(bytes.NewReader(b))
	return readArg(r)
}
