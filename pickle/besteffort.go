package pickle

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"

	"github.com/pjrmi/pjrmi-go/marshal"
)

// ConstructCallback re-enters the engine to allocate a construct-call
// addressed by a numeric instance ID, so the client can reconstruct a
// value this codec cannot represent natively by invoking back into the
// engine for it. The instance-ID allocation policy is the caller's
// concern; this package only carries the resulting ID on the wire.
type ConstructCallback func(v any) (instanceID int64, err error)

// bestEffortCodec falls back to a construct-call directive for any value
// the underlying codec cannot represent, rather than failing the whole
// pickle.
type bestEffortCodec struct {
	underlying Codec
	construct  ConstructCallback
}

// NewBestEffort wraps underlying with a fallback: values it cannot encode
// natively are instead replaced by a construct-call directive built via
// construct.
func NewBestEffort(underlying Codec, construct ConstructCallback) Codec {
	return bestEffortCodec{underlying: underlying, construct: construct}
}

func (c bestEffortCodec) Marshal(a marshal.Arg) ([]byte, error) {
	b, err := c.underlying.Marshal(a)
	if err == nil {
		return b, nil
	}

	id, cerr := c.construct(a.Value)
	if cerr != nil {
		return nil, cerr
	}
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if werr := w.WriteMapHeader(3); werr != nil {
		return nil, werr
	}
	if werr := w.WriteString("kind"); werr != nil {
		return nil, werr
	}
	if werr := w.WriteUint8(uint8(a.Kind)); werr != nil {
		return nil, werr
	}
	if werr := w.WriteString("type"); werr != nil {
		return nil, werr
	}
	if werr := w.WriteInt32(int32(a.TypeID)); werr != nil {
		return nil, werr
	}
	if werr := w.WriteString("value"); werr != nil {
		return nil, werr
	}
	if werr := w.WriteMapHeader(1); werr != nil {
		return nil, werr
	}
	if werr := w.WriteString("construct"); werr != nil {
		return nil, werr
	}
	if werr := w.WriteInt64(id); werr != nil {
		return nil, werr
	}
	if werr := w.Flush(); werr != nil {
		return nil, werr
	}
	return buf.Bytes(), nil
}

func (c bestEffortCodec) Unmarshal(b []byte) (marshal.Arg, error) {
	return c.underlying.Unmarshal(b)
}
