package marshal

import (
	"fmt"

	"github.com/pjrmi/pjrmi-go/typereg"
)

// NDArray is a typed n-dimensional array value: a shape plus its chunked
// element data, kept already-split into chunks so large arrays never
// require one contiguous allocation on decode.
type NDArray struct {
	Element typereg.PrimitiveKind
	Shape   []int32
	Chunks  [][]byte // each chunk holds packed elements of Element
}

// NDArrayCodec encodes/decodes the chunked representation of a typed
// n-dimensional array argument. Kept behind an interface so the core engine
// never imports a concrete tensor/ndarray library directly; a host wires in
// whichever codec matches its array library at construction time.
type NDArrayCodec interface {
	// EncodeChunks splits arr's backing data into wire-ready byte chunks.
	EncodeChunks(arr NDArray) ([][]byte, error)
	// DecodeChunks reassembles chunks (as produced by EncodeChunks, or by
	// a peer using a compatible codec) back into an NDArray's Chunks field.
	DecodeChunks(element typereg.PrimitiveKind, shape []int32, raw [][]byte) (NDArray, error)
}

// DefaultChunkSize bounds how many elements a host-supplied chunking
// strategy should pack per chunk; the default codec itself does no
// chunking and ignores this, since it never sees anything but
// already-chunked input.
const DefaultChunkSize = 1 << 16

// defaultNDArrayCodec is a pass-through codec: it treats each provided
// chunk as already being wire-ready packed bytes of Element and performs
// no re-chunking of its own. A host wanting a real chunking/tensor
// strategy supplies its own NDArrayCodec backed by whatever array library
// it embeds.
type defaultNDArrayCodec struct{}

// NewDefaultNDArrayCodec returns the engine's built-in codec: chunks are
// opaque, already-packed byte records and are neither merged nor
// re-split.
func NewDefaultNDArrayCodec() NDArrayCodec { return defaultNDArrayCodec{} }

func (defaultNDArrayCodec) EncodeChunks(arr NDArray) ([][]byte, error) {
	if arr.Chunks != nil {
		return arr.Chunks, nil
	}
	return nil, fmt.Errorf("marshal: NDArray has no chunk data to encode")
}

func (defaultNDArrayCodec) DecodeChunks(element typereg.PrimitiveKind, shape []int32, raw [][]byte) (NDArray, error) {
	return NDArray{Element: element, Shape: shape, Chunks: raw}, nil
}
