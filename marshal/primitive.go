package marshal

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// elemSize is the wire width, in bytes, of one element of a typed primitive
// array.
func elemSize(kind typereg.PrimitiveKind) (int, error) {
	switch kind {
	case typereg.PrimBoolean, typereg.PrimByte:
		return 1, nil
	case typereg.PrimShort, typereg.PrimChar:
		return 2, nil
	case typereg.PrimInt, typereg.PrimFloat:
		return 4, nil
	case typereg.PrimLong, typereg.PrimDouble:
		return 8, nil
	default:
		return 0, fmt.Errorf("marshal: %s has no fixed element size", kind)
	}
}

// SharedMemTypeCode maps a primitive kind to the one-character type code
// used in the shared-memory side-channel descriptor. char is not part of
// the shared-memory format; only the seven numeric/boolean primitives are.
func SharedMemTypeCode(kind typereg.PrimitiveKind) (byte, error) {
	switch kind {
	case typereg.PrimBoolean:
		return 'Z', nil
	case typereg.PrimByte:
		return 'B', nil
	case typereg.PrimShort:
		return 'S', nil
	case typereg.PrimInt:
		return 'I', nil
	case typereg.PrimLong:
		return 'J', nil
	case typereg.PrimFloat:
		return 'F', nil
	case typereg.PrimDouble:
		return 'D', nil
	default:
		return 0, fmt.Errorf("marshal: %s has no shared-memory type code", kind)
	}
}

// SharedMemTypeFromCode is the inverse of SharedMemTypeCode.
func SharedMemTypeFromCode(code byte) (typereg.PrimitiveKind, error) {
	switch code {
	case 'Z':
		return typereg.PrimBoolean, nil
	case 'B':
		return typereg.PrimByte, nil
	case 'S':
		return typereg.PrimShort, nil
	case 'I':
		return typereg.PrimInt, nil
	case 'J':
		return typereg.PrimLong, nil
	case 'F':
		return typereg.PrimFloat, nil
	case 'D':
		return typereg.PrimDouble, nil
	default:
		return 0, fmt.Errorf("marshal: unknown shared-memory type code %q", code)
	}
}

// PackPrimitiveArray renders a typed Go slice as big-endian packed element
// bytes (no length prefix; callers write the 4-byte length themselves).
func PackPrimitiveArray(kind typereg.PrimitiveKind, v any) ([]byte, error) {
	switch kind {
	case typereg.PrimBoolean:
		s := v.([]bool)
		out := make([]byte, len(s))
		for i, b := range s {
			if b {
				out[i] = 1
			}
		}
		return out, nil
	case typereg.PrimByte:
		return v.([]byte), nil
	case typereg.PrimShort:
		s := v.([]int16)
		out := make([]byte, len(s)*2)
		for i, x := range s {
			binary.BigEndian.PutUint16(out[i*2:], uint16(x))
		}
		return out, nil
	case typereg.PrimChar:
		s := v.([]uint16)
		out := make([]byte, len(s)*2)
		for i, x := range s {
			binary.BigEndian.PutUint16(out[i*2:], x)
		}
		return out, nil
	case typereg.PrimInt:
		s := v.([]int32)
		out := make([]byte, len(s)*4)
		for i, x := range s {
			binary.BigEndian.PutUint32(out[i*4:], uint32(x))
		}
		return out, nil
	case typereg.PrimLong:
		s := v.([]int64)
		out := make([]byte, len(s)*8)
		for i, x := range s {
			binary.BigEndian.PutUint64(out[i*8:], uint64(x))
		}
		return out, nil
	case typereg.PrimFloat:
		s := v.([]float32)
		out := make([]byte, len(s)*4)
		for i, x := range s {
			binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(x))
		}
		return out, nil
	case typereg.PrimDouble:
		s := v.([]float64)
		out := make([]byte, len(s)*8)
		for i, x := range s {
			binary.BigEndian.PutUint64(out[i*8:], math.Float64bits(x))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("marshal: cannot pack array of %s", kind)
	}
}

// UnpackPrimitiveArray is the inverse of PackPrimitiveArray: it decodes n
// elements of kind from b, which must hold exactly n*elemSize(kind) bytes.
func UnpackPrimitiveArray(kind typereg.PrimitiveKind, n int, b []byte) (any, error) {
	size, err := elemSize(kind)
	if err != nil {
		return nil, err
	}
	if len(b) != n*size {
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("typed array of %s: expected %d bytes for %d elements, got %d", kind, n*size, n, len(b))}
	}

	switch kind {
	case typereg.PrimBoolean:
		out := make([]bool, n)
		for i := range out {
			out[i] = b[i] != 0
		}
		return out, nil
	case typereg.PrimByte:
		out := make([]byte, n)
		copy(out, b)
		return out, nil
	case typereg.PrimShort:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.BigEndian.Uint16(b[i*2:]))
		}
		return out, nil
	case typereg.PrimChar:
		out := make([]uint16, n)
		for i := range out {
			out[i] = binary.BigEndian.Uint16(b[i*2:])
		}
		return out, nil
	case typereg.PrimInt:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
		}
		return out, nil
	case typereg.PrimLong:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(b[i*8:]))
		}
		return out, nil
	case typereg.PrimFloat:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
		}
		return out, nil
	case typereg.PrimDouble:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(b[i*8:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("marshal: cannot unpack array of %s", kind)
	}
}
