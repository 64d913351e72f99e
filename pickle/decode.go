package pickle

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// readArg is the inverse of writeArg. Scalars decode to their natural Go
// msgp-native type (e.g. all integers as int64); a consumer that needs a
// narrower original type (int8, a typed primitive array, ...) recovers it
// from Arg.TypeID via the value marshaller, not from this codec - pickle's
// wire form is intentionally untyped beyond what msgp itself distinguishes.
func readArg(r *msgp.Reader) (marshal.Arg, error) {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return marshal.Arg{}, err
	}
	var a marshal.Arg
	for i := 0; i < int(sz); i++ {
		key, err := r.ReadString()
		if err != nil {
			return marshal.Arg{}, err
		}
		switch key {
		case "kind":
			k, err := r.ReadUint8()
			if err != nil {
				return marshal.Arg{}, err
			}
			a.Kind = marshal.ArgKind(k)
		case "type":
			t, err := r.ReadInt32()
			if err != nil {
				return marshal.Arg{}, err
			}
			a.TypeID = typereg.TypeID(t)
		case "value":
			v, err := readGeneric(r)
			if err != nil {
				return marshal.Arg{}, err
			}
			a.Value = v
		default:
			if err := r.Skip(); err != nil {
				return marshal.Arg{}, err
			}
		}
	}
	return a, nil
}

// readGeneric decodes whatever msgp value follows into the closest natural
// Go representation: scalars as-is, arrays as []any, maps as
// map[string]any. An array of encoded Args therefore decodes as []any of
// map[string]any, not as []marshal.Arg.
func readGeneric(r *msgp.Reader) (any, error) {
	t := r.NextType()
	switch t {
	case msgp.NilType:
		return nil, r.ReadNil()
	case msgp.BoolType:
		return r.ReadBool()
	case msgp.IntType, msgp.UintType:
		return r.ReadInt64()
	case msgp.Float32Type:
		return r.ReadFloat32()
	case msgp.Float64Type:
		return r.ReadFloat64()
	case msgp.StrType:
		return r.ReadString()
	case msgp.BinType:
		return r.ReadBytes(nil)
	case msgp.ArrayType:
		n, err := r.ReadArrayHeader()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			v, err := readGeneric(r)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case msgp.MapType:
		n, err := r.ReadMapHeader()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, n)
		for i := 0; i < int(n); i++ {
			k, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			v, err := readGeneric(r)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("pickle: unsupported msgp wire type %s", t)
	}
}
