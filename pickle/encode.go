package pickle

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/marshal"
)

// writeArg renders one Arg as a 3-field msgp map: {kind, typeID, value}.
// value's own shape depends on kind/typeID and is handled by writeValue.
func writeArg(w *msgp.Writer, a marshal.Arg) error {
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("kind"); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(a.Kind)); err != nil {
		return err
	}
	if err := w.WriteString("type"); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(a.TypeID)); err != nil {
		return err
	}
	if err := w.WriteString("value"); err != nil {
		return err
	}
	return writeValue(w, a.Value)
}

func writeValue(w *msgp.Writer, v any) error {
	switch vv := v.(type) {
	case nil:
		return w.WriteNil()
	case bool:
		return w.WriteBool(vv)
	case int8:
		return w.WriteInt8(vv)
	case int16:
		return w.WriteInt16(vv)
	case int32:
		return w.WriteInt32(vv)
	case int64:
		return w.WriteInt64(vv)
	case float32:
		return w.WriteFloat32(vv)
	case float64:
		return w.WriteFloat64(vv)
	case string:
		return w.WriteString(vv)
	case []byte:
		return w.WriteBytes(vv)
	case handle.Handle:
		return w.WriteUint64(uint64(vv))
	case marshal.ClientObjectID:
		return w.WriteInt32(int32(vv))

	case []int16:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteInt16(vv[i]) })
	case []uint16:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteUint16(vv[i]) })
	case []int32:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteInt32(vv[i]) })
	case []int64:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteInt64(vv[i]) })
	case []float32:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteFloat32(vv[i]) })
	case []float64:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteFloat64(vv[i]) })
	case []bool:
		return writeTypedSlice(w, len(vv), func(i int) error { return w.WriteBool(vv[i]) })

	case []marshal.Arg:
		return writeTypedSlice(w, len(vv), func(i int) error { return writeArg(w, vv[i]) })

	case marshal.ListValue:
		return writeTypedSlice(w, len(vv.Elems), func(i int) error { return writeArg(w, vv.Elems[i]) })
	case marshal.SetValue:
		return writeTypedSlice(w, len(vv.Elems), func(i int) error { return writeArg(w, vv.Elems[i]) })
	case marshal.MapValue:
		if err := w.WriteArrayHeader(uint32(len(vv.Keys))); err != nil {
			return err
		}
		for i := range vv.Keys {
			if err := w.WriteArrayHeader(2); err != nil {
				return err
			}
			if err := writeArg(w, vv.Keys[i]); err != nil {
				return err
			}
			if err := writeArg(w, vv.Values[i]); err != nil {
				return err
			}
		}
		return nil
	case marshal.SliceTriple:
		if err := w.WriteArrayHeader(3); err != nil {
			return err
		}
		if err := writeArg(w, vv.Start); err != nil {
			return err
		}
		if err := writeArg(w, vv.Stop); err != nil {
			return err
		}
		return writeArg(w, vv.Step)

	case marshal.NDArray:
		if err := w.WriteMapHeader(3); err != nil {
			return err
		}
		if err := w.WriteString("elem"); err != nil {
			return err
		}
		if err := w.WriteInt8(int8(vv.Element)); err != nil {
			return err
		}
		if err := w.WriteString("shape"); err != nil {
			return err
		}
		if err := writeTypedSlice(w, len(vv.Shape), func(i int) error { return w.WriteInt32(vv.Shape[i]) }); err != nil {
			return err
		}
		if err := w.WriteString("chunks"); err != nil {
			return err
		}
		return writeTypedSlice(w, len(vv.Chunks), func(i int) error { return w.WriteBytes(vv.Chunks[i]) })

	case marshal.MethodHandleRef, marshal.LambdaRef, marshal.SharedMemRef:
		return fmt.Errorf("pickle: %T is not a representable pickled value", v)

	default:
		return fmt.Errorf("pickle: no msgp encoding for Go type %T", v)
	}
}

func writeTypedSlice(w *msgp.Writer, n int, writeElem func(i int) error) error {
	if err := w.WriteArrayHeader(uint32(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := writeElem(i); err != nil {
			return err
		}
	}
	return nil
}
