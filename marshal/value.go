package marshal

import (
	"fmt"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// Marshaller reads and writes typed values on the wire, consulting the type
// registry to interpret type IDs and the handle table to resolve/mint
// object references. One Marshaller is shared by every logical thread on a
// connection; its methods are safe for concurrent use only insofar as the
// registry and handle table they delegate to are.
type Marshaller struct {
	Reg     *typereg.Registry
	Handles *handle.Table
	NDArray NDArrayCodec
}

// New builds a Marshaller over reg and handles, using the default
// pass-through NDArrayCodec unless overridden by setting m.NDArray after
// construction.
func New(reg *typereg.Registry, handles *handle.Table) *Marshaller {
	return &Marshaller{Reg: reg, Handles: handles, NDArray: NewDefaultNDArrayCodec()}
}

// Arg is one fully-decoded argument or return value: the wire discriminator
// that produced it, the type ID that governed decoding (0/void when the
// encoding is self-describing, as for Reference), and the decoded value.
//
// Value holds, depending on Kind:
//   ArgReference    handle.Handle
//   ArgValue        a Go scalar, []byte/string, a typed slice, ListValue,
//                   SetValue, MapValue, SliceTriple, ClientObjectID, or
//                   NDArray - whichever the type ID names
//   ArgSharedMemory SharedMemRef
//   ArgMethodHandle MethodHandleRef
//   ArgLambda       LambdaRef
type Arg struct {
	Kind   ArgKind
	TypeID typereg.TypeID
	Value  any
}

// SharedMemRef names a shared-memory-backed typed primitive array.
type SharedMemRef struct {
	Filename string
	Count    int32
	Elem     typereg.PrimitiveKind
}

// MethodHandleRef names a single callable bound (or not) to an instance,
// to be resolved into a callback proxy by the callback engine.
type MethodHandleRef struct {
	IsConstructor bool
	InterfaceType typereg.TypeID
	OwningType    typereg.TypeID
	CallableIndex int32
	BoundInstance handle.Handle
	HasBound      bool
}

// LambdaRef names a callable to invoke immediately, using its result as the
// argument value; Args are the callable's own arguments, already decoded.
type LambdaRef struct {
	IsConstructor bool
	OwningType    typereg.TypeID
	CallableIndex int32
	BoundInstance handle.Handle
	HasBound      bool
	Args          []Arg
}

// WriteArg encodes one argument or return value, dispatching on a.Kind.
func (m *Marshaller) WriteArg(w *Writer, a Arg) error {
	w.Byte(byte(a.Kind))
	switch a.Kind {
	case ArgReference:
		h, _ := a.Value.(handle.Handle)
		w.U64(uint64(h))
		return nil
	case ArgValue:
		w.I32(int32(a.TypeID))
		return m.WriteValue(w, a.TypeID, a.Value)
	case ArgSharedMemory:
		ref := a.Value.(SharedMemRef)
		code, err := SharedMemTypeCode(ref.Elem)
		if err != nil {
			return err
		}
		w.UTF16String(ref.Filename)
		w.I32(ref.Count)
		w.Byte(code)
		return nil
	case ArgMethodHandle:
		ref := a.Value.(MethodHandleRef)
		w.Bool(ref.IsConstructor)
		w.I32(int32(ref.InterfaceType))
		w.I32(int32(ref.OwningType))
		w.I32(ref.CallableIndex)
		w.Bool(ref.HasBound)
		if ref.HasBound {
			w.U64(uint64(ref.BoundInstance))
		}
		return nil
	case ArgLambda:
		ref := a.Value.(LambdaRef)
		w.Bool(ref.IsConstructor)
		w.I32(int32(ref.OwningType))
		w.I32(ref.CallableIndex)
		w.Bool(ref.HasBound)
		if ref.HasBound {
			w.U64(uint64(ref.BoundInstance))
		}
		w.I32(int32(len(ref.Args)))
		for _, sub := range ref.Args {
			if err := m.WriteArg(w, sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("marshal: unknown arg kind %d", a.Kind)
	}
}

// ReadArg decodes one argument or return value.
func (m *Marshaller) ReadArg(r *Reader) (Arg, error) {
	kb, err := r.Byte()
	if err != nil {
		return Arg{}, err
	}
	kind := ArgKind(kb)
	switch kind {
	case ArgReference:
		h, err := r.U64()
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: kind, Value: handle.Handle(h)}, nil

	case ArgValue:
		tid, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		typeID := typereg.TypeID(tid)
		v, err := m.ReadValue(r, typeID)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: kind, TypeID: typeID, Value: v}, nil

	case ArgSharedMemory:
		name, err := r.UTF16String()
		if err != nil {
			return Arg{}, err
		}
		count, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		code, err := r.Byte()
		if err != nil {
			return Arg{}, err
		}
		elem, err := SharedMemTypeFromCode(code)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Kind: kind, Value: SharedMemRef{Filename: name, Count: count, Elem: elem}}, nil

	case ArgMethodHandle:
		isCtor, err := r.Bool()
		if err != nil {
			return Arg{}, err
		}
		ifaceID, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		ownerID, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		idx, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		hasBound, err := r.Bool()
		if err != nil {
			return Arg{}, err
		}
		var bound handle.Handle
		if hasBound {
			bh, err := r.U64()
			if err != nil {
				return Arg{}, err
			}
			bound = handle.Handle(bh)
		}
		return Arg{Kind: kind, Value: MethodHandleRef{
			IsConstructor: isCtor,
			InterfaceType: typereg.TypeID(ifaceID),
			OwningType:    typereg.TypeID(ownerID),
			CallableIndex: idx,
			BoundInstance: bound,
			HasBound:      hasBound,
		}}, nil

	case ArgLambda:
		isCtor, err := r.Bool()
		if err != nil {
			return Arg{}, err
		}
		ownerID, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		idx, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		hasBound, err := r.Bool()
		if err != nil {
			return Arg{}, err
		}
		var bound handle.Handle
		if hasBound {
			bh, err := r.U64()
			if err != nil {
				return Arg{}, err
			}
			bound = handle.Handle(bh)
		}
		argc, err := r.I32()
		if err != nil {
			return Arg{}, err
		}
		args := make([]Arg, argc)
		for i := range args {
			sub, err := m.ReadArg(r)
			if err != nil {
				return Arg{}, err
			}
			args[i] = sub
		}
		return Arg{Kind: kind, Value: LambdaRef{
			IsConstructor: isCtor,
			OwningType:    typereg.TypeID(ownerID),
			CallableIndex: idx,
			BoundInstance: bound,
			HasBound:      hasBound,
			Args:          args,
		}}, nil

	default:
		return Arg{}, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("unknown arg kind byte 0x%02x", kb)}
	}
}

// WriteValue writes a self-describing value of typeID: a primitive scalar,
// String/char/char[], a typed array, an object array, a container, a slice
// triple, a client object wrapper, or an n-dimensional array - whichever
// typeID names.
func (m *Marshaller) WriteValue(w *Writer, typeID typereg.TypeID, v any) error {
	switch typeID {
	case typereg.TypeID(-1):
		return fmt.Errorf("marshal: cannot write a value with no type ID")
	}
	switch vv := v.(type) {
	case ListValue:
		w.I32(int32(len(vv.Elems)))
		for _, e := range vv.Elems {
			if err := m.WriteArg(w, e); err != nil {
				return err
			}
		}
		return nil
	case SetValue:
		w.I32(int32(len(vv.Elems)))
		for _, e := range vv.Elems {
			if err := m.WriteArg(w, e); err != nil {
				return err
			}
		}
		return nil
	case MapValue:
		w.I32(int32(len(vv.Keys)))
		for i := range vv.Keys {
			if err := m.WriteArg(w, vv.Keys[i]); err != nil {
				return err
			}
			if err := m.WriteArg(w, vv.Values[i]); err != nil {
				return err
			}
		}
		return nil
	case SliceTriple:
		if err := m.WriteArg(w, vv.Start); err != nil {
			return err
		}
		if err := m.WriteArg(w, vv.Stop); err != nil {
			return err
		}
		return m.WriteArg(w, vv.Step)
	case ClientObjectID:
		w.I32(int32(vv))
		return nil
	case NDArray:
		return m.writeNDArray(w, vv)
	}

	td, ok := m.Reg.GetByID(typeID)
	if !ok {
		return cos.NewErrNotFound("type id %d", typeID)
	}

	if td.Name == "java.lang.String" || td.Primitive == typereg.PrimChar {
		s, ok := v.(string)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected string for %s, got %T", td.Name, v)}
		}
		w.UTF16String(s)
		return nil
	}

	if td.Flags.Has(typereg.FlagArray) {
		elemTD, ok := m.Reg.GetByID(td.ElementType)
		if !ok {
			return cos.NewErrNotFound("type id %d", td.ElementType)
		}
		if td.ElementType == m.Reg.CharArrayTypeID() || elemTD.Primitive == typereg.PrimChar {
			// char[] travels as a UTF-16 string, like String.
			s, ok := v.(string)
			if !ok {
				return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected string for char[], got %T", v)}
			}
			w.UTF16String(s)
			return nil
		}
		if elemTD.Flags.Has(typereg.FlagPrimitive) {
			packed, err := PackPrimitiveArray(elemTD.Primitive, v)
			if err != nil {
				return err
			}
			w.I32(int32(len(packed)))
			w.Raw(packed)
			return nil
		}
		// object array: length then recursive typed elements
		elems, ok := v.([]Arg)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected []Arg for object array, got %T", v)}
		}
		w.I32(int32(len(elems)))
		for _, e := range elems {
			if err := m.WriteArg(w, e); err != nil {
				return err
			}
		}
		return nil
	}

	if td.Flags.Has(typereg.FlagPrimitive) {
		return m.writeScalar(w, td.Primitive, v)
	}
	if td.BoxedOf != typereg.PrimNone {
		return m.writeScalar(w, td.BoxedOf, v)
	}

	return fmt.Errorf("marshal: no wire encoding known for type %q", td.Name)
}

// ReadValue is the inverse of WriteValue, except for SliceTriple: no
// registered type names a slice triple, so ReadValue has no case for it.
func (m *Marshaller) ReadValue(r *Reader, typeID typereg.TypeID) (any, error) {
	td, ok := m.Reg.GetByID(typeID)
	if !ok {
		return nil, cos.NewErrNotFound("type id %d", typeID)
	}
	if td.Primitive == typereg.PrimChar {
		return r.UTF16String()
	}

	switch td.Name {
	case "java.lang.String":
		return r.UTF16String()
	case "java.util.List", "java.util.Collection":
		return m.readListLike(r)
	case "java.util.Set":
		v, err := m.readListLike(r)
		if err != nil {
			return nil, err
		}
		return SetValue{Elems: v.Elems}, nil
	case "java.util.Map":
		return m.readMap(r)
	case "pjrmi.ClientObject":
		id, err := r.I32()
		return ClientObjectID(id), err
	case "pjrmi.NDArray":
		return m.readNDArray(r)
	}

	if td.Flags.Has(typereg.FlagArray) {
		elemTD, ok := m.Reg.GetByID(td.ElementType)
		if !ok {
			return nil, cos.NewErrNotFound("type id %d", td.ElementType)
		}
		if td.ElementType == m.Reg.CharArrayTypeID() || elemTD.Primitive == typereg.PrimChar {
			return r.UTF16String()
		}
		if elemTD.Flags.Has(typereg.FlagPrimitive) {
			n, err := r.I32()
			if err != nil {
				return nil, err
			}
			raw, err := r.Bytes(int(n))
			if err != nil {
				return nil, err
			}
			size, err := elemSize(elemTD.Primitive)
			if err != nil {
				return nil, err
			}
			return UnpackPrimitiveArray(elemTD.Primitive, int(n)/size, raw)
		}
		n, err := r.I32()
		if err != nil {
			return nil, err
		}
		elems := make([]Arg, n)
		for i := range elems {
			a, err := m.ReadArg(r)
			if err != nil {
				return nil, err
			}
			elems[i] = a
		}
		return elems, nil
	}

	if td.Flags.Has(typereg.FlagPrimitive) {
		return m.readScalar(r, td.Primitive)
	}
	if td.BoxedOf != typereg.PrimNone {
		return m.readScalar(r, td.BoxedOf)
	}

	return nil, fmt.Errorf("marshal: no wire decoding known for type %q", td.Name)
}

func (m *Marshaller) readListLike(r *Reader) (ListValue, error) {
	n, err := r.I32()
	if err != nil {
		return ListValue{}, err
	}
	elems := make([]Arg, n)
	for i := range elems {
		a, err := m.ReadArg(r)
		if err != nil {
			return ListValue{}, err
		}
		elems[i] = a
	}
	return ListValue{Elems: elems}, nil
}

func (m *Marshaller) readMap(r *Reader) (MapValue, error) {
	n, err := r.I32()
	if err != nil {
		return MapValue{}, err
	}
	mv := MapValue{Keys: make([]Arg, n), Values: make([]Arg, n)}
	for i := int32(0); i < n; i++ {
		k, err := m.ReadArg(r)
		if err != nil {
			return MapValue{}, err
		}
		v, err := m.ReadArg(r)
		if err != nil {
			return MapValue{}, err
		}
		mv.Keys[i] = k
		mv.Values[i] = v
	}
	return mv, nil
}

func (m *Marshaller) writeScalar(w *Writer, kind typereg.PrimitiveKind, v any) error {
	switch kind {
	case typereg.PrimBoolean:
		b, ok := v.(bool)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected bool, got %T", v)}
		}
		w.Bool(b)
	case typereg.PrimByte:
		b, ok := v.(int8)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected int8, got %T", v)}
		}
		w.Byte(byte(b))
	case typereg.PrimShort:
		s, ok := v.(int16)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected int16, got %T", v)}
		}
		w.I16(s)
	case typereg.PrimInt:
		i, ok := v.(int32)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected int32, got %T", v)}
		}
		w.I32(i)
	case typereg.PrimLong:
		l, ok := v.(int64)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected int64, got %T", v)}
		}
		w.I64(l)
	case typereg.PrimFloat:
		f, ok := v.(float32)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected float32, got %T", v)}
		}
		w.F32(f)
	case typereg.PrimDouble:
		d, ok := v.(float64)
		if !ok {
			return &cos.ErrValueConversion{Reason: fmt.Sprintf("expected float64, got %T", v)}
		}
		w.F64(d)
	default:
		return fmt.Errorf("marshal: cannot write scalar of kind %s", kind)
	}
	return nil
}

func (m *Marshaller) readScalar(r *Reader, kind typereg.PrimitiveKind) (any, error) {
	switch kind {
	case typereg.PrimBoolean:
		return r.Bool()
	case typereg.PrimByte:
		b, err := r.Byte()
		return int8(b), err
	case typereg.PrimShort:
		return r.I16()
	case typereg.PrimInt:
		return r.I32()
	case typereg.PrimLong:
		return r.I64()
	case typereg.PrimFloat:
		return r.F32()
	case typereg.PrimDouble:
		return r.F64()
	default:
		return nil, fmt.Errorf("marshal: cannot read scalar of kind %s", kind)
	}
}

func (m *Marshaller) writeNDArray(w *Writer, arr NDArray) error {
	code, err := SharedMemTypeCode(arr.Element)
	if err != nil {
		return err
	}
	chunks, err := m.NDArray.EncodeChunks(arr)
	if err != nil {
		return err
	}
	w.Byte(code)
	w.I32(int32(len(arr.Shape)))
	for _, d := range arr.Shape {
		w.I32(d)
	}
	w.I32(int32(len(chunks)))
	for _, c := range chunks {
		w.I32(int32(len(c)))
		w.Raw(c)
	}
	return nil
}

func (m *Marshaller) readNDArray(r *Reader) (NDArray, error) {
	code, err := r.Byte()
	if err != nil {
		return NDArray{}, err
	}
	elem, err := SharedMemTypeFromCode(code)
	if err != nil {
		return NDArray{}, err
	}
	nd, err := r.I32()
	if err != nil {
		return NDArray{}, err
	}
	shape := make([]int32, nd)
	for i := range shape {
		d, err := r.I32()
		if err != nil {
			return NDArray{}, err
		}
		shape[i] = d
	}
	nc, err := r.I32()
	if err != nil {
		return NDArray{}, err
	}
	raw := make([][]byte, nc)
	for i := range raw {
		n, err := r.I32()
		if err != nil {
			return NDArray{}, err
		}
		b, err := r.Bytes(int(n))
		if err != nil {
			return NDArray{}, err
		}
		raw[i] = append([]byte(nil), b...)
	}
	return m.NDArray.DecodeChunks(elem, shape, raw)
}
