package marshal

import (
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// ObjectRef is the shape of "writing an object out with a type descriptor":
// used by instance lookup, object-cast, and getClass responses. It always
// carries the type ID; for non-primitives it also carries a handle (0 for
// null) plus an opportunistic inline encoding of the value itself, so a
// client reading e.g. a small string doesn't need a second round trip to
// fetch its contents.
type ObjectRef struct {
	TypeID typereg.TypeID
	Handle handle.Handle
	Inline []byte // nil => not inlined (wire sentinel size -1)
}

// WriteObjectRef mints obj's handle (adding a reference) and writes the
// {type ID, handle, inline} triple, inlining small strings and boxed
// primitives per the wire contract.
func (m *Marshaller) WriteObjectRef(w *Writer, typeID typereg.TypeID, obj any) error {
	w.I32(int32(typeID))

	td, ok := m.Reg.GetByID(typeID)
	if !ok || td.Flags.Has(typereg.FlagPrimitive) {
		// Primitives require a non-null value and carry no handle of their
		// own; write the scalar directly.
		return m.writeScalar(w, td.Primitive, obj)
	}

	h := m.Handles.AddRefObj(obj)
	w.U64(uint64(h))

	inline, ok := m.tryInline(td, obj)
	if !ok {
		w.I32(InlineNone)
		return nil
	}
	w.I32(int32(len(inline)))
	w.Raw(inline)
	return nil
}

// tryInline renders obj as its packed value bytes when it qualifies for
// opportunistic inlining: strings under InlineMaxStringLen runes, and the
// eight boxed primitive wrappers.
func (m *Marshaller) tryInline(td *typereg.TypeDescriptor, obj any) ([]byte, bool) {
	if obj == nil {
		return nil, false
	}
	if td.Name == "java.lang.String" {
		s, ok := obj.(string)
		if !ok || len([]rune(s)) >= InlineMaxStringLen {
			return nil, false
		}
		iw := NewWriter()
		iw.UTF16String(s)
		return iw.Bytes(), true
	}
	if td.BoxedOf != typereg.PrimNone {
		iw := NewWriter()
		if err := m.writeScalar(iw, td.BoxedOf, obj); err != nil {
			return nil, false
		}
		return iw.Bytes(), true
	}
	return nil, false
}

// ReadObjectRef decodes the {type ID, handle, inline} triple written by
// WriteObjectRef. Inline is nil when the sender chose not to inline a
// value; the handle table must be consulted instead.
func (m *Marshaller) ReadObjectRef(r *Reader) (ObjectRef, error) {
	tid, err := r.I32()
	if err != nil {
		return ObjectRef{}, err
	}
	typeID := typereg.TypeID(tid)

	td, ok := m.Reg.GetByID(typeID)
	if ok && td.Flags.Has(typereg.FlagPrimitive) {
		return ObjectRef{TypeID: typeID}, nil
	}

	h, err := r.U64()
	if err != nil {
		return ObjectRef{}, err
	}
	n, err := r.I32()
	if err != nil {
		return ObjectRef{}, err
	}
	ref := ObjectRef{TypeID: typeID, Handle: handle.Handle(h)}
	if n == InlineNone {
		return ref, nil
	}
	inline, err := r.Bytes(int(n))
	if err != nil {
		return ObjectRef{}, err
	}
	ref.Inline = append([]byte(nil), inline...)
	return ref, nil
}
