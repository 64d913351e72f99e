package dispatch

import (
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// encodeTypeDescriptor renders td as a KindTypeDescriptor payload: ID,
// name, flags, primitive kind, boxed kind, element type, supertypes,
// fields, constructors and methods with their descriptors, and the two
// specificity matrices.
func encodeTypeDescriptor(w *marshal.Writer, td *typereg.TypeDescriptor) {
	w.I32(int32(td.ID))
	w.UTF16String(td.Name)
	w.I16(int16(td.Flags))
	w.Byte(byte(td.Primitive))
	w.Byte(byte(td.BoxedOf))
	w.I32(int32(td.ElementType))

	w.I32(int32(len(td.Supertypes)))
	for _, s := range td.Supertypes {
		w.I32(int32(s))
	}

	w.I32(int32(len(td.Fields)))
	for _, f := range td.Fields {
		w.UTF16String(f.Name)
		w.I32(int32(f.TypeID))
		w.Bool(f.Static)
	}

	encodeCallables(w, td.Constructors)
	encodeCallables(w, td.Methods)
	encodeMatrix(w, td.ConstructorSpecificity)
	encodeMatrix(w, td.MethodSpecificity)
}

func encodeCallables(w *marshal.Writer, cs []typereg.CallableDescriptor) {
	w.I32(int32(len(cs)))
	for _, c := range cs {
		w.I32(int32(c.Index))
		w.UTF16String(c.Name)
		w.I16(int16(c.Flags))
		w.I32(int32(c.ReturnType))
		w.Bool(c.ReturnGeneric)

		w.I32(int32(len(c.ArgTypes)))
		for _, a := range c.ArgTypes {
			w.I32(int32(a))
		}
		for _, n := range c.ArgNames {
			w.UTF16String(n)
		}

		w.I32(int32(len(c.KeywordArgs)))
		for _, k := range c.KeywordArgs {
			w.UTF16String(k)
		}
	}
}

func encodeMatrix(w *marshal.Writer, m [][]int8) {
	w.I32(int32(len(m)))
	for _, row := range m {
		for _, v := range row {
			w.Byte(byte(v))
		}
	}
}

// decodeTypeDescriptor is the inverse of encodeTypeDescriptor. Nothing in
// this module calls it; it is kept alongside the encoder so the wire shape
// is defined in one place.
func decodeTypeDescriptor(r *marshal.Reader) (*typereg.TypeDescriptor, error) {
	td := &typereg.TypeDescriptor{}

	id, err := r.I32()
	if err != nil {
		return nil, err
	}
	td.ID = typereg.TypeID(id)

	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	td.Name = name

	flags, err := r.I16()
	if err != nil {
		return nil, err
	}
	td.Flags = typereg.Flag(flags)

	prim, err := r.Byte()
	if err != nil {
		return nil, err
	}
	td.Primitive = typereg.PrimitiveKind(prim)

	boxed, err := r.Byte()
	if err != nil {
		return nil, err
	}
	td.BoxedOf = typereg.PrimitiveKind(boxed)

	elem, err := r.I32()
	if err != nil {
		return nil, err
	}
	td.ElementType = typereg.TypeID(elem)

	nSuper, err := r.I32()
	if err != nil {
		return nil, err
	}
	td.Supertypes = make([]typereg.TypeID, nSuper)
	for i := range td.Supertypes {
		s, err := r.I32()
		if err != nil {
			return nil, err
		}
		td.Supertypes[i] = typereg.TypeID(s)
	}

	nFields, err := r.I32()
	if err != nil {
		return nil, err
	}
	td.Fields = make([]typereg.FieldDescriptor, nFields)
	for i := range td.Fields {
		name, err := r.UTF16String()
		if err != nil {
			return nil, err
		}
		ftid, err := r.I32()
		if err != nil {
			return nil, err
		}
		static, err := r.Bool()
		if err != nil {
			return nil, err
		}
		td.Fields[i] = typereg.FieldDescriptor{Name: name, TypeID: typereg.TypeID(ftid), Static: static}
	}

	ctors, err := decodeCallables(r)
	if err != nil {
		return nil, err
	}
	td.Constructors = ctors

	methods, err := decodeCallables(r)
	if err != nil {
		return nil, err
	}
	td.Methods = methods

	csm, err := decodeMatrix(r, len(td.Constructors))
	if err != nil {
		return nil, err
	}
	td.ConstructorSpecificity = csm

	msm, err := decodeMatrix(r, len(td.Methods))
	if err != nil {
		return nil, err
	}
	td.MethodSpecificity = msm

	return td, nil
}

func decodeCallables(r *marshal.Reader) ([]typereg.CallableDescriptor, error) {
	n, err := r.I32()
	if err != nil {
		return nil, err
	}
	out := make([]typereg.CallableDescriptor, n)
	for i := range out {
		idx, err := r.I32()
		if err != nil {
			return nil, err
		}
		name, err := r.UTF16String()
		if err != nil {
			return nil, err
		}
		flags, err := r.I16()
		if err != nil {
			return nil, err
		}
		ret, err := r.I32()
		if err != nil {
			return nil, err
		}
		retGeneric, err := r.Bool()
		if err != nil {
			return nil, err
		}
		nArgs, err := r.I32()
		if err != nil {
			return nil, err
		}
		argTypes := make([]typereg.TypeID, nArgs)
		for j := range argTypes {
			a, err := r.I32()
			if err != nil {
				return nil, err
			}
			argTypes[j] = typereg.TypeID(a)
		}
		argNames := make([]string, nArgs)
		for j := range argNames {
			n, err := r.UTF16String()
			if err != nil {
				return nil, err
			}
			argNames[j] = n
		}
		nKw, err := r.I32()
		if err != nil {
			return nil, err
		}
		kw := make([]string, nKw)
		for j := range kw {
			s, err := r.UTF16String()
			if err != nil {
				return nil, err
			}
			kw[j] = s
		}
		out[i] = typereg.CallableDescriptor{
			Index: int(idx), Name: name, Flags: typereg.CallableFlag(flags),
			ReturnType: typereg.TypeID(ret), ReturnGeneric: retGeneric,
			ArgTypes: argTypes, ArgNames: argNames, KeywordArgs: kw,
		}
	}
	return out, nil
}

func decodeMatrix(r *marshal.Reader, n int) ([][]int8, error) {
	sz, err := r.I32()
	if err != nil {
		return nil, err
	}
	m := make([][]int8, sz)
	for i := range m {
		m[i] = make([]int8, n)
		for j := range m[i] {
			b, err := r.Byte()
			if err != nil {
				return nil, err
			}
			m[i][j] = int8(b)
		}
	}
	return m, nil
}
