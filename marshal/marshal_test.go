package marshal_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

func newMarshaller(t *testing.T) *marshal.Marshaller {
	t.Helper()
	reg := typereg.New(typereg.NewStaticSource())
	return marshal.New(reg, handle.New(1))
}

func intTypeID(t *testing.T, m *marshal.Marshaller) typereg.TypeID {
	t.Helper()
	id, ok := m.Reg.PrimitiveTypeID(typereg.PrimInt)
	if !ok {
		t.Fatalf("int primitive type not bootstrapped")
	}
	return id
}

func TestScalarRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	w := marshal.NewWriter()
	tid := intTypeID(t, m)
	if err := m.WriteValue(w, tid, int32(42)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	v, err := m.ReadValue(r, tid)
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if v.(int32) != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

func TestStringRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	sid := m.Reg.StringTypeID()
	w := marshal.NewWriter()
	if err := m.WriteValue(w, sid, "hello, pjrmi"); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	v, err := m.ReadValue(r, sid)
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if v.(string) != "hello, pjrmi" {
		t.Fatalf("expected round-tripped string, got %q", v)
	}
}

func TestStringRoundTripLengthClasses(t *testing.T) {
	// Spans the UTF-16 inline/sentinel boundary objectref.go enforces at
	// InlineMaxStringLen (32768 runes): one rune under it, exactly at it,
	// and well past it, plus the degenerate empty/single-rune cases.
	lengths := []int{0, 1, marshal.InlineMaxStringLen - 1, marshal.InlineMaxStringLen, 65536}
	for _, n := range lengths {
		n := n
		t.Run(fmt.Sprintf("len=%d", n), func(t *testing.T) {
			m := newMarshaller(t)
			sid := m.Reg.StringTypeID()
			want := strings.Repeat("a", n)

			w := marshal.NewWriter()
			if err := m.WriteValue(w, sid, want); err != nil {
				t.Fatalf("WriteValue: %v", err)
			}
			r := marshal.NewReader(w.Bytes())
			v, err := m.ReadValue(r, sid)
			if err != nil {
				t.Fatalf("ReadValue: %v", err)
			}
			if got := v.(string); got != want {
				t.Fatalf("length %d: round-trip mismatch (got len %d, want len %d)", n, len(got), len(want))
			}
		})
	}
}

func TestObjectRefInlineStringBoundary(t *testing.T) {
	// A String just under InlineMaxStringLen inlines; one at or over it
	// falls back to the no-inline sentinel and must be fetched by handle.
	m := newMarshaller(t)
	strTD, err := m.Reg.GetByName("java.lang.String")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}

	under := strings.Repeat("b", marshal.InlineMaxStringLen-1)
	w := marshal.NewWriter()
	if err := m.WriteObjectRef(w, strTD.ID, under); err != nil {
		t.Fatalf("WriteObjectRef(under): %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	ref, err := m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef(under): %v", err)
	}
	if ref.Inline == nil {
		t.Fatalf("expected a string of length %d to inline", marshal.InlineMaxStringLen-1)
	}

	atBoundary := strings.Repeat("b", marshal.InlineMaxStringLen)
	w = marshal.NewWriter()
	if err := m.WriteObjectRef(w, strTD.ID, atBoundary); err != nil {
		t.Fatalf("WriteObjectRef(at boundary): %v", err)
	}
	r = marshal.NewReader(w.Bytes())
	ref, err = m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef(at boundary): %v", err)
	}
	if ref.Inline != nil {
		t.Fatalf("expected a string of length %d to use the no-inline sentinel", marshal.InlineMaxStringLen)
	}
	if ref.Handle == handle.Null {
		t.Fatalf("expected a non-null handle for the non-inlined string")
	}
}

func TestPrimitiveArrayRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	byteArrID := m.Reg.ByteArrayTypeID()
	w := marshal.NewWriter()
	in := []byte{1, 2, 3, 255}
	if err := m.WriteValue(w, byteArrID, in); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	out, err := m.ReadValue(r, byteArrID)
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	got := out.([]byte)
	if len(got) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(in))
	}
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], in[i])
		}
	}
}

func TestListRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	tid := intTypeID(t, m)
	listID := m.Reg.ListTypeID()

	lv := marshal.ListValue{Elems: []marshal.Arg{
		{Kind: marshal.ArgValue, TypeID: tid, Value: int32(1)},
		{Kind: marshal.ArgValue, TypeID: tid, Value: int32(2)},
	}}
	w := marshal.NewWriter()
	if err := m.WriteValue(w, listID, lv); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	v, err := m.ReadValue(r, listID)
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	got := v.(marshal.ListValue)
	if len(got.Elems) != 2 || got.Elems[0].Value.(int32) != 1 || got.Elems[1].Value.(int32) != 2 {
		t.Fatalf("unexpected list contents: %+v", got)
	}
}

func TestArgReferenceRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	w := marshal.NewWriter()
	a := marshal.Arg{Kind: marshal.ArgReference, Value: handle.Handle(7)}
	if err := m.WriteArg(w, a); err != nil {
		t.Fatalf("WriteArg: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	got, err := m.ReadArg(r)
	if err != nil {
		t.Fatalf("ReadArg: %v", err)
	}
	if got.Kind != marshal.ArgReference || got.Value.(handle.Handle) != 7 {
		t.Fatalf("unexpected round-tripped arg: %+v", got)
	}
}

func TestArgLambdaRoundTrip(t *testing.T) {
	m := newMarshaller(t)
	tid := intTypeID(t, m)
	w := marshal.NewWriter()
	a := marshal.Arg{Kind: marshal.ArgLambda, Value: marshal.LambdaRef{
		OwningType:    tid,
		CallableIndex: 3,
		Args: []marshal.Arg{
			{Kind: marshal.ArgValue, TypeID: tid, Value: int32(9)},
		},
	}}
	if err := m.WriteArg(w, a); err != nil {
		t.Fatalf("WriteArg: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	got, err := m.ReadArg(r)
	if err != nil {
		t.Fatalf("ReadArg: %v", err)
	}
	lr := got.Value.(marshal.LambdaRef)
	if lr.CallableIndex != 3 || len(lr.Args) != 1 || lr.Args[0].Value.(int32) != 9 {
		t.Fatalf("unexpected round-tripped lambda: %+v", lr)
	}
}

func TestObjectRefInlinesBoxedInteger(t *testing.T) {
	m := newMarshaller(t)
	boxedID, err := m.Reg.GetByName("java.lang.Integer")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}

	w := marshal.NewWriter()
	if err := m.WriteObjectRef(w, boxedID.ID, int32(5)); err != nil {
		t.Fatalf("WriteObjectRef: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	ref, err := m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef: %v", err)
	}
	if ref.Handle == handle.Null {
		t.Fatalf("expected a non-null handle for a boxed Integer")
	}
	if ref.Inline == nil {
		t.Fatalf("expected the boxed integer value to be inlined")
	}
}

func TestObjectRefNoInlineSentinel(t *testing.T) {
	m := newMarshaller(t)
	objID, err := m.Reg.GetByName("java.lang.Object")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	type opaque struct{ n int }
	w := marshal.NewWriter()
	if err := m.WriteObjectRef(w, objID.ID, &opaque{n: 1}); err != nil {
		t.Fatalf("WriteObjectRef: %v", err)
	}
	r := marshal.NewReader(w.Bytes())
	ref, err := m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef: %v", err)
	}
	if ref.Inline != nil {
		t.Fatalf("expected no inline value for an opaque object, got %v", ref.Inline)
	}
}
