package dispatch_test

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/dispatch"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

type widget struct{ count int32 }

// fakeInvoker is a minimal Invoker standing in for a host's reflective
// bindings: it knows how to build and call methods on one widget type.
type fakeInvoker struct {
	widgetType typereg.TypeID
	intType    typereg.TypeID
}

func (f *fakeInvoker) Construct(typeID typereg.TypeID, index int, args []marshal.Arg) (any, error) {
	return &widget{}, nil
}

func (f *fakeInvoker) CallMethod(typeID typereg.TypeID, index int, instance any, args []marshal.Arg) (any, typereg.TypeID, error) {
	w := instance.(*widget)
	switch index {
	case 0: // increment(int) int
		delta := args[0].Value.(int32)
		w.count += delta
		return w.count, f.intType, nil
	default:
		return nil, 0, nil
	}
}

func (f *fakeInvoker) GetField(typeID typereg.TypeID, fieldIndex int, instance any) (any, error) {
	return instance.(*widget).count, nil
}

func (f *fakeInvoker) SetField(typeID typereg.TypeID, fieldIndex int, instance any, value any) error {
	instance.(*widget).count = value.(int32)
	return nil
}

func (f *fakeInvoker) ArrayLength(instance any) (int32, error) { return 0, nil }

func (f *fakeInvoker) NewArrayInstance(elemType typereg.TypeID, length int32) (any, error) {
	return nil, nil
}

func (f *fakeInvoker) ToString(instance any) (string, error) { return "widget", nil }

func (f *fakeInvoker) RuntimeType(obj any) (typereg.TypeID, error) { return f.widgetType, nil }

func newTestDispatcher(t *testing.T) (*dispatch.Dispatcher, *dispatch.Connection, lockmgr.ThreadID) {
	t.Helper()
	src := typereg.NewStaticSource()
	reg := typereg.New(src)

	intType, ok := reg.PrimitiveTypeID(typereg.PrimInt)
	if !ok {
		t.Fatalf("int primitive not bootstrapped")
	}

	src.Register("widget.Widget", func(id typereg.TypeID) *typereg.TypeDescriptor {
		return &typereg.TypeDescriptor{
			Supertypes: []typereg.TypeID{},
			Fields: []typereg.FieldDescriptor{
				{Name: "count", TypeID: intType},
			},
			Methods: []typereg.CallableDescriptor{
				{Index: 0, Name: "increment", ReturnType: intType, ArgTypes: []typereg.TypeID{intType}, ArgNames: []string{"delta"}},
			},
			Constructors: []typereg.CallableDescriptor{
				{Index: 0, Name: "widget.Widget"},
			},
		}
	})
	widgetTD, err := reg.GetByName("widget.Widget")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}

	invoker := &fakeInvoker{widgetType: widgetTD.ID, intType: intType}
	locks := lockmgr.New()
	d := dispatch.New(reg, locks, authz.NewDefault(), invoker)
	d.Lookup = func(name string) (any, typereg.TypeID, bool) {
		if name != "" {
			return nil, 0, false
		}
		return &widget{count: 7}, widgetTD.ID, true
	}

	conn := &dispatch.Connection{ID: "t1", Handles: handle.New(1)}
	tid := lockmgr.ThreadID{Conn: "t1", Client: 1}
	return d, conn, tid
}

func TestInstanceLookupAndCall(t *testing.T) {
	d, conn, tid := newTestDispatcher(t)

	w := marshal.NewWriter()
	w.UTF16String("")
	lookup := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindInstanceLookup, Payload: w.Bytes()})
	if lookup.Kind != wire.KindObjectRef {
		t.Fatalf("expected object-ref reply, got %s", lookup.Kind)
	}

	reg := d.Reg
	m := marshal.New(reg, conn.Handles)
	r := marshal.NewReader(lookup.Payload)
	ref, err := m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef: %v", err)
	}

	cw := marshal.NewWriter()
	cw.Bool(false) // not a constructor
	cw.I32(int32(ref.TypeID))
	cw.Byte(byte(dispatch.ReturnByReference))
	cw.Byte(byte(dispatch.CallSynchronous))
	cw.U64(uint64(ref.Handle))
	cw.I32(0) // increment
	cw.I32(1) // one arg
	intType, ok := reg.PrimitiveTypeID(typereg.PrimInt)
	if !ok {
		t.Fatalf("int primitive not bootstrapped")
	}
	if err := m.WriteArg(cw, marshal.Arg{Kind: marshal.ArgValue, TypeID: intType, Value: int32(5)}); err != nil {
		t.Fatalf("WriteArg: %v", err)
	}

	callReply := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindCall, Payload: cw.Bytes()})
	if callReply.Kind == wire.KindException {
		cr := marshal.NewReader(callReply.Payload)
		s, _ := cr.UTF16String()
		t.Fatalf("call failed: %s", s)
	}
}

func TestAsyncCallReturnsFutureThenResult(t *testing.T) {
	d, conn, tid := newTestDispatcher(t)
	d.Async = wpool.New(wpool.Direct, 4)

	w := marshal.NewWriter()
	w.UTF16String("")
	lookup := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindInstanceLookup, Payload: w.Bytes()})

	reg := d.Reg
	m := marshal.New(reg, conn.Handles)
	r := marshal.NewReader(lookup.Payload)
	ref, err := m.ReadObjectRef(r)
	if err != nil {
		t.Fatalf("ReadObjectRef: %v", err)
	}

	intType, ok := reg.PrimitiveTypeID(typereg.PrimInt)
	if !ok {
		t.Fatalf("int primitive not bootstrapped")
	}

	cw := marshal.NewWriter()
	cw.Bool(false)
	cw.I32(int32(ref.TypeID))
	cw.Byte(byte(dispatch.ReturnByReference))
	cw.Byte(byte(dispatch.CallNewHostThread))
	cw.U64(uint64(ref.Handle))
	cw.I32(0)
	cw.I32(1)
	if err := m.WriteArg(cw, marshal.Arg{Kind: marshal.ArgValue, TypeID: intType, Value: int32(5)}); err != nil {
		t.Fatalf("WriteArg: %v", err)
	}

	futReply := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindCall, Payload: cw.Bytes()})
	if futReply.Kind != wire.KindFutureRef {
		t.Fatalf("expected a future-ref reply, got %s", futReply.Kind)
	}
	fr := marshal.NewReader(futReply.Payload)
	futHandle, err := fr.U64()
	if err != nil {
		t.Fatalf("reading future handle: %v", err)
	}

	gw := marshal.NewWriter()
	gw.U64(futHandle)
	gw.I32(1000) // 1s timeout
	result := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindFutureGet, Payload: gw.Bytes()})
	if result.Kind == wire.KindException {
		er := marshal.NewReader(result.Payload)
		s, _ := er.UTF16String()
		t.Fatalf("future get failed: %s", s)
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	d, conn, tid := newTestDispatcher(t)

	w := marshal.NewWriter()
	w.UTF16String("mylock")
	reply := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindLock, Payload: w.Bytes()})
	if reply.Kind != wire.KindAck {
		t.Fatalf("expected ack, got %s", reply.Kind)
	}

	uw := marshal.NewWriter()
	uw.UTF16String("mylock")
	ureply := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindUnlock, Payload: uw.Bytes()})
	if ureply.Kind != wire.KindAck {
		t.Fatalf("expected ack, got %s", ureply.Kind)
	}
}
