package dispatch

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

type noopInvoker struct{}

func (noopInvoker) Construct(typereg.TypeID, int, []marshal.Arg) (any, error) { return nil, nil }
func (noopInvoker) CallMethod(typereg.TypeID, int, any, []marshal.Arg) (any, typereg.TypeID, error) {
	return nil, 0, nil
}
func (noopInvoker) GetField(typereg.TypeID, int, any) (any, error)     { return nil, nil }
func (noopInvoker) SetField(typereg.TypeID, int, any, any) error       { return nil }
func (noopInvoker) ArrayLength(any) (int32, error)                     { return 0, nil }
func (noopInvoker) NewArrayInstance(typereg.TypeID, int32) (any, error) { return nil, nil }
func (noopInvoker) ToString(any) (string, error)                       { return "", nil }
func (noopInvoker) RuntimeType(any) (typereg.TypeID, error)            { return 0, nil }

func TestHandleFrameRejectsExcessiveRecursion(t *testing.T) {
	reg := typereg.New(typereg.NewStaticSource())
	d := New(reg, lockmgr.New(), authz.NewDefault(), noopInvoker{})
	d.Lookup = func(string) (any, typereg.TypeID, bool) { return nil, 0, false }

	conn := &Connection{ID: "t1", Handles: handle.New(1), depth: MaxRecursionDepth}
	tid := lockmgr.ThreadID{Conn: "t1", Client: 1}

	w := marshal.NewWriter()
	w.UTF16String("")
	reply := d.HandleFrame(conn, tid, &wire.Frame{Kind: wire.KindInstanceLookup, Payload: w.Bytes()})
	if reply.Kind != wire.KindException {
		t.Fatalf("expected recursion-depth exception, got %s", reply.Kind)
	}
}
