package main

import (
	"testing"

	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

func TestDemoInvokerEchoRoundTrip(t *testing.T) {
	src := typereg.NewStaticSource()
	reg := typereg.New(src)
	inv, _ := registerDemoTypes(reg, src)

	obj, err := inv.Construct(inv.echoType, 1, []marshal.Arg{{TypeID: inv.stringType, Value: "hello"}})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	v, typeID, err := inv.CallMethod(inv.echoType, 0, obj, nil)
	if err != nil {
		t.Fatalf("CallMethod(getValue): %v", err)
	}
	if typeID != inv.stringType || v.(string) != "hello" {
		t.Fatalf("expected (hello, %d), got (%v, %d)", inv.stringType, v, typeID)
	}

	length, typeID, err := inv.CallMethod(inv.echoType, 2, obj, nil)
	if err != nil {
		t.Fatalf("CallMethod(length): %v", err)
	}
	if typeID != inv.longType || length.(int64) != 5 {
		t.Fatalf("expected length 5, got %v", length)
	}

	if _, _, err := inv.CallMethod(inv.echoType, 1, obj, []marshal.Arg{{TypeID: inv.stringType, Value: "bye"}}); err != nil {
		t.Fatalf("CallMethod(setValue): %v", err)
	}
	if got, err := inv.GetField(inv.echoType, 0, obj); err != nil || got.(string) != "bye" {
		t.Fatalf("GetField after setValue: %v, %v", got, err)
	}

	if s, err := inv.ToString(obj); err != nil || s != `Echo("bye")` {
		t.Fatalf("ToString: %q, %v", s, err)
	}
}

func TestDemoInvokerCounterIncrement(t *testing.T) {
	src := typereg.NewStaticSource()
	reg := typereg.New(src)
	inv, shared := registerDemoTypes(reg, src)

	v, typeID, err := inv.CallMethod(inv.counterType, 0, shared, []marshal.Arg{{TypeID: inv.intType, Value: int32(3)}})
	if err != nil {
		t.Fatalf("CallMethod(increment): %v", err)
	}
	if typeID != inv.longType || v.(int64) != 3 {
		t.Fatalf("expected 3, got %v", v)
	}

	v, _, err = inv.CallMethod(inv.counterType, 0, shared, []marshal.Arg{{TypeID: inv.intType, Value: int32(4)}})
	if err != nil {
		t.Fatalf("CallMethod(increment): %v", err)
	}
	if v.(int64) != 7 {
		t.Fatalf("expected 7, got %v", v)
	}

	rtType, err := inv.RuntimeType(shared)
	if err != nil || rtType != inv.counterType {
		t.Fatalf("RuntimeType: %v, %v", rtType, err)
	}
}
