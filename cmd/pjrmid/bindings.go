// Demo host bindings: the Invoker and typereg.Source registrations pjrmid
// exposes out of the box. A real deployment supplies its own types the same
// way - typereg.StaticSource is "the registry's only supported way to
// introduce a type" (see typereg/static_source.go); there is no classpath
// to scan the way a JVM host would. These two types exist so pjrmid has
// something to serve without requiring an embedder to bring one.
package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// echoBox is a trivial single-field holder: getValue/setValue/length of its
// stored string, enough to exercise field access, method calls, and
// constructors with arguments end to end.
type echoBox struct {
	mu    sync.Mutex
	value string
}

// counter is a shared, concurrently-callable instance the daemon looks up
// by name rather than constructs per call, exercising InstanceLookupFunc.
type counter struct {
	n int64
}

func (c *counter) increment(delta int32) int64 {
	return atomic.AddInt64(&c.n, int64(delta))
}

// demoInvoker implements dispatch.Invoker for echoBox and counter. Method
// and constructor indices are assigned the same way newTestDispatcher's
// fakeInvoker assigns them in dispatch's own tests: by position in the
// TypeDescriptor's Methods/Constructors slice.
type demoInvoker struct {
	echoType    typereg.TypeID
	counterType typereg.TypeID
	stringType  typereg.TypeID
	intType     typereg.TypeID
	longType    typereg.TypeID
}

func (d *demoInvoker) Construct(typeID typereg.TypeID, index int, args []marshal.Arg) (any, error) {
	switch typeID {
	case d.echoType:
		e := &echoBox{}
		if index == 1 { // echo.Echo(String)
			e.value, _ = args[0].Value.(string)
		}
		return e, nil
	case d.counterType:
		return &counter{}, nil
	default:
		return nil, fmt.Errorf("pjrmid: no constructor for type %d", typeID)
	}
}

func (d *demoInvoker) CallMethod(typeID typereg.TypeID, index int, instance any, args []marshal.Arg) (any, typereg.TypeID, error) {
	switch typeID {
	case d.echoType:
		e := instance.(*echoBox)
		switch index {
		case 0: // getValue() String
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.value, d.stringType, nil
		case 1: // setValue(String) void
			e.mu.Lock()
			e.value, _ = args[0].Value.(string)
			e.mu.Unlock()
			return nil, 0, nil
		case 2: // length() long
			e.mu.Lock()
			defer e.mu.Unlock()
			return int64(len(e.value)), d.longType, nil
		}
	case d.counterType:
		c := instance.(*counter)
		if index == 0 { // increment(int) long
			delta, _ := args[0].Value.(int32)
			return c.increment(delta), d.longType, nil
		}
	}
	return nil, 0, fmt.Errorf("pjrmid: no method %d on type %d", index, typeID)
}

func (d *demoInvoker) GetField(typeID typereg.TypeID, fieldIndex int, instance any) (any, error) {
	if typeID == d.echoType && fieldIndex == 0 {
		e := instance.(*echoBox)
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.value, nil
	}
	return nil, fmt.Errorf("pjrmid: no field %d on type %d", fieldIndex, typeID)
}

func (d *demoInvoker) SetField(typeID typereg.TypeID, fieldIndex int, instance any, value any) error {
	if typeID == d.echoType && fieldIndex == 0 {
		e := instance.(*echoBox)
		e.mu.Lock()
		e.value, _ = value.(string)
		e.mu.Unlock()
		return nil
	}
	return fmt.Errorf("pjrmid: no field %d on type %d", fieldIndex, typeID)
}

func (d *demoInvoker) ArrayLength(any) (int32, error) { return 0, fmt.Errorf("pjrmid: no array types registered") }

func (d *demoInvoker) NewArrayInstance(typereg.TypeID, int32) (any, error) {
	return nil, fmt.Errorf("pjrmid: no array types registered")
}

func (d *demoInvoker) ToString(instance any) (string, error) {
	switch v := instance.(type) {
	case *echoBox:
		v.mu.Lock()
		defer v.mu.Unlock()
		return fmt.Sprintf("Echo(%q)", v.value), nil
	case *counter:
		return fmt.Sprintf("Counter(%d)", atomic.LoadInt64(&v.n)), nil
	default:
		return fmt.Sprintf("%v", instance), nil
	}
}

func (d *demoInvoker) RuntimeType(obj any) (typereg.TypeID, error) {
	switch obj.(type) {
	case *echoBox:
		return d.echoType, nil
	case *counter:
		return d.counterType, nil
	default:
		return 0, fmt.Errorf("pjrmid: unrecognized instance %T", obj)
	}
}

// registerDemoTypes defines echo.Echo and demo.Counter on src and returns an
// Invoker bound to their assigned type IDs, plus the shared counter instance
// pjrmid hands out through InstanceLookupFunc under the name "counter".
func registerDemoTypes(reg *typereg.Registry, src *typereg.StaticSource) (*demoInvoker, *counter) {
	stringType := reg.StringTypeID()
	longType, ok := reg.PrimitiveTypeID(typereg.PrimLong)
	if !ok {
		panic("pjrmid: long primitive not bootstrapped")
	}

	src.Register("echo.Echo", func(id typereg.TypeID) *typereg.TypeDescriptor {
		return &typereg.TypeDescriptor{
			Fields: []typereg.FieldDescriptor{
				{Name: "value", TypeID: stringType},
			},
			Methods: []typereg.CallableDescriptor{
				{Index: 0, Name: "getValue", ReturnType: stringType},
				{Index: 1, Name: "setValue", ArgTypes: []typereg.TypeID{stringType}, ArgNames: []string{"value"}},
				{Index: 2, Name: "length", ReturnType: longType},
			},
			Constructors: []typereg.CallableDescriptor{
				{Index: 0, Name: "echo.Echo"},
				{Index: 1, Name: "echo.Echo", ArgTypes: []typereg.TypeID{stringType}, ArgNames: []string{"value"}},
			},
		}
	})
	echoTD, err := reg.GetByName("echo.Echo")
	if err != nil {
		panic(fmt.Sprintf("pjrmid: registering echo.Echo: %v", err))
	}

	intType, ok := reg.PrimitiveTypeID(typereg.PrimInt)
	if !ok {
		panic("pjrmid: int primitive not bootstrapped")
	}

	src.Register("demo.Counter", func(id typereg.TypeID) *typereg.TypeDescriptor {
		return &typereg.TypeDescriptor{
			Methods: []typereg.CallableDescriptor{
				{Index: 0, Name: "increment", ReturnType: longType, ArgTypes: []typereg.TypeID{intType}, ArgNames: []string{"delta"}},
			},
		}
	})
	counterTD, err := reg.GetByName("demo.Counter")
	if err != nil {
		panic(fmt.Sprintf("pjrmid: registering demo.Counter: %v", err))
	}

	inv := &demoInvoker{
		echoType:    echoTD.ID,
		counterType: counterTD.ID,
		stringType:  stringType,
		intType:     intType,
		longType:    longType,
	}
	return inv, &counter{}
}
