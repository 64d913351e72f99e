package callback

import (
	"fmt"
	"runtime"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// CallableProxy is a host-side stand-in for one client callable: invoking
// it posts an invoke frame and blocks for the client's result. A concrete
// Invoker recognises this type and routes its sole method through Call
// instead of reflecting on it.
type CallableProxy struct {
	engine       *Engine
	tid          lockmgr.ThreadID
	clientFuncID int64
	argCount     int
}

// Call invokes the client callable this proxy wraps.
func (p *CallableProxy) Call(args []marshal.Arg) (marshal.Arg, error) {
	if len(args) != p.argCount {
		return marshal.Arg{}, fmt.Errorf("callback: %s expects %d args, got %d", p, p.argCount, len(args))
	}
	return p.engine.Invoke(p.tid, p.clientFuncID, args)
}

func (p *CallableProxy) String() string {
	return fmt.Sprintf("callback.CallableProxy{func=%d}", p.clientFuncID)
}

// ObjectProxy is a host-side stand-in for a client object behind a target
// interface: each method call on it routes to the client by name.
type ObjectProxy struct {
	engine      *Engine
	tid         lockmgr.ThreadID
	clientObjID marshal.ClientObjectID
	iface       typereg.TypeID
}

// CallMethod invokes methodName on the client object this proxy wraps.
func (p *ObjectProxy) CallMethod(methodName string, args []marshal.Arg) (marshal.Arg, error) {
	return p.engine.ObjectCallback(p.tid, p.clientObjID, methodName, args)
}

// Equal reports whether other wraps the same client object behind the
// same interface, satisfying the engine's proxy-equality requirement
// without depending on pointer identity (two GetProxy calls for the same
// client object/interface pair are equal even though they return distinct
// *ObjectProxy values).
func (p *ObjectProxy) Equal(other *ObjectProxy) bool {
	return other != nil && p.clientObjID == other.clientObjID && p.iface == other.iface
}

func (p *ObjectProxy) String() string {
	return fmt.Sprintf("callback.ObjectProxy{clientObj=%d, iface=%d}", p.clientObjID, p.iface)
}

// GetCallbackHandle implements dispatch.CallbackEngine: it synthesises a
// CallableProxy for clientFuncID, mints its handle, and resolves the
// host-visible type it should be reported as.
func (e *Engine) GetCallbackHandle(tid lockmgr.ThreadID, clientFuncID int64, targetInterface typereg.TypeID, argCount int) (typereg.TypeID, handle.Handle, error) {
	proxyType, err := e.resolveCallableProxyType(targetInterface, argCount)
	if err != nil {
		return 0, 0, err
	}
	proxy := &CallableProxy{engine: e, tid: tid, clientFuncID: clientFuncID, argCount: argCount}
	h := e.Handles.AddRefObj(proxy)
	return proxyType, h, nil
}

// GetProxy implements dispatch.CallbackEngine: it wraps clientObjID behind
// an ObjectProxy satisfying targetInterface, releasing the client's
// reference (via DropClientRef) once the Go GC reclaims the proxy.
func (e *Engine) GetProxy(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID, targetInterface typereg.TypeID) (typereg.TypeID, handle.Handle, error) {
	td, ok := e.Reg.GetByID(targetInterface)
	if !ok {
		return 0, 0, cos.NewErrNotFound("type id %d", targetInterface)
	}
	if !td.Flags.Has(typereg.FlagInterface) {
		return 0, 0, &cos.ErrValueConversion{Reason: fmt.Sprintf("%s is not an interface", td.Name)}
	}

	proxy := &ObjectProxy{engine: e, tid: tid, clientObjID: clientObjID, iface: targetInterface}
	runtime.SetFinalizer(proxy, func(p *ObjectProxy) { _ = p.engine.DropClientRef(p.tid, p.clientObjID) })

	h := e.Handles.AddRefObj(proxy)
	return targetInterface, h, nil
}

// resolveCallableProxyType picks the interface type a synthesised
// CallableProxy should be reported as: targetInterface itself when the
// client named one and it turns out to be a functional interface of
// matching arity, otherwise the best-fit well-known single-method
// interface for argCount.
func (e *Engine) resolveCallableProxyType(targetInterface typereg.TypeID, argCount int) (typereg.TypeID, error) {
	if targetInterface != typereg.VoidTypeID {
		td, ok := e.Reg.GetByID(targetInterface)
		if !ok {
			return 0, cos.NewErrNotFound("type id %d", targetInterface)
		}
		if !td.Flags.Has(typereg.FlagInterface) {
			return 0, &cos.ErrValueConversion{Reason: fmt.Sprintf("%s is not an interface", td.Name)}
		}
		abstract := singleAbstractMethod(td)
		if abstract == nil {
			return 0, &cos.ErrValueConversion{Reason: fmt.Sprintf("%s is not a functional interface", td.Name)}
		}
		if len(abstract.ArgTypes) != argCount {
			return 0, &cos.ErrValueConversion{
				Reason: fmt.Sprintf("%s's abstract method takes %d args, got %d", td.Name, len(abstract.ArgTypes), argCount),
			}
		}
		return targetInterface, nil
	}
	return e.wellKnownCallableType(argCount), nil
}

// wellKnownCallableType picks a direct implementation for the engine's
// built-in single-method interfaces by arity alone, per spec: nullary
// runnable, unary/binary function, and the keyword-accepting function as
// the catch-all for any wider arity. Consumer/predicate/operator variants
// exist for a host Invoker that wants a narrower return-type contract but
// are not distinguishable from Function by arity alone, so GetCallbackHandle
// defaults to the function family.
func (e *Engine) wellKnownCallableType(argCount int) typereg.TypeID {
	switch argCount {
	case 0:
		return e.Reg.RunnableTypeID()
	case 1:
		return e.Reg.FunctionTypeID()
	case 2:
		return e.Reg.BiFunctionTypeID()
	default:
		return e.Reg.KeywordFunctionTypeID()
	}
}

// singleAbstractMethod returns td's sole non-default, non-root-Object
// method, or nil if td has zero or more than one such method.
func singleAbstractMethod(td *typereg.TypeDescriptor) *typereg.CallableDescriptor {
	var found *typereg.CallableDescriptor
	for i := range td.Methods {
		m := &td.Methods[i]
		if m.Flags.Has(typereg.CallableDefault) || m.Flags.Has(typereg.CallableStatic) {
			continue
		}
		if isRootObjectMethod(m.Name, len(m.ArgTypes)) {
			continue
		}
		if found != nil {
			return nil
		}
		found = m
	}
	return found
}

func isRootObjectMethod(name string, arity int) bool {
	switch name {
	case "toString":
		return arity == 0
	case "equals":
		return arity == 1
	case "hashCode":
		return arity == 0
	default:
		return false
	}
}
