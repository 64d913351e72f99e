package dispatch

import (
	"fmt"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

func (d *Dispatcher) handleLock(tid lockmgr.ThreadID, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if err := d.Locks.Acquire(name, tid); err != nil {
		return nil, err
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleUnlock(tid lockmgr.ThreadID, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if err := d.Locks.Release(name, tid); err != nil {
		return nil, err
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleInjectClass(m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if !d.Authz.IsClassInjectionPermitted(name) {
		return nil, &cos.ErrAccessDenied{Reason: "class injection of " + name + " is not permitted"}
	}
	n, err := r.I32()
	if err != nil {
		return nil, err
	}
	bytecode, err := r.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	if d.Injector == nil {
		return nil, fmt.Errorf("dispatch: class injection is not supported by this server")
	}
	typeID, err := d.Injector.InjectClass(name, bytecode)
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.I32(int32(typeID))
	return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleInjectSource(m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	name, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if !d.Authz.IsClassInjectionPermitted(name) {
		return nil, &cos.ErrAccessDenied{Reason: "class injection of " + name + " is not permitted"}
	}
	source, err := r.UTF16String()
	if err != nil {
		return nil, err
	}
	if d.Injector == nil {
		return nil, fmt.Errorf("dispatch: class injection is not supported by this server")
	}
	typeID, err := d.Injector.InjectSource(name, source)
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.I32(int32(typeID))
	return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleGetCallbackHandle(tid lockmgr.ThreadID, r *marshal.Reader) (*wire.Frame, error) {
	clientFuncID, err := r.I64()
	if err != nil {
		return nil, err
	}
	ifaceRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	iface := typereg.TypeID(ifaceRaw)
	argc, err := r.I32()
	if err != nil {
		return nil, err
	}
	if d.Callback == nil {
		return nil, fmt.Errorf("dispatch: callbacks are not supported by this server")
	}
	typeID, h, err := d.Callback.GetCallbackHandle(tid, clientFuncID, iface, int(argc))
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.I32(int32(typeID))
	w.U64(uint64(h))
	return &wire.Frame{Kind: wire.KindObjectRef, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleCallbackResponse(m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	reqID, err := r.U32()
	if err != nil {
		return nil, err
	}
	isException, err := r.Bool()
	if err != nil {
		return nil, err
	}
	arg, err := m.ReadArg(r)
	if err != nil {
		return nil, err
	}
	if d.Callback == nil {
		return nil, fmt.Errorf("dispatch: callbacks are not supported by this server")
	}
	d.Callback.RouteResponse(reqID, arg, isException)
	return ackFrame(), nil
}

func (d *Dispatcher) handleGetProxy(tid lockmgr.ThreadID, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	clientObjIDRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	cid := marshal.ClientObjectID(clientObjIDRaw)
	ifaceRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	iface := typereg.TypeID(ifaceRaw)
	if d.Callback == nil {
		return nil, fmt.Errorf("dispatch: callbacks are not supported by this server")
	}
	typeID, h, err := d.Callback.GetProxy(tid, cid, iface)
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.I32(int32(typeID))
	w.U64(uint64(h))
	return &wire.Frame{Kind: wire.KindObjectRef, Payload: w.Bytes()}, nil
}
