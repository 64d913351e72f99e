package dispatch

import (
	"fmt"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/pickle"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

// getClassCallableIndex is the sentinel CallableIndex a client sends for a
// zero-argument getClass() call, handled specially because an instance
// handle of Null has no callable table of its own to index into.
const getClassCallableIndex = -1

// resolveArgs turns every ArgReference in args into a plain ArgValue
// wrapping the referenced object, and every ArgSharedMemory descriptor into
// the live typed slice it names, so Invoker implementations never need to
// know about handles or the shared-memory side channel - they only ever
// see resolved Go values.
func (d *Dispatcher) resolveArgs(conn *Connection, args []marshal.Arg) ([]marshal.Arg, error) {
	out := make([]marshal.Arg, len(args))
	for i, a := range args {
		switch a.Kind {
		case marshal.ArgReference:
			h, _ := a.Value.(handle.Handle)
			obj, ok := conn.Handles.Lookup(h)
			if !ok {
				return nil, cos.NewErrNotFound("handle %d", h)
			}
			out[i] = marshal.Arg{Kind: marshal.ArgValue, Value: obj}
		case marshal.ArgSharedMemory:
			if d.Shm == nil {
				return nil, &cos.ErrMalformedRequest{Reason: "shared-memory argument received but no ShmWriter is configured"}
			}
			ref := a.Value.(marshal.SharedMemRef)
			data, err := d.Shm.ReadArray(ref)
			if err != nil {
				return nil, err
			}
			out[i] = marshal.Arg{Kind: marshal.ArgValue, Value: data}
		default:
			out[i] = a
		}
	}
	return out, nil
}

func (d *Dispatcher) handleCall(conn *Connection, tid lockmgr.ThreadID, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	isCtor, err := r.Bool()
	if err != nil {
		return nil, err
	}
	typeIDRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	typeID := typereg.TypeID(typeIDRaw)
	rfByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	rf := ReturnFormat(rfByte)
	modeByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	mode := CallingMode(modeByte)
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	idxRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	idx := int(idxRaw)

	argc, err := r.I32()
	if err != nil {
		return nil, err
	}
	args := make([]marshal.Arg, argc)
	for i := range args {
		a, err := m.ReadArg(r)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	args, err = d.resolveArgs(conn, args)
	if err != nil {
		return nil, err
	}

	var instance any
	if !isCtor {
		var ok bool
		instance, ok = conn.Handles.Lookup(target)
		if !ok {
			return nil, cos.NewErrNotFound("handle %d", target)
		}
	}

	invoke := func() (*wire.Frame, error) {
		var result any
		var resultType typereg.TypeID
		var err error
		switch {
		case isCtor:
			result, err = d.Invoke.Construct(typeID, idx, args)
			resultType = typeID
		case idx == getClassCallableIndex && instance == nil && len(args) == 0:
			resultType = typeID
		default:
			result, resultType, err = d.Invoke.CallMethod(typeID, idx, instance, args)
		}
		if err != nil {
			return nil, err
		}
		return d.renderResult(m, rf, resultType, result)
	}

	if mode == CallSynchronous {
		return invoke()
	}
	return d.dispatchAsync(conn, tid, invoke)
}

// dispatchAsync runs invoke on a method-caller thread drawn from d.Async's
// unbounded free list and immediately returns a future handle; the actual
// rendered result (or error, surfaced as an exception on retrieval) is
// fetched later with a KindFutureGet request.
func (d *Dispatcher) dispatchAsync(conn *Connection, tid lockmgr.ThreadID, invoke func() (*wire.Frame, error)) (*wire.Frame, error) {
	if d.Async == nil {
		return nil, &cos.ErrMalformedRequest{Reason: "asynchronous calls are not supported on this connection"}
	}
	// The frame-dispatch goroutine only mints the future and returns; the
	// actual reflection call runs here, on the method-caller thread, so the
	// global lock (held by HandleFrame only around the minting above) must
	// be reacquired around the call itself.
	job := func() *wire.Frame {
		toException := func(err error) *wire.Frame {
			w := marshal.NewWriter()
			w.UTF16String(err.Error())
			return &wire.Frame{Kind: wire.KindException, Payload: w.Bytes()}
		}
		if err := d.Locks.AcquireGlobal(tid); err != nil {
			return toException(err)
		}
		defer d.Locks.ReleaseGlobal(tid)

		frame, err := invoke()
		if err != nil {
			return toException(err)
		}
		return frame
	}
	fut := d.Async.DispatchAsync(tid, job)
	h := conn.Handles.AddRefObj(fut)

	w := marshal.NewWriter()
	w.U64(uint64(h))
	return &wire.Frame{Kind: wire.KindFutureRef, Payload: w.Bytes()}, nil
}

// handleFutureGet implements KindFutureGet: it blocks (up to an optional
// timeout in milliseconds, <=0 meaning indefinite) for an async call's
// result and returns it exactly as it would have been returned
// synchronously. A second retrieval of the same future fails.
func (d *Dispatcher) handleFutureGet(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	timeoutRaw, err := r.I32()
	if err != nil {
		return nil, err
	}

	obj, ok := conn.Handles.Lookup(handle.Handle(targetRaw))
	if !ok {
		return nil, cos.NewErrNotFound("handle %d", targetRaw)
	}
	fut, ok := obj.(*wpool.Future)
	if !ok {
		return nil, &cos.ErrMalformedRequest{Reason: "handle does not refer to a future"}
	}

	var timeout time.Duration
	if timeoutRaw > 0 {
		timeout = time.Duration(timeoutRaw) * time.Millisecond
	}
	return fut.Wait(timeout)
}

// renderResult encodes a call/field/value result in the client-requested
// ReturnFormat.
func (d *Dispatcher) renderResult(m *marshal.Marshaller, rf ReturnFormat, typeID typereg.TypeID, result any) (*wire.Frame, error) {
	switch rf {
	case ReturnByReference:
		w := marshal.NewWriter()
		if err := m.WriteObjectRef(w, typeID, result); err != nil {
			return nil, err
		}
		return &wire.Frame{Kind: wire.KindObjectRef, Payload: w.Bytes()}, nil

	case ReturnByClientReference:
		w := marshal.NewWriter()
		if err := m.WriteValue(w, typeID, result); err != nil {
			return nil, err
		}
		return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil

	case ReturnPickle, ReturnCompressedPickle, ReturnBestEffortPickle, ReturnCompressedBestEffortPickle:
		return d.picklingResult(rf, typeID, result)

	case ReturnShm:
		return d.shmResult(typeID, result)

	default:
		return nil, fmt.Errorf("dispatch: unknown return format %d", rf)
	}
}

func (d *Dispatcher) picklingResult(rf ReturnFormat, typeID typereg.TypeID, result any) (*wire.Frame, error) {
	arg := marshal.Arg{Kind: marshal.ArgValue, TypeID: typeID, Value: result}

	codec := d.Pickle
	if rf == ReturnBestEffortPickle || rf == ReturnCompressedBestEffortPickle {
		if d.BestEffort != nil {
			codec = d.BestEffort
		}
	}

	data, err := codec.Marshal(arg)
	if err != nil {
		return nil, err
	}

	kind := wire.KindPickleResult
	switch rf {
	case ReturnCompressedPickle:
		kind = wire.KindCPickleResult
	case ReturnBestEffortPickle:
		kind = wire.KindBEPickleResult
	case ReturnCompressedBestEffortPickle:
		kind = wire.KindCBEPickleResult
	}
	if rf == ReturnCompressedPickle || rf == ReturnCompressedBestEffortPickle {
		data, err = pickle.CompressLZ4(data)
		if err != nil {
			return nil, err
		}
	}

	w := marshal.NewWriter()
	w.I32(int32(len(data)))
	w.Raw(data)
	return &wire.Frame{Kind: kind, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) shmResult(typeID typereg.TypeID, result any) (*wire.Frame, error) {
	if d.Shm == nil {
		return nil, fmt.Errorf("dispatch: shared-memory return format requested but no ShmWriter is configured")
	}
	td, ok := d.Reg.GetByID(typeID)
	if !ok || !td.Flags.Has(typereg.FlagArray) {
		return nil, &cos.ErrValueConversion{Reason: "shm return format requires an array result"}
	}
	elemTD, ok := d.Reg.GetByID(td.ElementType)
	if !ok || !elemTD.Flags.Has(typereg.FlagPrimitive) {
		return nil, &cos.ErrValueConversion{Reason: "shm return format requires a primitive element type"}
	}
	filename, count, err := d.Shm.WriteArray(elemTD.Primitive, result)
	if err != nil {
		return nil, err
	}
	code, err := marshal.SharedMemTypeCode(elemTD.Primitive)
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.UTF16String(filename)
	w.I32(count)
	w.Byte(code)
	return &wire.Frame{Kind: wire.KindShmResult, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleToString(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	obj, ok := conn.Handles.Lookup(target)
	if !ok {
		return nil, cos.NewErrNotFound("handle %d", target)
	}

	w := marshal.NewWriter()
	if obj == nil {
		w.I32(marshal.InlineNone)
		return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil
	}
	s, err := d.Invoke.ToString(obj)
	if err != nil {
		return nil, err
	}
	w.UTF16String(s)
	return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleGetField(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	typeIDRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	typeID := typereg.TypeID(typeIDRaw)
	fieldIdx, err := r.I32()
	if err != nil {
		return nil, err
	}
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	rfByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	rf := ReturnFormat(rfByte)

	var instance any
	if target != handle.Null {
		var ok bool
		instance, ok = conn.Handles.Lookup(target)
		if !ok {
			return nil, cos.NewErrNotFound("handle %d", target)
		}
	}

	td, ok := d.Reg.GetByID(typeID)
	if !ok {
		return nil, cos.NewErrNotFound("type id %d", typeID)
	}
	if fieldIdx < 0 || int(fieldIdx) >= len(td.Fields) {
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("field index %d out of range for %s", fieldIdx, td.Name)}
	}

	value, err := d.Invoke.GetField(typeID, int(fieldIdx), instance)
	if err != nil {
		return nil, err
	}
	return d.renderResult(m, rf, td.Fields[fieldIdx].TypeID, value)
}

func (d *Dispatcher) handleSetField(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	typeIDRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	typeID := typereg.TypeID(typeIDRaw)
	fieldIdx, err := r.I32()
	if err != nil {
		return nil, err
	}
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	arg, err := m.ReadArg(r)
	if err != nil {
		return nil, err
	}
	resolved, err := d.resolveArgs(conn, []marshal.Arg{arg})
	if err != nil {
		return nil, err
	}

	var instance any
	if target != handle.Null {
		var ok bool
		instance, ok = conn.Handles.Lookup(target)
		if !ok {
			return nil, cos.NewErrNotFound("handle %d", target)
		}
	}

	if err := d.Invoke.SetField(typeID, int(fieldIdx), instance, resolved[0].Value); err != nil {
		return nil, err
	}
	return ackFrame(), nil
}

func (d *Dispatcher) handleArrayLength(conn *Connection, r *marshal.Reader) (*wire.Frame, error) {
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	obj, ok := conn.Handles.Lookup(handle.Handle(targetRaw))
	if !ok {
		return nil, cos.NewErrNotFound("handle %d", targetRaw)
	}
	n, err := d.Invoke.ArrayLength(obj)
	if err != nil {
		return nil, err
	}
	w := marshal.NewWriter()
	w.I32(n)
	return &wire.Frame{Kind: wire.KindValueResult, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleNewArray(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	elemTypeRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	elemType := typereg.TypeID(elemTypeRaw)
	length, err := r.I32()
	if err != nil {
		return nil, err
	}
	rfByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	rf := ReturnFormat(rfByte)

	arr, err := d.Invoke.NewArrayInstance(elemType, length)
	if err != nil {
		return nil, err
	}
	arrTypeID, err := d.Invoke.RuntimeType(arr)
	if err != nil {
		return nil, err
	}
	return d.renderResult(m, rf, arrTypeID, arr)
}

func (d *Dispatcher) handleCast(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	toTypeRaw, err := r.I32()
	if err != nil {
		return nil, err
	}
	toType := typereg.TypeID(toTypeRaw)

	obj, ok := conn.Handles.Lookup(target)
	if !ok {
		return nil, cos.NewErrNotFound("handle %d", target)
	}
	if obj != nil {
		fromType, err := d.Invoke.RuntimeType(obj)
		if err != nil {
			return nil, err
		}
		if !typereg.IsAssignable(d.Reg, fromType, toType) {
			fromTD, _ := d.Reg.GetByID(fromType)
			toTD, _ := d.Reg.GetByID(toType)
			return nil, &cos.ErrValueConversion{
				Reason: fmt.Sprintf("cannot cast %s to %s", fromTD.Name, toTD.Name),
			}
		}
	}

	w := marshal.NewWriter()
	if err := m.WriteObjectRef(w, toType, obj); err != nil {
		return nil, err
	}
	return &wire.Frame{Kind: wire.KindObjectRef, Payload: w.Bytes()}, nil
}

func (d *Dispatcher) handleValueOf(conn *Connection, m *marshal.Marshaller, r *marshal.Reader) (*wire.Frame, error) {
	targetRaw, err := r.U64()
	if err != nil {
		return nil, err
	}
	target := handle.Handle(targetRaw)
	rfByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	rf := ReturnFormat(rfByte)

	obj, ok := conn.Handles.Lookup(target)
	if !ok {
		return nil, cos.NewErrNotFound("handle %d", target)
	}
	var typeID typereg.TypeID
	if obj != nil {
		typeID, err = d.Invoke.RuntimeType(obj)
		if err != nil {
			return nil, err
		}
	}
	return d.renderResult(m, rf, typeID, obj)
}
