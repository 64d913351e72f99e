// Package dispatch implements the request engine: it validates and handles
// every client->server message kind, enforcing lock discipline, recursion
// depth, per-call instrumentation, and the six return-value formats for
// method/constructor calls.
//
// Grounded on the teacher's reverse-proxy request-handling loop (one
// function per verb, access-checked before work begins, instrumented on
// the way in and out) generalised from HTTP verbs to the engine's closed
// set of wire.Kind message kinds.
package dispatch

import (
	"fmt"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/pickle"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

// MaxRecursionDepth bounds synchronous re-entrancy per connection: a call
// that chains host->client->host deeper than this raises ErrRecursionDepth
// rather than risking a network deadlock.
const MaxRecursionDepth = 128

// Invoker performs the actual reflective work the engine can't do
// generically in Go: resolving a (type, callable-index) pair to a
// constructor/method and invoking it, field access, array operations, and
// runtime-class lookup. A host registers one Invoker per registry, the same
// way it registers a typereg.Source - the engine drives the protocol, the
// host supplies the introspection.
type Invoker interface {
	Construct(typeID typereg.TypeID, index int, args []marshal.Arg) (instance any, err error)
	CallMethod(typeID typereg.TypeID, index int, instance any, args []marshal.Arg) (result any, resultType typereg.TypeID, err error)
	GetField(typeID typereg.TypeID, fieldIndex int, instance any) (value any, err error)
	SetField(typeID typereg.TypeID, fieldIndex int, instance any, value any) error
	ArrayLength(instance any) (int32, error)
	NewArrayInstance(elemType typereg.TypeID, length int32) (any, error)
	ToString(instance any) (string, error)
	// RuntimeType returns the most-derived registered type of obj, for
	// generic-returning callables and for getClass() on a non-null target.
	RuntimeType(obj any) (typereg.TypeID, error)
}

// ClassInjector compiles and defines a new host type from bytecode or
// source at runtime; gated on Authorizer.IsClassInjectionPermitted.
type ClassInjector interface {
	InjectClass(name string, bytecode []byte) (typereg.TypeID, error)
	InjectSource(name, source string) (typereg.TypeID, error)
}

// CallbackEngine synthesises host-side proxies over client callables/
// objects and routes responses to outstanding outbound calls. Implemented
// by package callback; declared here so dispatch can depend on the
// interface without an import cycle.
type CallbackEngine interface {
	GetCallbackHandle(tid lockmgr.ThreadID, clientFuncID int64, targetInterface typereg.TypeID, argCount int) (typereg.TypeID, handle.Handle, error)
	GetProxy(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID, targetInterface typereg.TypeID) (typereg.TypeID, handle.Handle, error)
	RouteResponse(requestID uint32, result marshal.Arg, isException bool)
}

// InstanceLookupFunc resolves a named host instance for KindInstanceLookup.
// A null/empty name resolves to (nil, nil, true).
type InstanceLookupFunc func(name string) (obj any, typeID typereg.TypeID, ok bool)

// ShmWriter publishes and consumes typed primitive arrays over the shared-
// memory side channel: WriteArray backs ReturnShm results, handing back the
// filename/count a same-host client maps to read it without a second round
// trip; ReadArray resolves an incoming ArgSharedMemory argument (a
// filename/count/element-type descriptor) into the live Go slice it names.
type ShmWriter interface {
	WriteArray(elem typereg.PrimitiveKind, data any) (filename string, count int32, err error)
	ReadArray(ref marshal.SharedMemRef) (data any, err error)
}

// Connection bundles the per-connection state a Dispatcher needs beyond the
// process-wide Registry/Authorizer: its own handle table, logical-thread
// identity namespace, and recursion counter.
type Connection struct {
	ID      string
	Handles *handle.Table
	depth   int
}

// Dispatcher handles frames for one connection family, sharing a registry,
// lock manager and authorizer across every connection spawned from the
// same listener.
type Dispatcher struct {
	Reg        *typereg.Registry
	Locks      *lockmgr.Manager
	Authz      authz.Authorizer
	Pickle     pickle.Codec
	BestEffort pickle.Codec // nil falls back to Pickle; see DESIGN.md
	Invoke     Invoker
	Injector   ClassInjector  // nil if injection is unsupported
	Callback   CallbackEngine // nil if callbacks are unsupported
	Shm        ShmWriter      // nil if the shared-memory return format is unsupported
	Async      *wpool.Pool    // nil if asynchronous (new-host-thread) calls are unsupported
	Lookup     InstanceLookupFunc
	Metrics    *Metrics
}

// New builds a Dispatcher. Callback/Injector may be wired in after
// construction (they are commonly built after the Dispatcher since they
// in turn reference it for outbound frames).
func New(reg *typereg.Registry, locks *lockmgr.Manager, az authz.Authorizer, invoker Invoker) *Dispatcher {
	return &Dispatcher{
		Reg:     reg,
		Locks:   locks,
		Authz:   az,
		Pickle:  pickle.New(),
		Invoke:  invoker,
		Metrics: NewMetrics(),
	}
}

// HandleFrame processes one incoming frame to completion and returns the
// single reply frame to send back (an exception frame on any failure). The
// caller supplies the logical thread identity and recursion depth tracking
// via conn; HandleFrame increments/decrements conn.depth around the work.
func (d *Dispatcher) HandleFrame(conn *Connection, tid lockmgr.ThreadID, f *wire.Frame) *wire.Frame {
	conn.depth++
	defer func() { conn.depth-- }()
	if conn.depth > MaxRecursionDepth {
		return d.exceptionFrame(f, &cos.ErrRecursionDepth{Max: MaxRecursionDepth})
	}

	stop := d.Metrics.Sample(f.Kind)
	defer stop()

	if f.Kind.RequiresGlobalLock() {
		if err := d.Locks.AcquireGlobal(tid); err != nil {
			return d.exceptionFrame(f, err)
		}
		defer d.Locks.ReleaseGlobal(tid)
	}

	m := marshal.New(d.Reg, conn.Handles)
	r := marshal.NewReader(f.Payload)

	reply, err := d.dispatch(conn, tid, m, f.Kind, r)
	if err != nil {
		return d.exceptionFrame(f, err)
	}
	reply.ClientThreadID = f.ClientThreadID
	reply.RequestID = f.RequestID
	return reply
}

func (d *Dispatcher) dispatch(conn *Connection, tid lockmgr.ThreadID, m *marshal.Marshaller, kind wire.Kind, r *marshal.Reader) (*wire.Frame, error) {
	switch kind {
	case wire.KindInstanceLookup:
		return d.handleInstanceLookup(m, r)
	case wire.KindAddRef:
		return d.handleAddRef(conn, r)
	case wire.KindAddRefList:
		return d.handleAddRefList(conn, r)
	case wire.KindDropRef:
		return d.handleDropRef(conn, r)
	case wire.KindDropRefList:
		return d.handleDropRefList(conn, r)
	case wire.KindTypeByID:
		return d.handleTypeByID(r)
	case wire.KindTypeByName:
		return d.handleTypeByName(m, r)
	case wire.KindCall:
		return d.handleCall(conn, tid, m, r)
	case wire.KindToString:
		return d.handleToString(conn, m, r)
	case wire.KindGetField:
		return d.handleGetField(conn, m, r)
	case wire.KindSetField:
		return d.handleSetField(conn, m, r)
	case wire.KindArrayLength:
		return d.handleArrayLength(conn, r)
	case wire.KindNewArray:
		return d.handleNewArray(conn, m, r)
	case wire.KindCast:
		return d.handleCast(conn, m, r)
	case wire.KindLock:
		return d.handleLock(tid, r)
	case wire.KindUnlock:
		return d.handleUnlock(tid, r)
	case wire.KindInjectClass:
		return d.handleInjectClass(m, r)
	case wire.KindInjectSource:
		return d.handleInjectSource(m, r)
	case wire.KindValueOf:
		return d.handleValueOf(conn, m, r)
	case wire.KindGetCallbackHandle:
		return d.handleGetCallbackHandle(tid, r)
	case wire.KindCallbackResponse:
		return d.handleCallbackResponse(m, r)
	case wire.KindGetProxy:
		return d.handleGetProxy(tid, m, r)
	case wire.KindFutureGet:
		return d.handleFutureGet(conn, r)
	default:
		return nil, &cos.ErrMalformedRequest{Reason: fmt.Sprintf("unhandled request kind %s", kind)}
	}
}

func (d *Dispatcher) exceptionFrame(f *wire.Frame, err error) *wire.Frame {
	nlog.Errorf("dispatch: %s: %v", f.Kind, err)
	w := marshal.NewWriter()
	w.UTF16String(err.Error())
	return &wire.Frame{
		Kind:           wire.KindException,
		ClientThreadID: f.ClientThreadID,
		RequestID:      f.RequestID,
		Payload:        w.Bytes(),
	}
}

func ackFrame() *wire.Frame { return &wire.Frame{Kind: wire.KindAck} }
