// Package callback implements the callback engine: outbound calls from host
// code into the client, correlated by request ID through a one-shot mailbox
// per in-flight call, and proxy synthesis so host code can hold an ordinary
// Go value that, when invoked, round-trips into the client.
//
// Grounded on the dispatcher's own request/response shape (one frame out,
// one frame back, correlated by ID) turned around: here the host is the
// caller and the client is the callee. The busy-wait-with-periodic-park
// polling loop mirrors the teacher's bounded-retry backoff style used
// elsewhere in its transport retry paths, generalised to an unbounded wait
// cancelled only by the engine closing.
package callback

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

// DefaultPollInterval is how often an outbound call's wait loop wakes to
// check whether the engine has been closed underneath it.
const DefaultPollInterval = 50 * time.Millisecond

// Sender posts one outbound frame addressed to the logical thread tid,
// implemented by the connection supervisor.
type Sender interface {
	Send(tid lockmgr.ThreadID, f *wire.Frame) error
}

type slot struct {
	once     sync.Once
	done     chan struct{}
	result   marshal.Arg
	isExcept bool
}

func (s *slot) finish(result marshal.Arg, isExcept bool) {
	s.once.Do(func() {
		s.result = result
		s.isExcept = isExcept
		close(s.done)
	})
}

// Engine is one connection's callback engine: it owns the outbound
// request-ID space and in-flight mailbox for that connection, and
// synthesises proxies backed by it.
type Engine struct {
	Reg          *typereg.Registry
	Handles      *handle.Table
	Marshal      *marshal.Marshaller
	Send         Sender
	PollInterval time.Duration

	mu      sync.Mutex
	nextReq uint32
	slots   map[uint32]*slot
	closed  bool
}

// New builds an Engine over reg/handles, posting outbound frames through
// send and decoding/encoding arguments through m.
func New(reg *typereg.Registry, handles *handle.Table, m *marshal.Marshaller, send Sender) *Engine {
	return &Engine{
		Reg:     reg,
		Handles: handles,
		Marshal: m,
		Send:    send,
		slots:   make(map[uint32]*slot),
	}
}

func (e *Engine) pollInterval() time.Duration {
	if e.PollInterval > 0 {
		return e.PollInterval
	}
	return DefaultPollInterval
}

func (e *Engine) newSlot() (uint32, *slot) {
	id := atomic.AddUint32(&e.nextReq, 1)
	s := &slot{done: make(chan struct{})}
	e.mu.Lock()
	e.slots[id] = s
	e.mu.Unlock()
	return id, s
}

func (e *Engine) dropSlot(id uint32) {
	e.mu.Lock()
	delete(e.slots, id)
	e.mu.Unlock()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Close cancels every in-flight outbound call with a client-callback
// exception, used when the connection's transport goes away.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	slots := make([]*slot, 0, len(e.slots))
	for _, s := range e.slots {
		slots = append(slots, s)
	}
	e.mu.Unlock()

	for _, s := range slots {
		s.finish(marshal.Arg{}, true)
	}
}

// RouteResponse delivers an incoming KindCallbackResponse to the waiting
// mailbox for requestID. A response for an unknown (already-completed,
// cancelled by Close, or never-issued) request is dropped silently.
func (e *Engine) RouteResponse(requestID uint32, result marshal.Arg, isException bool) {
	e.mu.Lock()
	s, ok := e.slots[requestID]
	e.mu.Unlock()
	if !ok {
		return
	}
	s.finish(result, isException)
}

// call posts one outbound frame of kind with the given payload, using tid's
// client-thread-id so lock ownership stays consistent across the round
// trip, and blocks for the correlated response.
func (e *Engine) call(tid lockmgr.ThreadID, kind wire.Kind, payload []byte) (marshal.Arg, error) {
	if e.isClosed() {
		return marshal.Arg{}, &cos.ErrClientCallback{Cause: fmt.Errorf("callback engine closed")}
	}

	id, s := e.newSlot()
	defer e.dropSlot(id)

	f := &wire.Frame{Kind: kind, ClientThreadID: tid.Client, RequestID: id, Payload: payload}
	if err := e.Send.Send(tid, f); err != nil {
		return marshal.Arg{}, err
	}

	ticker := time.NewTicker(e.pollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			if s.isExcept {
				return marshal.Arg{}, &cos.ErrClientCallback{Cause: fmt.Errorf("%v", s.result.Value)}
			}
			return s.result, nil
		case <-ticker.C:
			if e.isClosed() {
				return marshal.Arg{}, &cos.ErrClientCallback{Cause: fmt.Errorf("callback engine closed")}
			}
		}
	}
}

func (e *Engine) writeArgs(w *marshal.Writer, args []marshal.Arg) error {
	w.I32(int32(len(args)))
	for _, a := range args {
		if err := e.Marshal.WriteArg(w, a); err != nil {
			return err
		}
	}
	return nil
}

// Invoke calls a client callable by its client function ID.
func (e *Engine) Invoke(tid lockmgr.ThreadID, clientFuncID int64, args []marshal.Arg) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I64(clientFuncID)
	if err := e.writeArgs(w, args); err != nil {
		return marshal.Arg{}, err
	}
	return e.call(tid, wire.KindInvoke, w.Bytes())
}

// CallbackToCallable routes a callback directly to a client callable,
// bypassing object-attribute resolution.
func (e *Engine) CallbackToCallable(tid lockmgr.ThreadID, clientFuncID int64, args []marshal.Arg) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I64(clientFuncID)
	if err := e.writeArgs(w, args); err != nil {
		return marshal.Arg{}, err
	}
	return e.call(tid, wire.KindCallbackToCallable, w.Bytes())
}

// InvokeAndGetObject calls a client callable and additionally fetches the
// resulting client object in one round trip.
func (e *Engine) InvokeAndGetObject(tid lockmgr.ThreadID, clientFuncID int64, args []marshal.Arg) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I64(clientFuncID)
	if err := e.writeArgs(w, args); err != nil {
		return marshal.Arg{}, err
	}
	return e.call(tid, wire.KindInvokeAndGetObject, w.Bytes())
}

// Evaluate asks the client to evaluate/execute source, e.g. for scripted
// client-side setup.
func (e *Engine) Evaluate(tid lockmgr.ThreadID, source string) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.UTF16String(source)
	return e.call(tid, wire.KindEvaluate, w.Bytes())
}

// ObjectCallback invokes methodName on the client object named by
// clientObjID.
func (e *Engine) ObjectCallback(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID, methodName string, args []marshal.Arg) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I32(int32(clientObjID))
	w.UTF16String(methodName)
	if err := e.writeArgs(w, args); err != nil {
		return marshal.Arg{}, err
	}
	return e.call(tid, wire.KindObjectCallback, w.Bytes())
}

// GetAttribute fetches a named attribute off a client object.
func (e *Engine) GetAttribute(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID, name string) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I32(int32(clientObjID))
	w.UTF16String(name)
	return e.call(tid, wire.KindGetAttribute, w.Bytes())
}

// SetGlobal sets a client-side global variable.
func (e *Engine) SetGlobal(tid lockmgr.ThreadID, name string, value marshal.Arg) error {
	w := marshal.NewWriter()
	w.UTF16String(name)
	if err := e.Marshal.WriteArg(w, value); err != nil {
		return err
	}
	_, err := e.call(tid, wire.KindSetGlobal, w.Bytes())
	return err
}

// GetObject fetches a client object's value by its client object ID.
func (e *Engine) GetObject(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID) (marshal.Arg, error) {
	w := marshal.NewWriter()
	w.I32(int32(clientObjID))
	return e.call(tid, wire.KindGetObject, w.Bytes())
}

// DropClientRef tells the client it may release its own reference to
// clientObjID, used when a host-side proxy wrapping it is finalized.
func (e *Engine) DropClientRef(tid lockmgr.ThreadID, clientObjID marshal.ClientObjectID) error {
	w := marshal.NewWriter()
	w.I32(int32(clientObjID))
	_, err := e.call(tid, wire.KindCallbackDropRef, w.Bytes())
	return err
}
