package callback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/callback"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

// fakeSender records every frame it's asked to send and lets a test route
// a canned response back through the engine, standing in for the
// connection supervisor's real transport.
type fakeSender struct {
	mu      sync.Mutex
	sent    []*wire.Frame
	engine  *callback.Engine
	respond func(f *wire.Frame) (marshal.Arg, bool)
}

func (s *fakeSender) Send(tid lockmgr.ThreadID, f *wire.Frame) error {
	s.mu.Lock()
	s.sent = append(s.sent, f)
	s.mu.Unlock()
	if s.respond != nil {
		go func() {
			result, isExcept := s.respond(f)
			s.engine.RouteResponse(f.RequestID, result, isExcept)
		}()
	}
	return nil
}

func newTestEngine(t *testing.T) (*callback.Engine, *fakeSender) {
	t.Helper()
	reg := typereg.New(typereg.NewStaticSource())
	handles := handle.New(1)
	m := marshal.New(reg, handles)
	sender := &fakeSender{}
	e := callback.New(reg, handles, m, sender)
	e.PollInterval = 5 * time.Millisecond
	sender.engine = e
	return e, sender
}

func TestInvokeRoundTrip(t *testing.T) {
	e, sender := newTestEngine(t)
	sender.respond = func(f *wire.Frame) (marshal.Arg, bool) {
		return marshal.Arg{Kind: marshal.ArgValue, Value: int32(42)}, false
	}

	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	result, err := e.Invoke(tid, 7, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Value.(int32) != 42 {
		t.Fatalf("expected 42, got %v", result.Value)
	}
	if len(sender.sent) != 1 || sender.sent[0].Kind != wire.KindInvoke {
		t.Fatalf("expected one invoke frame, got %+v", sender.sent)
	}
}

func TestInvokeExceptionPropagates(t *testing.T) {
	e, sender := newTestEngine(t)
	sender.respond = func(f *wire.Frame) (marshal.Arg, bool) {
		return marshal.Arg{Kind: marshal.ArgValue, Value: "boom"}, true
	}

	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	if _, err := e.Invoke(tid, 7, nil); err == nil {
		t.Fatalf("expected an error from an exception response")
	}
}

func TestCloseCancelsInFlightCalls(t *testing.T) {
	e, _ := newTestEngine(t)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	done := make(chan error, 1)
	go func() {
		_, err := e.Invoke(tid, 1, nil)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	e.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected cancellation error after Close")
		}
	case <-time.After(time.Second):
		t.Fatalf("Invoke did not unblock after Close")
	}
}

func TestGetCallbackHandlePicksWellKnownInterfaceByArity(t *testing.T) {
	e, _ := newTestEngine(t)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	typeID, h, err := e.GetCallbackHandle(tid, 99, typereg.VoidTypeID, 1)
	if err != nil {
		t.Fatalf("GetCallbackHandle: %v", err)
	}
	if typeID != e.Reg.FunctionTypeID() {
		t.Fatalf("expected Function interface for a unary callback, got %d", typeID)
	}
	if h == handle.Null {
		t.Fatalf("expected a non-null handle")
	}
}

func TestGetProxyMintsDistinctHandles(t *testing.T) {
	e, _ := newTestEngine(t)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	src := typereg.NewStaticSource()
	_ = src // the bootstrapped Runnable interface is enough for this test
	ifaceID := e.Reg.RunnableTypeID()

	_, h1, err := e.GetProxy(tid, marshal.ClientObjectID(5), ifaceID)
	if err != nil {
		t.Fatalf("GetProxy: %v", err)
	}
	_, h2, err := e.GetProxy(tid, marshal.ClientObjectID(5), ifaceID)
	if err != nil {
		t.Fatalf("GetProxy: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected two distinct proxy handles for two GetProxy calls")
	}
}
