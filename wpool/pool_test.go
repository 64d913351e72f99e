package wpool_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

func TestDirectDispatchRunsInline(t *testing.T) {
	p := wpool.New(wpool.Direct, 4)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	reply := p.Dispatch(tid, func() *wire.Frame {
		return &wire.Frame{Kind: wire.KindAck}
	})
	if reply.Kind != wire.KindAck {
		t.Fatalf("expected ack, got %s", reply.Kind)
	}
}

func TestPooledDispatchReusesWorkers(t *testing.T) {
	p := wpool.New(wpool.Pooled, 2)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	for i := 0; i < 10; i++ {
		reply := p.Dispatch(tid, func() *wire.Frame {
			return &wire.Frame{Kind: wire.KindAck}
		})
		if reply.Kind != wire.KindAck {
			t.Fatalf("call %d: expected ack, got %s", i, reply.Kind)
		}
	}
}

func TestSameVirtualThreadAcrossPooledCalls(t *testing.T) {
	p := wpool.New(wpool.Pooled, 1)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 7}

	vt1 := p.VirtualThread(tid)
	p.Dispatch(tid, func() *wire.Frame { return &wire.Frame{Kind: wire.KindAck} })
	vt2 := p.VirtualThread(tid)
	if vt1 != vt2 {
		t.Fatalf("expected the same VirtualThread across calls from one client-thread-id")
	}
}

func TestDispatchAsyncReentrancyDoesNotDeadlock(t *testing.T) {
	p := wpool.New(wpool.Pooled, 2)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	locks := lockmgr.New()

	if err := locks.AcquireGlobal(tid); err != nil {
		t.Fatalf("AcquireGlobal: %v", err)
	}

	var reentered int32
	fut := p.DispatchAsync(tid, func() *wire.Frame {
		// Simulate a host method that calls back into the client, which in
		// turn calls another host method on the same logical thread: this
		// only works if releasing/reacquiring the global lock is reentrant
		// per logical thread, not per goroutine.
		err := locks.RunWithoutGlobalLock(tid, func() error {
			atomic.StoreInt32(&reentered, 1)
			return nil
		})
		if err != nil {
			return &wire.Frame{Kind: wire.KindException}
		}
		return &wire.Frame{Kind: wire.KindAck}
	})

	reply, err := fut.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reply.Kind != wire.KindAck {
		t.Fatalf("expected ack, got %s", reply.Kind)
	}
	if atomic.LoadInt32(&reentered) != 1 {
		t.Fatalf("expected the re-entrant section to run")
	}
	if err := locks.ReleaseGlobal(tid); err != nil {
		t.Fatalf("ReleaseGlobal: %v", err)
	}
}

func TestCloseWithIdleWorkerReturns(t *testing.T) {
	p := wpool.New(wpool.Pooled, 4)
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	p.Dispatch(tid, func() *wire.Frame { return &wire.Frame{Kind: wire.KindAck} })
	p.Close() // should not panic or hang
}
