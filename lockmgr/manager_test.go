package lockmgr_test

import (
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/lockmgr"
)

func TestReentrantAcquireRelease(t *testing.T) {
	m := lockmgr.New()
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}

	if err := m.Acquire("a", tid); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := m.Acquire("a", tid); err != nil {
		t.Fatalf("reentrant Acquire: %v", err)
	}
	if err := m.Release("a", tid); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := m.Release("a", tid); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if n := m.HoldCount("a", tid); n != 0 {
		t.Fatalf("expected hold count 0 after fully releasing, got %d", n)
	}
}

func TestReleaseWithoutHoldingFails(t *testing.T) {
	m := lockmgr.New()
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	if err := m.Release("a", tid); err == nil {
		t.Fatalf("expected an error releasing a lock never held")
	}
}

func TestSecondClientBlocksUntilReleased(t *testing.T) {
	m := lockmgr.New()
	t1 := lockmgr.ThreadID{Conn: "c1", Client: 1}
	t2 := lockmgr.ThreadID{Conn: "c1", Client: 2}

	if err := m.Acquire("a", t1); err != nil {
		t.Fatalf("Acquire by t1: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Acquire("a", t2) }()

	select {
	case <-done:
		t.Fatalf("expected t2's Acquire to block while t1 holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	if err := m.Release("a", t1); err != nil {
		t.Fatalf("Release by t1: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2's Acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2's Acquire never unblocked after t1 released")
	}
}

func TestOpposingOrderDeadlockDetected(t *testing.T) {
	m := lockmgr.New()
	t1 := lockmgr.ThreadID{Conn: "c1", Client: 1}
	t2 := lockmgr.ThreadID{Conn: "c1", Client: 2}

	if err := m.Acquire("a", t1); err != nil {
		t.Fatalf("t1 Acquire a: %v", err)
	}
	if err := m.Acquire("b", t2); err != nil {
		t.Fatalf("t2 Acquire b: %v", err)
	}

	// t2 waits on a, held by t1: no cycle yet.
	t2Done := make(chan error, 1)
	go func() { t2Done <- m.Acquire("a", t2) }()
	time.Sleep(50 * time.Millisecond)

	// t1 now waits on b, held by t2, which is waiting on a, held by t1: cycle.
	err := m.Acquire("b", t1)
	if err == nil {
		t.Fatalf("expected a deadlock error for the opposing-order acquire")
	}
	if _, ok := err.(*cos.ErrDeadlock); !ok {
		t.Fatalf("expected *cos.ErrDeadlock, got %T: %v", err, err)
	}

	if err := m.Release("a", t1); err != nil {
		t.Fatalf("t1 Release a: %v", err)
	}
	if err := <-t2Done; err != nil {
		t.Fatalf("t2's pending Acquire a: %v", err)
	}
}

func TestAcquireSharedRejected(t *testing.T) {
	m := lockmgr.New()
	tid := lockmgr.ThreadID{Conn: "c1", Client: 1}
	if err := m.AcquireShared("a", tid); err != lockmgr.ErrSharedUnsupported {
		t.Fatalf("expected ErrSharedUnsupported, got %v", err)
	}
}

func TestRunWithoutGlobalLockReleasesAndReacquires(t *testing.T) {
	m := lockmgr.New()
	t1 := lockmgr.ThreadID{Conn: "c1", Client: 1}
	t2 := lockmgr.ThreadID{Conn: "c1", Client: 2}

	if err := m.AcquireGlobal(t1); err != nil {
		t.Fatalf("AcquireGlobal: %v", err)
	}
	if err := m.AcquireGlobal(t1); err != nil { // reentrant, depth 2
		t.Fatalf("reentrant AcquireGlobal: %v", err)
	}

	var otherAcquired bool
	err := m.RunWithoutGlobalLock(t1, func() error {
		if err := m.AcquireGlobal(t2); err != nil {
			return err
		}
		otherAcquired = true
		return m.ReleaseGlobal(t2)
	})
	if err != nil {
		t.Fatalf("RunWithoutGlobalLock: %v", err)
	}
	if !otherAcquired {
		t.Fatalf("expected t2 to acquire the global lock while t1 had released it")
	}
	if n := m.HoldCount("\x00\x00global\x00\x00", t1); n != 2 {
		t.Fatalf("expected t1's global hold count restored to 2, got %d", n)
	}
}

func TestCloseWakesBlockedWaiters(t *testing.T) {
	m := lockmgr.New()
	t1 := lockmgr.ThreadID{Conn: "c1", Client: 1}
	t2 := lockmgr.ThreadID{Conn: "c1", Client: 2}

	if err := m.Acquire("a", t1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- m.Acquire("a", t2) }()
	time.Sleep(50 * time.Millisecond)

	m.Close()
	select {
	case err := <-done:
		if err != lockmgr.ErrClosed {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not wake the blocked Acquire")
	}
}
