// Package lockmgr implements the named lock manager: exclusive, reentrant
// locks keyed by logical thread (not OS thread), a waits-for-graph deadlock
// detector, and a distinguished global lock with nested release/reacquire
// primitives.
//
// Grounded on the teacher's per-name lock cache pattern (core's "nlc"
// name-locker keyed by a string "uname", offering TryLock/Lock/Unlock),
// generalized here from shared-or-exclusive to exclusive-only and extended
// with deadlock detection, since the component this system needs has no
// concept of a shared/read lock.
package lockmgr

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/debug"
)

// globalLockName is a reserved named-lock key that can never collide with a
// client-supplied lock name (those arrive as arbitrary UTF-16 strings from
// LOCK frames; this key is not valid UTF-16 and so is never reachable from
// the wire).
const globalLockName = "\x00\x00global\x00\x00"

// ErrClosed is returned to any acquisition in progress or newly attempted
// once the owning Manager has been closed (connection teardown).
var ErrClosed = errors.New("lockmgr: manager closed")

// ErrSharedUnsupported is returned by AcquireShared: this manager supports
// exclusive locks only.
var ErrSharedUnsupported = errors.New("lockmgr: shared locks are not supported")

type lockState struct {
	owner *ThreadID
	count int
}

// Manager owns a set of named exclusive locks shared across every
// connection's logical threads. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	cond     *sync.Cond
	locks    map[string]*lockState
	waitsFor map[ThreadID]string // thread -> name of the lock it is blocked on
	closed   bool
}

// New creates an empty lock manager.
func New() *Manager {
	m := &Manager{
		locks:    make(map[string]*lockState),
		waitsFor: make(map[ThreadID]string),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire takes the named exclusive lock as tid, reentrant per logical
// thread. Blocks if another thread holds it, unless doing so would close a
// cycle in the waits-for graph, in which case it fails immediately with
// *cos.ErrDeadlock rather than blocking forever.
func (m *Manager) Acquire(name string, tid ThreadID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(name, tid)
}

func (m *Manager) acquireLocked(name string, tid ThreadID) error {
	for {
		if m.closed {
			return ErrClosed
		}
		ls, ok := m.locks[name]
		if !ok {
			ls = &lockState{}
			m.locks[name] = ls
		}
		if ls.owner == nil {
			owner := tid
			ls.owner = &owner
			ls.count = 1
			delete(m.waitsFor, tid)
			return nil
		}
		if *ls.owner == tid {
			ls.count++
			return nil
		}

		m.waitsFor[tid] = name
		if m.hasCycle(tid) {
			delete(m.waitsFor, tid)
			return &cos.ErrDeadlock{Reason: "acquiring \"" + name + "\" as " + tid.String() + " would close a waits-for cycle"}
		}
		m.cond.Wait()
	}
}

// hasCycle reports whether, with tid now waiting on the lock named
// m.waitsFor[tid], following the waits-for graph from tid's target lock's
// owner eventually leads back to tid.
func (m *Manager) hasCycle(start ThreadID) bool {
	visited := map[ThreadID]bool{start: true}
	name := m.waitsFor[start]
	for {
		ls, ok := m.locks[name]
		if !ok || ls.owner == nil {
			return false
		}
		owner := *ls.owner
		if owner == start {
			return true
		}
		if visited[owner] {
			return false
		}
		visited[owner] = true

		next, waiting := m.waitsFor[owner]
		if !waiting {
			return false
		}
		name = next
	}
}

// Release releases one level of tid's reentrant hold on name. Returns an
// error if tid does not currently hold it.
func (m *Manager) Release(name string, tid ThreadID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked(name, tid)
}

func (m *Manager) releaseLocked(name string, tid ThreadID) error {
	ls, ok := m.locks[name]
	if !ok || ls.owner == nil || *ls.owner != tid {
		return errors.Errorf("lockmgr: %s does not hold lock %q", tid, name)
	}
	ls.count--
	debug.Assert(ls.count >= 0, "lock refcount underflow")
	if ls.count == 0 {
		ls.owner = nil
		delete(m.locks, name)
		m.cond.Broadcast()
	}
	return nil
}

// HoldCount reports tid's current reentrant hold count on name (0 if not
// held), for use by the "run/sleep without global lock" primitives.
func (m *Manager) HoldCount(name string, tid ThreadID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.locks[name]
	if !ok || ls.owner == nil || *ls.owner != tid {
		return 0
	}
	return ls.count
}

// AcquireShared always fails: this manager supports exclusive locks only.
func (*Manager) AcquireShared(string, ThreadID) error { return ErrSharedUnsupported }

//
// global lock
//

// AcquireGlobal takes the global lock, shared by every logical thread of
// every connection that uses this Manager.
func (m *Manager) AcquireGlobal(tid ThreadID) error { return m.Acquire(globalLockName, tid) }

// ReleaseGlobal releases one level of the global lock.
func (m *Manager) ReleaseGlobal(tid ThreadID) error { return m.Release(globalLockName, tid) }

// RunWithoutGlobalLock unwinds tid's entire reentrant hold on the global
// lock, runs fn, then reacquires the same count before returning. If fn
// itself returns an error, that error is still returned once the lock is
// back in its original state (unless reacquisition deadlocks, in which case
// the deadlock error takes precedence, matching "global-lock acquisition is
// strictly nested per logical thread").
func (m *Manager) RunWithoutGlobalLock(tid ThreadID, fn func() error) error {
	n := m.HoldCount(globalLockName, tid)
	for i := 0; i < n; i++ {
		if err := m.ReleaseGlobal(tid); err != nil {
			return err
		}
	}

	ferr := fn()

	for i := 0; i < n; i++ {
		if err := m.AcquireGlobal(tid); err != nil {
			return err
		}
	}
	return ferr
}

// SleepWithoutGlobalLock unwinds tid's hold on the global lock for the
// duration of the sleep, then reacquires it.
func (m *Manager) SleepWithoutGlobalLock(tid ThreadID, d time.Duration) error {
	return m.RunWithoutGlobalLock(tid, func() error {
		time.Sleep(d)
		return nil
	})
}

// Close wakes every blocked Acquire with ErrClosed, for connection
// teardown. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cond.Broadcast()
}

// ReleaseAll drops every lock currently held by tid, for connection
// teardown cleanup of a worker that exits mid-hold.
func (m *Manager) ReleaseAll(tid ThreadID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, ls := range m.locks {
		if ls.owner != nil && *ls.owner == tid {
			ls.owner = nil
			ls.count = 0
			delete(m.locks, name)
		}
	}
	m.cond.Broadcast()
}
