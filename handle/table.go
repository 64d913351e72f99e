// Package handle implements the ref-counted handle table: a process-local,
// thread-safe mapping between opaque 64-bit handles and live host objects,
// plus an inverse identity-keyed lookup used to dedupe repeated
// marshalling of "the same" object.
package handle

import (
	"sync"
	"sync/atomic"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/debug"
	"github.com/pjrmi/pjrmi-go/cmn/xoshiro256"
)

// Handle names a host object across the wire. 0 denotes null.
type Handle uint64

// Null is the reserved handle value for the null reference.
const Null Handle = 0

type record struct {
	handle Handle
	obj    any
	id     identity
	refs   int64
}

// Table is one connection's handle table. Created fresh per connection and
// wiped on teardown via Clear.
type Table struct {
	mu       sync.Mutex
	byHandle map[Handle]*record
	byIdent  map[uint64][]*record
	next     uint64
}

// New creates an empty table whose first allocated handle is derived from
// salt, so that handles between sibling connections rarely collide (purely
// a debugging/log-correlation convenience; handles are never compared
// across connections).
func New(salt uint64) *Table {
	seed := xoshiro256.Hash(salt)
	if seed == 0 {
		seed = 1 // never hand out the reserved null handle as a starting point
	}
	return &Table{
		byHandle: make(map[Handle]*record),
		byIdent:  make(map[uint64][]*record),
		next:     seed,
	}
}

func (t *Table) allocHandle() Handle {
	for {
		h := Handle(atomic.AddUint64(&t.next, 1))
		if h != Null {
			return h
		}
	}
}

// AddRefObj returns obj's handle, allocating one on first sight (keyed by
// identity) and otherwise incrementing its reference count. A nil obj
// returns Null without allocating.
func (t *Table) AddRefObj(obj any) Handle {
	if obj == nil {
		return Null
	}
	id := identityOf(obj)

	t.mu.Lock()
	defer t.mu.Unlock()

	h := id.hash()
	for _, r := range t.byIdent[h] {
		if r.id.equal(id) {
			r.refs++
			return r.handle
		}
	}

	handle := t.allocHandle()
	r := &record{handle: handle, obj: obj, id: id, refs: 1}
	t.byHandle[handle] = r
	t.byIdent[h] = append(t.byIdent[h], r)
	return handle
}

// AddRefHandle increments the reference count of an already-live handle.
func (t *Table) AddRefHandle(h Handle) error {
	if h == Null {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byHandle[h]
	if !ok {
		return cos.NewErrNotFound("handle %d", h)
	}
	r.refs++
	return nil
}

// DropRef decrements h's reference count and, on reaching zero, erases both
// the forward and inverse mappings.
func (t *Table) DropRef(h Handle) error {
	if h == Null {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.byHandle[h]
	if !ok {
		return cos.NewErrNotFound("handle %d", h)
	}
	r.refs--
	debug.Assert(r.refs >= 0, "handle refcount underflow")
	if r.refs > 0 {
		return nil
	}

	delete(t.byHandle, h)
	idHash := r.id.hash()
	bucket := t.byIdent[idHash]
	for i, rr := range bucket {
		if rr == r {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(t.byIdent, idHash)
	} else {
		t.byIdent[idHash] = bucket
	}
	return nil
}

// Lookup returns the object behind h, or (nil, true) for the null handle.
// The bool result is false only when h is non-zero and unknown.
func (t *Table) Lookup(h Handle) (any, bool) {
	if h == Null {
		return nil, true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byHandle[h]
	if !ok {
		return nil, false
	}
	return r.obj, true
}

// RefCount reports h's current reference count, for diagnostics and tests.
func (t *Table) RefCount(h Handle) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byHandle[h]
	if !ok {
		return 0, false
	}
	return r.refs, true
}

// Clear wipes every mapping, used on connection teardown.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byHandle = make(map[Handle]*record)
	t.byIdent = make(map[uint64][]*record)
}

// Len reports the number of live handles, for diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byHandle)
}
