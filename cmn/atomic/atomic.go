// Package atomic provides lightly-typed wrappers over sync/atomic so call
// sites read as values rather than pointer-and-function pairs.
package atomic

import "sync/atomic"

type (
	Bool   struct{ v atomic.Bool }
	Int32  struct{ v atomic.Int32 }
	Int64  struct{ v atomic.Int64 }
	Uint32 struct{ v atomic.Uint32 }
	Uint64 struct{ v atomic.Uint64 }
)

func (b *Bool) Load() bool      { return b.v.Load() }
func (b *Bool) Store(val bool)  { b.v.Store(val) }
func (b *Bool) CAS(old, nw bool) bool { return b.v.CompareAndSwap(old, nw) }

func (i *Int32) Load() int32         { return i.v.Load() }
func (i *Int32) Store(val int32)     { i.v.Store(val) }
func (i *Int32) Add(delta int32) int32 { return i.v.Add(delta) }
func (i *Int32) Inc() int32          { return i.v.Add(1) }
func (i *Int32) Dec() int32          { return i.v.Add(-1) }
func (i *Int32) CAS(old, nw int32) bool { return i.v.CompareAndSwap(old, nw) }

func (i *Int64) Load() int64         { return i.v.Load() }
func (i *Int64) Store(val int64)     { i.v.Store(val) }
func (i *Int64) Add(delta int64) int64 { return i.v.Add(delta) }
func (i *Int64) Inc() int64          { return i.v.Add(1) }
func (i *Int64) Dec() int64          { return i.v.Add(-1) }
func (i *Int64) CAS(old, nw int64) bool { return i.v.CompareAndSwap(old, nw) }

func (u *Uint32) Load() uint32          { return u.v.Load() }
func (u *Uint32) Store(val uint32)      { u.v.Store(val) }
func (u *Uint32) Add(delta uint32) uint32 { return u.v.Add(delta) }
func (u *Uint32) CAS(old, nw uint32) bool { return u.v.CompareAndSwap(old, nw) }

func (u *Uint64) Load() uint64          { return u.v.Load() }
func (u *Uint64) Store(val uint64)      { u.v.Store(val) }
func (u *Uint64) Add(delta uint64) uint64 { return u.v.Add(delta) }
func (u *Uint64) Dec() uint64           { return u.v.Add(^uint64(0)) }
func (u *Uint64) CAS(old, nw uint64) bool { return u.v.CompareAndSwap(old, nw) }
