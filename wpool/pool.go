// Package wpool implements the dispatcher's two execution modes and the
// async method-caller machinery: direct inline handling, a bounded free-list
// of pooled workers mapped onto per-client-thread virtual threads, and an
// unbounded free-list of method-caller goroutines that back async calls with
// futures.
//
// Grounded on the teacher's mountpath-jogger pattern (mirror.XactCopy: a
// fixed set of long-lived goroutines, each with its own inbox channel, work
// handed off and load-balanced across them rather than spawned per request)
// generalized from a fixed jogger-per-mountpath set to a grow-on-demand,
// shrink-on-idle free list, since this engine's worker count is runtime
// configurable rather than tied to a fixed mountpath count.
package wpool

import (
	"sync"

	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/wire"
)

// Mode selects how the dispatcher's reader thread handles an incoming
// message.
type Mode int

const (
	// Direct: the reader handles every message inline, on its own goroutine.
	Direct Mode = iota
	// Pooled: the reader hands the message to a worker drawn from a bounded
	// free list, enabling client->host->client->host re-entrancy without
	// the reader itself blocking on a nested call.
	Pooled
)

func (m Mode) String() string {
	if m == Pooled {
		return "pooled"
	}
	return "direct"
}

// Job is one unit of dispatch work: running it produces the reply frame to
// send back (or nil for messages with no reply, e.g. a dropped async job on
// a closed connection).
type Job func() *wire.Frame

// job is a Job together with the logical thread it runs as and where to
// deliver its result.
type job struct {
	vt    *VirtualThread
	fn    Job
	reply chan *wire.Frame // non-nil for synchronous (pooled) dispatch
	fut   *Future          // non-nil for async dispatch
}

// worker is one long-lived goroutine drawn from either the bounded pooled
// free list or the unbounded method-caller free list; which free list it
// returns to on completion is fixed at creation.
type worker struct {
	inbox   chan job
	release func(*worker)
}

func newWorker(release func(*worker)) *worker {
	w := &worker{inbox: make(chan job, 1), release: release}
	go w.loop()
	return w
}

func (w *worker) loop() {
	for j := range w.inbox {
		j.vt.enter()
		result := j.fn()
		j.vt.exit()

		switch {
		case j.reply != nil:
			j.reply <- result
		case j.fut != nil:
			j.fut.complete(result, nil)
		}
		w.release(w)
	}
}

func (w *worker) stop() { close(w.inbox) }

// Pool owns one connection's dispatch mode, its virtual-thread table, the
// pooled mode's bounded worker free list, and the unbounded method-caller
// free list every mode uses for async calls.
type Pool struct {
	mode Mode

	mu       sync.Mutex
	closed   bool
	threads  map[lockmgr.ThreadID]*VirtualThread
	freeW    []*worker // pooled-mode worker free list, bounded by maxFree
	maxFree  int
	liveW    int
	freeC    []*worker // method-caller free list, unbounded
	liveC    int
}

// New builds a Pool in the given mode. maxFree bounds the pooled-mode
// worker free list (ignored in Direct mode); a worker returned to a full
// free list is stopped rather than retained.
func New(mode Mode, maxFree int) *Pool {
	if maxFree <= 0 {
		maxFree = 1
	}
	return &Pool{
		mode:    mode,
		threads: make(map[lockmgr.ThreadID]*VirtualThread),
		maxFree: maxFree,
	}
}

// Mode reports the pool's dispatch mode.
func (p *Pool) Mode() Mode { return p.mode }

// VirtualThread looks up or creates the persistent logical-thread identity
// for tid, so that lock ownership and re-entrancy bookkeeping survive a
// pooled worker being recycled between calls from the same client thread.
func (p *Pool) VirtualThread(tid lockmgr.ThreadID) *VirtualThread {
	p.mu.Lock()
	defer p.mu.Unlock()
	vt, ok := p.threads[tid]
	if !ok {
		vt = &VirtualThread{TID: tid}
		p.threads[tid] = vt
	}
	return vt
}

// DropVirtualThread forgets tid's logical-thread state, for connection
// teardown or an explicit client-thread exit.
func (p *Pool) DropVirtualThread(tid lockmgr.ThreadID) {
	p.mu.Lock()
	delete(p.threads, tid)
	p.mu.Unlock()
}

// Dispatch runs fn as tid's logical thread and returns its reply frame. In
// Direct mode it runs inline on the caller's own goroutine; in Pooled mode
// it is handed to a worker drawn from (or added to) the bounded free list.
func (p *Pool) Dispatch(tid lockmgr.ThreadID, fn Job) *wire.Frame {
	vt := p.VirtualThread(tid)
	if p.mode == Direct {
		vt.enter()
		defer vt.exit()
		return fn()
	}

	w := p.acquireWorker()
	reply := make(chan *wire.Frame, 1)
	w.inbox <- job{vt: vt, fn: fn, reply: reply}
	return <-reply
}

// DispatchAsync runs fn as tid's logical thread on a dedicated method-caller
// goroutine drawn from the unbounded free list, and immediately returns a
// Future the client can poll or wait on.
func (p *Pool) DispatchAsync(tid lockmgr.ThreadID, fn Job) *Future {
	vt := p.VirtualThread(tid)
	fut := newFuture()
	c := p.acquireCaller()
	c.inbox <- job{vt: vt, fn: fn, fut: fut}
	return fut
}

func (p *Pool) acquireWorker() *worker {
	p.mu.Lock()
	if n := len(p.freeW); n > 0 {
		w := p.freeW[n-1]
		p.freeW = p.freeW[:n-1]
		p.mu.Unlock()
		return w
	}
	p.liveW++
	p.mu.Unlock()
	return newWorker(p.releaseWorker)
}

func (p *Pool) releaseWorker(w *worker) {
	p.mu.Lock()
	if p.closed || len(p.freeW) >= p.maxFree {
		p.liveW--
		p.mu.Unlock()
		w.stop()
		return
	}
	p.freeW = append(p.freeW, w)
	p.mu.Unlock()
}

func (p *Pool) acquireCaller() *worker {
	p.mu.Lock()
	if n := len(p.freeC); n > 0 {
		c := p.freeC[n-1]
		p.freeC = p.freeC[:n-1]
		p.mu.Unlock()
		return c
	}
	p.liveC++
	p.mu.Unlock()
	return newWorker(p.releaseCaller)
}

func (p *Pool) releaseCaller(c *worker) {
	p.mu.Lock()
	if p.closed {
		p.liveC--
		p.mu.Unlock()
		c.stop()
		return
	}
	p.freeC = append(p.freeC, c)
	p.mu.Unlock()
}

// Close drains every idle worker and method caller and clears the virtual-
// thread table, for connection teardown on transport close. In-flight jobs
// are left to finish; their workers see p.closed on release and stop
// instead of returning to a free list.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	freeW, freeC := p.freeW, p.freeC
	p.freeW, p.freeC = nil, nil
	p.threads = make(map[lockmgr.ThreadID]*VirtualThread)
	n := len(freeW) + len(freeC)
	p.mu.Unlock()

	for _, w := range freeW {
		w.stop()
	}
	for _, c := range freeC {
		c.stop()
	}
	if n > 0 {
		nlog.Infof("wpool: closed, stopped %d idle worker(s)", n)
	}
}
