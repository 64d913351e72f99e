// Package hk provides a mechanism for registering cleanup functions which
// are invoked at specified intervals: one goroutine, one timer, and a
// min-heap of registered actions ordered by next-run time. Components that
// need periodic maintenance register here instead of spinning up their own
// ticker; in this module that is the shared-memory janitor.
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/debug"
)

const (
	// DefaultInterval is a conventional interval for callers to pass to
	// Reg; Reg itself has no default and always takes an interval.
	DefaultInterval = time.Minute

	minInterval = time.Second
)

// CleanupFunc runs one housekeeping pass and returns the delay until the
// next one. Returning 0 re-arms at the previously registered interval;
// returning a negative duration unregisters the action.
type CleanupFunc func() time.Duration

type action struct {
	f        CleanupFunc
	name     string
	interval time.Duration
	due      time.Time
	index    int // heap index, maintained by container/heap
}

type actionHeap []*action

func (h actionHeap) Len() int            { return len(h) }
func (h actionHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h actionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *actionHeap) Push(x any) {
	a := x.(*action)
	a.index = len(*h)
	*h = append(*h, a)
}

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	*h = old[:n-1]
	return a
}

// HK is one housekeeper: a single timer goroutine driving a set of
// registered CleanupFuncs.
type HK struct {
	mu       sync.Mutex
	byName   map[string]*action
	pq       actionHeap
	wakeup   chan struct{}
	started  chan struct{}
	startOnce sync.Once
	stopCh   chan struct{}
	stopOnce sync.Once
}

// DefaultHK is the process-wide housekeeper; most callers use this instead
// of constructing their own.
var DefaultHK = New()

// New creates an unstarted housekeeper. Call Run to start it.
func New() *HK {
	return &HK{
		byName:  make(map[string]*action),
		wakeup:  make(chan struct{}, 1),
		started: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// TestInit resets the package-level DefaultHK, for use at the top of a test
// suite that wants a clean housekeeper independent of prior tests' state.
func TestInit() {
	DefaultHK = New()
}

// Reg registers f to run roughly every interval, starting one interval from
// now. Re-registering an existing name replaces its func and interval.
func (hk *HK) Reg(name string, f CleanupFunc, interval time.Duration) {
	if interval < minInterval {
		interval = minInterval
	}
	a := &action{f: f, name: name, interval: interval, due: time.Now().Add(interval)}

	hk.mu.Lock()
	if old, ok := hk.byName[name]; ok {
		heap.Remove(&hk.pq, old.index)
	}
	hk.byName[name] = a
	heap.Push(&hk.pq, a)
	hk.mu.Unlock()

	hk.nudge()
}

// Unreg removes a previously registered action; a no-op if name is unknown.
func (hk *HK) Unreg(name string) {
	hk.mu.Lock()
	a, ok := hk.byName[name]
	if ok {
		delete(hk.byName, name)
		heap.Remove(&hk.pq, a.index)
	}
	hk.mu.Unlock()
}

func (hk *HK) nudge() {
	select {
	case hk.wakeup <- struct{}{}:
	default:
	}
}

// WaitStarted blocks until Run has entered its main loop. Safe to call
// before or after Run's goroutine begins.
func (hk *HK) WaitStarted() { <-hk.started }

// Run drives the housekeeper's main loop; it returns only after Stop is
// called. Callers typically invoke this via `go hk.DefaultHK.Run()`.
func (hk *HK) Run() {
	hk.startOnce.Do(func() { close(hk.started) })

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		d := hk.nextDelay()
		timer.Reset(d)

		select {
		case <-timer.C:
			hk.runDue()
		case <-hk.wakeup:
			if !timer.Stop() {
				<-timer.C
			}
		case <-hk.stopCh:
			return
		}
	}
}

// Stop terminates the main loop; Run returns soon after.
func (hk *HK) Stop() {
	hk.stopOnce.Do(func() { close(hk.stopCh) })
}

func (hk *HK) nextDelay() time.Duration {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if len(hk.pq) == 0 {
		return time.Hour
	}
	d := time.Until(hk.pq[0].due)
	if d < 0 {
		return 0
	}
	return d
}

func (hk *HK) runDue() {
	now := time.Now()
	var due []*action

	hk.mu.Lock()
	for len(hk.pq) > 0 && !hk.pq[0].due.After(now) {
		due = append(due, heap.Pop(&hk.pq).(*action))
	}
	hk.mu.Unlock()

	for _, a := range due {
		hk.runOne(a)
	}
}

func (hk *HK) runOne(a *action) {
	debug.Assert(a.f != nil)
	next := a.f()
	switch {
	case next < 0:
		hk.mu.Lock()
		delete(hk.byName, a.name)
		hk.mu.Unlock()
	default:
		if next == 0 {
			next = a.interval
		}
		a.due = time.Now().Add(next)
		hk.mu.Lock()
		if _, ok := hk.byName[a.name]; ok {
			heap.Push(&hk.pq, a)
		}
		hk.mu.Unlock()
	}
}

//
// package-level convenience wrappers over DefaultHK
//

func Reg(name string, f CleanupFunc, interval time.Duration) { DefaultHK.Reg(name, f, interval) }
func Unreg(name string)                                      { DefaultHK.Unreg(name) }
func WaitStarted()                                           { DefaultHK.WaitStarted() }
