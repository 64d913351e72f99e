package wpool

import (
	"errors"
	"sync"
	"time"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/wire"
)

// ErrAlreadyRetrieved is returned by Wait when a Future's single result has
// already been consumed by a prior call: a Future invalidates on first
// retrieval, matching the host's async-call semantics.
var ErrAlreadyRetrieved = errors.New("wpool: future result already retrieved")

// Future holds the single pending result of one async method call. It is
// completed exactly once (by the method-caller worker that ran the call)
// and retrieved at most once (by whichever goroutine handles the client's
// KindFutureGet request).
type Future struct {
	once   sync.Once
	done   chan struct{}
	result *wire.Frame
	err    error

	mu        sync.Mutex
	retrieved bool
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// complete delivers the async job's outcome, waking any waiter. Only the
// first call has an effect.
func (f *Future) complete(result *wire.Frame, err error) {
	f.once.Do(func() {
		f.result, f.err = result, err
		close(f.done)
	})
}

// Wait blocks for the result, up to timeout (or indefinitely if timeout <=
// 0), and consumes it: a second call, whether it raced the first or
// followed it, returns ErrAlreadyRetrieved rather than the same value
// again. A timed-out wait may still be retrieved later; it is only the
// successful retrieval that invalidates the Future.
func (f *Future) Wait(timeout time.Duration) (*wire.Frame, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-f.done:
		return f.retrieve()
	case <-timer:
		return nil, &cos.ErrFutureTimeout{}
	}
}

// Poll returns immediately: (result, true) if the async call has already
// completed (consuming it, like Wait), or (nil, false) if it is still
// running or its result was already retrieved.
func (f *Future) Poll() (*wire.Frame, bool) {
	select {
	case <-f.done:
		r, err := f.retrieve()
		if err != nil {
			return nil, false
		}
		return r, true
	default:
		return nil, false
	}
}

func (f *Future) retrieve() (*wire.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retrieved {
		return nil, ErrAlreadyRetrieved
	}
	f.retrieved = true
	return f.result, f.err
}
