package conn

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pjrmi/pjrmi-go/callback"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/dispatch"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

// Session is one connection's live state: its transport, its Dispatcher and
// worker Pool, its callback Engine, and the set of logical threads it has
// opened. A Session is created by Server.handshake and driven to
// completion by Run.
type Session struct {
	ID         string
	Hello      *wire.ClientHello
	Transport  Transport
	Conn       *dispatch.Connection
	Dispatcher *dispatch.Dispatcher
	Pool       *wpool.Pool
	Callback   *callback.Engine
	Locks      *lockmgr.Manager

	reader *wire.Reader
	writer *wire.Writer

	mu      sync.Mutex
	threads map[lockmgr.ThreadID]struct{}
}

// Send implements callback.Sender: it writes an outbound (host-initiated)
// frame addressed to tid's client thread.
func (s *Session) Send(tid lockmgr.ThreadID, f *wire.Frame) error {
	return s.writer.WriteFrame(f)
}

// Run reads frames until the transport closes, ctx is cancelled, or a
// connection-level error (as opposed to a per-frame dispatch error, which
// yields an exception frame and continues) occurs. Each frame is dispatched
// on its own goroutine so the read loop never blocks on an in-flight call,
// which is what lets a host->client callback issued mid-call receive its
// response over the same connection.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Transport.Close()
		case <-done:
		}
	}()
	defer close(done)

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		f, err := s.reader.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !s.Transport.Closed() {
				nlog.Errorf("conn: %s: read error: %v", s.ID, err)
			}
			return
		}

		tid := lockmgr.ThreadID{Conn: s.ID, Client: f.ClientThreadID}
		s.trackThread(tid)

		inFlight.Add(1)
		go func(f *wire.Frame) {
			defer inFlight.Done()
			reply := s.Pool.Dispatch(tid, func() *wire.Frame {
				return s.Dispatcher.HandleFrame(s.Conn, tid, f)
			})
			if reply == nil {
				return
			}
			if err := s.writer.WriteFrame(reply); err != nil && !s.Transport.Closed() {
				nlog.Errorf("conn: %s: write error: %v", s.ID, err)
				s.Transport.Close()
			}
		}(f)
	}
}

func (s *Session) trackThread(tid lockmgr.ThreadID) {
	s.mu.Lock()
	s.threads[tid] = struct{}{}
	s.mu.Unlock()
}

// teardown releases everything the session accumulated: outstanding
// callback calls are cancelled, every lock held by one of this
// connection's logical threads is force-released, the worker pool is
// drained, and the handle table is cleared.
func (s *Session) teardown() {
	s.Callback.Close()
	s.Pool.Close()

	s.mu.Lock()
	threads := make([]lockmgr.ThreadID, 0, len(s.threads))
	for tid := range s.threads {
		threads = append(threads, tid)
	}
	s.mu.Unlock()

	for _, tid := range threads {
		s.Locks.ReleaseAll(tid)
	}

	s.Conn.Handles.Clear()
	nlog.Infof("conn: %s: closed", s.ID)
}
