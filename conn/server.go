package conn

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OneOfOne/xxhash"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/callback"
	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/dispatch"
	"github.com/pjrmi/pjrmi-go/handle"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/shm"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
	"github.com/pjrmi/pjrmi-go/wpool"
)

// DefaultMaxFreeWorkers bounds a pooled-mode connection's worker free list
// when Server.MaxFreeWorkers is left at zero.
const DefaultMaxFreeWorkers = 32

// Server is the connection supervisor: it owns the process-wide state every
// connection shares (type registry, lock manager, authorizer, reflective
// bindings) and spins up one Dispatcher/Pool/callback.Engine trio per
// accepted Transport.
type Server struct {
	Reg      *typereg.Registry
	Locks    *lockmgr.Manager
	Authz    authz.Authorizer
	Invoke   dispatch.Invoker
	Injector dispatch.ClassInjector  // nil if class injection is unsupported
	Lookup   dispatch.InstanceLookupFunc
	Shm      *shm.Store // nil if the shared-memory side channel is unsupported

	// Name is this server's identifying string, sent back in the server
	// hello on a successful handshake (the client surfaces it as its
	// "connected to" banner).
	Name string
	// Mode selects whether every accepted connection dispatches directly
	// or through a pooled worker free list; see wpool.Mode.
	Mode wpool.Mode
	// MaxFreeWorkers bounds each connection's pooled-mode worker free
	// list. Zero means DefaultMaxFreeWorkers.
	MaxFreeWorkers int

	// Metrics is shared across every session's Dispatcher so dispatch
	// counts and latencies aggregate into one Prometheus exposition
	// instead of resetting per connection. Built and registered once in
	// NewServer; newSession overrides each Dispatcher's own fresh
	// Metrics with this one right after construction.
	Metrics *dispatch.Metrics
	// PromReg is the registry Metrics was registered into; Diag serves
	// it at /metrics.
	PromReg *prometheus.Registry

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewServer builds a Server. Authz/Injector/Lookup/Shm may be left at their
// zero value; a nil Authz falls back to authz.NewDefault().
func NewServer(reg *typereg.Registry, locks *lockmgr.Manager, az authz.Authorizer, invoker dispatch.Invoker, name string) *Server {
	if az == nil {
		az = authz.NewDefault()
	}
	promReg := prometheus.NewRegistry()
	metrics := dispatch.NewMetrics()
	if err := metrics.Register(promReg); err != nil {
		// Only duplicate registration can fail here, and Metrics is
		// constructed fresh above, so this is unreachable in practice.
		nlog.Errorf("conn: registering dispatch metrics: %v", err)
	}
	return &Server{
		Reg:      reg,
		Locks:    locks,
		Authz:    az,
		Invoke:   invoker,
		Name:     name,
		Metrics:  metrics,
		PromReg:  promReg,
		sessions: make(map[string]*Session),
	}
}

// Diag builds a DiagServer reporting on this Server's registry and metrics,
// gated by the same authorizer the raw-socket transport uses.
func (s *Server) Diag() *DiagServer {
	return NewDiagServer(s.Reg, s.PromReg, s.Authz)
}

// Serve accepts transports from l until ctx is cancelled or l.Accept fails,
// spawning one goroutine per connection. It closes l and every live session
// before returning.
func (s *Server) Serve(ctx context.Context, l Listener) error {
	defer s.Close()

	// Two coordinated goroutines: one closes the listener the moment ctx
	// is cancelled, the other accepts until that close (or a real accept
	// error) unblocks it. Each accepted connection then runs detached -
	// Close, not this errgroup, is what reaps live sessions on shutdown.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return l.Close()
	})
	g.Go(func() error {
		for {
			t, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil // shutdown requested; not a failure
				}
				return err
			}
			go s.serveOne(ctx, t)
		}
	})
	return g.Wait()
}

func (s *Server) serveOne(ctx context.Context, t Transport) {
	defer t.Close()

	if addr, ok := t.PeerAddr(); ok && !s.Authz.IsHostPermitted(addr) {
		nlog.Warningf("conn: rejected connection from %s: host not permitted", addr)
		return
	}

	sess, err := s.handshake(t)
	if err != nil {
		nlog.Warningf("conn: handshake failed: %v", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sess.teardown()
		return
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
		sess.teardown()
	}()

	sess.Run(ctx)
}

// handshake runs the banner/hello exchange and, on success, builds the full
// per-connection wiring: handle table, Dispatcher, worker Pool, and
// callback Engine.
func (s *Server) handshake(t Transport) (*Session, error) {
	if err := wire.WriteBanner(t); err != nil {
		return nil, fmt.Errorf("conn: writing banner: %w", err)
	}
	if err := wire.ReadBanner(t); err != nil {
		wire.WriteServerReject(t, err.Error())
		return nil, err
	}

	hello, err := wire.ReadClientHello(t)
	if err != nil {
		return nil, fmt.Errorf("conn: reading client hello: %w", err)
	}

	user, hasUser := t.PeerUsername()
	if !hasUser {
		user = hello.Command
	}
	if !s.Authz.IsUserPermitted(user) {
		reason := "user not permitted"
		wire.WriteServerReject(t, reason)
		return nil, fmt.Errorf("conn: %s", reason)
	}

	var flags byte
	mode := s.Mode
	if mode == wpool.Pooled {
		flags |= wire.FeaturePooled
	}
	if err := wire.WriteServerHello(t, s.Name, flags); err != nil {
		return nil, fmt.Errorf("conn: writing server hello: %w", err)
	}

	return s.newSession(t, hello), nil
}

func (s *Server) newSession(t Transport, hello *wire.ClientHello) *Session {
	connID := cos.GenConnID()
	salt := xxhash.ChecksumString64S(connID, cos.MLCG32)
	handles := handle.New(salt)

	maxFree := s.MaxFreeWorkers
	if maxFree <= 0 {
		maxFree = DefaultMaxFreeWorkers
	}
	pool := wpool.New(s.Mode, maxFree)

	d := dispatch.New(s.Reg, s.Locks, s.Authz, s.Invoke)
	d.Metrics = s.Metrics
	d.Injector = s.Injector
	d.Lookup = s.Lookup
	d.Async = pool
	if t.SameHost() {
		d.Shm = s.Shm
	}

	sess := &Session{
		ID:         connID,
		Hello:      hello,
		Transport:  t,
		Conn:       &dispatch.Connection{ID: connID, Handles: handles},
		Dispatcher: d,
		Pool:       pool,
		Locks:      s.Locks,
		reader:     wire.NewReader(t),
		writer:     wire.NewWriter(t),
		threads:    make(map[lockmgr.ThreadID]struct{}),
	}

	m := marshal.New(s.Reg, handles)
	cb := callback.New(s.Reg, handles, m, sess)
	d.Callback = cb
	sess.Callback = cb

	return sess
}

// Close shuts down every live session and marks the server closed to new
// connections accepted mid-shutdown.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Transport.Close()
	}
	return nil
}
