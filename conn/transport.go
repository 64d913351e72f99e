// Package conn implements the connection supervisor: it accepts transports,
// runs the version handshake, and wires one Dispatcher, worker Pool and
// callback Engine per connection, then drives that connection's frame loop
// until the transport closes or the supervisor is shut down.
//
// Grounded on the teacher's dsort errgroup.Group fan-in/fan-out style (one
// goroutine per concern, coordinated through a shared context and a single
// error return) applied here to a connection's two concerns: blocking on
// the next frame, and honoring an externally requested shutdown.
package conn

import (
	"io"
	"net"
	"sync/atomic"
)

// Transport is the byte-stream abstraction the engine consumes: an ordered
// input/output pair plus the handful of peer facts the protocol needs
// (an optional username, an optional address, and whether the peer shares
// this host, which gates the shared-memory side channel).
type Transport interface {
	io.Reader
	io.Writer

	// PeerUsername returns the credential string presented by the peer, if
	// the transport carries one (a bare TCP socket does not; the client's
	// handshake command string fills this role instead - see
	// Server.handshake).
	PeerUsername() (user string, ok bool)
	// PeerAddr returns the peer's network address, if the transport has
	// one (absent for e.g. a pipe or in-process transport used in tests).
	PeerAddr() (addr net.Addr, ok bool)
	// SameHost reports whether the peer resides on this host, gating
	// whether the shared-memory side channel may be offered to it.
	SameHost() bool

	Close() error
	Closed() bool
}

// Listener accepts the next Transport. The TCP listener below implements
// it, as does the in-process pipe listener the tests use.
type Listener interface {
	Accept() (Transport, error)
	Close() error
}

// tcpTransport adapts a net.Conn to Transport: same-host is decided once at
// construction by comparing the peer's IP against the host's own loopback
// and interface addresses, since a TCP peer carries no explicit identity of
// its own beyond its address.
type tcpTransport struct {
	net.Conn
	sameHost bool
	closed   atomic.Bool
}

// NewTCPTransport wraps an accepted net.Conn.
func NewTCPTransport(c net.Conn) Transport {
	return &tcpTransport{Conn: c, sameHost: isSameHost(c.RemoteAddr())}
}

func (t *tcpTransport) PeerUsername() (string, bool) { return "", false }

func (t *tcpTransport) PeerAddr() (net.Addr, bool) {
	addr := t.Conn.RemoteAddr()
	return addr, addr != nil
}

func (t *tcpTransport) SameHost() bool { return t.sameHost }

func (t *tcpTransport) Close() error {
	t.closed.Store(true)
	return t.Conn.Close()
}

func (t *tcpTransport) Closed() bool { return t.closed.Load() }

func isSameHost(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, a := range ifaceAddrs {
		if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
			return true
		}
	}
	return false
}

// tcpListener adapts a net.Listener to Listener.
type tcpListener struct{ net.Listener }

// NewTCPListener listens on addr (e.g. "127.0.0.1:0") and returns a
// Listener accepting plain TCP transports.
func NewTCPListener(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{l}, nil
}

func (l *tcpListener) Accept() (Transport, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(c), nil
}
