package conn_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/conn"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/marshal"
	"github.com/pjrmi/pjrmi-go/typereg"
	"github.com/pjrmi/pjrmi-go/wire"
)

// pipeListener hands out one pre-made in-process transport per Accept call,
// standing in for a real net.Listener in tests that don't need a socket.
type pipeListener struct {
	ch     chan conn.Transport
	closed chan struct{}
}

func newPipeListener() (*pipeListener, net.Conn) {
	server, client := net.Pipe()
	l := &pipeListener{ch: make(chan conn.Transport, 1), closed: make(chan struct{})}
	l.ch <- conn.NewTCPTransport(server)
	return l, client
}

func (l *pipeListener) Accept() (conn.Transport, error) {
	select {
	case t, ok := <-l.ch:
		if !ok {
			return nil, net.ErrClosed
		}
		return t, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func TestServeHandlesOneConnectionEndToEnd(t *testing.T) {
	reg := typereg.New(typereg.NewStaticSource())
	locks := lockmgr.New()
	az := authz.NewDefault()
	az.AllowRemote = true

	server := conn.NewServer(reg, locks, az, nil, "test-server")
	l, client := newPipeListener()

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx, l) }()

	if err := wire.ReadBanner(client); err != nil {
		t.Fatalf("ReadBanner: %v", err)
	}
	if err := wire.WriteBanner(client); err != nil {
		t.Fatalf("WriteBanner: %v", err)
	}
	if err := wire.WriteClientHello(client, &wire.ClientHello{PID: 1, InstanceID: 2}); err != nil {
		t.Fatalf("WriteClientHello: %v", err)
	}
	if _, _, err := wire.ReadServerHello(client); err != nil {
		t.Fatalf("ReadServerHello: %v", err)
	}

	cw := marshal.NewWriter()
	cw.UTF16String("int")
	req := &wire.Frame{Kind: wire.KindTypeByName, ClientThreadID: 1, RequestID: 1, Payload: cw.Bytes()}

	w := wire.NewWriter(client)
	if err := w.WriteFrame(req); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := wire.NewReader(client)
	reply, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if reply.Kind != wire.KindTypeDescriptor {
		t.Fatalf("expected a type descriptor reply, got %s", reply.Kind)
	}

	client.Close()
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after shutdown")
	}
}
