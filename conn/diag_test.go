package conn_test

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/conn"
	"github.com/pjrmi/pjrmi-go/typereg"
)

func startDiagServer(t *testing.T, az authz.Authorizer) (string, func()) {
	t.Helper()
	reg := typereg.New(typereg.NewStaticSource())
	promReg := prometheus.NewRegistry()
	d := conn.NewDiagServer(reg, promReg, az)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	go d.Serve(ln)
	return ln.Addr().String(), func() { d.Shutdown() }
}

func TestDiagServerRoutes(t *testing.T) {
	az := authz.NewDefault()
	az.AllowRemote = true
	addr, stop := startDiagServer(t, az)
	defer stop()

	for _, tc := range []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/debug/types", http.StatusOK},
		{"/nope", http.StatusNotFound},
	} {
		resp, err := http.Get("http://" + addr + tc.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tc.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tc.wantStatus {
			t.Fatalf("GET %s: status %d, want %d (body %q)", tc.path, resp.StatusCode, tc.wantStatus, body)
		}
	}
}

func TestDiagServerPermitsLoopbackHostByDefault(t *testing.T) {
	az := authz.NewDefault() // AllowRemote defaults to false: only loopback is permitted
	addr, stop := startDiagServer(t, az)
	defer stop()

	// Loopback dials from 127.0.0.1, which authz.Default permits even
	// with AllowRemote unset, so this exercises the allowed path; the
	// rejection path (az.IsHostPermitted returning false) is covered
	// directly in authz's own tests since a real non-loopback dial isn't
	// reproducible in-process.
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
