package conn

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/typereg"
)

// DiagServer is the read-only HTTP side-server alongside the raw-socket
// transport: liveness, Prometheus exposition, and a JSON dump of the type
// registry for operators who don't want to open a pjrmi client just to see
// what's registered. It never mutates engine state, and every route is
// gated by the same "is host permitted" hook the raw-socket transport
// enforces on accept.
//
// Grounded on the teacher's pattern of a lightweight HTTP surface running
// next to the primary data-plane listener (ais's stats/health endpoints),
// adapted to the one HTTP library the teacher pack carries for it,
// github.com/valyala/fasthttp, via its fasthttpadaptor bridge to the
// standard promhttp.Handler.
type DiagServer struct {
	Reg     *typereg.Registry
	PromReg *prometheus.Registry
	Authz   authz.Authorizer

	srv *fasthttp.Server
}

// NewDiagServer builds a DiagServer that reports on reg and exposes every
// collector registered in promReg, rejecting requests from hosts az does
// not permit. A nil az permits every host.
func NewDiagServer(reg *typereg.Registry, promReg *prometheus.Registry, az authz.Authorizer) *DiagServer {
	d := &DiagServer{Reg: reg, PromReg: promReg, Authz: az}
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	d.srv = &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			if d.Authz != nil && !d.Authz.IsHostPermitted(ctx.RemoteAddr()) {
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				return
			}
			switch string(ctx.Path()) {
			case "/healthz":
				ctx.SetStatusCode(fasthttp.StatusOK)
				ctx.SetBodyString("ok")
			case "/metrics":
				metricsHandler(ctx)
			case "/debug/types":
				d.serveTypes(ctx)
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
		Name: "pjrmid-diag",
	}
	return d
}

func (d *DiagServer) serveTypes(ctx *fasthttp.RequestCtx) {
	b, err := d.Reg.DumpJSON()
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(err.Error())
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

// ListenAndServe blocks serving addr until the server is shut down.
func (d *DiagServer) ListenAndServe(addr string) error {
	nlog.Infof("conn: diagnostics server listening on %s", addr)
	return d.srv.ListenAndServe(addr)
}

// Serve blocks accepting from ln until the server is shut down, for callers
// (tests, or a host wanting a pre-bound listener) that already have one.
func (d *DiagServer) Serve(ln net.Listener) error {
	return d.srv.Serve(ln)
}

// Shutdown stops accepting new connections and waits for in-flight
// requests, per fasthttp.Server's own graceful-shutdown contract.
func (d *DiagServer) Shutdown() error {
	return d.srv.Shutdown()
}
