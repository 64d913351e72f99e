// Command pjrmid is the RMI daemon: it loads configuration, wires the
// registry/lock-manager/authorizer/dispatcher/worker-pool/callback trio the
// connection supervisor needs, and serves until told to stop.
//
// Grounded on the teacher's cmd/authn daemon: a flag-supplied config path
// falling back to an environment variable, fatal startup errors routed
// through cos.ExitLogf, a periodic log-flush goroutine, and a final
// blocking Run() call - adapted from authn's os.Exit(0) signal handler to
// a context passed down to the connection supervisor, since pjrmid needs
// to let in-flight calls finish rather than exiting the process outright.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pjrmi/pjrmi-go/authz"
	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/mono"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
	"github.com/pjrmi/pjrmi-go/config"
	"github.com/pjrmi/pjrmi-go/conn"
	"github.com/pjrmi/pjrmi-go/hk"
	"github.com/pjrmi/pjrmi-go/lockmgr"
	"github.com/pjrmi/pjrmi-go/shm"
	"github.com/pjrmi/pjrmi-go/typereg"
)

var (
	build     string
	buildtime string

	configPath string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the pjrmid configuration file")
}

func logFlush() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		return
	}
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		cos.ExitLogf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		cos.ExitLogf("Invalid configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.Log.Dir, 0o755); err != nil {
		cos.ExitLogf("Failed to create log dir %q: %v", cfg.Log.Dir, err)
	}
	nlog.SetLogDirRole(cfg.Log.Dir, "pjrmid")
	nlog.SetTitle(cfg.Name)
	go logFlush()
	go hk.DefaultHK.Run()

	nlog.Infof("pjrmid %s (build %s) starting, listening on %s", versionString(), buildtime, cfg.Listen)

	server, err := buildServer(cfg)
	if err != nil {
		cos.ExitLogf("Failed to build server: %v", err)
	}

	if cfg.Diag.Listen != "" {
		diag := server.Diag()
		go func() {
			if err := diag.ListenAndServe(cfg.Diag.Listen); err != nil {
				nlog.Errorf("pjrmid: diagnostics server: %v", err)
			}
		}()
	}

	l, err := conn.NewTCPListener(cfg.Listen)
	if err != nil {
		cos.ExitLogf("Failed to listen on %s: %v", cfg.Listen, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		nlog.Infof("pjrmid: shutting down on signal")
		cancel()
	}()

	err = server.Serve(ctx, l)
	nlog.Flush(true)
	if err != nil {
		cos.ExitLogf("Server failed: %v", err)
	}
}

// buildServer assembles the process-wide state a conn.Server shares across
// every connection: the type registry (bootstrapped primitives plus the
// demo host types), the lock manager, the authorizer built from config, and
// the demo Invoker/instance-lookup pjrmid exposes.
func buildServer(cfg *config.Config) (*conn.Server, error) {
	// GenUUID (used by shm.Store.WriteArray for every shared-memory segment
	// name) panics on a nil generator until this runs; seeded off the clock
	// rather than a fixed constant so segment names don't collide across
	// daemon restarts the way a fixed seed would.
	cos.InitShortID(uint64(mono.NanoTime()))

	src := typereg.NewStaticSource()
	reg := typereg.New(src)
	invoker, sharedCounter := registerDemoTypes(reg, src)

	locks := lockmgr.New()

	az := authz.NewDefault()
	az.AllowRemote = cfg.Authz.AllowRemote
	for _, name := range cfg.Authz.BlockedClasses {
		az.BlockedClasses[name] = true
	}

	srv := conn.NewServer(reg, locks, az, invoker, cfg.Name)
	srv.Mode = cfg.DispatchMode()
	srv.MaxFreeWorkers = cfg.MaxFreeWorkers
	srv.Lookup = func(name string) (any, typereg.TypeID, bool) {
		if name == "counter" {
			return sharedCounter, invoker.counterType, true
		}
		return nil, 0, false
	}

	if cfg.Shm.Enabled {
		store, err := shm.New(cfg.Shm.Dir)
		if err != nil {
			return nil, fmt.Errorf("pjrmid: shared memory: %w", err)
		}
		if cfg.Shm.MaxAge.Duration() > 0 {
			store.MaxAge = cfg.Shm.MaxAge.Duration()
		}
		srv.Shm = store
	}

	return srv, nil
}

func printVer() {
	fmt.Printf("pjrmid version %s (build %s)\n", versionString(), buildtime)
}

func versionString() string {
	if build == "" {
		return "dev"
	}
	return build
}
