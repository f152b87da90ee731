// Package daemon wires every other package into the running
// overseerd process: state directory, PID file, RPC socket, optional
// HTTP façade, the log-expiry sweep, and signal handling.
package daemon

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/overseerd/internal/httpapi"
	"github.com/loykin/overseerd/internal/logging"
	"github.com/loykin/overseerd/internal/metrics"
	"github.com/loykin/overseerd/internal/output"
	"github.com/loykin/overseerd/internal/paths"
	"github.com/loykin/overseerd/internal/projects"
	"github.com/loykin/overseerd/internal/registry"
	"github.com/loykin/overseerd/internal/rpc"
)

const expirySweepInterval = time.Hour

// Options configures one daemon run.
type Options struct {
	AppName    string
	EnableHTTP bool
}

// Run creates the state directory, writes the PID file, binds the RPC
// socket, starts the optional HTTP façade, runs the log-expiry sweep
// (immediately, then hourly), and blocks until SIGINT/SIGTERM or an
// RPC-triggered shutdown. It always cleans up the socket and PID file
// on the way out.
func Run(opts Options) error {
	p := paths.New(opts.AppName)
	if err := p.EnsureStateDir(); err != nil {
		return err
	}

	log := logging.New(logging.Config{Dir: p.StateDir()})

	if err := os.WriteFile(p.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o640); err != nil {
		log.Warn("failed to write pid file", "error", err)
	}
	defer func() {
		_ = os.Remove(p.PIDPath())
		_ = os.Remove(p.SocketPath())
	}()

	cfg := projects.LoadGlobalConfig(p.ConfigDir())

	_ = metrics.Register(prometheus.DefaultRegisterer)
	_ = metrics.RegisterResourceMetrics(prometheus.DefaultRegisterer)
	sampler := metrics.NewResourceSampler(5 * time.Second)

	reg := registry.New(p.LogDir(), sampler)

	samplerCtx, cancelSampler := context.WithCancel(context.Background())
	defer cancelSampler()
	go sampler.Run(samplerCtx)

	runAutostart(reg, p.ConfigDir(), cfg, log)

	expirePolicy := output.ExpiryPolicy{
		MaxAge:   time.Duration(cfg.Logs.MaxAgeDays) * 24 * time.Hour,
		MaxCount: cfg.Logs.MaxFiles,
	}
	output.ExpireLogs(p.LogDir(), expirePolicy, time.Now())
	go expirySweepLoop(p.LogDir(), expirePolicy, samplerCtx.Done())

	shutdown := make(chan struct{})
	shutdownOnce := func() { closeOnce(shutdown) }

	handler := rpc.NewHandler(reg, p.ConfigDir(), cfg.Defaults, cfg.Daemon.HTTPPort, shutdownOnce)
	srv, err := rpc.Listen(p.SocketPath(), handler)
	if err != nil {
		return err
	}
	defer srv.Close()

	socketDone := make(chan error, 1)
	go func() { socketDone <- srv.Serve() }()

	var httpSrv *http.Server
	httpDone := make(chan error, 1)
	if opts.EnableHTTP {
		router := httpapi.NewRouter(reg, p.ConfigDir(), cfg.Defaults)
		httpSrv = &http.Server{
			Addr:              net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Daemon.HTTPPort)),
			Handler:           router.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() { httpDone <- httpSrv.ListenAndServe() }()
		log.Info("http listening", "addr", httpSrv.Addr)
	}

	log.Info("daemon started", "pid", os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-socketDone:
	case <-httpDone:
	case <-shutdown:
	case <-sigCh:
		log.Info("shutting down")
	}

	if httpSrv != nil {
		_ = httpSrv.Close()
	}
	return nil
}

// runAutostart starts every registered service's autostart processes
// once at daemon boot, matching the original's behavior of bringing up
// configured services without a client request.
func runAutostart(reg *registry.Registry, configDir string, cfg projects.GlobalConfig, log *slog.Logger) {
	entries, warnings := projects.LoadServiceEntries(configDir)
	for _, w := range warnings {
		log.Warn(w)
	}
	for name, entry := range entries {
		dir, defs, err := projects.LoadService(entry, cfg.Defaults)
		if err != nil {
			log.Warn("failed to load service", "service", name, "error", err)
			continue
		}
		if _, err := reg.StartService(name, dir, defs, false, nil); err != nil {
			log.Warn("autostart failed", "service", name, "error", err)
		}
	}
}

func expirySweepLoop(logDir string, policy output.ExpiryPolicy, done <-chan struct{}) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			output.ExpireLogs(logDir, policy, time.Now())
		}
	}
}

func closeOnce(ch chan struct{}) {
	defer func() { _ = recover() }()
	close(ch)
}
