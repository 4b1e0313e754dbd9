// Package app wires together the HTTP server, WebSocket hub, metrics, and
// the bookmark runner. It owns the daemon's lifecycle and is the single
// source of truth for the current operating state.
package app

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/large-farva/kiwibook/internal/config"
	"github.com/large-farva/kiwibook/internal/jobs"
	"github.com/large-farva/kiwibook/internal/metrics"
	"github.com/large-farva/kiwibook/internal/telemetry"
	"github.com/large-farva/kiwibook/internal/ws"
)

const (
	name              = "kiwibookd"
	heartbeatInterval = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Registerer receives the run metrics. Nil means the default registry.
	Registerer prometheus.Registerer
	// RunnerOptions are passed through to the bookmark runner.
	RunnerOptions []jobs.Option
}

// App is the top-level daemon process.
type App struct {
	log  *log.Logger
	bind string

	cfgMu      sync.RWMutex
	cfg        config.Config
	configPath string

	startedAt time.Time
	state     atomic.Value // BOOTING, IDLE, RUNNING, PAUSED

	hub     *ws.Hub
	runner  *jobs.Runner
	metrics *metrics.Collector
	server  *http.Server
}

// New creates an App in the BOOTING state. Call Run to start serving.
func New(opts Options) (*App, error) {
	m, err := metrics.NewCollector(opts.Registerer)
	if err != nil {
		return nil, err
	}

	a := &App{
		log:        opts.Logger,
		bind:       opts.Bind,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		startedAt:  time.Now(),
		hub:        ws.NewHub(),
		metrics:    m,
	}
	runnerOpts := append([]jobs.Option{jobs.WithPublisher(a.hub), jobs.WithMetrics(m)}, opts.RunnerOptions...)
	a.runner = jobs.New(opts.Cfg, opts.Logger, runnerOpts...)
	a.state.Store("BOOTING")
	return a, nil
}

// Handler returns the daemon's HTTP routes.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/regions", a.handleRegions)
	mux.HandleFunc("/api/catalog", a.handleCatalog)
	mux.HandleFunc("/api/report", a.handleReport)
	mux.HandleFunc("/api/run", a.handleRun)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/ws", a.hub.Handler())
	return mux
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, and the
// bookmark runner. It blocks until the context is cancelled or one of them
// fails, then shuts the rest down.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" {
		bind = a.getConfig().Server.Bind
	}
	if bind == "" {
		bind = "0.0.0.0:8080"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Printf("listening on http://%s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.heartbeatLoop(gctx)
		return nil
	})
	g.Go(func() error {
		a.transition(jobs.StateIdle)
		a.runner.Run(gctx, a.transition)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Printf("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) currentState() string {
	return a.state.Load().(string)
}

// transition updates the daemon state and broadcasts the change to all
// connected WebSocket clients.
func (a *App) transition(newState string) {
	old := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.hub.Publish(telemetry.StateTransition{
		Event: telemetry.NewEvent(telemetry.EventState, name),
		From:  old,
		To:    newState,
	})
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.hub.Publish(telemetry.Heartbeat{
				Event:         telemetry.NewEvent(telemetry.EventHeartbeat, name),
				State:         a.currentState(),
				UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
			})
		}
	}
}

// emitLog logs a message and pushes it to every connected client.
func (a *App) emitLog(level, msg string) {
	if !a.getConfig().Logging.Enabled(level) {
		return
	}
	a.log.Print(msg)
	a.hub.Publish(telemetry.Log(name, level, msg))
}
