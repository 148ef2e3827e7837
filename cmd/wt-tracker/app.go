package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darkkid0/wt-tracker/internal/config"
	"github.com/darkkid0/wt-tracker/internal/errors"
	"github.com/darkkid0/wt-tracker/internal/tracker"
	"github.com/darkkid0/wt-tracker/pkg/gateway"
	"github.com/darkkid0/wt-tracker/pkg/middleware"
	"github.com/darkkid0/wt-tracker/pkg/server"
)

const metricsNamespace = "wt_tracker"

// appOptions are the serve flags that are not part of the config file.
type appOptions struct {
	verbose  bool
	trace    bool
	failFast bool
}

// app wires one tracker to every configured server.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *tracker.FastTracker
	registry *prometheus.Registry
	servers  []*server.Server
	faults   chan error
	started  time.Time
}

func newApp(cfg *config.Config, opts appOptions, logger *slog.Logger) *app {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracker: tracker.New(cfg.TrackerSettings(), logger),
		faults:  make(chan error, 1),
		started: time.Now(),
	}

	observers := []gateway.Observer{
		gateway.NewLogObserver(logger, opts.verbose || cfg.Debug.Verbose),
	}
	var mw []gateway.Middleware

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.registry.MustRegister(a.tracker.Collectors(metricsNamespace)...)

		metrics := middleware.NewMetrics(
			middleware.WithNamespace(metricsNamespace),
			middleware.WithRegistry(a.registry),
		)
		observers = append(observers, metrics.Observer())
		mw = append(mw, metrics.Middleware())
	}
	if opts.trace {
		mw = append(mw, middleware.OpenTelemetry())
	}

	observer := gateway.Observers(observers...)
	onFault := a.faultHandler(opts.failFast)

	for _, sc := range cfg.ServerConfigs() {
		sc.Logger = logger
		sc.Observer = observer
		sc.Middleware = mw
		sc.OnFault = onFault
		sc.Routes = a.routes
		a.servers = append(a.servers, server.New(a.tracker, sc))
	}
	return a
}

// faultHandler logs internal faults and, with failFast, reports the first one
// to wait.
func (a *app) faultHandler(failFast bool) server.FaultHandler {
	logFault := server.DefaultFaultHandler(a.logger)
	return func(err error) {
		logFault(err)
		if !failFast {
			return
		}
		select {
		case a.faults <- err:
		default:
		}
	}
}

// routes registers the stats and metrics endpoints on every server.
func (a *app) routes(r chi.Router) {
	if a.cfg.Stats.Enabled {
		r.Get(a.cfg.Stats.Path, a.handleStats)
	}
	if a.registry != nil {
		r.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
			ErrorLog: slog.NewLogLogger(a.logger.Handler(), slog.LevelError),
		}))
	}
}

// start starts every server. If one fails, the ones already started are shut down.
func (a *app) start() error {
	for i, srv := range a.servers {
		if err := srv.Start(); err != nil {
			for _, started := range a.servers[:i] {
				_ = started.Shutdown(context.Background())
			}
			return errors.FromError(err, errors.CodeBind)
		}
	}
	return nil
}

// wait blocks until ctx is done, a server stops serving, or a fault arrives
// in fail-fast mode.
func (a *app) wait(ctx context.Context) error {
	serveErr := make(chan error, len(a.servers))
	for _, srv := range a.servers {
		go func(done <-chan error) {
			if err, ok := <-done; ok && err != nil {
				serveErr <- err
			}
		}(srv.Done())
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		return errors.New(errors.CodeServeFailed).Wrap(err)
	case err := <-a.faults:
		return errors.New(errors.CodeInternalFault).Wrap(err)
	}
}

// shutdown stops every server and closes their connections.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range a.servers {
		if err := srv.Shutdown(ctx); err != nil && !stderrors.Is(err, server.ErrServerNotStarted) {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return errors.New(errors.CodeShutdown).Wrap(err)
	}
	return nil
}

// statsDocument is served as JSON on the stats path.
type statsDocument struct {
	TorrentsCount int           `json:"torrentsCount"`
	PeersCount    int           `json:"peersCount"`
	Servers       []serverStats `json:"servers"`
	Memory        memoryStats   `json:"memory"`
	Goroutines    int           `json:"goroutines"`
	Uptime        float64       `json:"uptimeSeconds"`
}

type serverStats struct {
	Server string `json:"server"`
	*server.ServerMetrics
}

type memoryStats struct {
	Alloc     uint64 `json:"alloc"`
	HeapInuse uint64 `json:"heapInuse"`
	Sys       uint64 `json:"sys"`
	NumGC     uint32 `json:"numGC"`
}

func (a *app) stats() statsDocument {
	ts := a.tracker.Stats()
	doc := statsDocument{
		TorrentsCount: ts.Swarms,
		PeersCount:    ts.Peers,
		Servers:       make([]serverStats, 0, len(a.servers)),
		Goroutines:    runtime.NumGoroutine(),
		Uptime:        time.Since(a.started).Seconds(),
	}
	for _, srv := range a.servers {
		addr := srv.Config().Addr()
		if bound := srv.Addr(); bound != nil {
			addr = bound.String()
		}
		doc.Servers = append(doc.Servers, serverStats{Server: addr, ServerMetrics: srv.Metrics()})
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	doc.Memory = memoryStats{
		Alloc:     mem.Alloc,
		HeapInuse: mem.HeapInuse,
		Sys:       mem.Sys,
		NumGC:     mem.NumGC,
	}
	return doc
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.stats()); err != nil {
		a.logger.Warn("stats write failed", "error", err)
	}
}
