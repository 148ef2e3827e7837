package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
)

// Server binds one listener and feeds its WebSocket connections to a core.
type Server struct {
	config   *ServerConfig
	manager  *gateway.Manager
	upgrader websocket.Upgrader
	access   *originPolicy
	proxies  *proxyMatcher
	onFault  FaultHandler
	stats    serverCounters
	logger   *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	serveErr   chan error
}

// New creates a Server delivering messages to core.
// A nil config uses DefaultServerConfig; zero fields are filled with defaults.
func New(core gateway.Core, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
		config.applyDefaults()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server", "addr", config.Addr())

	if err := config.Validate(); err != nil {
		logger.Error("config validation failed", "error", err)
	}

	onFault := config.OnFault
	if onFault == nil {
		onFault = DefaultFaultHandler(logger)
	}

	return &Server{
		config: config,
		manager: gateway.NewManager(core, &gateway.ManagerConfig{
			Observer:   config.Observer,
			Middleware: config.Middleware,
			Logger:     logger,
		}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			EnableCompression: config.Compression,
			// Origins are checked by the access policy before upgrading.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		access:  newOriginPolicy(config.Access),
		proxies: newProxyMatcher(config.TrustedProxies, logger),
		onFault: onFault,
		logger:  logger,
	}
}

// Handler returns the HTTP handler serving the WebSocket path and any extra routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if s.config.Routes != nil {
		s.config.Routes(r)
	}
	r.Get(s.config.Path, s.HandleWebSocket)
	return r
}

// Start binds the listener and begins serving in the background.
// A bind or certificate failure is returned as *BindError.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrServerStarted
	}
	if err := s.config.Validate(); err != nil {
		return &BindError{Host: s.config.Host, Port: s.config.Port, Err: err}
	}

	var tlsConfig *tls.Config
	if s.config.TLS() {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			return &BindError{Host: s.config.Host, Port: s.config.Port, Err: err}
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return &BindError{Host: s.config.Host, Port: s.config.Port, Err: err}
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}
	s.serveErr = make(chan error, 1)

	go func(srv *http.Server, ln net.Listener, errCh chan<- error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}(s.httpServer, ln, s.serveErr)

	s.logger.Info("listening",
		"address", ln.Addr().String(),
		"path", s.config.Path,
		"tls", tlsConfig != nil)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done returns a channel that yields a serve error, if any, and is closed when
// the server stops serving.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Run starts the server and blocks until SIGINT/SIGTERM or a serve error.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-s.Done():
		return err

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every connection and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return ErrServerNotStarted
	}

	// Hijacked connections are not tracked by http.Server; close them after
	// the listener is gone.
	err := srv.Shutdown(ctx)
	if cerr := s.manager.CloseAll(); cerr != nil {
		s.stats.faults.Add(1)
		s.onFault(cerr)
	}
	if err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Stats returns the gateway's live counters.
func (s *Server) Stats() gateway.Stats {
	return s.manager.Stats()
}

// Manager returns the connection lifecycle manager.
func (s *Server) Manager() *gateway.Manager {
	return s.manager
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
