package server

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/darkkid0/wt-tracker/pkg/gateway"
	"github.com/darkkid0/wt-tracker/pkg/protocol"
)

// ServerConfig holds configuration for one listening server.
// Start from DefaultServerConfig; New fills zero numeric fields with defaults.
type ServerConfig struct {
	// Binding

	// Host is the interface to bind. Empty means all interfaces.
	Host string

	// Port is the TCP port to bind. Zero picks a free port.
	// Default: 8000.
	Port int

	// KeyFile and CertFile are PEM files. A non-empty KeyFile selects TLS.
	KeyFile  string
	CertFile string

	// WebSockets

	// Path is the route that accepts WebSocket upgrades.
	// Default: "/".
	Path string

	// MaxPayloadLength is the largest inbound frame in bytes. Larger frames
	// close the connection with status 1009 before they are decoded.
	// Default: 65536.
	MaxPayloadLength int

	// IdleTimeout closes connections that send nothing (frames or pongs)
	// for this long. Pings are sent every IdleTimeout/2. Zero disables both.
	// DefaultServerConfig sets 240 seconds.
	IdleTimeout time.Duration

	// Compression enables permessage-deflate.
	// Default: true.
	Compression bool

	// CompressionLevel is the flate level used when Compression is set.
	// Default: 3.
	CompressionLevel int

	// WriteTimeout bounds a single frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadBufferSize and WriteBufferSize size the upgrader's I/O buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// Limits

	// MaxConnections refuses upgrades with 503 once this many connections are
	// open. Zero means no limit.
	MaxConnections int

	// SendQueueSize is the number of outbound frames queued per connection.
	// Default: 256.
	SendQueueSize int

	// MaxBackpressure drops outbound frames once this many bytes are queued
	// on a connection. Zero means only SendQueueSize applies.
	MaxBackpressure int

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Access is the origin policy applied before upgrading.
	Access AccessConfig

	// TrustedProxies lists proxy IPs or CIDRs whose Forwarded and
	// X-Forwarded-For headers are believed when resolving peer addresses.
	TrustedProxies []string

	// Hooks

	// Observer receives gateway diagnostics. Nil means gateway.NopObserver.
	Observer gateway.Observer

	// Middleware wraps every call into the core.
	Middleware []gateway.Middleware

	// OnFault receives internal faults raised while handling messages.
	// Nil means DefaultFaultHandler.
	OnFault FaultHandler

	// Routes registers extra HTTP routes next to the WebSocket path.
	Routes func(r chi.Router)

	// Logger is the base logger. Nil means slog.Default().
	Logger *slog.Logger
}

// AccessConfig restricts which origins may open a WebSocket.
type AccessConfig struct {
	// AllowOrigins, when non-empty, is the only set of origins accepted.
	AllowOrigins []string

	// DenyOrigins lists rejected origins. Ignored when AllowOrigins is set.
	DenyOrigins []string

	// DenyEmptyOrigin rejects requests without an Origin header.
	DenyEmptyOrigin bool
}

// DefaultServerConfig returns a ServerConfig with the tracker's defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:             "",
		Port:             8000,
		Path:             "/",
		MaxPayloadLength: protocol.DefaultMaxPayloadLength,
		IdleTimeout:      240 * time.Second,
		Compression:      true,
		CompressionLevel: 3,
		WriteTimeout:     10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		SendQueueSize:    256,
		ShutdownTimeout:  30 * time.Second,
	}
}

// applyDefaults fills zero numeric fields from DefaultServerConfig.
func (c *ServerConfig) applyDefaults() {
	defaults := DefaultServerConfig()
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.MaxPayloadLength == 0 {
		c.MaxPayloadLength = defaults.MaxPayloadLength
	}
	if c.CompressionLevel == 0 {
		c.CompressionLevel = defaults.CompressionLevel
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.SendQueueSize == 0 {
		c.SendQueueSize = defaults.SendQueueSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate reports configuration values that cannot work.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: port %d out of range", c.Port))
	}
	if c.KeyFile != "" && c.CertFile == "" {
		errs = append(errs, errors.New("server: key file set without cert file"))
	}
	if c.Path == "" || c.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("server: websocket path %q must start with /", c.Path))
	}
	if c.MaxPayloadLength < 0 {
		errs = append(errs, errors.New("server: max payload length must not be negative"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("server: idle timeout must not be negative"))
	}
	if c.Compression && (c.CompressionLevel < -2 || c.CompressionLevel > 9) {
		errs = append(errs, fmt.Errorf("server: compression level %d out of range", c.CompressionLevel))
	}
	if c.MaxConnections < 0 {
		errs = append(errs, errors.New("server: max connections must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the server binds.
func (c *ServerConfig) Addr() string {
	return joinHostPort(c.Host, c.Port)
}

// TLS reports whether the server serves TLS.
func (c *ServerConfig) TLS() bool {
	return c.KeyFile != ""
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Access.AllowOrigins = append([]string(nil), c.Access.AllowOrigins...)
	clone.Access.DenyOrigins = append([]string(nil), c.Access.DenyOrigins...)
	clone.TrustedProxies = append([]string(nil), c.TrustedProxies...)
	clone.Middleware = append([]gateway.Middleware(nil), c.Middleware...)
	return &clone
}

// WithAddress sets host and port and returns the config for chaining.
func (c *ServerConfig) WithAddress(host string, port int) *ServerConfig {
	c.Host = host
	c.Port = port
	return c
}

// WithTLS sets the key and certificate files and returns the config for chaining.
func (c *ServerConfig) WithTLS(keyFile, certFile string) *ServerConfig {
	c.KeyFile = keyFile
	c.CertFile = certFile
	return c
}

// WithObserver sets the observer and returns the config for chaining.
func (c *ServerConfig) WithObserver(o gateway.Observer) *ServerConfig {
	c.Observer = o
	return c
}

// WithMiddleware appends core middleware and returns the config for chaining.
func (c *ServerConfig) WithMiddleware(mw ...gateway.Middleware) *ServerConfig {
	c.Middleware = append(c.Middleware, mw...)
	return c
}

// WithMaxConnections sets the connection limit and returns the config for chaining.
func (c *ServerConfig) WithMaxConnections(max int) *ServerConfig {
	c.MaxConnections = max
	return c
}
