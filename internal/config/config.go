package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/darkkid0/wt-tracker/internal/errors"
	"github.com/darkkid0/wt-tracker/internal/tracker"
	"github.com/darkkid0/wt-tracker/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "wt-tracker.json"

	// DefaultHost binds every interface.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the default listening port.
	DefaultPort = 8000

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"

	// DefaultStatsPath is where the JSON stats document is served.
	DefaultStatsPath = "/stats.json"

	// Compression settings.
	CompressionEnabled  = "enabled"
	CompressionDisabled = "disabled"
)

// Config represents the complete wt-tracker.json configuration.
type Config struct {
	// Servers lists the listeners. Every server feeds the same tracker.
	Servers []ServerEntry `json:"servers"`

	// Tracker tunes the tracker core.
	Tracker TrackerConfig `json:"tracker"`

	// WebSocketsAccess is the origin policy shared by all servers.
	WebSocketsAccess AccessConfig `json:"websocketsAccess"`

	// Debug contains diagnostic settings.
	Debug DebugConfig `json:"debug"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics"`

	// Stats contains the JSON stats endpoint settings.
	Stats StatsConfig `json:"stats"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerEntry is one listener: its bind block and its WebSocket block.
type ServerEntry struct {
	Server     BindConfig       `json:"server"`
	WebSockets WebSocketsConfig `json:"websockets"`
}

// BindConfig contains the listening address and TLS files.
type BindConfig struct {
	// Host is the interface to bind.
	Host string `json:"host,omitempty"`

	// Port is the TCP port to bind.
	Port int `json:"port,omitempty"`

	// KeyFileName is the TLS private key. Setting it selects TLS.
	KeyFileName string `json:"key_file_name,omitempty"`

	// CertFileName is the TLS certificate chain.
	CertFileName string `json:"cert_file_name,omitempty"`

	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are believed.
	TrustedProxies []string `json:"trusted_proxies,omitempty"`
}

// WebSocketsConfig contains per-listener WebSocket settings.
type WebSocketsConfig struct {
	// Path is the route that accepts upgrades.
	Path string `json:"path,omitempty"`

	// MaxPayloadLength is the largest inbound frame in bytes.
	MaxPayloadLength int `json:"maxPayloadLength,omitempty"`

	// IdleTimeout is in seconds. Absent means 240; zero disables the
	// timeout and keep-alive pings.
	IdleTimeout int `json:"idleTimeout"`

	// Compression is "enabled" or "disabled".
	Compression string `json:"compression,omitempty"`

	// CompressionLevel is the flate level. Zero selects the default.
	CompressionLevel int `json:"compressionLevel,omitempty"`

	// MaxConnections refuses upgrades past this many connections. Zero means no limit.
	MaxConnections int `json:"maxConnections,omitempty"`

	// SendQueueSize is the number of frames queued per connection.
	SendQueueSize int `json:"sendQueueSize,omitempty"`

	// MaxBackpressure is the number of queued bytes per connection before
	// frames are dropped. Zero means only SendQueueSize applies.
	MaxBackpressure int `json:"maxBackpressure,omitempty"`
}

// TrackerConfig contains tracker core settings.
type TrackerConfig struct {
	// MaxOffers caps the offers relayed per announce.
	MaxOffers int `json:"maxOffers,omitempty"`

	// AnnounceInterval is in seconds.
	AnnounceInterval int `json:"announceInterval,omitempty"`
}

// AccessConfig restricts which origins may connect.
type AccessConfig struct {
	AllowOrigins    []string `json:"allowOrigins,omitempty"`
	DenyOrigins     []string `json:"denyOrigins,omitempty"`
	DenyEmptyOrigin bool     `json:"denyEmptyOrigin,omitempty"`
}

// DebugConfig contains diagnostic settings.
type DebugConfig struct {
	// Verbose logs every inbound and outbound message body.
	Verbose bool `json:"verbose,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StatsConfig contains the JSON stats endpoint settings.
type StatsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// New creates a new Config with default values and one plain listener.
func New() *Config {
	cfg := &Config{
		Servers: []ServerEntry{defaultServerEntry()},
		Metrics: MetricsConfig{Enabled: true},
		Stats:   StatsConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

func defaultServerEntry() ServerEntry {
	return ServerEntry{
		Server:     BindConfig{Host: DefaultHost, Port: DefaultPort},
		WebSockets: WebSocketsConfig{IdleTimeout: defaultIdleTimeout()},
	}
}

func defaultIdleTimeout() int {
	return int(server.DefaultServerConfig().IdleTimeout / time.Second)
}

// UnmarshalJSON keeps the default idle timeout when the document omits it,
// so that an explicit 0 can mean disabled.
func (e *ServerEntry) UnmarshalJSON(data []byte) error {
	type plain ServerEntry
	v := plain{WebSockets: WebSocketsConfig{IdleTimeout: defaultIdleTimeout()}}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = ServerEntry(v)
	return nil
}

// Load reads wt-tracker.json from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
// A file without a servers list gets one default listener; an explicit
// empty list is kept and rejected by Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeConfigRead).
				WithLocation(path, "").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path) + ".").
				Wrap(err)
		}
		return nil, errors.New(errors.CodeConfigRead).WithLocation(path, "").Wrap(err)
	}

	cfg := New()
	cfg.Servers = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithLocation(path, "").
			Wrap(err)
	}
	if cfg.Servers == nil {
		cfg.Servers = []ServerEntry{defaultServerEntry()}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New(errors.CodeConfigWrite).WithLocation(path, "").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeConfigWrite).WithLocation(path, "").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := server.DefaultServerConfig()

	for i := range c.Servers {
		s := &c.Servers[i].Server
		if s.Port == 0 {
			s.Port = DefaultPort
		}

		ws := &c.Servers[i].WebSockets
		if ws.Path == "" {
			ws.Path = defaults.Path
		}
		if ws.MaxPayloadLength == 0 {
			ws.MaxPayloadLength = defaults.MaxPayloadLength
		}
		if ws.Compression == "" {
			ws.Compression = CompressionEnabled
		}
		if ws.CompressionLevel == 0 {
			ws.CompressionLevel = defaults.CompressionLevel
		}
		if ws.SendQueueSize == 0 {
			ws.SendQueueSize = defaults.SendQueueSize
		}
	}

	settings := tracker.DefaultSettings()
	if c.Tracker.MaxOffers == 0 {
		c.Tracker.MaxOffers = settings.MaxOffers
	}
	if c.Tracker.AnnounceInterval == 0 {
		c.Tracker.AnnounceInterval = int(settings.AnnounceInterval / time.Second)
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Stats.Path == "" {
		c.Stats.Path = DefaultStatsPath
	}
}

// Validate checks if the configuration is valid. The first problem found is
// returned as an *errors.WTError pointing at the offending field.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return errors.New(errors.CodeNoServers).
			WithLocation(c.configPath, "servers").
			WithExample(`"servers": [{"server": {"port": 8000}}]`)
	}

	for i, entry := range c.Servers {
		field := func(name string) string {
			return fmt.Sprintf("servers[%d].%s", i, name)
		}

		s := entry.Server
		if s.Port < 1 || s.Port > 65535 {
			return errors.New(errors.CodeInvalidPort).
				WithLocation(c.configPath, field("server.port")).
				WithDetail(fmt.Sprintf("Port %d is outside 1-65535.", s.Port))
		}
		if (s.KeyFileName == "") != (s.CertFileName == "") {
			return errors.New(errors.CodeTLSPair).
				WithLocation(c.configPath, field("server"))
		}

		ws := entry.WebSockets
		if ws.MaxPayloadLength < 0 {
			return errors.New(errors.CodeInvalidPayload).
				WithLocation(c.configPath, field("websockets.maxPayloadLength"))
		}
		if ws.IdleTimeout < 0 {
			return errors.New(errors.CodeInvalidTimeout).
				WithLocation(c.configPath, field("websockets.idleTimeout"))
		}
		if ws.Compression != CompressionEnabled && ws.Compression != CompressionDisabled {
			return errors.New(errors.CodeCompression).
				WithLocation(c.configPath, field("websockets.compression")).
				WithExample(`"compression": "enabled"`)
		}
		if ws.CompressionLevel < -2 || ws.CompressionLevel > 9 {
			return errors.New(errors.CodeCompression).
				WithLocation(c.configPath, field("websockets.compressionLevel"))
		}
		if ws.Path == "" || ws.Path[0] != '/' {
			return errors.Newf(errors.CategoryConfig, "websocket path %q must start with /", ws.Path).
				WithLocation(c.configPath, field("websockets.path"))
		}
	}

	if c.Tracker.MaxOffers < 0 {
		return errors.New(errors.CodeTrackerSettings).
			WithLocation(c.configPath, "tracker.maxOffers")
	}
	if c.Tracker.AnnounceInterval < 0 {
		return errors.New(errors.CodeTrackerSettings).
			WithLocation(c.configPath, "tracker.announceInterval")
	}

	return nil
}

// TrackerSettings converts the tracker block.
func (c *Config) TrackerSettings() tracker.Settings {
	return tracker.Settings{
		MaxOffers:        c.Tracker.MaxOffers,
		AnnounceInterval: time.Duration(c.Tracker.AnnounceInterval) * time.Second,
	}
}

// ServerConfigs converts every server entry to a server.ServerConfig.
// Relative TLS file names resolve against the config file's directory.
// Hooks (observer, middleware, routes, logger) are left for the caller.
func (c *Config) ServerConfigs() []*server.ServerConfig {
	out := make([]*server.ServerConfig, 0, len(c.Servers))
	for _, entry := range c.Servers {
		sc := server.DefaultServerConfig().
			WithAddress(entry.Server.Host, entry.Server.Port)

		if entry.Server.KeyFileName != "" {
			sc.WithTLS(c.resolve(entry.Server.KeyFileName), c.resolve(entry.Server.CertFileName))
		}
		sc.TrustedProxies = append([]string(nil), entry.Server.TrustedProxies...)

		ws := entry.WebSockets
		sc.Path = ws.Path
		sc.MaxPayloadLength = ws.MaxPayloadLength
		sc.IdleTimeout = time.Duration(ws.IdleTimeout) * time.Second
		sc.Compression = ws.Compression != CompressionDisabled
		sc.CompressionLevel = ws.CompressionLevel
		sc.SendQueueSize = ws.SendQueueSize
		sc.MaxBackpressure = ws.MaxBackpressure
		sc.WithMaxConnections(ws.MaxConnections)

		sc.Access = server.AccessConfig{
			AllowOrigins:    append([]string(nil), c.WebSocketsAccess.AllowOrigins...),
			DenyOrigins:     append([]string(nil), c.WebSocketsAccess.DenyOrigins...),
			DenyEmptyOrigin: c.WebSocketsAccess.DenyEmptyOrigin,
		}

		out = append(out, sc)
	}
	return out
}

// resolve returns path relative to the config directory unless it is absolute.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.configPath == "" {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
