package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darkkid0/wt-tracker/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func wantCode(t *testing.T, err error, code string) *errors.WTError {
	t.Helper()
	var we *errors.WTError
	if !stderrors.As(err, &we) {
		t.Fatalf("error = %v, want *errors.WTError", err)
	}
	if we.Code != code {
		t.Fatalf("code = %s, want %s (%v)", we.Code, code, err)
	}
	return we
}

func TestNew(t *testing.T) {
	cfg := New()

	if len(cfg.Servers) != 1 {
		t.Fatalf("len(Servers) = %d, want 1", len(cfg.Servers))
	}
	s := cfg.Servers[0]
	if s.Server.Host != DefaultHost || s.Server.Port != DefaultPort {
		t.Errorf("Server = %+v", s.Server)
	}
	if s.WebSockets.Path != "/" || s.WebSockets.MaxPayloadLength != 65536 || s.WebSockets.IdleTimeout != 240 {
		t.Errorf("WebSockets = %+v", s.WebSockets)
	}
	if s.WebSockets.Compression != CompressionEnabled || s.WebSockets.CompressionLevel != 3 {
		t.Errorf("compression = %q level %d", s.WebSockets.Compression, s.WebSockets.CompressionLevel)
	}
	if cfg.Tracker.MaxOffers != 20 || cfg.Tracker.AnnounceInterval != 120 {
		t.Errorf("Tracker = %+v", cfg.Tracker)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Stats.Enabled || cfg.Stats.Path != DefaultStatsPath {
		t.Errorf("Stats = %+v", cfg.Stats)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults: %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	we := wantCode(t, err, errors.CodeConfigRead)
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Error("missing file error should wrap os.ErrNotExist")
	}
	if we.Location == nil || we.Location.File != filepath.Join(tmpDir, ConfigFileName) {
		t.Errorf("Location = %+v", we.Location)
	}

	configJSON := `{
  "servers": [
    {
      "server": {"host": "127.0.0.1", "port": 9000},
      "websockets": {"path": "/announce", "maxPayloadLength": 1024, "idleTimeout": 30,
                     "compression": "disabled", "maxConnections": 100}
    },
    {
      "server": {"port": 9443, "key_file_name": "key.pem", "cert_file_name": "/etc/cert.pem"}
    }
  ],
  "tracker": {"maxOffers": 5},
  "websocketsAccess": {"denyOrigins": ["https://evil.example"], "denyEmptyOrigin": true},
  "debug": {"verbose": true},
  "metrics": {"enabled": false}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}

	if len(cfg.Servers) != 2 {
		t.Fatalf("len(Servers) = %d, want 2", len(cfg.Servers))
	}
	first := cfg.Servers[0]
	if first.Server.Host != "127.0.0.1" || first.Server.Port != 9000 {
		t.Errorf("Servers[0].Server = %+v", first.Server)
	}
	if first.WebSockets.Path != "/announce" || first.WebSockets.MaxPayloadLength != 1024 {
		t.Errorf("Servers[0].WebSockets = %+v", first.WebSockets)
	}
	if first.WebSockets.IdleTimeout != 30 {
		t.Errorf("Servers[0].WebSockets.IdleTimeout = %d, want 30", first.WebSockets.IdleTimeout)
	}
	second := cfg.Servers[1]
	if second.WebSockets.Path != "/" || second.WebSockets.IdleTimeout != 240 || second.WebSockets.Compression != CompressionEnabled {
		t.Errorf("Servers[1].WebSockets defaults = %+v", second.WebSockets)
	}
	if second.Server.Host != "" {
		t.Errorf("Servers[1].Server.Host = %q, want all interfaces", second.Server.Host)
	}
	if cfg.Tracker.MaxOffers != 5 || cfg.Tracker.AnnounceInterval != 120 {
		t.Errorf("Tracker = %+v", cfg.Tracker)
	}
	if !cfg.Debug.Verbose {
		t.Error("Debug.Verbose should be true")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false")
	}
	if !cfg.Stats.Enabled {
		t.Error("Stats.Enabled should keep its default")
	}
	if cfg.Path() != filepath.Join(tmpDir, ConfigFileName) || cfg.Dir() != tmpDir {
		t.Errorf("Path() = %q Dir() = %q", cfg.Path(), cfg.Dir())
	}
}

func TestLoadFile_WithoutServers(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `{"tracker": {"announceInterval": 60}}`))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Server.Port != DefaultPort {
		t.Fatalf("Servers = %+v, want the default listener", cfg.Servers)
	}
	if got := cfg.TrackerSettings().AnnounceInterval; got != time.Minute {
		t.Fatalf("AnnounceInterval = %v, want 1m", got)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	for _, body := range []string{
		"not valid json",
		`{"servers": {}}`,
		`{"servers": [{"server": {"port": "80"}}]}`,
	} {
		_, err := LoadFile(writeConfig(t, body))
		wantCode(t, err, errors.CodeConfigParse)
	}
}

func TestSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), ConfigFileName)

	cfg := New()
	cfg.Servers[0].Server.Port = 9000
	cfg.Tracker.MaxOffers = 7

	if err := cfg.Save(); err == nil {
		t.Error("Expected error when saving without path")
	}

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if loaded.Servers[0].Server.Port != 9000 || loaded.Tracker.MaxOffers != 7 {
		t.Errorf("loaded = %+v", loaded)
	}

	loaded.Servers[0].Server.Port = 9001
	if err := loaded.Save(); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Servers[0].Server.Port != 9001 {
		t.Errorf("Port = %d, want %d", reloaded.Servers[0].Server.Port, 9001)
	}
}

func TestSaveTo_UnwritablePath(t *testing.T) {
	err := New().SaveTo(filepath.Join(t.TempDir(), "missing", ConfigFileName))
	wantCode(t, err, errors.CodeConfigWrite)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		code   string
		field  string
	}{
		{"no servers", func(c *Config) { c.Servers = []ServerEntry{} }, errors.CodeNoServers, "servers"},
		{"negative port", func(c *Config) { c.Servers[0].Server.Port = -1 }, errors.CodeInvalidPort, "servers[0].server.port"},
		{"port too large", func(c *Config) { c.Servers[0].Server.Port = 70000 }, errors.CodeInvalidPort, "servers[0].server.port"},
		{"key without cert", func(c *Config) { c.Servers[0].Server.KeyFileName = "k.pem" }, errors.CodeTLSPair, "servers[0].server"},
		{"cert without key", func(c *Config) { c.Servers[0].Server.CertFileName = "c.pem" }, errors.CodeTLSPair, "servers[0].server"},
		{"negative payload", func(c *Config) { c.Servers[0].WebSockets.MaxPayloadLength = -1 }, errors.CodeInvalidPayload, "servers[0].websockets.maxPayloadLength"},
		{"negative idle timeout", func(c *Config) { c.Servers[0].WebSockets.IdleTimeout = -5 }, errors.CodeInvalidTimeout, "servers[0].websockets.idleTimeout"},
		{"bad compression", func(c *Config) { c.Servers[0].WebSockets.Compression = "on" }, errors.CodeCompression, "servers[0].websockets.compression"},
		{"bad compression level", func(c *Config) { c.Servers[0].WebSockets.CompressionLevel = 12 }, errors.CodeCompression, "servers[0].websockets.compressionLevel"},
		{"negative max offers", func(c *Config) { c.Tracker.MaxOffers = -1 }, errors.CodeTrackerSettings, "tracker.maxOffers"},
		{"negative interval", func(c *Config) { c.Tracker.AnnounceInterval = -1 }, errors.CodeTrackerSettings, "tracker.announceInterval"},
		{"second server", func(c *Config) {
			c.Servers = append(c.Servers, ServerEntry{Server: BindConfig{Port: 0}, WebSockets: c.Servers[0].WebSockets})
		}, errors.CodeInvalidPort, "servers[1].server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			we := wantCode(t, cfg.Validate(), tt.code)
			if we.Location == nil || we.Location.Field != tt.field {
				t.Errorf("Location = %+v, want field %q", we.Location, tt.field)
			}
		})
	}
}

func TestLoadFile_IdleTimeoutZeroDisables(t *testing.T) {
	path := writeConfig(t, `{"servers": [
  {"websockets": {"idleTimeout": 0}},
  {"websockets": {"path": "/ws"}}
]}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if got := cfg.Servers[0].WebSockets.IdleTimeout; got != 0 {
		t.Errorf("explicit idleTimeout 0 became %d", got)
	}
	if got := cfg.Servers[1].WebSockets.IdleTimeout; got != 240 {
		t.Errorf("absent idleTimeout = %d, want 240", got)
	}

	scs := cfg.ServerConfigs()
	if scs[0].IdleTimeout != 0 || scs[1].IdleTimeout != 240*time.Second {
		t.Errorf("IdleTimeout = %v and %v", scs[0].IdleTimeout, scs[1].IdleTimeout)
	}

	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	reloaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Servers[0].WebSockets.IdleTimeout; got != 0 {
		t.Errorf("idleTimeout 0 did not survive a save, got %d", got)
	}
}

func TestValidate_Path(t *testing.T) {
	cfg := New()
	cfg.Servers[0].WebSockets.Path = "announce"
	err := cfg.Validate()
	var we *errors.WTError
	if !stderrors.As(err, &we) || we.Category != errors.CategoryConfig {
		t.Fatalf("Validate() = %v, want a config error", err)
	}
}

func TestServerConfigs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg := New()
	cfg.Servers[0].WebSockets.Compression = CompressionDisabled
	cfg.Servers[0].WebSockets.MaxConnections = 10
	cfg.Servers[0].WebSockets.MaxBackpressure = 1 << 20
	cfg.Servers[0].Server.TrustedProxies = []string{"10.0.0.0/8"}
	cfg.Servers = append(cfg.Servers, ServerEntry{
		Server: BindConfig{Port: 8443, KeyFileName: "key.pem", CertFileName: "/abs/cert.pem"},
	})
	cfg.WebSocketsAccess = AccessConfig{AllowOrigins: []string{"https://a.example"}, DenyEmptyOrigin: true}
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	scs := cfg.ServerConfigs()
	if len(scs) != 2 {
		t.Fatalf("len = %d, want 2", len(scs))
	}

	plain := scs[0]
	if plain.Addr() != "0.0.0.0:8000" || plain.TLS() {
		t.Errorf("plain Addr() = %q TLS() = %v", plain.Addr(), plain.TLS())
	}
	if plain.Compression || plain.MaxConnections != 10 || plain.MaxBackpressure != 1<<20 {
		t.Errorf("plain = %+v", plain)
	}
	if plain.IdleTimeout != 240*time.Second || plain.MaxPayloadLength != 65536 || plain.Path != "/" {
		t.Errorf("plain websockets = %+v", plain)
	}
	if len(plain.TrustedProxies) != 1 || plain.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("TrustedProxies = %v", plain.TrustedProxies)
	}
	if len(plain.Access.AllowOrigins) != 1 || !plain.Access.DenyEmptyOrigin {
		t.Errorf("Access = %+v", plain.Access)
	}
	if err := plain.Validate(); err != nil {
		t.Errorf("server Validate() = %v", err)
	}

	tls := scs[1]
	if !tls.TLS() || !tls.Compression {
		t.Errorf("tls TLS() = %v Compression = %v", tls.TLS(), tls.Compression)
	}
	if tls.KeyFile != filepath.Join(dir, "key.pem") || tls.CertFile != "/abs/cert.pem" {
		t.Errorf("KeyFile = %q CertFile = %q", tls.KeyFile, tls.CertFile)
	}

	scs[0].Access.AllowOrigins[0] = "changed"
	if cfg.WebSocketsAccess.AllowOrigins[0] != "https://a.example" {
		t.Error("ServerConfigs should copy the access lists")
	}
}

func TestTrackerSettings(t *testing.T) {
	cfg := New()
	got := cfg.TrackerSettings()
	if got.MaxOffers != 20 || got.AnnounceInterval != 2*time.Minute {
		t.Fatalf("TrackerSettings() = %+v", got)
	}
}

func TestExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	if Exists(path) {
		t.Error("Exists should be false before saving")
	}
	if err := New().SaveTo(path); err != nil {
		t.Fatal(err)
	}
	if !Exists(path) {
		t.Error("Exists should be true after saving")
	}
}
