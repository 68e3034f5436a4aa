package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/tabtidy/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Engine        EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Browser       BrowserConfig `mapstructure:"browser" yaml:"browser"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Browser backends.
const (
	BackendMemory = "memory"
	BackendChrome = "chrome"
)

// EngineConfig tunes the tab engine.
type EngineConfig struct {
	SortKey        string            `mapstructure:"sort_key" yaml:"sort_key"`
	DuplicateMatch string            `mapstructure:"duplicate_match" yaml:"duplicate_match"`
	SettleDelayMS  int               `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
	WindowLease    bool              `mapstructure:"window_lease" yaml:"window_lease"`
	CoalesceHosts  map[string]string `mapstructure:"coalesce_hosts" yaml:"coalesce_hosts"`
}

// BrowserConfig selects and configures the tab service backend.
type BrowserConfig struct {
	Backend  string       `mapstructure:"backend" yaml:"backend"`
	Snapshot string       `mapstructure:"snapshot" yaml:"snapshot"`
	Chrome   ChromeConfig `mapstructure:"chrome" yaml:"chrome"`
}

// ChromeConfig configures the DevTools bridge backend.
type ChromeConfig struct {
	// RemoteURL attaches to a running browser (ws:// or http:// DevTools endpoint).
	RemoteURL             string `mapstructure:"remote_url" yaml:"remote_url"`
	ExecPath              string `mapstructure:"exec_path" yaml:"exec_path"`
	Headless              bool   `mapstructure:"headless" yaml:"headless"`
	ExtensionDir          string `mapstructure:"extension_dir" yaml:"extension_dir"`
	CallTimeoutSeconds    int    `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	StartupTimeoutSeconds int    `mapstructure:"startup_timeout_seconds" yaml:"startup_timeout_seconds"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	BasePath   string `mapstructure:"base_path" yaml:"base_path"`
	HubHistory int    `mapstructure:"hub_history" yaml:"hub_history"`
}

// SSHConfig configures the SSH command channel.
type SSHConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr               string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".tabtidy")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		Engine: EngineConfig{
			SortKey:        string(schema.SortByURL),
			DuplicateMatch: string(schema.MatchNormalized),
			SettleDelayMS:  int(schema.DefaultSettleDelay / time.Millisecond),
			WindowLease:    true,
			CoalesceHosts:  schema.DefaultCoalesceHosts(),
		},
		Browser: BrowserConfig{
			Backend:  BackendChrome,
			Snapshot: filepath.Join(root, "state", "tabs.yaml"),
			Chrome: ChromeConfig{
				RemoteURL:             "",
				ExecPath:              "",
				Headless:              false,
				ExtensionDir:          filepath.Join(root, "extension"),
				CallTimeoutSeconds:    10,
				StartupTimeoutSeconds: 30,
			},
		},
		HTTP: HTTPConfig{
			Addr:       "127.0.0.1:27490",
			BasePath:   "",
			HubHistory: 256,
		},
		SSH: SSHConfig{
			Enabled:            false,
			Addr:               "127.0.0.1:27422",
			HostKeyPath:        filepath.Join(root, "ssh_host_key"),
			AuthorizedKeysPath: filepath.Join(root, "authorized_keys"),
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tabtidy", "config.yaml"), nil
}

// EngineConfig converts the engine section into the engine's config type.
func (c Config) EngineConfig() schema.EngineConfig {
	return schema.EngineConfig{
		SortKey:        schema.SortKey(c.Engine.SortKey),
		DuplicateMatch: schema.DuplicateMatch(c.Engine.DuplicateMatch),
		SettleDelay:    time.Duration(c.Engine.SettleDelayMS) * time.Millisecond,
		WindowLease:    c.Engine.WindowLease,
		CoalesceHosts:  c.Engine.CoalesceHosts,
	}
}
