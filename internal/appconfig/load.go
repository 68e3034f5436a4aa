package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/tabtidy/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("engine.sort_key", cfg.Engine.SortKey)
	v.SetDefault("engine.duplicate_match", cfg.Engine.DuplicateMatch)
	v.SetDefault("engine.settle_delay_ms", cfg.Engine.SettleDelayMS)
	v.SetDefault("engine.window_lease", cfg.Engine.WindowLease)
	v.SetDefault("engine.coalesce_hosts", cfg.Engine.CoalesceHosts)
	v.SetDefault("browser.backend", cfg.Browser.Backend)
	v.SetDefault("browser.snapshot", cfg.Browser.Snapshot)
	v.SetDefault("browser.chrome.remote_url", cfg.Browser.Chrome.RemoteURL)
	v.SetDefault("browser.chrome.exec_path", cfg.Browser.Chrome.ExecPath)
	v.SetDefault("browser.chrome.headless", cfg.Browser.Chrome.Headless)
	v.SetDefault("browser.chrome.extension_dir", cfg.Browser.Chrome.ExtensionDir)
	v.SetDefault("browser.chrome.call_timeout_seconds", cfg.Browser.Chrome.CallTimeoutSeconds)
	v.SetDefault("browser.chrome.startup_timeout_seconds", cfg.Browser.Chrome.StartupTimeoutSeconds)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.hub_history", cfg.HTTP.HubHistory)
	v.SetDefault("ssh.enabled", cfg.SSH.Enabled)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateEngineConfig(cfg); err != nil {
		return Config{}, err
	}
	if err := validateBrowserConfig(cfg.Browser); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.Engine.SettleDelayMS < 0 {
		return fmt.Errorf("engine.settle_delay_ms must not be negative")
	}
	if _, err := schema.NormalizeEngineConfig(cfg.EngineConfig()); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func validateBrowserConfig(cfg BrowserConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendMemory, BackendChrome:
	default:
		return fmt.Errorf("unsupported browser.backend %q", cfg.Backend)
	}
	remote := strings.TrimSpace(cfg.Chrome.RemoteURL)
	if remote != "" {
		parsed, err := url.Parse(remote)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("browser.chrome.remote_url must include scheme and host (e.g. ws://127.0.0.1:9222)")
		}
		switch parsed.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return fmt.Errorf("browser.chrome.remote_url scheme %q is not supported", parsed.Scheme)
		}
	}
	if cfg.Chrome.CallTimeoutSeconds < 0 || cfg.Chrome.StartupTimeoutSeconds < 0 {
		return fmt.Errorf("browser.chrome timeouts must not be negative")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	if cfg.HubHistory < 0 {
		return fmt.Errorf("http.hub_history must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Browser.Snapshot = expandEnv(cfg.Browser.Snapshot)
	cfg.Browser.Chrome.ExecPath = expandEnv(cfg.Browser.Chrome.ExecPath)
	cfg.Browser.Chrome.ExtensionDir = expandEnv(cfg.Browser.Chrome.ExtensionDir)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
