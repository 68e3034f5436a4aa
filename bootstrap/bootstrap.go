// Package bootstrap writes a ready-to-run tabtidy home: config, bridge
// extension, browser launcher and SSH key material.
package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/internal/chromebridge"
	"pkt.systems/tabtidy/sshserver"
)

const (
	configName         = "config.yaml"
	launchScriptName   = "launch-chrome.sh"
	extensionDirName   = "extension"
	profileDirName     = "chrome-profile"
	authorizedKeysName = "authorized_keys"
	hostKeyName        = "ssh_host_key"
	stateDirName       = "state"
	// DefaultDebugPort is the DevTools port used by the generated launcher.
	DefaultDebugPort = 9222
)

const authorizedKeysHeader = `# tabtidy authorized_keys
# One OpenSSH public key per line; the comment is logged as the client name.
`

// ConfigOverride sets a dotted config path (e.g. "http.addr") in the generated config.
type ConfigOverride struct {
	Path  string
	Value any
}

// Options controls optional bootstrap behaviors.
type Options struct {
	DebugPort int
	EnableSSH bool
	Overrides []ConfigOverride
}

// Paths reports where bootstrap wrote its outputs.
type Paths struct {
	ConfigPath         string
	StateDir           string
	ExtensionDir       string
	LaunchScript       string
	AuthorizedKeysPath string
	HostKeyPath        string
}

type templateData struct {
	DebugPort    int
	RemoteURL    string
	ExtensionDir string
	ProfileDir   string
}

// Config returns the config bootstrap writes for a home rooted at root.
func Config(root string, opts Options) (appconfig.Config, error) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		return appconfig.Config{}, err
	}
	port := opts.DebugPort
	if port <= 0 {
		port = DefaultDebugPort
	}
	cfg.ConfigVersion = appconfig.CurrentConfigVersion
	cfg.StateDir = filepath.Join(root, stateDirName)
	cfg.Browser.Backend = appconfig.BackendChrome
	cfg.Browser.Snapshot = filepath.Join(root, stateDirName, "tabs.yaml")
	cfg.Browser.Chrome.RemoteURL = remoteURL(port)
	cfg.Browser.Chrome.ExtensionDir = filepath.Join(root, extensionDirName)
	cfg.SSH.Enabled = opts.EnableSSH
	cfg.SSH.HostKeyPath = filepath.Join(root, hostKeyName)
	cfg.SSH.AuthorizedKeysPath = filepath.Join(root, authorizedKeysName)
	if len(opts.Overrides) > 0 {
		cfg, err = applyOverrides(cfg, opts.Overrides)
		if err != nil {
			return appconfig.Config{}, err
		}
	}
	return cfg, nil
}

// WriteBootstrap populates outputDir. Existing generated files are replaced
// only when overwrite is set; an existing authorized_keys file is never touched.
func WriteBootstrap(outputDir string, overwrite bool, opts Options) (Paths, error) {
	if strings.TrimSpace(outputDir) == "" {
		return Paths{}, errors.New("output directory is required")
	}
	root, err := filepath.Abs(outputDir)
	if err != nil {
		root = outputDir
	}
	cfg, err := Config(root, opts)
	if err != nil {
		return Paths{}, err
	}
	paths := Paths{
		ConfigPath:         filepath.Join(root, configName),
		StateDir:           cfg.StateDir,
		ExtensionDir:       cfg.Browser.Chrome.ExtensionDir,
		LaunchScript:       filepath.Join(root, launchScriptName),
		AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
		HostKeyPath:        cfg.SSH.HostKeyPath,
	}
	if !overwrite {
		for _, path := range []string{paths.ConfigPath, paths.LaunchScript} {
			if _, err := os.Stat(path); err == nil {
				return Paths{}, fmt.Errorf("file already exists: %s", path)
			}
		}
	}

	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return Paths{}, err
	}
	launch, err := renderLaunchScript(templateData{
		DebugPort:    debugPort(opts),
		RemoteURL:    cfg.Browser.Chrome.RemoteURL,
		ExtensionDir: paths.ExtensionDir,
		ProfileDir:   filepath.Join(root, profileDirName),
	})
	if err != nil {
		return Paths{}, err
	}

	if err := os.MkdirAll(paths.StateDir, 0o700); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ConfigPath, configYAML, 0o600); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.LaunchScript, launch, 0o755); err != nil {
		return Paths{}, err
	}
	if err := chromebridge.WriteExtension(paths.ExtensionDir); err != nil {
		return Paths{}, fmt.Errorf("write extension: %w", err)
	}
	if err := ensureAuthorizedKeys(paths.AuthorizedKeysPath); err != nil {
		return Paths{}, err
	}
	if _, err := sshserver.EnsureHostKey(paths.HostKeyPath); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func ensureAuthorizedKeys(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(authorizedKeysHeader), 0o600)
}

func debugPort(opts Options) int {
	if opts.DebugPort > 0 {
		return opts.DebugPort
	}
	return DefaultDebugPort
}

func remoteURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func renderLaunchScript(data templateData) ([]byte, error) {
	return renderTemplate("templates/launch-chrome.sh.tmpl", data)
}

func renderTemplate(name string, data templateData) ([]byte, error) {
	raw, err := readEmbeddedFile(name)
	if err != nil {
		return nil, err
	}
	tpl, err := template.New(filepath.Base(name)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func applyOverrides(cfg appconfig.Config, overrides []ConfigOverride) (appconfig.Config, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, err
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return cfg, err
	}
	for _, override := range overrides {
		if err := setOverrideValue(data, override.Path, override.Value); err != nil {
			return cfg, err
		}
	}
	updated, err := yaml.Marshal(data)
	if err != nil {
		return cfg, err
	}
	var next appconfig.Config
	if err := yaml.Unmarshal(updated, &next); err != nil {
		return cfg, err
	}
	return next, nil
}

func setOverrideValue(root map[string]any, path string, value any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("config override path is required")
	}
	parts := strings.Split(path, ".")
	node := root
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("invalid config override path %q", path)
		}
		if i == len(parts)-1 {
			node[part] = value
			return nil
		}
		next, ok := node[part]
		if !ok || next == nil {
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config override %q: %q is not a map", path, part)
		}
		node = child
	}
	return nil
}
