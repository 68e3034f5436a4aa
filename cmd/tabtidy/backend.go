package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/internal/chromebridge"
	"pkt.systems/tabtidy/internal/memtabs"
)

// backend is an opened tab service plus what it needs on shutdown.
type backend struct {
	Tabs      core.TabService
	Shortcuts <-chan string
	// memory is set for the snapshot-backed backend.
	memory       *memtabs.Browser
	snapshotPath string
	bridge       *chromebridge.Bridge
}

// openBackend opens the configured tab service. A non-empty snapshot forces
// the memory backend over that file.
func openBackend(ctx context.Context, cfg appconfig.Config, snapshot string) (*backend, error) {
	logger := pslog.Ctx(ctx)
	kind := strings.ToLower(strings.TrimSpace(cfg.Browser.Backend))
	if strings.TrimSpace(snapshot) != "" {
		kind = appconfig.BackendMemory
	} else {
		snapshot = cfg.Browser.Snapshot
	}
	switch kind {
	case appconfig.BackendMemory:
		browser, err := loadMemory(snapshot, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("backend open ok", "backend", kind, "snapshot", snapshot)
		return &backend{Tabs: browser, memory: browser, snapshotPath: snapshot}, nil
	case appconfig.BackendChrome:
		chrome := cfg.Browser.Chrome
		bridge, err := chromebridge.Start(ctx, chromebridge.Config{
			RemoteURL:      chrome.RemoteURL,
			ExecPath:       chrome.ExecPath,
			Headless:       chrome.Headless,
			ExtensionDir:   chrome.ExtensionDir,
			CallTimeout:    time.Duration(chrome.CallTimeoutSeconds) * time.Second,
			StartupTimeout: time.Duration(chrome.StartupTimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("backend open ok", "backend", kind, "remote", chrome.RemoteURL != "")
		return &backend{Tabs: bridge, Shortcuts: bridge.Commands(), bridge: bridge}, nil
	default:
		return nil, fmt.Errorf("unsupported browser.backend %q", cfg.Browser.Backend)
	}
}

func loadMemory(path string, logger pslog.Logger) (*memtabs.Browser, error) {
	if strings.TrimSpace(path) == "" {
		return memtabs.New(logger), nil
	}
	browser, err := memtabs.LoadSnapshot(path, logger)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("backend snapshot missing; starting empty", "snapshot", path)
		return memtabs.New(logger), nil
	}
	return browser, err
}

// Save writes the memory layout back to its snapshot.
func (b *backend) Save() error {
	if b.memory == nil || b.snapshotPath == "" {
		return nil
	}
	return b.memory.SaveSnapshot(b.snapshotPath)
}

// Close releases the browser connection, if any.
func (b *backend) Close() {
	if b.bridge != nil {
		b.bridge.Close()
	}
}
