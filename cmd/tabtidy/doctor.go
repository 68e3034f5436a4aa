package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/internal/chromebridge"
	"pkt.systems/tabtidy/sshserver"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var probe bool
	var probeTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run tabtidy diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			logger.Info("doctor start", "config", cfgPath, "backend", cfg.Browser.Backend)

			problems := diagnose(logger, cfg)
			if probe {
				if err := probeBackend(cmd.Context(), cfg, probeTimeout); err != nil {
					logger.Warn("doctor backend probe failed", "err", err)
					problems++
				}
			}
			if problems > 0 {
				return fmt.Errorf("doctor found %d problem(s)", problems)
			}
			logger.Info("doctor ok")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&probe, "probe", false, "connect to the backend and list windows")
	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 30*time.Second, "backend probe timeout")
	return cmd
}

// diagnose checks on-disk prerequisites and returns the number of problems found.
func diagnose(logger pslog.Logger, cfg appconfig.Config) int {
	problems := 0
	if !checkPath(logger, "state_dir", cfg.StateDir) {
		problems++
	}
	if strings.EqualFold(cfg.Browser.Backend, appconfig.BackendChrome) && cfg.Browser.Chrome.RemoteURL != "" {
		if !checkPath(logger, "extension_dir", cfg.Browser.Chrome.ExtensionDir) {
			problems++
		} else {
			for _, name := range chromebridge.ExtensionFiles() {
				path := filepath.Join(cfg.Browser.Chrome.ExtensionDir, name)
				if _, err := os.Stat(path); err != nil {
					logger.Warn("extension file missing", "path", path, "err", err)
					problems++
				}
			}
		}
	}
	if cfg.SSH.Enabled {
		keys, err := sshserver.LoadAuthorizedKeys(cfg.SSH.AuthorizedKeysPath)
		if err != nil {
			logger.Warn("authorized keys invalid", "path", cfg.SSH.AuthorizedKeysPath, "err", err)
			problems++
		} else if keys.Len() == 0 {
			logger.Warn("authorized keys empty; no ssh client can log in", "path", cfg.SSH.AuthorizedKeysPath)
		} else {
			logger.Info("authorized keys ok", "path", cfg.SSH.AuthorizedKeysPath, "keys", keys.Len())
		}
		if _, err := sshserver.EnsureHostKey(cfg.SSH.HostKeyPath); err != nil {
			logger.Warn("host key unavailable", "path", cfg.SSH.HostKeyPath, "err", err)
			problems++
		}
	}
	return problems
}

func probeBackend(ctx context.Context, cfg appconfig.Config, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	be, err := openBackend(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer be.Close()
	windows, err := be.Tabs.ListWindows(ctx)
	if err != nil {
		return err
	}
	tabs := 0
	for _, w := range windows {
		tabs += len(w.Tabs)
	}
	pslog.Ctx(ctx).Info("doctor backend ok", "windows", len(windows), "tabs", tabs)
	return nil
}

func checkPath(logger pslog.Logger, label, value string) bool {
	if strings.TrimSpace(value) == "" {
		logger.Warn("path empty", "name", label)
		return false
	}
	info, err := os.Stat(value)
	if err != nil {
		logger.Warn("path missing", "name", label, "path", value, "err", err)
		return false
	}
	if !info.Mode().IsDir() {
		logger.Warn("path not directory", "name", label, "path", value)
		return false
	}
	logger.Info("path ok", "name", label, "path", value)
	return true
}
