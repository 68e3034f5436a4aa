package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy"
	"pkt.systems/tabtidy/httpapi"
	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/sshserver"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var disableAuditTrails bool
	var snapshot string
	var noSSH bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and SSH command channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}
			be, err := openBackend(cmd.Context(), cfg, snapshot)
			if err != nil {
				return err
			}

			serverCfg := tabtidy.ServerConfig{
				Engine:              cfg.EngineConfig(),
				StateDir:            cfg.StateDir,
				HTTP:                toHTTPConfig(cfg.HTTP),
				SSH:                 toSSHConfig(cfg.SSH),
				DisableAuditLogging: cfg.Logging.DisableAuditTrails,
			}
			opts := []tabtidy.ServerOption{tabtidy.WithHTTP()}
			if cfg.SSH.Enabled && !noSSH {
				opts = append(opts, tabtidy.WithSSH())
			}
			server, err := tabtidy.New(serverCfg, tabtidy.ServerDeps{
				Tabs:      be.Tabs,
				Logger:    logger,
				Shortcuts: be.Shortcuts,
			}, opts...)
			if err != nil {
				be.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			waitErr := server.Wait()
			if err := be.Save(); err != nil {
				logger.Warn("snapshot save failed", "err", err)
			}
			return waitErr
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "serve an in-memory browser loaded from this snapshot")
	cmd.Flags().BoolVar(&noSSH, "no-ssh", false, "disable the ssh channel even when configured")
	return cmd
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:       cfg.Addr,
		BasePath:   cfg.BasePath,
		HubHistory: cfg.HubHistory,
	}
}

func toSSHConfig(cfg appconfig.SSHConfig) sshserver.Config {
	return sshserver.Config{
		Addr:               cfg.Addr,
		HostKeyPath:        cfg.HostKeyPath,
		AuthorizedKeysPath: cfg.AuthorizedKeysPath,
	}
}
