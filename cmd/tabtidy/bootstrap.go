package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/bootstrap"
)

func newBootstrapCmd() *cobra.Command {
	var outputDir string
	var overwrite bool
	var enableSSH bool
	var debugPort int
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Generate config, bridge extension and browser launcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			out := outputDir
			if out == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				out = filepath.Join(home, ".tabtidy")
			}
			paths, err := bootstrap.WriteBootstrap(out, overwrite, bootstrap.Options{
				DebugPort: debugPort,
				EnableSSH: enableSSH,
			})
			if err != nil {
				return err
			}
			logger.Info("bootstrap wrote", "path", paths.ConfigPath, "name", "config.yaml")
			logger.Info("bootstrap wrote", "path", paths.ExtensionDir, "name", "extension/")
			logger.Info("bootstrap wrote", "path", paths.LaunchScript, "name", "launch-chrome.sh")
			logger.Info("bootstrap wrote", "path", paths.AuthorizedKeysPath, "name", "authorized_keys")
			logger.Info("bootstrap wrote", "path", paths.HostKeyPath, "name", "ssh_host_key")
			logger.Info("bootstrap wrote", "path", paths.StateDir, "name", "state/")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ~/.tabtidy)")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&enableSSH, "ssh", false, "enable the ssh command channel")
	cmd.Flags().IntVar(&debugPort, "debug-port", bootstrap.DefaultDebugPort, "DevTools port for the launcher")
	return cmd
}
