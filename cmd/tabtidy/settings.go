package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored preferences",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")

	openStore := func(cmd *cobra.Command) (*settings.Store, error) {
		cfg, err := appconfig.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		return settings.NewStoreWithLogger(cfg.StateDir, pslog.Ctx(cmd.Context()))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			current, err := store.Get()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "preserve-pinned: %t\n", current.PreservePinned)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set preserve-pinned <true|false>",
		Short: "Change a stored preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "preserve-pinned" {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("preserve-pinned: %w", err)
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			if err := store.SetPreservePinned(value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "preserve-pinned: %t\n", value)
			return err
		},
	})
	return cmd
}
