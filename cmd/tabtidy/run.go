package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/internal/appconfig"
	"pkt.systems/tabtidy/internal/command"
	"pkt.systems/tabtidy/internal/format"
	"pkt.systems/tabtidy/internal/settings"
	"pkt.systems/tabtidy/schema"
)

// session bundles an engine over an opened backend for one-shot commands.
type session struct {
	cfg      appconfig.Config
	backend  *backend
	engine   core.Engine
	settings *settings.Store
}

func openSession(ctx context.Context, cfgPath, snapshot string) (*session, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	be, err := openBackend(ctx, cfg, snapshot)
	if err != nil {
		return nil, err
	}
	engine, err := core.NewEngine(cfg.EngineConfig(), core.EngineDeps{
		Tabs:   be.Tabs,
		Logger: pslog.Ctx(ctx),
	})
	if err != nil {
		be.Close()
		return nil, err
	}
	store, err := settings.NewStoreWithLogger(cfg.StateDir, pslog.Ctx(ctx))
	if err != nil {
		be.Close()
		return nil, err
	}
	return &session{cfg: cfg, backend: be, engine: engine, settings: store}, nil
}

func (s *session) Close() {
	s.backend.Close()
}

func (s *session) printWindows(ctx context.Context, out io.Writer) error {
	windows, err := s.engine.Windows(ctx)
	if err != nil {
		return err
	}
	for _, line := range format.NewPlainRenderer().FormatWindows(windows) {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var cfgPath string
	var snapshot string
	var write bool
	var window int64
	var preservePinned bool
	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run one operation and print the resulting layout",
		Long: "Run one operation against the configured browser, or against an offline\n" +
			"snapshot with --snapshot. Operations: " + operationList() + ".",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := schema.ParseOperation(args[0])
			if err != nil {
				return err
			}
			if window < 0 {
				return fmt.Errorf("%w: window id %d", schema.ErrInvalidRequest, window)
			}
			ctx := cmd.Context()
			sess, err := openSession(ctx, cfgPath, snapshot)
			if err != nil {
				return err
			}
			defer sess.Close()

			preserve := preservePinned
			if !cmd.Flags().Changed("preserve-pinned") {
				if preserve, err = sess.settings.PreservePinned(); err != nil {
					return err
				}
			}
			resp, err := sess.engine.Run(ctx, schema.RunRequest{
				Operation:      op,
				WindowID:       schema.WindowID(window),
				PreservePinned: preserve,
			})
			if err != nil {
				return err
			}
			pslog.Ctx(ctx).Info("run ok", "op", string(op), "window", int64(resp.WindowID), "duration", resp.Duration)
			if write {
				if err := sess.backend.Save(); err != nil {
					return err
				}
			}
			return sess.printWindows(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "operate on a YAML snapshot instead of the browser")
	cmd.Flags().BoolVar(&write, "write", false, "write the result back to the snapshot")
	cmd.Flags().Int64VarP(&window, "window", "w", 0, "target window id (0 for the focused window)")
	cmd.Flags().BoolVar(&preservePinned, "preserve-pinned", false, "keep pinned tabs in place (default: stored setting)")
	return cmd
}

func newCommandCmd() *cobra.Command {
	var cfgPath string
	var snapshot string
	var write bool
	cmd := &cobra.Command{
		Use:   "command <name> [window-id]",
		Short: "Dispatch a shortcut or message command",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx, cfgPath, snapshot)
			if err != nil {
				return err
			}
			defer sess.Close()
			handler := command.NewHandler(sess.engine, sess.settings, command.HandlerConfig{
				DisableAuditLogging: sess.cfg.Logging.DisableAuditTrails,
			})
			input := args[0]
			if len(args) == 2 {
				input += " " + args[1]
			}
			_, err = handler.Handle(ctx, input)
			result := schema.ResultFromError(err)
			if _, werr := fmt.Fprintln(cmd.OutOrStdout(), format.FormatResult(result)); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if write {
				return sess.backend.Save()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "operate on a YAML snapshot instead of the browser")
	cmd.Flags().BoolVar(&write, "write", false, "write the result back to the snapshot")
	return cmd
}

func newWindowsCmd() *cobra.Command {
	var cfgPath string
	var snapshot string
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "Print windows and their tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd.Context(), cfgPath, snapshot)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.printWindows(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "read a YAML snapshot instead of the browser")
	return cmd
}

func operationList() string {
	ops := schema.Operations()
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}
