// Package command maps shortcut commands to engine operations.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/schema"
)

// Shortcut command names bound by the browser extension manifest.
const (
	CleanTabs        = "execute_clean_tabs"
	GroupAllTabs     = "execute_group_all_tabs"
	RemoveDuplicates = "execute_remove_duplicates"
	SortTabs         = "execute_sort_tabs"
	GroupByDomain    = "execute_group_by_domain"
	CloseBlankTabs   = "execute_close_blank_tabs"
	UngroupTabs      = "execute_ungroup_tabs"
)

var shortcuts = map[string]schema.Operation{
	CleanTabs:        schema.OpClean,
	GroupAllTabs:     schema.OpConsolidate,
	RemoveDuplicates: schema.OpRemoveDuplicates,
	SortTabs:         schema.OpSort,
	GroupByDomain:    schema.OpGroupByDomain,
	CloseBlankTabs:   schema.OpCloseBlank,
	UngroupTabs:      schema.OpUngroup,
}

// Settings supplies the stored preserve-pinned preference.
type Settings interface {
	PreservePinned() (bool, error)
}

// HandlerConfig configures command behavior.
type HandlerConfig struct {
	DisableAuditLogging bool
}

// Handler routes commands to engine operations against a window.
type Handler struct {
	engine   core.Engine
	settings Settings
	cfg      HandlerConfig
}

// NewHandler constructs a command handler. settings may be nil, in which
// case pinned tabs are not preserved.
func NewHandler(engine core.Engine, settings Settings, cfg HandlerConfig) *Handler {
	return &Handler{engine: engine, settings: settings, cfg: cfg}
}

// Resolve maps a shortcut name, operation name or message alias to an operation.
func Resolve(name string) (schema.Operation, error) {
	key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), "/")))
	if op, ok := shortcuts[key]; ok {
		return op, nil
	}
	op, err := schema.ParseOperation(key)
	if err != nil {
		return "", fmt.Errorf("%w: %q", schema.ErrUnknownCommand, name)
	}
	return op, nil
}

// Shortcuts returns the shortcut command names in sorted order.
func Shortcuts() []string {
	out := make([]string, 0, len(shortcuts))
	for name := range shortcuts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Help returns a short description of the accepted commands.
func Help() string {
	var b strings.Builder
	b.WriteString("commands: [/]<name> [window-id]\n")
	for _, op := range schema.Operations() {
		fmt.Fprintf(&b, "  %s\n", op)
	}
	b.WriteString("shortcuts:\n")
	for _, name := range Shortcuts() {
		fmt.Fprintf(&b, "  %s -> %s\n", name, shortcuts[name])
	}
	return b.String()
}

// Handle parses input and runs the named operation. An optional first
// argument selects the window; otherwise the current window is used.
func (h *Handler) Handle(ctx context.Context, input string) (schema.RunResponse, error) {
	if ctx == nil {
		return schema.RunResponse{}, errors.New("missing context")
	}
	cmd, ok := Parse(input)
	if !ok {
		pslog.Ctx(ctx).Warn("command rejected", "reason", "empty")
		return schema.RunResponse{}, fmt.Errorf("%w: empty command", schema.ErrUnknownCommand)
	}
	window := schema.WindowCurrent
	if len(cmd.Args) > 0 {
		id, err := strconv.ParseInt(cmd.Args[0], 10, 64)
		if err != nil || id < 0 {
			pslog.Ctx(ctx).Warn("command rejected", "command", cmd.Name, "reason", "window")
			return schema.RunResponse{}, fmt.Errorf("%w: window id %q", schema.ErrInvalidRequest, cmd.Args[0])
		}
		window = schema.WindowID(id)
	}
	return h.Dispatch(ctx, cmd.Name, window)
}

// Dispatch runs the named command against window.
func (h *Handler) Dispatch(ctx context.Context, name string, window schema.WindowID) (schema.RunResponse, error) {
	if ctx == nil {
		return schema.RunResponse{}, errors.New("missing context")
	}
	if !h.cfg.DisableAuditLogging {
		pslog.Ctx(ctx).Debug("audit command", "command_type", "shortcut", "command", name, "window", int64(window))
	}
	log := pslog.Ctx(ctx).With("command", name)
	op, err := Resolve(name)
	if err != nil {
		log.Warn("command dispatch failed", "err", err)
		return schema.RunResponse{}, err
	}
	preserve := false
	if h.settings != nil && (op == schema.OpSort || op == schema.OpClean) {
		preserve, err = h.settings.PreservePinned()
		if err != nil {
			log.Warn("command settings load failed", "err", err)
			return schema.RunResponse{}, err
		}
	}
	log.Info("command dispatch start", "op", string(op), "preserve_pinned", preserve)
	resp, err := h.engine.Run(ctx, schema.RunRequest{Operation: op, WindowID: window, PreservePinned: preserve})
	if err != nil {
		log.Warn("command dispatch failed", "op", string(op), "err", err)
		return resp, err
	}
	log.Info("command dispatch ok", "op", string(op), "op_id", resp.ID)
	return resp, nil
}
