package core

import (
	"context"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// Ungroup removes every unpinned tab from its group. Failures are logged per
// tab and do not stop the loop.
func (e *engine) Ungroup(ctx context.Context, id schema.WindowID) error {
	const op = schema.OpUngroup
	log := logx.WithWindow(ctx, id)
	log.Info("engine ungroup start")

	window, err := e.getWindow(ctx, op, id)
	if err != nil {
		return err
	}
	ungrouped, failed := 0, 0
	for _, tab := range window.Tabs {
		if tab.Pinned || !tab.Grouped() {
			continue
		}
		if err := e.tabs.UngroupTab(ctx, tab.ID); err != nil {
			logx.WithTab(log, tab).Warn("engine ungroup tab failed", "group", int64(tab.GroupID), "err", err)
			failed++
			continue
		}
		ungrouped++
	}
	log.Info("engine ungroup ok", "ungrouped", ungrouped, "failed", failed)
	return nil
}
