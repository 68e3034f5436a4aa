package core

import (
	"context"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// Sort reorders the window's tabs with the configured comparator.
//
// With preservePinned the pinned tabs keep their relative order at the front
// and only unpinned tabs are sorted. Without it every tab is sorted and pinned
// tabs are re-pinned after their move.
func (e *engine) Sort(ctx context.Context, id schema.WindowID, preservePinned bool) error {
	const op = schema.OpSort
	log := logx.WithWindow(ctx, id)
	log.Info("engine sort start", "preserve_pinned", preservePinned, "key", string(e.cfg.SortKey))

	window, err := e.getWindow(ctx, op, id)
	if err != nil {
		return err
	}
	cmp := NewComparator(e.cfg.SortKey)

	if preservePinned {
		var pinned, unpinned []schema.Tab
		for _, tab := range window.Tabs {
			if tab.Pinned {
				pinned = append(pinned, tab)
			} else {
				unpinned = append(unpinned, tab)
			}
		}
		for i, tab := range pinned {
			if err := e.tabs.MoveTabs(ctx, []schema.TabID{tab.ID}, id, i); err != nil {
				return opErr(op, PhaseMoveTab, id, tab.ID, err)
			}
		}
		for i, tab := range cmp.Sorted(unpinned) {
			if err := e.tabs.MoveTabs(ctx, []schema.TabID{tab.ID}, id, len(pinned)+i); err != nil {
				return opErr(op, PhaseMoveTab, id, tab.ID, err)
			}
		}
		log.Info("engine sort ok", "pinned", len(pinned), "sorted", len(unpinned))
		return nil
	}

	sorted := cmp.Sorted(window.Tabs)
	for i, tab := range sorted {
		if err := e.tabs.MoveTabs(ctx, []schema.TabID{tab.ID}, id, i); err != nil {
			return opErr(op, PhaseMoveTab, id, tab.ID, err)
		}
		if tab.Pinned {
			if err := e.tabs.UpdateTab(ctx, tab.ID, schema.TabUpdate{Pinned: schema.Bool(true)}); err != nil {
				return opErr(op, PhasePinTab, id, tab.ID, err)
			}
		}
	}
	log.Info("engine sort ok", "sorted", len(sorted))
	return nil
}
