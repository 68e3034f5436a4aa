package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// Consolidate moves every tab of every other window into target and closes
// the emptied windows. Pinned tabs go first and stay pinned.
func (e *engine) Consolidate(ctx context.Context, target schema.WindowID) error {
	const op = schema.OpConsolidate
	log := logx.WithWindow(ctx, target)
	log.Info("engine consolidate start")

	windows, err := e.tabs.ListWindows(ctx)
	if err != nil {
		return opErr(op, PhaseListWindows, target, 0, err)
	}
	var (
		found    bool
		sources  []schema.WindowID
		pinned   []schema.TabID
		unpinned []schema.TabID
	)
	for _, window := range windows {
		if window.ID == target {
			found = true
			continue
		}
		sources = append(sources, window.ID)
		for _, tab := range window.Tabs {
			if tab.Pinned {
				pinned = append(pinned, tab.ID)
			} else {
				unpinned = append(unpinned, tab.ID)
			}
		}
	}
	if !found {
		return opErr(op, PhaseResolveWindow, target, 0, fmt.Errorf("%w: %d", schema.ErrWindowNotFound, target))
	}
	if len(sources) == 0 {
		log.Info("engine consolidate ok", "moved", 0)
		return nil
	}

	if len(pinned) > 0 {
		if err := e.tabs.MoveTabs(ctx, pinned, target, 0); err != nil {
			return opErr(op, PhaseMovePinned, target, 0, err)
		}
		for _, id := range pinned {
			if err := e.tabs.UpdateTab(ctx, id, schema.TabUpdate{Pinned: schema.Bool(true)}); err != nil {
				return opErr(op, PhasePinTab, target, id, err)
			}
		}
	}
	if len(unpinned) > 0 {
		if err := e.tabs.MoveTabs(ctx, unpinned, target, -1); err != nil {
			return opErr(op, PhaseMoveUnpinned, target, 0, err)
		}
	}

	for _, source := range sources {
		if err := e.tabs.CloseWindow(ctx, source); err != nil {
			if errors.Is(err, schema.ErrWindowNotFound) {
				log.Debug("engine consolidate window already closed", "source", int64(source))
				continue
			}
			log.Warn("engine consolidate close window failed", "source", int64(source), "err", err)
		}
	}
	log.Info("engine consolidate ok", "moved", len(pinned)+len(unpinned), "pinned", len(pinned), "sources", len(sources))
	return nil
}
