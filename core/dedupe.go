package core

import (
	"context"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// RemoveDuplicates keeps the first tab of every duplicate key and removes the
// rest in one batch. The active tab is moved to its survivor first.
func (e *engine) RemoveDuplicates(ctx context.Context, id schema.WindowID) error {
	const op = schema.OpRemoveDuplicates
	log := logx.WithWindow(ctx, id)
	log.Info("engine dedupe start", "match", string(e.cfg.DuplicateMatch))

	window, err := e.getWindow(ctx, op, id)
	if err != nil {
		return err
	}
	firstSeen := make(map[string]schema.TabID, len(window.Tabs))
	survivor := make(map[schema.TabID]schema.TabID)
	var duplicates []schema.TabID
	for _, tab := range window.Tabs {
		key := e.duplicateKey(tab.URL)
		if first, ok := firstSeen[key]; ok {
			duplicates = append(duplicates, tab.ID)
			survivor[tab.ID] = first
			log.Debug("engine dedupe mark", "tab", int64(tab.ID), "key", key, "first", int64(first))
			continue
		}
		firstSeen[key] = tab.ID
	}
	if len(duplicates) == 0 {
		log.Info("engine dedupe ok", "removed", 0)
		return nil
	}

	active, ok, err := e.tabs.ActiveTab(ctx, id)
	if err != nil {
		return opErr(op, PhaseActiveTab, id, 0, err)
	}
	if ok {
		if keep, marked := survivor[active.ID]; marked {
			if err := e.tabs.UpdateTab(ctx, keep, schema.TabUpdate{Active: schema.Bool(true)}); err != nil {
				return opErr(op, PhaseActivateTab, id, keep, err)
			}
			log.Debug("engine dedupe activate survivor", "tab", int64(keep), "replaced", int64(active.ID))
		}
	}

	if err := settle(ctx, e.cfg.SettleDelay); err != nil {
		return opErr(op, PhaseSettle, id, 0, err)
	}
	if err := e.tabs.RemoveTabs(ctx, duplicates); err != nil {
		return opErr(op, PhaseRemoveTabs, id, 0, err)
	}
	log.Info("engine dedupe ok", "removed", len(duplicates))
	return nil
}

func (e *engine) duplicateKey(raw string) string {
	if e.cfg.DuplicateMatch == schema.MatchExact {
		return raw
	}
	return e.normalizer.Key(raw)
}
