package core

import (
	"context"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

var blankAddresses = map[string]struct{}{
	"about:blank":            {},
	"chrome://newtab/":       {},
	"chrome://new-tab-page/": {},
}

// IsBlankURL reports whether raw is exactly one of the placeholder addresses.
func IsBlankURL(raw string) bool {
	_, ok := blankAddresses[raw]
	return ok
}

// CloseBlankTabs removes blank and new-tab pages in one batch.
func (e *engine) CloseBlankTabs(ctx context.Context, id schema.WindowID) error {
	const op = schema.OpCloseBlank
	log := logx.WithWindow(ctx, id)
	log.Info("engine close blank start")

	window, err := e.getWindow(ctx, op, id)
	if err != nil {
		return err
	}
	var blank []schema.TabID
	for _, tab := range window.Tabs {
		if IsBlankURL(tab.URL) {
			blank = append(blank, tab.ID)
		}
	}
	if len(blank) == 0 {
		log.Info("engine close blank ok", "removed", 0)
		return nil
	}
	if err := e.tabs.RemoveTabs(ctx, blank); err != nil {
		return opErr(op, PhaseRemoveTabs, id, 0, err)
	}
	log.Info("engine close blank ok", "removed", len(blank))
	return nil
}
