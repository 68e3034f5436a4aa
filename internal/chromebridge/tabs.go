package chromebridge

import (
	"context"

	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/schema"
)

var _ core.TabService = (*Bridge)(nil)

type tabProps struct {
	Pinned *bool `json:"pinned,omitempty"`
	Active *bool `json:"active,omitempty"`
}

type groupProps struct {
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}

// ListWindows returns every normal browser window with its tabs.
func (b *Bridge) ListWindows(ctx context.Context) ([]schema.Window, error) {
	var windows []schema.Window
	if err := b.call(ctx, "listWindows", &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

func (b *Bridge) GetWindow(ctx context.Context, id schema.WindowID) (schema.Window, error) {
	var window schema.Window
	err := b.call(ctx, "getWindow", &window, id)
	return window, err
}

func (b *Bridge) CurrentWindow(ctx context.Context) (schema.Window, error) {
	var window schema.Window
	err := b.call(ctx, "currentWindow", &window)
	return window, err
}

func (b *Bridge) ActiveTab(ctx context.Context, id schema.WindowID) (schema.Tab, bool, error) {
	var tab *schema.Tab
	if err := b.call(ctx, "activeTab", &tab, id); err != nil {
		return schema.Tab{}, false, err
	}
	if tab == nil {
		return schema.Tab{}, false, nil
	}
	return *tab, true, nil
}

func (b *Bridge) MoveTabs(ctx context.Context, ids []schema.TabID, window schema.WindowID, index int) error {
	if len(ids) == 0 {
		return nil
	}
	return b.call(ctx, "moveTabs", nil, ids, window, index)
}

func (b *Bridge) UpdateTab(ctx context.Context, id schema.TabID, update schema.TabUpdate) error {
	if update.Pinned == nil && update.Active == nil {
		return nil
	}
	return b.call(ctx, "updateTab", nil, id, tabProps{Pinned: update.Pinned, Active: update.Active})
}

func (b *Bridge) RemoveTabs(ctx context.Context, ids []schema.TabID) error {
	if len(ids) == 0 {
		return nil
	}
	return b.call(ctx, "removeTabs", nil, ids)
}

func (b *Bridge) CloseWindow(ctx context.Context, id schema.WindowID) error {
	return b.call(ctx, "closeWindow", nil, id)
}

// GroupTabs creates a new group holding ids and returns its id.
func (b *Bridge) GroupTabs(ctx context.Context, ids []schema.TabID) (schema.GroupID, error) {
	var id schema.GroupID
	if err := b.call(ctx, "groupTabs", &id, ids); err != nil {
		return schema.GroupNone, err
	}
	return id, nil
}

func (b *Bridge) UpdateGroup(ctx context.Context, id schema.GroupID, update schema.GroupUpdate) error {
	return b.call(ctx, "updateGroup", nil, id, groupProps{Title: update.Title, Color: string(update.Color)})
}

func (b *Bridge) UngroupTab(ctx context.Context, id schema.TabID) error {
	return b.call(ctx, "ungroupTab", nil, id)
}
