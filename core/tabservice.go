package core

import (
	"context"

	"pkt.systems/tabtidy/schema"
)

// TabService is the browser collaborator the engine reads from and mutates.
//
// Every call may fail independently. MoveTabs and RemoveTabs are
// all-or-nothing per batch. Not-found conditions wrap
// schema.ErrWindowNotFound, schema.ErrTabNotFound or schema.ErrGroupNotFound.
type TabService interface {
	ListWindows(ctx context.Context) ([]schema.Window, error)
	GetWindow(ctx context.Context, id schema.WindowID) (schema.Window, error)
	CurrentWindow(ctx context.Context) (schema.Window, error)
	// ActiveTab reports the active tab of a window; ok is false when none is active.
	ActiveTab(ctx context.Context, id schema.WindowID) (tab schema.Tab, ok bool, err error)
	// MoveTabs moves the tabs, in order, to index within the window. Index -1 appends.
	MoveTabs(ctx context.Context, ids []schema.TabID, window schema.WindowID, index int) error
	UpdateTab(ctx context.Context, id schema.TabID, update schema.TabUpdate) error
	RemoveTabs(ctx context.Context, ids []schema.TabID) error
	CloseWindow(ctx context.Context, id schema.WindowID) error
	GroupTabs(ctx context.Context, ids []schema.TabID) (schema.GroupID, error)
	UpdateGroup(ctx context.Context, id schema.GroupID, update schema.GroupUpdate) error
	UngroupTab(ctx context.Context, id schema.TabID) error
}
