package schema

// WindowID identifies a browser window.
type WindowID int64

// TabID identifies a browser tab for the lifetime of the browser session.
type TabID int64

// GroupID identifies a tab group.
type GroupID int64

// WindowCurrent asks the engine to resolve the focused window.
const WindowCurrent WindowID = 0

// GroupNone marks a tab that is not in any group.
const GroupNone GroupID = -1

// Tab is a read-only view of a browser tab.
type Tab struct {
	ID       TabID    `json:"id" yaml:"id"`
	WindowID WindowID `json:"windowId" yaml:"window_id,omitempty"`
	URL      string   `json:"url" yaml:"url"`
	Title    string   `json:"title" yaml:"title,omitempty"`
	Pinned   bool     `json:"pinned" yaml:"pinned,omitempty"`
	GroupID  GroupID  `json:"groupId" yaml:"group_id,omitempty"`
	Active   bool     `json:"active" yaml:"active,omitempty"`
	Index    int      `json:"index" yaml:"index"`
}

// Grouped reports whether the tab belongs to a group.
func (t Tab) Grouped() bool {
	return t.GroupID != GroupNone && t.GroupID != 0
}

// Window is a read-only view of a browser window with its tabs in index order.
type Window struct {
	ID      WindowID `json:"id" yaml:"id"`
	Focused bool     `json:"focused" yaml:"focused,omitempty"`
	Tabs    []Tab    `json:"tabs" yaml:"tabs"`
}

// TabIDs returns the window's tab ids in index order.
func (w Window) TabIDs() []TabID {
	out := make([]TabID, 0, len(w.Tabs))
	for _, tab := range w.Tabs {
		out = append(out, tab.ID)
	}
	return out
}

// Group describes a labelled tab group.
type Group struct {
	ID       GroupID    `json:"id" yaml:"id"`
	WindowID WindowID   `json:"windowId" yaml:"window_id"`
	Title    string     `json:"title" yaml:"title,omitempty"`
	Color    GroupColor `json:"color" yaml:"color,omitempty"`
}

// TabUpdate carries optional tab flag changes.
type TabUpdate struct {
	Pinned *bool
	Active *bool
}

// GroupUpdate carries group label changes.
type GroupUpdate struct {
	Title string
	Color GroupColor
}

// Bool returns a pointer to v for use in updates.
func Bool(v bool) *bool {
	return &v
}
