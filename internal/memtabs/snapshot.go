package memtabs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

// Snapshot is the YAML layout of a browser: windows in order, their tabs in
// index order, and the groups referenced by tabs.
type Snapshot struct {
	Windows []schema.Window `yaml:"windows"`
	Groups  []schema.Group  `yaml:"groups,omitempty"`
}

// FromSnapshot builds a browser from a snapshot. Ids present in the snapshot
// are kept; missing ids are allocated. A group id of zero means ungrouped.
func FromSnapshot(snapshot Snapshot, logger pslog.Logger) (*Browser, error) {
	b := New(logger)
	seenWindows := make(map[schema.WindowID]struct{})
	seenTabs := make(map[schema.TabID]struct{})
	for _, group := range snapshot.Groups {
		if group.ID <= 0 {
			return nil, fmt.Errorf("%w: group id %d", schema.ErrInvalidRequest, group.ID)
		}
		color := group.Color
		if color == "" {
			color = schema.ColorGrey
		}
		if !color.Valid() {
			return nil, fmt.Errorf("%w: group %d colour %q", schema.ErrInvalidRequest, group.ID, group.Color)
		}
		g := group
		g.Color = color
		b.groups[g.ID] = &g
		b.nextGroup = max(b.nextGroup, int64(g.ID))
	}
	for _, w := range snapshot.Windows {
		if w.ID > 0 {
			b.nextWindow = max(b.nextWindow, int64(w.ID))
		}
		for _, t := range w.Tabs {
			if t.ID > 0 {
				b.nextTab = max(b.nextTab, int64(t.ID))
			}
		}
	}
	focused := false
	for _, w := range snapshot.Windows {
		if len(w.Tabs) == 0 {
			continue
		}
		id := w.ID
		if id <= 0 {
			b.nextWindow++
			id = schema.WindowID(b.nextWindow)
		}
		if _, dup := seenWindows[id]; dup {
			return nil, fmt.Errorf("%w: window id %d repeats", schema.ErrInvalidRequest, id)
		}
		seenWindows[id] = struct{}{}
		win := &window{id: id, focused: w.Focused && !focused}
		focused = focused || win.focused
		for _, t := range w.Tabs {
			tabID := t.ID
			if tabID <= 0 {
				b.nextTab++
				tabID = schema.TabID(b.nextTab)
			}
			if _, dup := seenTabs[tabID]; dup {
				return nil, fmt.Errorf("%w: tab id %d repeats", schema.ErrInvalidRequest, tabID)
			}
			seenTabs[tabID] = struct{}{}
			group := t.GroupID
			if group == 0 {
				group = schema.GroupNone
			}
			if group != schema.GroupNone {
				g, ok := b.groups[group]
				if !ok {
					g = &schema.Group{ID: group, Color: schema.ColorGrey}
					b.groups[group] = g
					b.nextGroup = max(b.nextGroup, int64(group))
				}
				g.WindowID = id
			}
			win.tabs = append(win.tabs, &tab{
				id:     tabID,
				url:    t.URL,
				title:  t.Title,
				pinned: t.Pinned,
				active: t.Active,
				group:  group,
			})
		}
		fixActive(win)
		b.windows = append(b.windows, win)
	}
	if !focused && len(b.windows) > 0 {
		b.windows[0].focused = true
	}
	b.reapGroups()
	return b, nil
}

// Snapshot captures the current layout.
func (b *Browser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := Snapshot{Windows: make([]schema.Window, 0, len(b.windows))}
	for _, w := range b.windows {
		view := w.view()
		for i := range view.Tabs {
			if view.Tabs[i].GroupID == schema.GroupNone {
				view.Tabs[i].GroupID = 0
			}
			view.Tabs[i].WindowID = 0
		}
		out.Windows = append(out.Windows, view)
	}
	for id := schema.GroupID(1); id <= schema.GroupID(b.nextGroup); id++ {
		if group, ok := b.groups[id]; ok {
			out.Groups = append(out.Groups, *group)
		}
	}
	return out
}

// LoadSnapshot reads a YAML snapshot file into a new browser.
func LoadSnapshot(path string, logger pslog.Logger) (*Browser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	b, err := FromSnapshot(snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	b.log.Debug("memtabs snapshot load ok", "path", path, "windows", len(b.windows))
	return b, nil
}

// SaveSnapshot writes the current layout to path atomically.
func (b *Browser) SaveSnapshot(path string) error {
	if path == "" {
		return errors.New("snapshot path is required")
	}
	data, err := yaml.Marshal(b.Snapshot())
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "snapshot-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	b.log.Debug("memtabs snapshot save ok", "path", path)
	return nil
}
