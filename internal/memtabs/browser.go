// Package memtabs is an in-memory browser model implementing core.TabService.
//
// It follows the host browser's observable behaviour closely enough to
// exercise the engine: windows disappear when their last tab leaves, batch
// moves and removals are all-or-nothing, moving a tab to another window
// clears its pinned flag and group, and removing the active tab activates a
// neighbour.
package memtabs

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

// TabSpec describes a tab opened through OpenWindow.
type TabSpec struct {
	URL    string
	Title  string
	Pinned bool
	Active bool
}

type tab struct {
	id     schema.TabID
	url    string
	title  string
	pinned bool
	active bool
	group  schema.GroupID
}

type window struct {
	id      schema.WindowID
	focused bool
	tabs    []*tab
}

// Browser is a concurrency-safe in-memory browser.
type Browser struct {
	mu         sync.Mutex
	windows    []*window
	groups     map[schema.GroupID]*schema.Group
	nextWindow int64
	nextTab    int64
	nextGroup  int64
	faults     faults
	log        pslog.Logger
}

// New returns an empty browser.
func New(logger pslog.Logger) *Browser {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Browser{
		groups: make(map[schema.GroupID]*schema.Group),
		faults: newFaults(),
		log:    logger.With("backend", "memory"),
	}
}

// OpenWindow adds a window holding the given tabs and returns its id. The
// first window opened is focused. A window with no active tab activates its
// first tab.
func (b *Browser) OpenWindow(specs ...TabSpec) schema.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextWindow++
	w := &window{id: schema.WindowID(b.nextWindow), focused: len(b.windows) == 0}
	for _, spec := range specs {
		b.nextTab++
		w.tabs = append(w.tabs, &tab{
			id:     schema.TabID(b.nextTab),
			url:    spec.URL,
			title:  spec.Title,
			pinned: spec.Pinned,
			active: spec.Active,
			group:  schema.GroupNone,
		})
	}
	fixActive(w)
	if len(w.tabs) > 0 {
		b.windows = append(b.windows, w)
	}
	return w.id
}

// Focus marks the window as the current window.
func (b *Browser) Focus(id schema.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.findWindow(id) == nil {
		return fmt.Errorf("%w: %d", schema.ErrWindowNotFound, id)
	}
	for _, w := range b.windows {
		w.focused = w.id == id
	}
	return nil
}

// Groups returns every live group.
func (b *Browser) Groups() []schema.Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]schema.Group, 0, len(b.groups))
	for id := schema.GroupID(1); id <= schema.GroupID(b.nextGroup); id++ {
		if group, ok := b.groups[id]; ok {
			out = append(out, *group)
		}
	}
	return out
}

func (b *Browser) ListWindows(ctx context.Context) ([]schema.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodListWindows); err != nil {
		return nil, err
	}
	out := make([]schema.Window, 0, len(b.windows))
	for _, w := range b.windows {
		out = append(out, w.view())
	}
	return out, nil
}

func (b *Browser) GetWindow(ctx context.Context, id schema.WindowID) (schema.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodGetWindow, int64(id)); err != nil {
		return schema.Window{}, err
	}
	w := b.findWindow(id)
	if w == nil {
		return schema.Window{}, fmt.Errorf("%w: %d", schema.ErrWindowNotFound, id)
	}
	return w.view(), nil
}

func (b *Browser) CurrentWindow(ctx context.Context) (schema.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodCurrentWindow); err != nil {
		return schema.Window{}, err
	}
	if len(b.windows) == 0 {
		return schema.Window{}, schema.ErrNoWindows
	}
	for _, w := range b.windows {
		if w.focused {
			return w.view(), nil
		}
	}
	return b.windows[0].view(), nil
}

func (b *Browser) ActiveTab(ctx context.Context, id schema.WindowID) (schema.Tab, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodActiveTab, int64(id)); err != nil {
		return schema.Tab{}, false, err
	}
	w := b.findWindow(id)
	if w == nil {
		return schema.Tab{}, false, fmt.Errorf("%w: %d", schema.ErrWindowNotFound, id)
	}
	for i, t := range w.tabs {
		if t.active {
			return t.view(w.id, i), true, nil
		}
	}
	return schema.Tab{}, false, nil
}

func (b *Browser) MoveTabs(ctx context.Context, ids []schema.TabID, windowID schema.WindowID, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodMoveTabs, tabKeys(ids, int64(windowID))...); err != nil {
		return err
	}
	target := b.findWindow(windowID)
	if target == nil {
		return fmt.Errorf("%w: %d", schema.ErrWindowNotFound, windowID)
	}
	if index < -1 {
		return fmt.Errorf("%w: index %d", schema.ErrInvalidRequest, index)
	}
	if err := checkUnique(ids); err != nil {
		return err
	}
	moving := make([]*tab, 0, len(ids))
	for _, id := range ids {
		w, i := b.findTab(id)
		if w == nil {
			return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
		}
		moving = append(moving, w.tabs[i])
	}

	for _, t := range moving {
		source, i := b.findTab(t.id)
		source.tabs = append(source.tabs[:i], source.tabs[i+1:]...)
		if source != target {
			t.pinned = false
			t.group = schema.GroupNone
			if t.active {
				t.active = false
				source.activateNear(i)
			}
		}
	}
	if index == -1 || index > len(target.tabs) {
		index = len(target.tabs)
	}
	inserted := make([]*tab, 0, len(target.tabs)+len(moving))
	inserted = append(inserted, target.tabs[:index]...)
	inserted = append(inserted, moving...)
	inserted = append(inserted, target.tabs[index:]...)
	target.tabs = inserted
	fixActive(target)
	b.reap()
	b.log.Debug("memtabs move ok", "window", int64(windowID), "index", index, "tabs", len(ids))
	return nil
}

func (b *Browser) UpdateTab(ctx context.Context, id schema.TabID, update schema.TabUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodUpdateTab, int64(id)); err != nil {
		return err
	}
	w, i := b.findTab(id)
	if w == nil {
		return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	t := w.tabs[i]
	if update.Pinned != nil {
		t.pinned = *update.Pinned
	}
	if update.Active != nil && *update.Active {
		for _, other := range w.tabs {
			other.active = other == t
		}
	}
	return nil
}

func (b *Browser) RemoveTabs(ctx context.Context, ids []schema.TabID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodRemoveTabs, tabKeys(ids)...); err != nil {
		return err
	}
	if err := checkUnique(ids); err != nil {
		return err
	}
	for _, id := range ids {
		if w, _ := b.findTab(id); w == nil {
			return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
		}
	}
	for _, id := range ids {
		w, i := b.findTab(id)
		wasActive := w.tabs[i].active
		w.tabs = append(w.tabs[:i], w.tabs[i+1:]...)
		if wasActive {
			w.activateNear(i)
		}
	}
	b.reap()
	b.log.Debug("memtabs remove ok", "tabs", len(ids))
	return nil
}

func (b *Browser) CloseWindow(ctx context.Context, id schema.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodCloseWindow, int64(id)); err != nil {
		return err
	}
	w := b.findWindow(id)
	if w == nil {
		return fmt.Errorf("%w: %d", schema.ErrWindowNotFound, id)
	}
	w.tabs = nil
	b.reap()
	b.log.Debug("memtabs window close ok", "window", int64(id))
	return nil
}

func (b *Browser) GroupTabs(ctx context.Context, ids []schema.TabID) (schema.GroupID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodGroupTabs, tabKeys(ids)...); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no tabs to group", schema.ErrInvalidRequest)
	}
	var home *window
	members := make(map[*tab]struct{}, len(ids))
	first := -1
	for _, id := range ids {
		w, i := b.findTab(id)
		if w == nil {
			return 0, fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
		}
		if home == nil {
			home = w
		}
		if w != home {
			return 0, fmt.Errorf("%w: tabs span windows", schema.ErrInvalidRequest)
		}
		members[w.tabs[i]] = struct{}{}
		if first == -1 || i < first {
			first = i
		}
	}

	b.nextGroup++
	groupID := schema.GroupID(b.nextGroup)
	b.groups[groupID] = &schema.Group{ID: groupID, WindowID: home.id, Color: schema.ColorGrey}

	// Members become contiguous at the position of the left-most member.
	var before, grouped, after []*tab
	for i, t := range home.tabs {
		switch _, ok := members[t]; {
		case ok:
			t.group = groupID
			grouped = append(grouped, t)
		case i < first:
			before = append(before, t)
		default:
			after = append(after, t)
		}
	}
	home.tabs = append(append(before, grouped...), after...)
	b.reapGroups()
	b.log.Debug("memtabs group ok", "group", int64(groupID), "tabs", len(ids))
	return groupID, nil
}

func (b *Browser) UpdateGroup(ctx context.Context, id schema.GroupID, update schema.GroupUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodUpdateGroup, int64(id)); err != nil {
		return err
	}
	group, ok := b.groups[id]
	if !ok {
		return fmt.Errorf("%w: %d", schema.ErrGroupNotFound, id)
	}
	if update.Color != "" && !update.Color.Valid() {
		return fmt.Errorf("%w: colour %q", schema.ErrInvalidRequest, update.Color)
	}
	group.Title = update.Title
	if update.Color != "" {
		group.Color = update.Color
	}
	return nil
}

func (b *Browser) UngroupTab(ctx context.Context, id schema.TabID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults.check(MethodUngroupTab, int64(id)); err != nil {
		return err
	}
	w, i := b.findTab(id)
	if w == nil {
		return fmt.Errorf("%w: %d", schema.ErrTabNotFound, id)
	}
	w.tabs[i].group = schema.GroupNone
	b.reapGroups()
	return nil
}

func (b *Browser) findWindow(id schema.WindowID) *window {
	for _, w := range b.windows {
		if w.id == id {
			return w
		}
	}
	return nil
}

func (b *Browser) findTab(id schema.TabID) (*window, int) {
	for _, w := range b.windows {
		for i, t := range w.tabs {
			if t.id == id {
				return w, i
			}
		}
	}
	return nil, -1
}

// reap destroys emptied windows and groups left without members.
func (b *Browser) reap() {
	kept := b.windows[:0]
	focusLost := false
	for _, w := range b.windows {
		if len(w.tabs) == 0 {
			focusLost = focusLost || w.focused
			b.log.Debug("memtabs window destroyed", "window", int64(w.id))
			continue
		}
		kept = append(kept, w)
	}
	b.windows = kept
	if focusLost && len(b.windows) > 0 {
		b.windows[0].focused = true
	}
	b.reapGroups()
}

func (b *Browser) reapGroups() {
	live := make(map[schema.GroupID]struct{})
	for _, w := range b.windows {
		for _, t := range w.tabs {
			if t.group != schema.GroupNone {
				live[t.group] = struct{}{}
			}
		}
	}
	for id := range b.groups {
		if _, ok := live[id]; !ok {
			delete(b.groups, id)
		}
	}
}

func (w *window) view() schema.Window {
	out := schema.Window{ID: w.id, Focused: w.focused, Tabs: make([]schema.Tab, 0, len(w.tabs))}
	for i, t := range w.tabs {
		out.Tabs = append(out.Tabs, t.view(w.id, i))
	}
	return out
}

func (w *window) activateNear(i int) {
	if len(w.tabs) == 0 {
		return
	}
	if i >= len(w.tabs) {
		i = len(w.tabs) - 1
	}
	for _, t := range w.tabs {
		t.active = false
	}
	w.tabs[i].active = true
}

// fixActive leaves exactly one active tab in w.
func fixActive(w *window) {
	found := false
	for _, t := range w.tabs {
		if t.active {
			if found {
				t.active = false
			}
			found = true
		}
	}
	if !found && len(w.tabs) > 0 {
		w.tabs[0].active = true
	}
}

func (t *tab) view(windowID schema.WindowID, index int) schema.Tab {
	return schema.Tab{
		ID:       t.id,
		WindowID: windowID,
		URL:      t.url,
		Title:    t.title,
		Pinned:   t.pinned,
		GroupID:  t.group,
		Active:   t.active,
		Index:    index,
	}
}

func tabKeys(ids []schema.TabID, extra ...int64) []int64 {
	out := make([]int64, 0, len(ids)+len(extra))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return append(out, extra...)
}

func checkUnique(ids []schema.TabID) error {
	seen := make(map[schema.TabID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: tab %d listed twice", schema.ErrInvalidRequest, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
