package core

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/tabtidy/internal/memtabs"
	"pkt.systems/tabtidy/schema"
)

func sortFixture(browser *memtabs.Browser) schema.WindowID {
	return browser.OpenWindow(
		memtabs.TabSpec{URL: "https://z.example/", Title: "z pinned", Pinned: true},
		memtabs.TabSpec{URL: "https://c.example/", Title: "c"},
		memtabs.TabSpec{URL: "https://a.example/", Title: "a pinned", Pinned: true},
		memtabs.TabSpec{URL: "https://b.example/", Title: "b"},
		memtabs.TabSpec{URL: "https://a.example/", Title: "a"},
	)
}

func TestSortPreservePinned(t *testing.T) {
	ctx := context.Background()
	browser := memtabs.New(nil)
	id := sortFixture(browser)
	eng := newTestEngine(t, browser, schema.EngineConfig{})

	if err := eng.Sort(ctx, id, true); err != nil {
		t.Fatalf("sort: %v", err)
	}
	window := mustWindow(t, browser, id)
	want := []string{
		"https://z.example/",
		"https://a.example/",
		"https://a.example/",
		"https://b.example/",
		"https://c.example/",
	}
	if got := urls(window); !equalStrings(got, want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", got, want)
	}
	if !window.Tabs[0].Pinned || !window.Tabs[1].Pinned || window.Tabs[2].Pinned {
		t.Fatalf("expected pinned prefix of two, got %+v", window.Tabs)
	}
	if window.Tabs[1].Title != "a pinned" || window.Tabs[2].Title != "a" {
		t.Fatalf("unexpected titles: %+v", window.Tabs)
	}

	first := window.TabIDs()
	if err := eng.Sort(ctx, id, true); err != nil {
		t.Fatalf("second sort: %v", err)
	}
	second := mustWindow(t, browser, id).TabIDs()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sort is not idempotent: %v then %v", first, second)
		}
	}
}

func TestSortAllTabsKeepsPinnedState(t *testing.T) {
	ctx := context.Background()
	browser := memtabs.New(nil)
	id := sortFixture(browser)
	eng := newTestEngine(t, browser, schema.EngineConfig{})

	if err := eng.Sort(ctx, id, false); err != nil {
		t.Fatalf("sort: %v", err)
	}
	window := mustWindow(t, browser, id)
	wantTitles := []string{"a", "a pinned", "b", "c", "z pinned"}
	for i, tab := range window.Tabs {
		if tab.Title != wantTitles[i] {
			t.Fatalf("unexpected order at %d: %+v", i, window.Tabs)
		}
	}
	cmp := NewComparator(schema.SortByURL)
	for i := 1; i < len(window.Tabs); i++ {
		if cmp.Less(window.Tabs[i], window.Tabs[i-1]) {
			t.Fatalf("window not fully sorted: %+v", window.Tabs)
		}
	}
	for _, tab := range window.Tabs {
		wantPinned := tab.Title == "a pinned" || tab.Title == "z pinned"
		if tab.Pinned != wantPinned {
			t.Fatalf("tab %q pinned=%v", tab.Title, tab.Pinned)
		}
	}
}

func TestSortByHost(t *testing.T) {
	ctx := context.Background()
	browser := memtabs.New(nil)
	id := browser.OpenWindow(
		memtabs.TabSpec{URL: "https://b.example/zzz", Title: "one"},
		memtabs.TabSpec{URL: "https://a.example/yyy", Title: "two"},
		memtabs.TabSpec{URL: "https://b.example/aaa", Title: "three"},
	)
	eng := newTestEngine(t, browser, schema.EngineConfig{SortKey: schema.SortByHost})
	if err := eng.Sort(ctx, id, true); err != nil {
		t.Fatalf("sort: %v", err)
	}
	want := []string{"https://a.example/yyy", "https://b.example/zzz", "https://b.example/aaa"}
	if got := urls(mustWindow(t, browser, id)); !equalStrings(got, want) {
		t.Fatalf("unexpected order:\n got %v\nwant %v", got, want)
	}
}

func TestSortMoveFailureNamesTab(t *testing.T) {
	browser := memtabs.New(nil)
	id := sortFixture(browser)
	window := mustWindow(t, browser, id)
	failing := window.Tabs[3].ID
	boom := errors.New("stale index")
	browser.FailFor(memtabs.MethodMoveTabs, int64(failing), boom)

	eng := newTestEngine(t, browser, schema.EngineConfig{})
	err := eng.Sort(context.Background(), id, true)
	if !errors.Is(err, boom) {
		t.Fatalf("expected move failure, got %v", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Tab != failing || opErr.Phase != PhaseMoveTab {
		t.Fatalf("expected OpError naming tab %d, got %#v", failing, err)
	}
}
