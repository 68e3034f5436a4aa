package core

import (
	"testing"

	"pkt.systems/tabtidy/schema"
)

func comparatorFixtures() []schema.Tab {
	return []schema.Tab{
		{ID: 1, URL: "https://b.example/", Title: "beta"},
		{ID: 2, URL: "https://a.example/x", Title: "alpha"},
		{ID: 3, URL: "https://a.example/x", Title: "Alpha"},
		{ID: 4, URL: "about:blank", Title: ""},
		{ID: 5, URL: "not a url", Title: "zeta"},
		{ID: 6, URL: "https://B.example/", Title: "beta"},
		{ID: 7, URL: "https://a.example/y", Title: "gamma"},
		{ID: 8, URL: "chrome://newtab/", Title: "New Tab"},
	}
}

func TestComparatorIsAntisymmetricAndTransitive(t *testing.T) {
	for _, key := range []schema.SortKey{schema.SortByURL, schema.SortByHost} {
		cmp := NewComparator(key)
		tabs := comparatorFixtures()
		for _, a := range tabs {
			for _, b := range tabs {
				ab := cmp.Compare(a, b)
				ba := cmp.Compare(b, a)
				if sign(ab) != -sign(ba) {
					t.Fatalf("%s: not antisymmetric for %d,%d: %d vs %d", key, a.ID, b.ID, ab, ba)
				}
				for _, c := range tabs {
					if cmp.Compare(a, b) <= 0 && cmp.Compare(b, c) <= 0 && cmp.Compare(a, c) > 0 {
						t.Fatalf("%s: not transitive for %d,%d,%d", key, a.ID, b.ID, c.ID)
					}
				}
			}
		}
	}
}

func TestComparatorSortingSortedInputIsNoop(t *testing.T) {
	for _, key := range []schema.SortKey{schema.SortByURL, schema.SortByHost} {
		cmp := NewComparator(key)
		once := cmp.Sorted(comparatorFixtures())
		twice := cmp.Sorted(once)
		for i := range once {
			if once[i].ID != twice[i].ID {
				t.Fatalf("%s: sorting sorted input moved tab %d", key, once[i].ID)
			}
		}
	}
}

func TestComparatorUsesCollation(t *testing.T) {
	cmp := NewComparator(schema.SortByURL)
	a := schema.Tab{URL: "https://x.example/", Title: "apple"}
	b := schema.Tab{URL: "https://x.example/", Title: "Banana"}
	if !cmp.Less(a, b) {
		t.Fatalf("expected apple before Banana under collation")
	}
}

func TestComparatorHostModeSortsUnparsableAsEmptyHost(t *testing.T) {
	cmp := NewComparator(schema.SortByHost)
	bad1 := schema.Tab{URL: "about:blank", Title: "b"}
	bad2 := schema.Tab{URL: "not a url", Title: "a"}
	if !cmp.Less(bad2, bad1) {
		t.Fatalf("expected unparsable addresses to compare by title")
	}
	if !cmp.Less(schema.Tab{URL: "not a url", Title: "z"}, schema.Tab{URL: "https://a.example/", Title: "a"}) {
		t.Fatalf("expected an unparsable address to sort before any host")
	}
	good := schema.Tab{URL: "https://a.example/z", Title: "a"}
	other := schema.Tab{URL: "https://a.example/a", Title: "b"}
	if !cmp.Less(good, other) {
		t.Fatalf("expected host mode to ignore paths and compare titles")
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
