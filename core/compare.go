package core

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"pkt.systems/tabtidy/schema"
)

// Comparator orders tabs by address (or hostname) and then title.
//
// A Comparator holds collation buffers and must not be shared between
// goroutines.
type Comparator struct {
	key      schema.SortKey
	collator *collate.Collator
}

// NewComparator returns a comparator for the given sort key.
func NewComparator(key schema.SortKey) *Comparator {
	if key == "" {
		key = schema.SortByURL
	}
	return &Comparator{
		key:      key,
		collator: collate.New(language.English),
	}
}

// Compare returns -1, 0 or 1. It never panics; an address without a
// parsable host sorts as an empty host in host mode.
func (c *Comparator) Compare(a, b schema.Tab) int {
	var ka, kb string
	switch c.key {
	case schema.SortByHost:
		ka = hostKey(a.URL)
		kb = hostKey(b.URL)
	default:
		ka = a.URL
		kb = b.URL
	}
	if r := c.compareStrings(ka, kb); r != 0 {
		return r
	}
	return c.compareStrings(a.Title, b.Title)
}

// Less reports whether a sorts before b.
func (c *Comparator) Less(a, b schema.Tab) bool {
	return c.Compare(a, b) < 0
}

// Sorted returns a stably sorted copy of tabs.
func (c *Comparator) Sorted(tabs []schema.Tab) []schema.Tab {
	out := append([]schema.Tab(nil), tabs...)
	sort.SliceStable(out, func(i, j int) bool {
		return c.Less(out[i], out[j])
	})
	return out
}

func (c *Comparator) compareStrings(a, b string) int {
	if r := c.collator.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func hostKey(raw string) string {
	host, err := Hostname(raw)
	if err != nil {
		return ""
	}
	return host
}
