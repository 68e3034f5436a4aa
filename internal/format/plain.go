// Package format renders tab layouts and operation events as plain text.
package format

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/tabtidy/schema"
)

// PlainRenderer formats windows and events as plain text lines.
type PlainRenderer struct {
	// MaxTitle truncates tab titles; zero keeps them whole.
	MaxTitle int
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{MaxTitle: 60}
}

// FormatWindows renders every window followed by one line per tab.
func (p *PlainRenderer) FormatWindows(windows []schema.Window) []string {
	if len(windows) == 0 {
		return []string{"no windows"}
	}
	lines := make([]string, 0, len(windows)*4)
	for _, window := range windows {
		lines = append(lines, p.formatWindowHeader(window))
		for i, tab := range window.Tabs {
			lines = append(lines, p.formatTab(i, tab))
		}
	}
	return lines
}

func (p *PlainRenderer) formatWindowHeader(window schema.Window) string {
	header := fmt.Sprintf("window %d", window.ID)
	if window.Focused {
		header += " (focused)"
	}
	return fmt.Sprintf("%s: %s", header, plural(len(window.Tabs), "tab"))
}

func (p *PlainRenderer) formatTab(index int, tab schema.Tab) string {
	var flags []string
	if tab.Pinned {
		flags = append(flags, "pinned")
	}
	if tab.Active {
		flags = append(flags, "active")
	}
	if tab.Grouped() {
		flags = append(flags, fmt.Sprintf("group %d", tab.GroupID))
	}
	line := fmt.Sprintf("  %3d  %s", index, tab.URL)
	if title := p.title(tab.Title); title != "" {
		line += "  " + title
	}
	if len(flags) > 0 {
		line += "  [" + strings.Join(flags, ", ") + "]"
	}
	return line
}

func (p *PlainRenderer) title(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if p.MaxTitle <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= p.MaxTitle {
		return value
	}
	return string(runes[:p.MaxTitle-1]) + "…"
}

// FormatEvent renders an operation event as one line.
func (p *PlainRenderer) FormatEvent(event schema.OperationEvent) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf("%s %s window %d %s", ts.Format(time.TimeOnly), event.Operation, event.WindowID, event.Status)
	if event.Duration > 0 {
		line += fmt.Sprintf(" in %s", event.Duration.Round(time.Millisecond))
	}
	if event.Error != "" {
		line += ": " + event.Error
	}
	return line
}

// FormatResult renders a channel result as "ok" or "error: <message>".
func FormatResult(result schema.Result) string {
	if result.Success {
		return "ok"
	}
	return "error: " + result.Error
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
