package schema

import "strings"

// GroupColor is one of the fixed tab group colours.
type GroupColor string

const (
	ColorGrey   GroupColor = "grey"
	ColorBlue   GroupColor = "blue"
	ColorRed    GroupColor = "red"
	ColorYellow GroupColor = "yellow"
	ColorGreen  GroupColor = "green"
	ColorPink   GroupColor = "pink"
	ColorPurple GroupColor = "purple"
	ColorCyan   GroupColor = "cyan"
)

var groupColors = []GroupColor{
	ColorGrey,
	ColorBlue,
	ColorRed,
	ColorYellow,
	ColorGreen,
	ColorPink,
	ColorPurple,
	ColorCyan,
}

// GroupColors returns the palette in a stable order.
func GroupColors() []GroupColor {
	out := make([]GroupColor, len(groupColors))
	copy(out, groupColors)
	return out
}

// Valid reports whether c belongs to the palette.
func (c GroupColor) Valid() bool {
	for _, known := range groupColors {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizeGroupColor returns a canonical palette colour if supported.
func NormalizeGroupColor(name string) (GroupColor, bool) {
	normalized := GroupColor(strings.ToLower(strings.TrimSpace(name)))
	if normalized == "gray" {
		return ColorGrey, true
	}
	if normalized.Valid() {
		return normalized, true
	}
	return "", false
}
