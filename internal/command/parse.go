package command

import (
	"strings"
)

// Command represents a parsed command line. A leading "/" is optional.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
	Slash     bool
}

// Parse parses a line into a Command. It reports false for blank input.
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	slash := strings.HasPrefix(trimmed, "/")
	if slash {
		trimmed = trimmed[1:]
	}
	raw := strings.TrimSpace(trimmed)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{Raw: raw, Slash: slash}, false
	}
	name := strings.ToLower(fields[0])
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Command{
		Name:      name,
		Args:      args,
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
		Slash:     slash,
	}, true
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
