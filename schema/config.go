package schema

import (
	"fmt"
	"strings"
	"time"
)

// SortKey selects the primary comparison key of the tab comparator.
type SortKey string

const (
	// SortByURL compares full addresses, then titles.
	SortByURL SortKey = "url"
	// SortByHost compares hostnames, then titles.
	SortByHost SortKey = "host"
)

// DuplicateMatch selects how duplicate tabs are detected.
type DuplicateMatch string

const (
	// MatchNormalized compares normalized URL keys.
	MatchNormalized DuplicateMatch = "normalized"
	// MatchExact compares raw addresses.
	MatchExact DuplicateMatch = "exact"
)

// DefaultSettleDelay is the pause inserted before removing duplicates.
const DefaultSettleDelay = 100 * time.Millisecond

// EngineConfig tunes the tab engine.
type EngineConfig struct {
	SortKey        SortKey
	DuplicateMatch DuplicateMatch
	SettleDelay    time.Duration
	// WindowLease rejects concurrent operations on the same window.
	WindowLease bool
	// CoalesceHosts maps a hostname to the canonical origin all of its pages collapse to.
	CoalesceHosts map[string]string
}

// DefaultCoalesceHosts returns the built-in coalesced host table.
func DefaultCoalesceHosts() map[string]string {
	return map[string]string{
		"youtube.com":     "https://www.youtube.com",
		"www.youtube.com": "https://www.youtube.com",
		"reddit.com":      "https://www.reddit.com",
		"www.reddit.com":  "https://www.reddit.com",
		"mail.google.com": "https://mail.google.com",
	}
}

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(string(cfg.SortKey))))
	switch key {
	case "":
		key = SortByURL
	case SortByURL, SortByHost:
	default:
		return EngineConfig{}, fmt.Errorf("unsupported sort key %q", cfg.SortKey)
	}
	cfg.SortKey = key

	match := DuplicateMatch(strings.ToLower(strings.TrimSpace(string(cfg.DuplicateMatch))))
	switch match {
	case "":
		match = MatchNormalized
	case MatchNormalized, MatchExact:
	default:
		return EngineConfig{}, fmt.Errorf("unsupported duplicate match %q", cfg.DuplicateMatch)
	}
	cfg.DuplicateMatch = match

	if cfg.SettleDelay < 0 {
		return EngineConfig{}, fmt.Errorf("settle delay must not be negative")
	}
	if len(cfg.CoalesceHosts) == 0 {
		cfg.CoalesceHosts = DefaultCoalesceHosts()
	} else {
		hosts := make(map[string]string, len(cfg.CoalesceHosts))
		for host, origin := range cfg.CoalesceHosts {
			host = strings.ToLower(strings.TrimSpace(host))
			origin = strings.TrimRight(strings.TrimSpace(origin), "/")
			if host == "" || origin == "" {
				return EngineConfig{}, fmt.Errorf("coalesce host entries need a host and an origin")
			}
			hosts[host] = origin
		}
		cfg.CoalesceHosts = hosts
	}
	return cfg, nil
}
