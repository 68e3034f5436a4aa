package appconfig

import (
	"testing"
	"time"

	"pkt.systems/tabtidy/schema"
)

func TestDefaultConfigEngine(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	engine := cfg.EngineConfig()
	if engine.SortKey != schema.SortByURL || engine.DuplicateMatch != schema.MatchNormalized {
		t.Fatalf("unexpected engine defaults: %+v", engine)
	}
	if engine.SettleDelay != 100*time.Millisecond {
		t.Fatalf("expected 100ms settle delay, got %v", engine.SettleDelay)
	}
	if !engine.WindowLease {
		t.Fatalf("expected window lease enabled by default")
	}
	if engine.CoalesceHosts["youtube.com"] != "https://www.youtube.com" {
		t.Fatalf("expected default coalesced hosts, got %+v", engine.CoalesceHosts)
	}
	if cfg.SSH.Enabled {
		t.Fatalf("expected ssh disabled by default")
	}
}
