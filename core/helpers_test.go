package core

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/memtabs"
	"pkt.systems/tabtidy/schema"
)

func newTestEngine(t *testing.T, browser *memtabs.Browser, cfg schema.EngineConfig) *engine {
	t.Helper()
	eng, err := NewEngine(cfg, EngineDeps{Tabs: browser, Rand: rand.New(rand.NewPCG(1, 2))})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng.(*engine)
}

func mustWindow(t *testing.T, browser *memtabs.Browser, id schema.WindowID) schema.Window {
	t.Helper()
	window, err := browser.GetWindow(context.Background(), id)
	if err != nil {
		t.Fatalf("get window %d: %v", id, err)
	}
	return window
}

func urls(window schema.Window) []string {
	out := make([]string, 0, len(window.Tabs))
	for _, tab := range window.Tabs {
		out = append(out, tab.URL)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.OperationEvent
}

func (s *recordingSink) OnOperationEvent(event schema.OperationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []schema.OperationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.OperationEvent(nil), s.events...)
}

type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *logCapture) entries(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, line := range bytes.Split(c.buf.Bytes(), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("parse log entry: %v", err)
		}
		out = append(out, entry)
	}
	return out
}

func captureContext(capture *logCapture) context.Context {
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	return pslog.ContextWithLogger(context.Background(), logger)
}

func findEntry(entries []map[string]any, msg string) (map[string]any, bool) {
	for _, entry := range entries {
		for _, key := range []string{"msg", "message"} {
			if entry[key] == msg {
				return entry, true
			}
		}
	}
	return nil, false
}

func levelOf(entry map[string]any) string {
	if value, ok := entry["level"].(string); ok {
		return value
	}
	value, _ := entry["lvl"].(string)
	return value
}
