package command

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"pkt.systems/pslog"
)

func TestDispatchAuditLog(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)

	handler := NewHandler(&fakeEngine{}, nil, HandlerConfig{})
	if _, err := handler.Handle(ctx, "/execute_close_blank_tabs"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !hasAuditCommand(capture.Entries(), "execute_close_blank_tabs") {
		t.Fatalf("expected audit log entry")
	}
}

func TestDispatchAuditLogDisabled(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.DebugLevel,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)

	handler := NewHandler(&fakeEngine{}, nil, HandlerConfig{DisableAuditLogging: true})
	if _, err := handler.Handle(ctx, "sort"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if hasAuditCommand(capture.Entries(), "sort") {
		t.Fatalf("did not expect audit log entry")
	}
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
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

func (c *logCapture) Entries() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(c.buf.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entries = append(entries, parseLogEntry(line))
	}
	return entries
}

func parseLogEntry(line string) logEntry {
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return logEntry{}
	}
	level := ""
	if value, ok := payload["level"].(string); ok {
		level = value
	} else if value, ok := payload["lvl"].(string); ok {
		level = value
	}
	message := ""
	if value, ok := payload["message"].(string); ok {
		message = value
	} else if value, ok := payload["msg"].(string); ok {
		message = value
	}
	return logEntry{Level: level, Message: message, Fields: payload}
}

func hasAuditCommand(entries []logEntry, command string) bool {
	for _, entry := range entries {
		if entry.Message != "audit command" {
			continue
		}
		if value, _ := entry.Fields["command"].(string); value == command {
			return true
		}
	}
	return false
}
