package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

func TestWithWindowAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	WithWindow(ctx, 7).Info("hello")

	entry := capture.firstEntry(t)
	if entry["window"] != float64(7) {
		t.Fatalf("expected window field, got %+v", entry)
	}
}

func TestWithWindowSkipsCurrentSentinel(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	WithWindow(ctx, schema.WindowCurrent).Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["window"]; ok {
		t.Fatalf("did not expect window field for current window, got %+v", entry)
	}
}

func TestWithWindowDeduplicatesContextMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture)
	ctx := ContextWithWindowLogger(context.Background(), logger.With("window", int64(3)), 3)
	WithWindow(ctx, 3).Info("hello")

	line := capture.buf.String()
	if bytes.Count([]byte(line), []byte(`"window"`)) != 1 {
		t.Fatalf("expected a single window field, got %s", line)
	}
}

func TestWithOpAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	WithOp(ctx, schema.OpSort, "run-1").Info("hello")

	entry := capture.firstEntry(t)
	if entry["op"] != "sort" {
		t.Fatalf("expected op field, got %+v", entry)
	}
	if entry["op_id"] != "run-1" {
		t.Fatalf("expected op_id field, got %+v", entry)
	}
}

func TestWithTabAddsURL(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture)
	WithTab(logger, schema.Tab{ID: 9, URL: "https://example.com/"}).Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != float64(9) || entry["url"] != "https://example.com/" {
		t.Fatalf("expected tab fields, got %+v", entry)
	}
}

func TestCopyContextFields(t *testing.T) {
	src := ContextWithOp(ContextWithWindow(context.Background(), 4), "run-2")
	dst := CopyContextFields(context.Background(), src)
	if got, _ := dst.Value(windowKey).(schema.WindowID); got != 4 {
		t.Fatalf("expected window marker copied, got %v", got)
	}
	if got, _ := dst.Value(opKey).(string); got != "run-2" {
		t.Fatalf("expected op marker copied, got %q", got)
	}
}

func newTestLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
