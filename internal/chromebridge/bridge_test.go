package chromebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/command"
	"pkt.systems/tabtidy/schema"
)

func TestClassifyException(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"Error: No tab with id: 41.", schema.ErrTabNotFound},
		{"No window with id: 7.", schema.ErrWindowNotFound},
		{"Error: No group with id: 3.", schema.ErrGroupNotFound},
		{"No last-focused window", schema.ErrNoWindows},
	}
	for _, tc := range cases {
		err := classifyException(tc.msg)
		if !errors.Is(err, tc.want) {
			t.Fatalf("classify %q: expected %v, got %v", tc.msg, tc.want, err)
		}
	}
	err := classifyException("Error: Tabs cannot be edited right now (user may be dragging a tab).")
	for _, sentinel := range []error{schema.ErrTabNotFound, schema.ErrWindowNotFound, schema.ErrGroupNotFound} {
		if errors.Is(err, sentinel) {
			t.Fatalf("unexpected sentinel %v for %v", sentinel, err)
		}
	}
	if !strings.HasPrefix(err.Error(), "Tabs cannot be edited") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExceptionMessagePrefersDescription(t *testing.T) {
	details := &runtime.ExceptionDetails{
		Text: "Uncaught (in promise)",
		Exception: &runtime.RemoteObject{
			Description: "Error: No tab with id: 5.\n    at worker.js:40:11",
		},
	}
	if got := exceptionMessage(details); got != "Error: No tab with id: 5." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := exceptionMessage(&runtime.ExceptionDetails{Text: "boom"}); got != "boom" {
		t.Fatalf("unexpected text fallback %q", got)
	}
	if got := exceptionMessage(nil); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}

func TestCallExpression(t *testing.T) {
	expr, err := callExpression("moveTabs", []any{[]schema.TabID{3, 4}, schema.WindowID(1), -1})
	if err != nil {
		t.Fatalf("expression: %v", err)
	}
	if expr != `globalThis.tabtidy.call("moveTabs", [[3,4],1,-1])` {
		t.Fatalf("unexpected expression %s", expr)
	}
	expr, err = callExpression("listWindows", nil)
	if err != nil {
		t.Fatalf("expression: %v", err)
	}
	if expr != `globalThis.tabtidy.call("listWindows", [])` {
		t.Fatalf("unexpected expression %s", expr)
	}
}

func TestDecodeResult(t *testing.T) {
	raw, err := json.Marshal(`[{"id":1,"focused":true,"tabs":[{"id":10,"windowId":1,"url":"https://a.com/","title":"A","pinned":false,"groupId":-1,"active":true,"index":0}]}]`)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var windows []schema.Window
	if err := decodeResult(raw, &windows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(windows) != 1 || len(windows[0].Tabs) != 1 {
		t.Fatalf("unexpected windows %+v", windows)
	}
	tab := windows[0].Tabs[0]
	if tab.ID != 10 || tab.GroupID != schema.GroupNone || !tab.Active || tab.URL != "https://a.com/" {
		t.Fatalf("unexpected tab %+v", tab)
	}

	var active *schema.Tab
	nullRaw, _ := json.Marshal("null")
	if err := decodeResult(nullRaw, &active); err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if active != nil {
		t.Fatalf("expected nil tab, got %+v", active)
	}
	if err := decodeResult([]byte(`{"not":"text"}`), &active); err == nil {
		t.Fatalf("expected error for non-string result")
	}
}

func TestPickWorker(t *testing.T) {
	targets := []*target.Info{
		{TargetID: "page", Type: "page", URL: "chrome://newtab/"},
		{TargetID: "other", Type: "service_worker", URL: "https://example.com/sw.js"},
		nil,
		{TargetID: "bridge", Type: "service_worker", URL: "chrome-extension://abcdef/worker.js"},
	}
	info := pickWorker(targets)
	if info == nil || info.TargetID != "bridge" {
		t.Fatalf("expected bridge worker, got %+v", info)
	}
	if pickWorker(targets[:3]) != nil {
		t.Fatalf("expected no worker")
	}
}

func TestManifestDeclaresShortcuts(t *testing.T) {
	data, err := ExtensionFile("manifest.json")
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest struct {
		ManifestVersion int                        `json:"manifest_version"`
		Permissions     []string                   `json:"permissions"`
		Background      map[string]string          `json:"background"`
		Commands        map[string]json.RawMessage `json:"commands"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("manifest is not valid json: %v", err)
	}
	if manifest.ManifestVersion != 3 {
		t.Fatalf("expected manifest v3, got %d", manifest.ManifestVersion)
	}
	if manifest.Background["service_worker"] != "worker.js" {
		t.Fatalf("unexpected background %v", manifest.Background)
	}
	for _, name := range command.Shortcuts() {
		if _, ok := manifest.Commands[name]; !ok {
			t.Fatalf("manifest is missing command %q", name)
		}
	}
	if len(manifest.Commands) != len(command.Shortcuts()) {
		t.Fatalf("manifest declares %d commands, expected %d", len(manifest.Commands), len(command.Shortcuts()))
	}
}

func TestWriteExtension(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	if err := WriteExtension(dir); err != nil {
		t.Fatalf("write extension: %v", err)
	}
	for _, name := range ExtensionFiles() {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		embedded, _ := ExtensionFile(name)
		if string(data) != string(embedded) {
			t.Fatalf("%s differs from embedded copy", name)
		}
	}
	worker, _ := ExtensionFile("worker.js")
	if !strings.Contains(string(worker), bindingName) {
		t.Fatalf("worker does not call the %s binding", bindingName)
	}
}

func TestCallWithoutWorker(t *testing.T) {
	b := &Bridge{log: pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})}
	if _, err := b.ListWindows(context.Background()); !errors.Is(err, schema.ErrBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestCloseKeepsWorkerTargetOnlyWhenAttached(t *testing.T) {
	quiet := pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	for _, attached := range []bool{true, false} {
		ctx, cancel := chromedp.NewContext(context.Background())
		c := chromedp.FromContext(ctx)
		c.Target = &chromedp.Target{SessionID: "session-1", TargetID: "worker-1"}
		b := &Bridge{log: quiet, worker: ctx, attached: attached, cancels: []context.CancelFunc{cancel}}
		b.Close()
		b.Close()

		if ctx.Err() == nil {
			t.Fatalf("attached=%v: expected worker context cancelled", attached)
		}
		if c.Target.SessionID != "session-1" {
			t.Fatalf("attached=%v: session id must stay for detach, got %q", attached, c.Target.SessionID)
		}
		want := target.ID("worker-1")
		if attached {
			want = ""
		}
		if c.Target.TargetID != want {
			t.Fatalf("attached=%v: expected target id %q, got %q", attached, want, c.Target.TargetID)
		}
	}
	keepWorkerTarget(nil)
}

func TestBridgeAttachedCloseLeavesWorkerRunning(t *testing.T) {
	requireLong(t)
	execPath := findBrowser(t)

	dir := t.TempDir()
	extDir := filepath.Join(dir, "extension")
	if err := WriteExtension(extDir); err != nil {
		t.Fatalf("write extension: %v", err)
	}
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	browser := exec.CommandContext(ctx, execPath,
		"--headless=new",
		"--disable-gpu",
		"--no-first-run",
		"--no-default-browser-check",
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--user-data-dir="+filepath.Join(dir, "profile"),
		"--disable-extensions-except="+extDir,
		"--load-extension="+extDir,
		"about:blank",
	)
	if err := browser.Start(); err != nil {
		t.Fatalf("launch browser: %v", err)
	}
	t.Cleanup(func() {
		_ = browser.Process.Kill()
		_ = browser.Wait()
	})
	remoteURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitDevTools(t, remoteURL)

	logger := pslog.NewWithOptions(os.Stderr, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	cfg := Config{RemoteURL: remoteURL, StartupTimeout: 30 * time.Second}
	first, err := Start(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if _, err := first.ListWindows(ctx); err != nil {
		t.Fatalf("list windows: %v", err)
	}
	first.Close()

	cfg.StartupTimeout = 10 * time.Second
	second, err := Start(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("re-attach after close: %v", err)
	}
	defer second.Close()
	if _, err := second.ListWindows(ctx); err != nil {
		t.Fatalf("list windows after re-attach: %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitDevTools(t *testing.T, remoteURL string) {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(remoteURL + "/json/version")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("devtools endpoint %s did not come up", remoteURL)
}

func TestBridgeAgainstBrowser(t *testing.T) {
	requireLong(t)
	execPath := findBrowser(t)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	logger := pslog.NewWithOptions(os.Stderr, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
	b, err := Start(ctx, Config{
		ExecPath:       execPath,
		Headless:       true,
		ExtensionDir:   filepath.Join(t.TempDir(), "extension"),
		StartupTimeout: 45 * time.Second,
	}, logger)
	if err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	t.Cleanup(b.Close)

	windows, err := b.ListWindows(ctx)
	if err != nil {
		t.Fatalf("list windows: %v", err)
	}
	if len(windows) == 0 {
		t.Fatalf("expected at least one window")
	}
	win := windows[0]
	if len(win.Tabs) == 0 {
		t.Fatalf("expected at least one tab in window %d", win.ID)
	}
	if _, err := b.GetWindow(ctx, win.ID); err != nil {
		t.Fatalf("get window: %v", err)
	}
	if err := b.RemoveTabs(ctx, []schema.TabID{1 << 30}); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected tab not found, got %v", err)
	}
	if _, err := b.GetWindow(ctx, 1<<30); !errors.Is(err, schema.ErrWindowNotFound) {
		t.Fatalf("expected window not found, got %v", err)
	}
	first := win.Tabs[0].ID
	if err := b.UpdateTab(ctx, first, schema.TabUpdate{Pinned: schema.Bool(true)}); err != nil {
		t.Fatalf("pin tab: %v", err)
	}
	after, err := b.GetWindow(ctx, win.ID)
	if err != nil {
		t.Fatalf("get window: %v", err)
	}
	if !after.Tabs[0].Pinned {
		t.Fatalf("expected first tab pinned: %+v", after.Tabs[0])
	}
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if os.Getenv("TABTIDY_LONG") != "1" {
		t.Skip("set TABTIDY_LONG=1 to run browser tests")
	}
}

func findBrowser(t *testing.T) string {
	t.Helper()
	if path := os.Getenv("TABTIDY_CHROME"); path != "" {
		return path
	}
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no chromium binary found")
	return ""
}
