// Package chromebridge implements core.TabService over the Chrome DevTools
// Protocol. It attaches to the service worker of the bundled bridge extension
// and evaluates chrome.tabs, chrome.windows and chrome.tabGroups calls there.
package chromebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

const (
	bindingName         = "tabtidyCommand"
	defaultCallTimeout  = 10 * time.Second
	defaultStartTimeout = 30 * time.Second
	workerPollInterval  = 200 * time.Millisecond
)

// Config configures the bridge.
type Config struct {
	// RemoteURL attaches to a running browser; the bridge extension must already be loaded there.
	RemoteURL string
	// ExecPath overrides the browser binary when launching.
	ExecPath string
	Headless bool
	// ExtensionDir receives the unpacked extension when launching a browser.
	ExtensionDir   string
	CallTimeout    time.Duration
	StartupTimeout time.Duration
}

// Bridge is a running DevTools session attached to the extension worker.
type Bridge struct {
	cfg      Config
	log      pslog.Logger
	worker   context.Context
	attached bool

	cancels  []context.CancelFunc
	commands chan string

	closeOnce sync.Once
}

// Start launches or attaches to a browser and connects to the extension worker.
func Start(ctx context.Context, cfg Config, logger pslog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartTimeout
	}
	log := logger.With("backend", "chrome")
	b := &Bridge{cfg: cfg, log: log, commands: make(chan string, 16)}
	b.attached = strings.TrimSpace(cfg.RemoteURL) != ""

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if b.attached {
		log.Info("chromebridge attach start", "remote_url", cfg.RemoteURL)
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		if strings.TrimSpace(cfg.ExtensionDir) == "" {
			return nil, errors.New("extension dir is required to launch a browser")
		}
		if err := WriteExtension(cfg.ExtensionDir); err != nil {
			return nil, fmt.Errorf("write bridge extension: %w", err)
		}
		log.Info("chromebridge launch start", "extension_dir", cfg.ExtensionDir, "headless", cfg.Headless)
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), execOptions(cfg)...)
	}
	b.cancels = append(b.cancels, allocCancel)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	b.cancels = append(b.cancels, browserCancel)

	startCtx, startDone := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer startDone()

	if err := runUntil(startCtx, browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: start browser: %v", schema.ErrBackendUnavailable, err)
	}
	info, err := findWorker(startCtx, browserCtx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: %v", schema.ErrBackendUnavailable, err)
	}
	workerCtx, workerCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
	b.cancels = append(b.cancels, workerCancel)
	b.worker = workerCtx
	if err := runUntil(startCtx, workerCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: attach worker: %v", schema.ErrBackendUnavailable, err)
	}

	chromedp.ListenTarget(workerCtx, func(ev any) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != bindingName {
			return
		}
		select {
		case b.commands <- called.Payload:
		default:
			log.Warn("chromebridge command dropped", "command", called.Payload)
		}
	})
	if err := chromedp.Run(workerCtx, runtime.AddBinding(bindingName)); err != nil {
		log.Warn("chromebridge command binding failed", "err", err)
	}
	log.Info("chromebridge attach ok", "worker", info.URL)
	return b, nil
}

func execOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-extensions", false),
		chromedp.Flag("disable-extensions-except", cfg.ExtensionDir),
		chromedp.Flag("load-extension", cfg.ExtensionDir),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// runUntil runs an empty action on runCtx, giving up when waitCtx ends.
func runUntil(waitCtx, runCtx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(runCtx)
	}()
	select {
	case err := <-errCh:
		return err
	case <-waitCtx.Done():
		return waitCtx.Err()
	}
}

func findWorker(ctx context.Context, browserCtx context.Context) (*target.Info, error) {
	ticker := time.NewTicker(workerPollInterval)
	defer ticker.Stop()
	for {
		targets, err := chromedp.Targets(browserCtx)
		if err != nil {
			return nil, fmt.Errorf("list targets: %w", err)
		}
		if info := pickWorker(targets); info != nil {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bridge extension worker not found: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func pickWorker(targets []*target.Info) *target.Info {
	for _, info := range targets {
		if info == nil || info.Type != "service_worker" {
			continue
		}
		if strings.HasPrefix(info.URL, "chrome-extension://") && strings.HasSuffix(info.URL, "/worker.js") {
			return info
		}
	}
	return nil
}

// Commands delivers keyboard shortcut names triggered in the browser.
func (b *Bridge) Commands() <-chan string {
	return b.commands
}

// Close detaches from the browser. A launched browser is shut down; an
// attached browser keeps running with the extension worker alive.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.attached {
			keepWorkerTarget(b.worker)
		}
		for i := len(b.cancels) - 1; i >= 0; i-- {
			b.cancels[i]()
		}
		b.log.Info("chromebridge close ok")
	})
}

// keepWorkerTarget makes cancelling workerCtx detach from the worker without
// closing it. chromedp sends Target.closeTarget for every non-first target
// whose context ends while it still knows the target id.
func keepWorkerTarget(workerCtx context.Context) {
	if workerCtx == nil {
		return
	}
	if c := chromedp.FromContext(workerCtx); c != nil && c.Target != nil {
		c.Target.TargetID = ""
	}
}

// call evaluates one bridge method in the worker and decodes its JSON result into out.
func (b *Bridge) call(ctx context.Context, method string, out any, args ...any) error {
	if b.worker == nil || b.worker.Err() != nil {
		return schema.ErrBackendUnavailable
	}
	c := chromedp.FromContext(b.worker)
	if c == nil || c.Target == nil {
		return schema.ErrBackendUnavailable
	}
	expr, err := callExpression(method, args)
	if err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	res, exception, err := runtime.Evaluate(expr).
		WithAwaitPromise(true).
		WithReturnByValue(true).
		Do(cdp.WithExecutor(callCtx, c.Target))
	if err != nil {
		b.log.Debug("chromebridge call failed", "method", method, "err", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v", schema.ErrBackendUnavailable, method, err)
	}
	if exception != nil {
		err := classifyException(exceptionMessage(exception))
		b.log.Debug("chromebridge call rejected", "method", method, "err", err)
		return err
	}
	b.log.Trace("chromebridge call ok", "method", method, "duration", time.Since(start))
	if out == nil || res == nil {
		return nil
	}
	return decodeResult([]byte(res.Value), out)
}

func callExpression(method string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encodedMethod, err := json.Marshal(method)
	if err != nil {
		return "", err
	}
	encodedArgs, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("globalThis.tabtidy.call(%s, %s)", encodedMethod, encodedArgs), nil
}

// decodeResult unwraps the JSON text returned by the worker.
func decodeResult(value []byte, out any) error {
	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return fmt.Errorf("decode bridge result: %w", err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode bridge result: %w", err)
	}
	return nil
}

func exceptionMessage(details *runtime.ExceptionDetails) string {
	if details == nil {
		return ""
	}
	if details.Exception != nil && details.Exception.Description != "" {
		return firstLine(details.Exception.Description)
	}
	return details.Text
}

func firstLine(value string) string {
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		return strings.TrimSpace(value[:i])
	}
	return strings.TrimSpace(value)
}

// classifyException maps browser error messages to schema sentinels.
func classifyException(msg string) error {
	msg = strings.TrimPrefix(msg, "Error: ")
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no tab with id"):
		return fmt.Errorf("%w: %s", schema.ErrTabNotFound, msg)
	case strings.Contains(lower, "no window with id"):
		return fmt.Errorf("%w: %s", schema.ErrWindowNotFound, msg)
	case strings.Contains(lower, "no current window"), strings.Contains(lower, "no last-focused window"):
		return fmt.Errorf("%w: %s", schema.ErrNoWindows, msg)
	case strings.Contains(lower, "no group with id"):
		return fmt.Errorf("%w: %s", schema.ErrGroupNotFound, msg)
	default:
		return errors.New(msg)
	}
}
