package integration_test

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy"
	"pkt.systems/tabtidy/httpapi"
	"pkt.systems/tabtidy/internal/memtabs"
	"pkt.systems/tabtidy/schema"
	"pkt.systems/tabtidy/sshserver"
)

type testServer struct {
	browser  *memtabs.Browser
	baseURL  string
	sshAddr  string
	signer   ssh.Signer
	focused  schema.WindowID
	other    schema.WindowID
	stateDir string
}

// newTestServer starts HTTP and SSH channels over a two-window memory browser.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	browser := memtabs.New(quietLogger())
	focused := browser.OpenWindow(
		memtabs.TabSpec{URL: "https://pinned.example/", Title: "Pinned", Pinned: true},
		memtabs.TabSpec{URL: "https://a.example/page", Title: "A", Active: true},
		memtabs.TabSpec{URL: "about:blank"},
		memtabs.TabSpec{URL: "https://a.example/page#section", Title: "A again"},
	)
	other := browser.OpenWindow(
		memtabs.TabSpec{URL: "https://b.example/", Title: "B"},
	)

	dir := t.TempDir()
	signer := newTestSigner(t)
	keysPath := filepath.Join(dir, "authorized_keys")
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))) + " integration"
	if err := os.WriteFile(keysPath, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("write authorized keys: %v", err)
	}

	httpLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	sshLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	stateDir := filepath.Join(dir, "state")
	srv, err := tabtidy.New(tabtidy.ServerConfig{
		Engine:   schema.EngineConfig{WindowLease: true},
		StateDir: stateDir,
		HTTP:     httpapi.Config{Addr: httpLn.Addr().String()},
		SSH: sshserver.Config{
			Addr:               sshLn.Addr().String(),
			HostKeyPath:        filepath.Join(dir, "host_key"),
			AuthorizedKeysPath: keysPath,
		},
	}, tabtidy.ServerDeps{
		Tabs:         browser,
		Logger:       quietLogger(),
		HTTPListener: httpLn,
		SSHListener:  sshLn,
	}, tabtidy.WithHTTP(), tabtidy.WithSSH())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(pslog.ContextWithLogger(context.Background(), quietLogger()))
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = srv.Stop(stopCtx)
		cancel()
	})

	ts := &testServer{
		browser:  browser,
		baseURL:  "http://" + httpLn.Addr().String(),
		sshAddr:  sshLn.Addr().String(),
		signer:   signer,
		focused:  focused,
		other:    other,
		stateDir: stateDir,
	}
	ts.waitHealthy(t)
	return ts
}

func (ts *testServer) waitHealthy(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server did not become healthy")
}

func (ts *testServer) post(t *testing.T, path string, payload any) (int, schema.Result) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var result schema.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, result
}

func (ts *testServer) windows(t *testing.T) []schema.Window {
	t.Helper()
	resp, err := http.Get(ts.baseURL + "/api/windows")
	if err != nil {
		t.Fatalf("get windows: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var payload struct {
		Windows []schema.Window `json:"windows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode windows: %v", err)
	}
	return payload.Windows
}

func (ts *testServer) sshExec(t *testing.T, command string) (string, int) {
	t.Helper()
	client, err := ssh.Dial("tcp", ts.sshAddr, &ssh.ClientConfig{
		User:            "integration",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(ts.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	})
	if err != nil {
		t.Fatalf("ssh dial: %v", err)
	}
	defer func() { _ = client.Close() }()
	session, err := client.NewSession()
	if err != nil {
		t.Fatalf("ssh session: %v", err)
	}
	defer func() { _ = session.Close() }()
	var out bytes.Buffer
	session.Stdout = &out
	err = session.Run(command)
	code := 0
	if err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("ssh run %q: %v", command, err)
		}
		code = exitErr.ExitStatus()
	}
	return out.String(), code
}

// streamReader reads operation events from /api/stream.
type streamReader struct {
	body   io.ReadCloser
	events chan httpapi.StreamEvent
}

func (ts *testServer) openStream(t *testing.T) *streamReader {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.baseURL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	sr := &streamReader{body: resp.Body, events: make(chan httpapi.StreamEvent, 32)}
	connected := make(chan struct{})
	go func() {
		defer close(sr.events)
		scanner := bufio.NewScanner(resp.Body)
		signalled := false
		for scanner.Scan() {
			line := scanner.Text()
			if !signalled && strings.HasPrefix(line, ": connected") {
				signalled = true
				close(connected)
				continue
			}
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var event httpapi.StreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue
			}
			sr.events <- event
		}
	}()
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not connect")
	}
	t.Cleanup(func() { _ = sr.body.Close() })
	return sr
}

// next returns the next operation event with a terminal status.
func (sr *streamReader) next(t *testing.T) schema.OperationEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-sr.events:
			if !ok {
				t.Fatalf("stream closed")
			}
			if event.Operation == nil || event.Operation.Status == schema.OperationStarted {
				continue
			}
			return *event.Operation
		case <-timeout:
			t.Fatalf("timed out waiting for stream event")
		}
	}
}

func newTestSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

func quietLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true})
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
