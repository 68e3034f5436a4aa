package sshserver

import (
	"context"
	"fmt"
	"io"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"

	"pkt.systems/tabtidy/internal/command"
)

const maxShellHistory = 200

// shell is the interactive pty session around a lineEditor.
type shell struct {
	srv    *Server
	out    io.Writer
	in     io.Reader
	editor *lineEditor
}

func newShell(srv *Server, sess gliderssh.Session) *shell {
	return &shell{
		srv:    srv,
		in:     sess,
		out:    crlfWriter{w: sess},
		editor: newLineEditor(maxShellHistory, commandNames),
	}
}

func (sh *shell) run(ctx context.Context) {
	keys := make(chan key, 64)
	go readKeys(sh.in, keys)
	_, _ = io.WriteString(sh.out, "tabtidy: type help for commands\n")
	sh.redraw()
	for {
		select {
		case <-ctx.Done():
			return
		case k, ok := <-keys:
			if !ok {
				return
			}
			if !sh.handleKey(ctx, k, keys) {
				_, _ = io.WriteString(sh.out, "\n")
				return
			}
		}
	}
}

// handleKey applies k and reports whether the session continues.
func (sh *shell) handleKey(ctx context.Context, k key, keys <-chan key) bool {
	outcome := sh.editor.apply(k)
	switch outcome.event {
	case editEOF:
		return false
	case editInterrupt:
		_, _ = io.WriteString(sh.out, "^C\n")
	case editListing:
		_, _ = io.WriteString(sh.out, "\n"+strings.Join(outcome.choices, "  ")+"\n")
	case editSubmit:
		_, _ = io.WriteString(sh.out, "\n")
		if outcome.line != "" {
			if isExit(outcome.line) {
				return false
			}
			sh.runLine(ctx, outcome.line, keys)
		}
	}
	sh.redraw()
	return true
}

// runLine executes line. While watch runs, Ctrl-C or Ctrl-D on keys ends it.
func (sh *shell) runLine(ctx context.Context, line string, keys <-chan key) {
	cmd, ok := command.Parse(line)
	if !ok || !strings.EqualFold(cmd.Name, cmdWatch) {
		sh.srv.execute(ctx, sh.out, line, nil)
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(stop)
		for {
			select {
			case <-done:
				return
			case k, ok := <-keys:
				if !ok || k.kind == keyInterrupt || k.kind == keyEOF {
					return
				}
			}
		}
	}()
	sh.srv.execute(ctx, sh.out, line, stop)
	close(done)
	<-stop
}

func (sh *shell) redraw() {
	prompt := sh.srv.Prompt
	line := sh.editor.String()
	_, _ = fmt.Fprintf(sh.out, "\r\x1b[K%s%s", prompt, line)
	if tail := sh.editor.Tail(); tail > 0 {
		_, _ = fmt.Fprintf(sh.out, "\x1b[%dD", tail)
	}
}

// crlfWriter translates "\n" to "\r\n" for terminals in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	converted := strings.ReplaceAll(string(p), "\n", "\r\n")
	if _, err := io.WriteString(c.w, converted); err != nil {
		return 0, err
	}
	return len(p), nil
}
