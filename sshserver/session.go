package sshserver

import (
	"context"
	"fmt"
	"io"
	"strings"

	"pkt.systems/tabtidy/internal/command"
	"pkt.systems/tabtidy/internal/format"
	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

const (
	cmdHelp    = "help"
	cmdWindows = "windows"
	cmdWatch   = "watch"
)

// execute runs one command line, writes its output to w and returns the exit status.
// watch streams until ctx ends or stop is closed.
func (s *Server) execute(ctx context.Context, w io.Writer, line string, stop <-chan struct{}) int {
	log := logx.Ctx(ctx)
	cmd, ok := command.Parse(line)
	if !ok {
		return 0
	}
	switch strings.ToLower(cmd.Name) {
	case cmdHelp:
		writeLines(w, helpLines())
		return 0
	case cmdWindows:
		if s.Windows == nil {
			writeLines(w, []string{"error: window listing unavailable"})
			return 1
		}
		windows, err := s.Windows.Windows(ctx)
		if err != nil {
			log.Warn("ssh windows failed", "err", err)
			writeLines(w, []string{format.FormatResult(schema.ResultFromError(err))})
			return 1
		}
		writeLines(w, s.renderer.FormatWindows(windows))
		return 0
	case cmdWatch:
		return s.watch(ctx, w, stop)
	}
	_, err := s.Handler.Handle(ctx, line)
	writeLines(w, []string{format.FormatResult(schema.ResultFromError(err))})
	if err != nil {
		return 1
	}
	return 0
}

func (s *Server) watch(ctx context.Context, w io.Writer, stop <-chan struct{}) int {
	if s.EventBus == nil {
		writeLines(w, []string{"error: event stream unavailable"})
		return 1
	}
	events, unsubscribe := s.EventBus.Subscribe()
	defer unsubscribe()
	log := logx.Ctx(ctx)
	log.Info("ssh watch start")
	writeLines(w, []string{"watching operations"})
	for {
		select {
		case <-ctx.Done():
			log.Info("ssh watch done", "reason", "disconnect")
			return 0
		case <-stop:
			log.Info("ssh watch done", "reason", "interrupt")
			return 0
		case event, ok := <-events:
			if !ok {
				return 0
			}
			writeLines(w, []string{s.renderer.FormatEvent(event)})
		}
	}
}

func helpLines() []string {
	lines := strings.Split(strings.TrimRight(command.Help(), "\n"), "\n")
	return append(lines,
		"session:",
		"  windows   show the current window and tab layout",
		"  watch     stream operation events until interrupted",
		"  exit      close the session",
	)
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(line), "/")) {
	case "exit", "quit", "logout":
		return true
	}
	return false
}

// commandNames lists completion candidates for the interactive shell.
func commandNames() []string {
	names := []string{cmdHelp, cmdWindows, cmdWatch, "exit"}
	for _, op := range schema.Operations() {
		names = append(names, string(op))
	}
	return append(names, command.Shortcuts()...)
}
