package sshserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/eventbus"
	"pkt.systems/tabtidy/internal/format"
	"pkt.systems/tabtidy/schema"
)

// CommandHandler runs shortcut and operation commands.
type CommandHandler interface {
	Handle(ctx context.Context, input string) (schema.RunResponse, error)
}

// WindowLister reports the current browser layout.
type WindowLister interface {
	Windows(ctx context.Context) ([]schema.Window, error)
}

// Server exposes the tab engine as an SSH command channel.
type Server struct {
	Addr        string
	HostKeyPath string
	Listener    net.Listener
	Handler     CommandHandler
	Windows     WindowLister
	Keys        *AuthorizedKeys
	EventBus    *eventbus.Bus
	Prompt      string
	logger      pslog.Logger
	renderer    *format.PlainRenderer
}

type authContextKey string

const keyCommentKey authContextKey = "key-comment"

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Prompt == "" {
		s.Prompt = "tabtidy> "
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.renderer == nil {
		s.renderer = format.NewPlainRenderer()
	}
	if s.Handler == nil {
		return errors.New("command handler is required for SSH")
	}
	if s.Keys == nil {
		return errors.New("authorized keys are required for SSH")
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()
	s.logger.Info("ssh listen ok", "addr", s.listenAddr(), "keys", s.Keys.Len())

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) listenAddr() string {
	if s.Listener != nil {
		return s.Listener.Addr().String()
	}
	return s.Addr
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger.With("user", ctx.User(), "remote", remoteAddr(ctx), "fingerprint", ssh.FingerprintSHA256(key))
	if sshSession := ctx.SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	comment, ok, err := s.Keys.Allowed(key)
	if err != nil {
		log.Warn("ssh pubkey rejected", "err", err)
		return false
	}
	if !ok {
		log.Warn("ssh pubkey rejected", "reason", "no matching key")
		return false
	}
	ctx.SetValue(keyCommentKey, comment)
	log.Info("ssh pubkey accepted", "key", comment)
	return true
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger.With("user", sess.User(), "remote", sess.RemoteAddr().String())
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	if comment, ok := sess.Context().Value(keyCommentKey).(string); ok && comment != "" {
		log = log.With("key", comment)
	}
	ctx := pslog.ContextWithLogger(sess.Context(), log)

	if raw := strings.TrimSpace(sess.RawCommand()); raw != "" {
		log.Info("ssh exec start", "command", raw)
		code := s.execute(ctx, sess, raw, nil)
		log.Info("ssh exec done", "command", raw, "exit", code)
		_ = sess.Exit(code)
		return
	}
	if pty, winCh, ok := sess.Pty(); ok {
		log.Info("ssh shell opened", "term", pty.Term)
		go discardWindowChanges(winCh)
		newShell(s, sess).run(ctx)
		log.Info("ssh shell closed", "term", pty.Term)
		_ = sess.Exit(0)
		return
	}
	log.Info("ssh line session opened")
	s.runLines(ctx, sess)
	log.Info("ssh line session closed")
	_ = sess.Exit(0)
}

func discardWindowChanges(winCh <-chan gliderssh.Window) {
	for range winCh {
	}
}

// runLines executes one command per input line until EOF.
func (s *Server) runLines(ctx context.Context, sess gliderssh.Session) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		readLines(sess, lines)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if isExit(line) {
				return
			}
			s.execute(ctx, sess, line, nil)
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}
