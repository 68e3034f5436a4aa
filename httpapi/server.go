package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

const maxBodyBytes = 64 << 10

// CommandHandler runs shortcut and slash commands.
type CommandHandler interface {
	Handle(ctx context.Context, input string) (schema.RunResponse, error)
}

// SettingsStore reads and writes user preferences.
type SettingsStore interface {
	Get() (schema.Settings, error)
	SetPreservePinned(value bool) error
}

// Server serves the HTTP request/response channel.
type Server struct {
	cfg        Config
	engine     core.Engine
	cmdHandler CommandHandler
	settings   SettingsStore
	hub        *Hub
	basePath   string
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, engine core.Engine, handler CommandHandler, settings SettingsStore, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub(cfg.HubHistory)
	}
	return &Server{
		cfg:        cfg,
		engine:     engine,
		cmdHandler: handler,
		settings:   settings,
		hub:        hub,
		basePath:   normalizeBasePath(cfg.BasePath),
	}
}

// Hub returns the event hub feeding /api/stream.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/api/windows", s.handleWindows)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	return mountAt(s.basePath, withRequestLogging(mux))
}

type runPayload struct {
	Action         string `json:"action"`
	TargetWindowID int64  `json:"targetWindowId"`
	PreservePinned *bool  `json:"preservePinned,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	var payload runPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http run decode failed", "err", err)
		writeResult(w, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err))
		return
	}
	op, err := schema.ParseOperation(payload.Action)
	if err != nil {
		log.Warn("http run rejected", "action", payload.Action, "err", err)
		writeResult(w, err)
		return
	}
	if payload.TargetWindowID < 0 {
		writeResult(w, fmt.Errorf("%w: window id %d", schema.ErrInvalidRequest, payload.TargetWindowID))
		return
	}
	preserve := false
	if payload.PreservePinned != nil {
		preserve = *payload.PreservePinned
	} else if s.settings != nil {
		current, err := s.settings.Get()
		if err != nil {
			log.Warn("http run settings load failed", "err", err)
			writeResult(w, err)
			return
		}
		preserve = current.PreservePinned
	}
	window := schema.WindowID(payload.TargetWindowID)
	ctx := logx.ContextWithWindowLogger(r.Context(), logx.WithWindow(r.Context(), window), window)
	resp, err := s.engine.Run(ctx, schema.RunRequest{
		Operation:      op,
		WindowID:       window,
		PreservePinned: preserve,
	})
	if err != nil {
		log.Warn("http run failed", "op", string(op), "err", err)
		writeResult(w, err)
		return
	}
	log.Info("http run ok", "op", string(op), "op_id", resp.ID, "window", int64(resp.WindowID))
	writeResult(w, nil)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	if s.cmdHandler == nil {
		writeResult(w, errors.New("command handler unavailable"))
		return
	}
	var payload struct {
		Command string `json:"command"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http command decode failed", "err", err)
		writeResult(w, fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err))
		return
	}
	resp, err := s.cmdHandler.Handle(r.Context(), payload.Command)
	if err != nil {
		log.Warn("http command failed", "command", payload.Command, "err", err)
		writeResult(w, err)
		return
	}
	log.Info("http command ok", "command", payload.Command, "op_id", resp.ID)
	writeResult(w, nil)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context())
	windows, err := s.engine.Windows(r.Context())
	if err != nil {
		log.Warn("http windows failed", "err", err)
		writeResult(w, err)
		return
	}
	if windows == nil {
		windows = []schema.Window{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"windows": windows})
	log.Debug("http windows ok", "count", len(windows))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context())
	if s.settings == nil {
		writeError(w, http.StatusNotFound, errors.New("settings unavailable"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		current, err := s.settings.Get()
		if err != nil {
			log.Warn("http settings load failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, current)
	case http.MethodPost:
		var payload struct {
			PreservePinned *bool `json:"preservePinned"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("http settings decode failed", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if payload.PreservePinned == nil {
			writeError(w, http.StatusBadRequest, errors.New("preservePinned is required"))
			return
		}
		if err := s.settings.SetPreservePinned(*payload.PreservePinned); err != nil {
			log.Warn("http settings save failed", "err", err)
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		log.Info("http settings save ok", "preserve_pinned", *payload.PreservePinned)
		writeJSON(w, http.StatusOK, schema.Settings{PreservePinned: *payload.PreservePinned})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.Ctx(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	since := parseUint(r.URL.Query().Get("since"))
	if since == 0 {
		since = parseUint(r.Header.Get("Last-Event-ID"))
	}

	ch, unsubscribe, head := s.hub.Subscribe()
	defer unsubscribe()

	replayCount := 0
	if since > 0 {
		for _, event := range s.hub.Replay(since) {
			if event.Seq > head {
				break
			}
			_ = writeSSEvent(w, event)
			replayCount++
		}
	}
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	notify := r.Context().Done()
	log.Info("http stream opened", "since", since, "replay", replayCount)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

// statusFor maps an operation error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrUnknownOperation),
		errors.Is(err, schema.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrWindowBusy):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeResult(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), schema.ResultFromError(err))
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// SetLogger attaches logger to the hub. Request loggers come from the request context.
func (s *Server) SetLogger(logger pslog.Logger) {
	s.hub.SetLogger(logger)
}
