package tabtidy

import (
	"context"
	"errors"
	"net"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/core"
	"pkt.systems/tabtidy/httpapi"
	"pkt.systems/tabtidy/internal/command"
	"pkt.systems/tabtidy/internal/eventbus"
	"pkt.systems/tabtidy/internal/settings"
	"pkt.systems/tabtidy/schema"
	"pkt.systems/tabtidy/sshserver"
)

// Server composes the HTTP channel, the SSH channel and the browser shortcut loop.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Engine              schema.EngineConfig
	StateDir            string
	HTTP                httpapi.Config
	SSH                 sshserver.Config
	DisableAuditLogging bool
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Tabs      core.TabService
	EventSink core.EventSink
	Logger    pslog.Logger
	// Shortcuts delivers keyboard shortcut names from the browser.
	Shortcuts <-chan string
	// HTTPListener and SSHListener replace the configured addresses when set.
	HTTPListener net.Listener
	SSHListener  net.Listener
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	enableSSH  bool
}

// WithHTTP enables the HTTP request/response channel.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithSSH enables the SSH command channel.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.enableSSH = true }
}

// New constructs a composable tabtidy server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableSSH && deps.Shortcuts == nil {
		return nil, errors.New("no services enabled")
	}
	if deps.Tabs == nil {
		return nil, errors.New("tab service dependency is required")
	}

	var hub *httpapi.Hub
	var bus *eventbus.Bus
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HTTP.HubHistory)
		if deps.Logger != nil {
			hub.SetLogger(deps.Logger)
		}
	}
	if options.enableSSH {
		bus = eventbus.New(deps.Logger)
	}
	var hubSink, busSink core.EventSink
	if hub != nil {
		hubSink = hub
	}
	if bus != nil {
		busSink = bus
	}

	engine, err := core.NewEngine(cfg.Engine, core.EngineDeps{
		Tabs:      deps.Tabs,
		EventSink: fanoutSinks(deps.EventSink, hubSink, busSink),
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	store, err := settings.NewStoreWithLogger(cfg.StateDir, deps.Logger)
	if err != nil {
		return nil, err
	}
	cmdHandler := command.NewHandler(engine, store, command.HandlerConfig{
		DisableAuditLogging: cfg.DisableAuditLogging,
	})

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, engine, cmdHandler, store, hub)
		if deps.Logger != nil {
			httpSrv.SetLogger(deps.Logger)
		}
	}
	var sshSrv *sshserver.Server
	if options.enableSSH {
		keys, err := sshserver.LoadAuthorizedKeys(cfg.SSH.AuthorizedKeysPath)
		if err != nil {
			return nil, err
		}
		sshSrv = &sshserver.Server{
			Addr:        cfg.SSH.Addr,
			HostKeyPath: cfg.SSH.HostKeyPath,
			Listener:    deps.SSHListener,
			Handler:     cmdHandler,
			Windows:     engine,
			Keys:        keys,
			EventBus:    bus,
			Prompt:      cfg.SSH.Prompt,
		}
	}

	return &compositeServer{
		cfg:          cfg,
		options:      options,
		engine:       engine,
		handler:      cmdHandler,
		httpSrv:      httpSrv,
		httpListener: deps.HTTPListener,
		sshSrv:       sshSrv,
		shortcuts:    deps.Shortcuts,
		tabs:         deps.Tabs,
	}, nil
}

type compositeServer struct {
	cfg          ServerConfig
	options      serverOptions
	engine       core.Engine
	handler      *command.Handler
	httpSrv      *httpapi.Server
	httpListener net.Listener
	sshSrv       *sshserver.Server
	shortcuts    <-chan string
	tabs         core.TabService
	logger       pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	closed  bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"ssh", s.options.enableSSH,
		"shortcuts", s.shortcuts != nil,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"ssh_addr", s.cfg.SSH.Addr,
	)
	if s.httpSrv != nil {
		go func() {
			var err error
			if s.httpListener != nil {
				err = httpapi.Serve(s.ctx, s.httpListener, s.httpSrv.Handler())
			} else {
				err = httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler())
			}
			if err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.sshSrv != nil {
		go func() {
			if err := s.sshSrv.ListenAndServe(s.ctx); err != nil {
				log.Error("ssh server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	if s.shortcuts != nil {
		go s.dispatchShortcuts(s.ctx)
	}
	return nil
}

// dispatchShortcuts runs browser keyboard shortcuts against the current window.
func (s *compositeServer) dispatchShortcuts(ctx context.Context) {
	log := pslog.Ctx(ctx).With("channel", "shortcut")
	ctx = pslog.ContextWithLogger(ctx, log)
	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-s.shortcuts:
			if !ok {
				log.Info("shortcut channel closed")
				return
			}
			if _, err := s.handler.Dispatch(ctx, name, schema.WindowCurrent); err != nil {
				log.Warn("shortcut failed", "command", name, "err", err)
			}
		}
	}
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if closer, ok := s.tabs.(interface{ Close() }); ok && !alreadyClosed {
		closer.Close()
		log.Info("server tab service close ok")
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
