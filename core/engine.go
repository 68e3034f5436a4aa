package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// Engine is the transport-agnostic API for arranging browser tabs.
type Engine interface {
	// Run resolves the target window, takes its lease and runs one named operation.
	Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error)
	Windows(ctx context.Context) ([]schema.Window, error)

	Consolidate(ctx context.Context, target schema.WindowID) error
	Sort(ctx context.Context, window schema.WindowID, preservePinned bool) error
	RemoveDuplicates(ctx context.Context, window schema.WindowID) error
	GroupByDomain(ctx context.Context, window schema.WindowID) error
	CloseBlankTabs(ctx context.Context, window schema.WindowID) error
	Ungroup(ctx context.Context, window schema.WindowID) error
	Clean(ctx context.Context, window schema.WindowID, preservePinned bool) error
}

type engine struct {
	cfg        schema.EngineConfig
	tabs       TabService
	sink       EventSink
	logger     pslog.Logger
	normalizer *URLNormalizer
	leases     *leases

	randMu sync.Mutex
	rand   *rand.Rand
}

var settle = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewEngine constructs the tab engine.
func NewEngine(cfg schema.EngineConfig, deps EngineDeps) (Engine, error) {
	normalized, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Tabs == nil {
		return nil, errors.New("tab service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	e := &engine{
		cfg:        cfg,
		tabs:       deps.Tabs,
		sink:       deps.EventSink,
		logger:     logger,
		normalizer: NewURLNormalizer(cfg.CoalesceHosts),
		rand:       deps.Rand,
	}
	if cfg.WindowLease {
		e.leases = newLeases()
	}
	return e, nil
}

func (e *engine) Run(ctx context.Context, req schema.RunRequest) (schema.RunResponse, error) {
	if ctx == nil {
		return schema.RunResponse{}, errors.New("missing context")
	}
	if err := schema.ValidateRunRequest(req); err != nil {
		return schema.RunResponse{}, err
	}
	windowID := req.WindowID
	if windowID == schema.WindowCurrent {
		current, err := e.tabs.CurrentWindow(ctx)
		if err != nil {
			pslog.Ctx(ctx).Warn("engine run resolve window failed", "op", string(req.Operation), "err", err)
			return schema.RunResponse{}, opErr(req.Operation, PhaseResolveWindow, 0, 0, err)
		}
		windowID = current.ID
	}
	release, err := e.leases.acquire(windowID)
	if err != nil {
		pslog.Ctx(ctx).Warn("engine run rejected", "op", string(req.Operation), "window", int64(windowID), "err", err)
		return schema.RunResponse{}, err
	}
	defer release()

	id := newID()
	log := logx.WithOp(ctx, req.Operation, id).With("window", int64(windowID))
	ctx = logx.ContextWithOpLogger(ctx, log, id, windowID)
	log.Info("engine run start", "preserve_pinned", req.PreservePinned)
	start := time.Now()
	e.emit(schema.OperationEvent{ID: id, Operation: req.Operation, WindowID: windowID, Status: schema.OperationStarted, Timestamp: start})

	err = e.dispatch(ctx, req.Operation, windowID, req.PreservePinned)
	duration := time.Since(start)
	resp := schema.RunResponse{ID: id, Operation: req.Operation, WindowID: windowID, Duration: duration}
	event := schema.OperationEvent{
		ID:        id,
		Operation: req.Operation,
		WindowID:  windowID,
		Status:    schema.OperationSucceeded,
		Duration:  duration,
		Timestamp: time.Now(),
	}
	if err != nil {
		event.Status = schema.OperationFailed
		event.Error = err.Error()
		e.emit(event)
		log.Warn("engine run failed", "duration", duration, "err", err)
		return resp, err
	}
	e.emit(event)
	log.Info("engine run ok", "duration", duration)
	return resp, nil
}

func (e *engine) dispatch(ctx context.Context, op schema.Operation, window schema.WindowID, preservePinned bool) error {
	switch op {
	case schema.OpClean:
		return e.Clean(ctx, window, preservePinned)
	case schema.OpConsolidate:
		return e.Consolidate(ctx, window)
	case schema.OpSort:
		return e.Sort(ctx, window, preservePinned)
	case schema.OpRemoveDuplicates:
		return e.RemoveDuplicates(ctx, window)
	case schema.OpGroupByDomain:
		return e.GroupByDomain(ctx, window)
	case schema.OpCloseBlank:
		return e.CloseBlankTabs(ctx, window)
	case schema.OpUngroup:
		return e.Ungroup(ctx, window)
	default:
		return fmt.Errorf("%w: %s", schema.ErrUnknownOperation, op)
	}
}

func (e *engine) Windows(ctx context.Context) ([]schema.Window, error) {
	if ctx == nil {
		return nil, errors.New("missing context")
	}
	windows, err := e.tabs.ListWindows(ctx)
	if err != nil {
		pslog.Ctx(ctx).Warn("engine windows list failed", "err", err)
		return nil, err
	}
	return windows, nil
}

// Clean runs consolidate, sort, remove-duplicates and close-blank in order and
// stops at the first failure.
func (e *engine) Clean(ctx context.Context, window schema.WindowID, preservePinned bool) error {
	log := logx.WithWindow(ctx, window)
	log.Info("engine clean start")
	steps := []struct {
		name schema.Operation
		run  func() error
	}{
		{schema.OpConsolidate, func() error { return e.Consolidate(ctx, window) }},
		{schema.OpSort, func() error { return e.Sort(ctx, window, preservePinned) }},
		{schema.OpRemoveDuplicates, func() error { return e.RemoveDuplicates(ctx, window) }},
		{schema.OpCloseBlank, func() error { return e.CloseBlankTabs(ctx, window) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Warn("engine clean failed", "step", string(step.name), "err", err)
			return err
		}
	}
	log.Info("engine clean ok")
	return nil
}

func (e *engine) getWindow(ctx context.Context, op schema.Operation, id schema.WindowID) (schema.Window, error) {
	window, err := e.tabs.GetWindow(ctx, id)
	if err != nil {
		return schema.Window{}, opErr(op, PhaseGetWindow, id, 0, err)
	}
	return window, nil
}

func (e *engine) pickColor() schema.GroupColor {
	palette := schema.GroupColors()
	if e.rand == nil {
		return palette[rand.IntN(len(palette))]
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return palette[e.rand.IntN(len(palette))]
}

func (e *engine) emit(event schema.OperationEvent) {
	if e.sink == nil {
		return
	}
	e.logger.Debug("engine event emit", "op_id", event.ID, "op", string(event.Operation), "status", string(event.Status))
	e.sink.OnOperationEvent(event)
}
