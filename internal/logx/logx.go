package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

type contextKey int

const (
	windowKey contextKey = iota
	opKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithWindow annotates the logger with the window id if present.
func WithWindow(ctx context.Context, windowID schema.WindowID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if windowID != schema.WindowCurrent {
		if current, ok := ctx.Value(windowKey).(schema.WindowID); ok && current == windowID {
			return log
		}
		log = log.With("window", int64(windowID))
	}
	return log
}

// WithOp annotates the logger with the operation name and run id.
func WithOp(ctx context.Context, op schema.Operation, runID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if op != "" {
		if current, ok := ctx.Value(opKey).(string); ok && current == runID {
			return log
		}
		log = log.With("op", string(op))
		if runID != "" {
			log = log.With("op_id", runID)
		}
	}
	return log
}

// WithTab annotates the logger with a tab id and its address.
func WithTab(log pslog.Logger, tab schema.Tab) pslog.Logger {
	log = log.With("tab", int64(tab.ID))
	if tab.URL != "" {
		log = log.With("url", tab.URL)
	}
	return log
}

// ContextWithWindow stores the window marker on the context for log de-duplication.
func ContextWithWindow(ctx context.Context, windowID schema.WindowID) context.Context {
	if ctx == nil || windowID == schema.WindowCurrent {
		return ctx
	}
	return context.WithValue(ctx, windowKey, windowID)
}

// ContextWithOp stores the run id marker on the context for log de-duplication.
func ContextWithOp(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, opKey, runID)
}

// ContextWithWindowLogger attaches the logger and window marker to the context.
func ContextWithWindowLogger(ctx context.Context, log pslog.Logger, windowID schema.WindowID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithWindow(ctx, windowID)
}

// ContextWithOpLogger attaches the logger and run/window markers to the context.
func ContextWithOpLogger(ctx context.Context, log pslog.Logger, runID string, windowID schema.WindowID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithWindow(ContextWithOp(ctx, runID), windowID)
}

// CopyContextFields copies window/op markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if window, ok := src.Value(windowKey).(schema.WindowID); ok && window != schema.WindowCurrent {
		dst = ContextWithWindow(dst, window)
	}
	if runID, ok := src.Value(opKey).(string); ok && runID != "" {
		dst = ContextWithOp(dst, runID)
	}
	return dst
}
