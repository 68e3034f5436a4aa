package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownOperation indicates an operation name that is not supported.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrUnknownCommand indicates a shortcut command that is not mapped.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrWindowNotFound indicates a window no longer exists.
	ErrWindowNotFound = errors.New("window not found")
	// ErrTabNotFound indicates a tab no longer exists.
	ErrTabNotFound = errors.New("tab not found")
	// ErrGroupNotFound indicates a tab group no longer exists.
	ErrGroupNotFound = errors.New("group not found")
	// ErrNoWindows indicates the browser has no open windows.
	ErrNoWindows = errors.New("no windows")
	// ErrWindowBusy indicates another operation holds the window.
	ErrWindowBusy = errors.New("window is busy")
	// ErrBackendUnavailable indicates the tab service cannot be reached.
	ErrBackendUnavailable = errors.New("browser backend unavailable")
)
