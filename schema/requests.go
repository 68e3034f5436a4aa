package schema

import "time"

// Operation names a tab operation exposed to command channels.
type Operation string

const (
	// OpClean runs consolidate, sort, remove-duplicates and close-blank in order.
	OpClean Operation = "clean"
	// OpConsolidate moves every tab from other windows into the target window.
	OpConsolidate Operation = "consolidate"
	// OpSort reorders tabs within the target window.
	OpSort Operation = "sort"
	// OpRemoveDuplicates removes tabs whose normalized URL repeats.
	OpRemoveDuplicates Operation = "remove-duplicates"
	// OpGroupByDomain groups tabs sharing a hostname.
	OpGroupByDomain Operation = "group-by-domain"
	// OpCloseBlank removes blank and new-tab pages.
	OpCloseBlank Operation = "close-blank"
	// OpUngroup removes unpinned tabs from their groups.
	OpUngroup Operation = "ungroup"
)

// Operations returns every supported operation in display order.
func Operations() []Operation {
	return []Operation{
		OpClean,
		OpConsolidate,
		OpSort,
		OpRemoveDuplicates,
		OpGroupByDomain,
		OpCloseBlank,
		OpUngroup,
	}
}

// RunRequest asks the engine to run one operation.
type RunRequest struct {
	Operation Operation
	// WindowID is the target window; WindowCurrent resolves the focused window.
	WindowID       WindowID
	PreservePinned bool
}

// RunResponse reports the outcome of a RunRequest.
type RunResponse struct {
	ID        string
	Operation Operation
	WindowID  WindowID
	Duration  time.Duration
}

// Result is the request/response channel payload.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ResultFromError converts an operation error into a channel payload.
func ResultFromError(err error) Result {
	if err == nil {
		return Result{Success: true}
	}
	msg := err.Error()
	if msg == "" {
		msg = "An unknown error occurred"
	}
	return Result{Success: false, Error: msg}
}

// Settings holds user preferences shared by all command channels.
type Settings struct {
	PreservePinned bool `json:"preservePinned"`
}
