package core

import (
	"fmt"
	"strings"

	"pkt.systems/tabtidy/schema"
)

// Phase names the step of an operation that failed.
type Phase string

const (
	PhaseResolveWindow Phase = "resolve window"
	PhaseListWindows   Phase = "list windows"
	PhaseGetWindow     Phase = "get window"
	PhaseMovePinned    Phase = "move pinned tabs"
	PhaseMoveUnpinned  Phase = "move unpinned tabs"
	PhaseMoveTab       Phase = "move tab"
	PhasePinTab        Phase = "pin tab"
	PhaseActiveTab     Phase = "query active tab"
	PhaseActivateTab   Phase = "activate tab"
	PhaseSettle        Phase = "settle"
	PhaseRemoveTabs    Phase = "remove tabs"
	PhaseCreateGroup   Phase = "create group"
	PhaseUpdateGroup   Phase = "update group"
)

// OpError carries the operation, phase and ids involved in a failed service call.
type OpError struct {
	Op     schema.Operation
	Phase  Phase
	Window schema.WindowID
	Tab    schema.TabID
	Err    error
}

func opErr(op schema.Operation, phase Phase, window schema.WindowID, tab schema.TabID, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Phase: phase, Window: window, Tab: tab, Err: err}
}

func (e *OpError) Error() string {
	if e == nil {
		return "operation error"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	b.WriteString(string(e.Phase))
	switch {
	case e.Window != 0 && e.Tab != 0:
		fmt.Fprintf(&b, " (window %d, tab %d)", e.Window, e.Tab)
	case e.Window != 0:
		fmt.Fprintf(&b, " (window %d)", e.Window)
	case e.Tab != 0:
		fmt.Fprintf(&b, " (tab %d)", e.Tab)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
