package sshserver

import (
	"strings"
	"testing"
)

func collectKeys(input string) []key {
	ch := make(chan key, 32)
	go readKeys(strings.NewReader(input), ch)
	var out []key
	for k := range ch {
		out = append(out, k)
	}
	return out
}

func typeInto(e *lineEditor, text string) {
	for _, r := range text {
		e.apply(key{kind: keyRune, r: r})
	}
}

func press(e *lineEditor, kinds ...keyKind) editOutcome {
	var last editOutcome
	for _, kind := range kinds {
		last = e.apply(key{kind: kind})
	}
	return last
}

func TestReadKeysEscapes(t *testing.T) {
	keys := collectKeys("\x1b[A\x1b[3~\x1bOH\x1b[4~\x1bb\x1b[99Z\x03")
	want := []keyKind{keyUp, keyDelete, keyHome, keyEnd, keyWordLeft, keyInterrupt}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(keys), keys)
	}
	for i, k := range keys {
		if k.kind != want[i] {
			t.Fatalf("key %d: expected %v, got %v", i, want[i], k.kind)
		}
	}
}

func TestReadKeysCRLFIsOneSubmit(t *testing.T) {
	keys := collectKeys("ab\r\nå\n")
	if len(keys) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(keys))
	}
	if keys[2].kind != keySubmit || keys[3].r != 'å' || keys[4].kind != keySubmit {
		t.Fatalf("unexpected keys %+v", keys)
	}
}

func TestLineEditorEditing(t *testing.T) {
	e := newLineEditor(0, nil)
	typeInto(e, "sort 12")
	press(e, keyWordLeft)
	if e.Tail() != 2 {
		t.Fatalf("expected cursor before window id, tail %d", e.Tail())
	}
	press(e, keyKillEnd)
	if e.String() != "sort " {
		t.Fatalf("unexpected line %q", e.String())
	}
	press(e, keyKillWord)
	if e.String() != "" {
		t.Fatalf("expected empty line, got %q", e.String())
	}
	typeInto(e, "dedupe")
	press(e, keyHome, keyDelete, keyEnd, keyBackspace)
	if e.String() != "edup" {
		t.Fatalf("unexpected line %q", e.String())
	}
	press(e, keyLeft, keyKillStart)
	if e.String() != "p" || e.Tail() != 1 {
		t.Fatalf("unexpected kill result %q tail %d", e.String(), e.Tail())
	}
	press(e, keyWordRight)
	typeInto(e, "!")
	if e.String() != "p!" {
		t.Fatalf("expected insert at end, got %q", e.String())
	}
}

func TestLineEditorSubmitAndEOF(t *testing.T) {
	e := newLineEditor(0, nil)
	if out := press(e, keyEOF); out.event != editEOF {
		t.Fatalf("expected EOF on empty line, got %+v", out)
	}
	typeInto(e, "  sort  ")
	out := press(e, keySubmit)
	if out.event != editSubmit || out.line != "sort" {
		t.Fatalf("unexpected submit %+v", out)
	}
	if e.String() != "" {
		t.Fatalf("expected cleared line, got %q", e.String())
	}
	typeInto(e, "ab")
	press(e, keyHome)
	if out := press(e, keyEOF); out.event != editContinue || e.String() != "b" {
		t.Fatalf("expected Ctrl-D to delete on non-empty line, got %+v %q", out, e.String())
	}
	if out := press(e, keyInterrupt); out.event != editInterrupt || e.String() != "" {
		t.Fatalf("expected interrupt to clear, got %+v %q", out, e.String())
	}
}

func TestLineEditorHistory(t *testing.T) {
	e := newLineEditor(2, nil)
	for _, line := range []string{"clean", "sort", "sort", "windows"} {
		typeInto(e, line)
		press(e, keySubmit)
	}
	if len(e.history) != 2 || e.history[0] != "sort" || e.history[1] != "windows" {
		t.Fatalf("unexpected history %v", e.history)
	}
	typeInto(e, "dra")
	press(e, keyUp)
	if e.String() != "windows" {
		t.Fatalf("expected newest entry, got %q", e.String())
	}
	press(e, keyUp, keyUp)
	if e.String() != "sort" {
		t.Fatalf("expected oldest entry, got %q", e.String())
	}
	press(e, keyDown, keyDown)
	if e.String() != "dra" {
		t.Fatalf("expected draft restored, got %q", e.String())
	}
}

func TestLineEditorCompletesCommandNames(t *testing.T) {
	e := newLineEditor(0, commandNames)
	typeInto(e, "execute_g")
	if out := press(e, keyComplete); out.event != editContinue {
		t.Fatalf("expected silent extension, got %+v", out)
	}
	if e.String() != "execute_group_" {
		t.Fatalf("expected common prefix, got %q", e.String())
	}
	out := press(e, keyComplete)
	if out.event != editListing || len(out.choices) != 2 {
		t.Fatalf("expected two choices, got %+v", out)
	}

	e = newLineEditor(0, commandNames)
	typeInto(e, "/close-bl")
	press(e, keyComplete)
	if e.String() != "/close-blank " {
		t.Fatalf("expected unique completion, got %q", e.String())
	}

	e = newLineEditor(0, commandNames)
	typeInto(e, "zzz")
	if out := press(e, keyComplete); out.event != editContinue || e.String() != "zzz" {
		t.Fatalf("expected no completion, got %+v %q", out, e.String())
	}
	if got := commonPrefix([]string{"execute_group_all_tabs", "execute_group_by_domain"}); got != "execute_group_" {
		t.Fatalf("unexpected common prefix %q", got)
	}
}
