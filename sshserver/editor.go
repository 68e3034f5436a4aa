package sshserver

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keySubmit
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyWordLeft
	keyWordRight
	keyKillWord
	keyKillStart
	keyKillEnd
	keyUp
	keyDown
	keyComplete
	keyInterrupt
	keyEOF
)

type key struct {
	kind keyKind
	r    rune
}

// controlKeys maps single-byte control codes to editing keys.
var controlKeys = map[byte]keyKind{
	'\r': keySubmit,
	'\n': keySubmit,
	0x01: keyHome,
	0x03: keyInterrupt,
	0x04: keyEOF,
	0x05: keyEnd,
	0x08: keyBackspace,
	0x09: keyComplete,
	0x0b: keyKillEnd,
	0x15: keyKillStart,
	0x17: keyKillWord,
	0x7f: keyBackspace,
}

// escapeKeys maps what follows ESC to editing keys. Unknown sequences are dropped.
var escapeKeys = map[string]keyKind{
	"[A": keyUp, "[B": keyDown, "[C": keyRight, "[D": keyLeft,
	"[H": keyHome, "[F": keyEnd, "OH": keyHome, "OF": keyEnd,
	"[1~": keyHome, "[7~": keyHome, "[4~": keyEnd, "[8~": keyEnd,
	"[3~": keyDelete,
	"b": keyWordLeft, "B": keyWordLeft, "f": keyWordRight, "F": keyWordRight,
}

const maxEscapeLen = 8

// keyDecoder turns raw terminal input into keys.
type keyDecoder struct {
	br        *bufio.Reader
	pendingCR bool
}

func newKeyDecoder(r io.Reader) *keyDecoder {
	return &keyDecoder{br: bufio.NewReader(r)}
}

// next returns the next recognised key. A CR LF pair submits once.
func (d *keyDecoder) next() (key, error) {
	for {
		b, err := d.br.ReadByte()
		if err != nil {
			return key{}, err
		}
		afterCR := d.pendingCR
		d.pendingCR = b == '\r'
		if afterCR && b == '\n' {
			continue
		}
		if b == 0x1b {
			if kind, ok := d.escape(); ok {
				return key{kind: kind}, nil
			}
			continue
		}
		if kind, ok := controlKeys[b]; ok {
			return key{kind: kind}, nil
		}
		if b < 0x20 {
			continue
		}
		if b < utf8.RuneSelf {
			return key{kind: keyRune, r: rune(b)}, nil
		}
		_ = d.br.UnreadByte()
		r, _, err := d.br.ReadRune()
		if err != nil {
			return key{}, err
		}
		return key{kind: keyRune, r: r}, nil
	}
}

func (d *keyDecoder) escape() (keyKind, bool) {
	first, err := d.br.ReadByte()
	if err != nil {
		return 0, false
	}
	seq := []byte{first}
	if first == '[' || first == 'O' {
		for len(seq) < maxEscapeLen {
			b, err := d.br.ReadByte()
			if err != nil {
				return 0, false
			}
			seq = append(seq, b)
			if b == '~' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') {
				break
			}
		}
	}
	kind, ok := escapeKeys[string(seq)]
	return kind, ok
}

// readKeys feeds decoded keys to out until r fails, then closes out.
func readKeys(r io.Reader, out chan<- key) {
	defer close(out)
	dec := newKeyDecoder(r)
	for {
		k, err := dec.next()
		if err != nil {
			return
		}
		out <- k
	}
}

type editEvent int

const (
	editContinue editEvent = iota
	editSubmit
	editInterrupt
	editEOF
	editListing
)

// editOutcome tells the shell what a key did beyond changing the line.
type editOutcome struct {
	event   editEvent
	line    string
	choices []string
}

// lineEditor is the prompt line of the interactive shell with its history
// and command-name completion.
type lineEditor struct {
	buf    []rune
	cursor int

	history    []string
	maxHistory int
	histPos    int
	draft      string

	candidates func() []string
}

func newLineEditor(maxHistory int, candidates func() []string) *lineEditor {
	return &lineEditor{maxHistory: maxHistory, candidates: candidates}
}

func (e *lineEditor) String() string { return string(e.buf) }

// Tail returns the number of runes right of the cursor.
func (e *lineEditor) Tail() int { return len(e.buf) - e.cursor }

// apply edits the line for k.
func (e *lineEditor) apply(k key) editOutcome {
	switch k.kind {
	case keyRune:
		e.splice(e.cursor, e.cursor, k.r)
	case keyBackspace:
		e.splice(max(e.cursor-1, 0), e.cursor)
	case keyDelete:
		e.splice(e.cursor, min(e.cursor+1, len(e.buf)))
	case keyLeft:
		e.cursor = max(e.cursor-1, 0)
	case keyRight:
		e.cursor = min(e.cursor+1, len(e.buf))
	case keyHome:
		e.cursor = 0
	case keyEnd:
		e.cursor = len(e.buf)
	case keyWordLeft:
		e.cursor = e.wordStart()
	case keyWordRight:
		e.cursor = e.wordEnd()
	case keyKillWord:
		e.splice(e.wordStart(), e.cursor)
	case keyKillStart:
		e.splice(0, e.cursor)
	case keyKillEnd:
		e.splice(e.cursor, len(e.buf))
	case keyUp:
		e.recall(-1)
	case keyDown:
		e.recall(1)
	case keyComplete:
		if choices := e.complete(); len(choices) > 0 {
			return editOutcome{event: editListing, choices: choices}
		}
	case keyInterrupt:
		e.set("")
		return editOutcome{event: editInterrupt}
	case keyEOF:
		if len(e.buf) == 0 {
			return editOutcome{event: editEOF}
		}
		e.splice(e.cursor, min(e.cursor+1, len(e.buf)))
	case keySubmit:
		line := strings.TrimSpace(e.String())
		e.set("")
		e.remember(line)
		return editOutcome{event: editSubmit, line: line}
	}
	return editOutcome{}
}

// splice replaces buf[from:to] with insert and leaves the cursor after it.
func (e *lineEditor) splice(from, to int, insert ...rune) {
	if from >= to && len(insert) == 0 {
		return
	}
	rest := append([]rune(nil), e.buf[to:]...)
	e.buf = append(append(e.buf[:from], insert...), rest...)
	e.cursor = from + len(insert)
}

func (e *lineEditor) set(value string) {
	e.buf = []rune(value)
	e.cursor = len(e.buf)
}

func (e *lineEditor) wordStart() int {
	i := e.cursor
	for i > 0 && isSpace(e.buf[i-1]) {
		i--
	}
	for i > 0 && !isSpace(e.buf[i-1]) {
		i--
	}
	return i
}

func (e *lineEditor) wordEnd() int {
	i := e.cursor
	for i < len(e.buf) && isSpace(e.buf[i]) {
		i++
	}
	for i < len(e.buf) && !isSpace(e.buf[i]) {
		i++
	}
	return i
}

func (e *lineEditor) remember(line string) {
	if line != "" {
		if n := len(e.history); n == 0 || e.history[n-1] != line {
			e.history = append(e.history, line)
		}
		if e.maxHistory > 0 && len(e.history) > e.maxHistory {
			e.history = e.history[len(e.history)-e.maxHistory:]
		}
	}
	e.histPos = len(e.history)
	e.draft = ""
}

// recall moves through history by step; stepping past the newest entry
// restores the line that was being typed.
func (e *lineEditor) recall(step int) {
	pos := e.histPos + step
	if pos < 0 || pos > len(e.history) {
		return
	}
	if e.histPos == len(e.history) {
		e.draft = e.String()
	}
	e.histPos = pos
	if pos == len(e.history) {
		e.set(e.draft)
		return
	}
	e.set(e.history[pos])
}

// complete extends a lone first word to the longest common prefix of the
// matching candidates. It returns the candidates when the word is already
// that prefix and still ambiguous.
func (e *lineEditor) complete() []string {
	line := e.String()
	if e.candidates == nil || strings.ContainsAny(line, " \t") {
		return nil
	}
	slash := strings.HasPrefix(line, "/")
	word := strings.ToLower(strings.TrimPrefix(line, "/"))
	var matches []string
	for _, name := range e.candidates() {
		if strings.HasPrefix(name, word) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	completed := commonPrefix(matches)
	switch {
	case len(matches) == 1:
		completed += " "
	case completed == word:
		return matches
	}
	if slash {
		completed = "/" + completed
	}
	e.set(completed)
	return nil
}

func commonPrefix(values []string) string {
	prefix := values[0]
	for _, value := range values[1:] {
		for !strings.HasPrefix(value, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
