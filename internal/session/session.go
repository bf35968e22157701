// Package session implements the shell-to-core API of spec §6: the
// physical-key-event surface (keydown/keyup/repeat/timeout1/2/3) plus
// copy/paste, sitting above internal/core the way the original's platform
// shells (none of which are in scope here, per spec §1) drove the engine
// one key at a time.
//
// Grounded on spec §6's entry-point list directly — the teacher has no
// key-event loop to adapt from (its REPL reads whole lines, not individual
// keys; see internal/repl). github.com/google/uuid gives each Shell and
// each remote client connection a stable identity, a direct use the teacher's go.mod
// only ever carried as an indirect dependency of other tooling.
package session

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"calc42/internal/bytecode"
	"calc42/internal/calcerr"
	"calc42/internal/core"
	"calc42/internal/numeric"
	"calc42/internal/value"
)

// Repeat request kinds returned by KeyDown (spec §6: "repeat ∈ {0,1,2}").
const (
	RepeatNone = 0
	RepeatSlow = 1 // SST/BST held
	RepeatFast = 2 // numeric entry held
)

// key describes one physical key's effect: either a digit/point to append
// to the pending number-entry buffer, or an instruction to dispatch once
// any pending entry has been flushed to X.
type key struct {
	digit  string // "" unless this key appends to number entry
	instr  bytecode.Instr
	repeat int
}

// keyTable maps physical key codes 1..37 (spec §6) to their effect. This
// covers the OpCode set internal/bytecode actually wires (see its own
// comment on being "a representative, fully-wired subset" of the HP-42S-
// class command set) rather than the full 37-key physical layout; codes
// outside the table are accepted and treated as a no-op key, matching
// core_keydown's "0 means no key" idle case generalized to "unmapped key".
var keyTable = map[int]key{
	1:  {digit: "0"},
	2:  {digit: "1"},
	3:  {digit: "2"},
	4:  {digit: "3"},
	5:  {digit: "4"},
	6:  {digit: "5"},
	7:  {digit: "6"},
	8:  {digit: "7"},
	9:  {digit: "8"},
	10: {digit: "9"},
	11: {digit: "."},
	12: {instr: bytecode.Instr{Op: bytecode.OpEnter}},
	13: {instr: bytecode.Instr{Op: bytecode.OpChs}},
	14: {instr: bytecode.Instr{Op: bytecode.OpClx}},
	15: {instr: bytecode.Instr{Op: bytecode.OpRdn}},
	16: {instr: bytecode.Instr{Op: bytecode.OpLastx}},
	17: {instr: bytecode.Instr{Op: bytecode.OpAdd}},
	18: {instr: bytecode.Instr{Op: bytecode.OpSub}},
	19: {instr: bytecode.Instr{Op: bytecode.OpMul}},
	20: {instr: bytecode.Instr{Op: bytecode.OpDiv}, repeat: RepeatFast},
	21: {instr: bytecode.Instr{Op: bytecode.OpSquare}},
	22: {instr: bytecode.Instr{Op: bytecode.OpSign}},
	23: {instr: bytecode.Instr{Op: bytecode.OpAbs}},
	24: {instr: bytecode.Instr{Op: bytecode.OpComplex}},
	25: {instr: bytecode.Instr{Op: bytecode.OpToRec}},
	26: {instr: bytecode.Instr{Op: bytecode.OpToPol}},
}

// Shell drives one *core.Machine one key event at a time. It owns the
// number-entry buffer (not core's concern: spec §4.2's unary_result only
// knows how to install a finished value, not accumulate keystrokes).
type Shell struct {
	ID uuid.UUID
	M  *core.Machine

	entry      strings.Builder
	entering   bool
	heldKey    int
	suppressed bool // keytimeout1/2 and keyup suppressed by KeyDown's enqueued result
}

// New starts a shell session over m, minting a fresh identity the way the
// teacher's request-scoped identifiers are minted per connection.
func New(m *core.Machine) *Shell {
	return &Shell{ID: uuid.New(), M: m}
}

// flushEntry installs the pending number-entry buffer into X, if any, then
// clears it. Called before any non-digit key is dispatched (spec §4.2's
// numeric-entry terminator behavior).
func (sh *Shell) flushEntry() *calcerr.CalcError {
	if !sh.entering {
		return nil
	}
	text := sh.entry.String()
	sh.entry.Reset()
	sh.entering = false

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return calcerr.InvalidData("malformed number entry: " + text)
	}
	v := value.Real(numeric.NewFloat64(f))
	if sh.M.Flags.StackLiftDisabled() {
		sh.M.Stack.SetX(v)
	} else {
		sh.M.Stack.Enter()
		sh.M.Stack.SetX(v)
	}
	return nil
}

// KeyDown implements core_keydown(key, &enqueued, &repeat): dispatch the
// key's effect and report whether the shell should request an auto-repeat.
func (sh *Shell) KeyDown(keyCode int) (enqueued bool, repeat int, cerr *calcerr.CalcError) {
	sh.heldKey = keyCode
	sh.suppressed = false

	k, ok := keyTable[keyCode]
	if !ok {
		return false, RepeatNone, nil
	}

	if k.digit != "" {
		sh.entering = true
		sh.entry.WriteString(k.digit)
		return false, RepeatFast, nil
	}

	if err := sh.flushEntry(); err != nil {
		return false, RepeatNone, err
	}
	if _, err := sh.M.Dispatch(k.instr); err != nil {
		return false, RepeatNone, err
	}
	return false, k.repeat, nil
}

// KeyUp implements core_keyup(): releasing the held key. Returns true when
// a key was held and its callbacks were not suppressed by KeyDown, false
// otherwise.
func (sh *Shell) KeyUp() bool {
	released := sh.heldKey != 0 && !sh.suppressed
	sh.heldKey = 0
	return released
}

// Repeat implements core_repeat(): what kind of auto-repeat the currently
// held key wants, 0 if none.
func (sh *Shell) Repeat() int {
	if sh.heldKey == 0 {
		return RepeatNone
	}
	return keyTable[sh.heldKey].repeat
}

// Timeout1 implements core_keytimeout1 (0.25s): the signal to show the
// held key's function name. enqueued from a prior KeyDown suppresses it.
func (sh *Shell) Timeout1() (name string, suppressed bool) {
	if sh.suppressed {
		return "", true
	}
	if k, ok := keyTable[sh.heldKey]; ok {
		return k.instr.Op.String(), false
	}
	return "", false
}

// Timeout2 implements core_keytimeout2 (2s): annul the held key.
func (sh *Shell) Timeout2() {
	sh.heldKey = 0
}

// Timeout3 implements core_timeout3(repaint): a long-running command's
// worker continuation point. This simulator never installs a worker that
// outlives one Dispatch call (spec §5: Go's own call stack does the
// waiting), so it always reports "nothing more to do".
func (sh *Shell) Timeout3(repaint bool) bool {
	return false
}

// Copy implements core.copy(): render X as the text a platform clipboard
// would receive.
func (sh *Shell) Copy() (string, *calcerr.CalcError) {
	if err := sh.flushEntry(); err != nil {
		return "", err
	}
	return renderValue(sh.M.Stack.X()), nil
}

// Paste implements core.paste(text): parse text as a real literal and push
// it as the new X, lifting the stack the same way a completed number entry
// would. Complex text is not parsed; it is rejected with InvalidData like
// any other non-number.
func (sh *Shell) Paste(text string) *calcerr.CalcError {
	text = strings.TrimSpace(text)
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return calcerr.InvalidData("paste: not a number: " + text)
	}
	v := value.Real(numeric.NewFloat64(f))
	if !sh.M.Flags.StackLiftDisabled() {
		sh.M.Stack.Enter()
	}
	sh.M.Stack.SetX(v)
	return nil
}

func renderValue(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return string(v.Str)
	case value.KindReal:
		return v.Re.String()
	case value.KindComplex:
		sign := "+"
		im := v.Im
		if im.Sign() < 0 {
			sign = "-"
			im = im.Neg()
		}
		return v.Re.String() + sign + im.String() + "i"
	default:
		return ""
	}
}

// RunID mints a fresh random identifier; internal/remote uses it to name
// each connected client. SOLVE and INTEG runs are not labelled with one.
func RunID() uuid.UUID { return uuid.New() }
