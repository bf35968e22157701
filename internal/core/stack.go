// Package core implements the interpreter of spec §4.2-§4.4: stack
// discipline, command dispatch, argument resolution, and the key-event
// driven stepper.
//
// Grounded on the teacher's internal/vm dispatch-loop texture (a command
// table keyed by opcode, a `switch` per concern, short per-opcode handler
// functions) — not on its code, which targets a general-purpose register
// VM with no stack-lift/no-lift discipline, return-address sentinels, or
// argument-kind resolution (see DESIGN.md).
package core

import (
	"calc42/internal/calcerr"
	"calc42/internal/numeric"
	"calc42/internal/value"
)

// Stack implements spec §3's two disciplines: classic 4-level (X/Y/Z/T)
// and unbounded "big stack", selected by the big_stack flag.
type Stack struct {
	BigStack bool
	slots    []value.Value // slots[0] is X; for classic mode always len==4
	lastX    value.Value
}

func NewStack(bigStack bool) *Stack {
	s := &Stack{BigStack: bigStack}
	n := 4
	if bigStack {
		n = 1
	}
	s.slots = make([]value.Value, n)
	for i := range s.slots {
		s.slots[i] = value.Real(numeric.NewFloat64(0))
	}
	s.lastX = value.Real(numeric.NewFloat64(0))
	return s
}

func (s *Stack) Depth() int { return len(s.slots) }

// Snapshot returns a copy of every live slot in storage order (classic
// mode: slots[0] is X; big stack: slots[len-1] is X), for persistence
// (spec §4.10) — the classic stack always reports 4, the big stack reports
// its current depth.
func (s *Stack) Snapshot() []value.Value {
	out := make([]value.Value, len(s.slots))
	copy(out, s.slots)
	return out
}

// Restore installs a previously captured Snapshot and LASTX, used when
// reloading a saved state (spec §4.10/§8's save_state/init round-trip law).
// Classic-mode callers must pass exactly 4 slots; big-stack callers may pass
// any depth ≥ 1.
func (s *Stack) Restore(slots []value.Value, lastX value.Value) {
	s.slots = make([]value.Value, len(slots))
	copy(s.slots, slots)
	s.lastX = lastX
}

// X/Y/Z/T read the named classic register; in big-stack mode Y/Z/T read
// relative to sp (the top), returning a zero Value past the bottom.
func (s *Stack) X() value.Value { return s.at(0) }
func (s *Stack) Y() value.Value { return s.at(1) }
func (s *Stack) Z() value.Value { return s.at(2) }
func (s *Stack) T() value.Value { return s.at(3) }
func (s *Stack) LastX() value.Value { return s.lastX }

func (s *Stack) at(depthFromTop int) value.Value {
	i := depthFromTop
	if s.BigStack {
		i = len(s.slots) - 1 - depthFromTop
	}
	if i < 0 || i >= len(s.slots) {
		return value.Real(numeric.NewFloat64(0))
	}
	return s.slots[i]
}

func (s *Stack) setAt(depthFromTop int, v value.Value) {
	i := depthFromTop
	if s.BigStack {
		i = len(s.slots) - 1 - depthFromTop
	}
	if i < 0 || i >= len(s.slots) {
		return
	}
	s.slots[i] = v
}

// SetX overwrites X in place (used by recall_result_silently when stack
// lift is disabled).
func (s *Stack) SetX(v value.Value) { s.setAt(0, v) }

// grow lifts the stack: big-stack mode appends one slot, classic mode
// drops T (discarding whatever value was there) and shifts Y->Z, X->Y.
func (s *Stack) grow(newX value.Value) {
	if s.BigStack {
		s.slots = append(s.slots, newX)
		return
	}
	s.slots[3] = s.slots[2]
	s.slots[2] = s.slots[1]
	s.slots[1] = s.slots[0]
	s.slots[0] = newX
}

// shrinkInto drops the stack by one level and installs v at the new X:
// big-stack mode pops; classic mode shifts Z->Y, T->Z and duplicates T
// into the vacated T slot (spec §4.2: binary_result).
func (s *Stack) shrinkInto(v value.Value) {
	if s.BigStack {
		if len(s.slots) > 1 {
			s.slots = s.slots[:len(s.slots)-1]
		}
		s.slots[len(s.slots)-1] = v
		return
	}
	s.slots[1] = s.slots[2]
	s.slots[2] = s.slots[3]
	s.slots[0] = v // Y is consumed; Z->Y, T->Z, duplicate T, v becomes X
}

// RecallResultSilently implements spec §4.2's recall_result_silently: if
// liftDisabled, overwrite X; else lift the stack and install v at X. It
// never touches LASTX or emits a trace print.
func (s *Stack) RecallResultSilently(v value.Value, liftDisabled bool) {
	if liftDisabled {
		s.SetX(v)
		return
	}
	s.grow(v)
}

// UnaryResult implements spec §4.2's unary_result: LASTX = old X, X <- v.
func (s *Stack) UnaryResult(v value.Value) {
	s.lastX = s.X()
	s.SetX(v)
}

// BinaryResult implements spec §4.2's binary_result: LASTX = old X, drop
// the stack by one (consuming Y), install v at the new X.
func (s *Stack) BinaryResult(v value.Value) {
	s.lastX = s.X()
	s.shrinkInto(v)
}

// TernaryResult drops two levels (consuming Y and Z) and installs v at X.
func (s *Stack) TernaryResult(v value.Value) {
	s.lastX = s.X()
	s.shrinkInto(v) // first drop
	s.shrinkInto(v) // second drop, idempotent final install
}

// RecallTwoResults pushes x then y so that after the call X==y, Y==x (used
// by INTEG, spec §4.2).
func (s *Stack) RecallTwoResults(x, y value.Value, liftDisabled bool) {
	s.RecallResultSilently(x, liftDisabled)
	s.grow(y)
}

// UnaryTwoResults replaces X with two results the way UnaryResult replaces
// it with one: LASTX is set, x is lifted under y, y becomes the new X.
func (s *Stack) UnaryTwoResults(x, y value.Value) {
	s.lastX = s.X()
	s.SetX(x)
	s.grow(y)
}

// BinaryTwoResults consumes Y and replaces it with two results.
func (s *Stack) BinaryTwoResults(x, y value.Value) {
	s.lastX = s.X()
	s.shrinkInto(x)
	s.grow(y)
}

// InstallQuad writes four results at once (X=x, Y=y, Z=z, T=t) the way the
// Solver publishes (root, previous-x, curr_f, termination-tag) in one step
// (spec §4.8's end-to-end scenario). LASTX is set from the prior X first;
// in big-stack mode the stack is grown to at least 4 deep before writing so
// all four results always land.
func (s *Stack) InstallQuad(x, y, z, t value.Value) {
	s.lastX = s.X()
	if s.BigStack {
		for len(s.slots) < 4 {
			s.slots = append(s.slots, value.Real(numeric.NewFloat64(0)))
		}
		n := len(s.slots)
		s.slots[n-1], s.slots[n-2], s.slots[n-3], s.slots[n-4] = x, y, z, t
		return
	}
	s.slots[0], s.slots[1], s.slots[2], s.slots[3] = x, y, z, t
}

// Rdn rotates the stack down: in classic mode Y->X, Z->Y, T->Z and the old
// X wraps around into T; in big-stack mode it cyclically rotates all sp+1
// elements (spec §8's round-trip law: RDN^4 == id on classic, RDN^(sp+1)
// == id on big stack).
func (s *Stack) Rdn() {
	if s.BigStack {
		if len(s.slots) < 2 {
			return
		}
		top := s.slots[len(s.slots)-1]
		copy(s.slots[1:], s.slots[:len(s.slots)-1])
		s.slots[0] = top
		return
	}
	x := s.slots[0]
	s.slots[0] = s.slots[1]
	s.slots[1] = s.slots[2]
	s.slots[2] = s.slots[3]
	s.slots[3] = x
}

// Clx clears X to Real(0) without lifting — used by the CLX command.
func (s *Stack) Clx(zero value.Value) { s.SetX(zero) }

// Enter duplicates X into Y (lifting) and sets stack_lift_disable logic is
// the caller's responsibility (the interpreter sets flag 30 after ENTER).
func (s *Stack) Enter() { s.grow(s.X()) }

// PushProgramResult is a convenience for program-driven writes that always
// obey stack-lift-disable, raising InsufficientMemory only in principle
// (this simulator never runs out of Go heap in a way callers can recover
// from, so this always succeeds — kept returning an error to match the
// shape every other stack-mutating entry point in spec §4.1 uses).
func (s *Stack) PushProgramResult(v value.Value, liftDisabled bool) *calcerr.CalcError {
	s.RecallResultSilently(v, liftDisabled)
	return nil
}
