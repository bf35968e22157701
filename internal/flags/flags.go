// Package flags implements the calculator's 100-bit flag array (spec §4.5):
// plain stored bits, a read-only range (36-80) that user code may read but
// never write, and a handful of virtual flags computed live from other
// engine state rather than stored at all.
//
// Grounded on original_source/common/core_helpers.cc's virtual_flag_handler,
// which dispatches flag numbers 11/27/35/36/39/40/44/48/53 to live state
// instead of the plain bit array (see SPEC_FULL.md §10).
package flags

import "calc42/internal/calcerr"

const Count = 100

// readOnlyLo/readOnlyHi bound the read-only-to-user-code range (spec §4.5).
// SF/CF on a flag in this range fails with RestrictedOperation, whether it
// comes from a running program or the keyboard. Virtual flags ignore SF/CF
// except flag 27, where SF/CF switch the CUSTOM menu on and off; FS?/FC? on
// a virtual flag reads live state.
const (
	readOnlyLo = 36
	readOnlyHi = 80
)

// LiveState supplies the values virtual flags compute from, so this package
// never imports the interpreter (avoiding an import cycle: core depends on
// flags, not the reverse).
type LiveState interface {
	CustomMenuActive() bool
	SetCustomMenu(on bool)
	PrgmMode() bool
	AlphaMode() bool
	LowBattery() bool
	MessageShowing() bool
	PrinterExists() bool
	ContinuousOn() bool
}

// virtual is the set of flag numbers core_helpers.cc's virtual_flag_handler
// intercepts instead of reading/writing the plain bit array.
var virtual = map[int]bool{
	11: true, // alpha small font — no hardware font to shrink, always false
	27: true, // CUSTOM menu active; SF/CF here toggle the menu
	35: true, // PRGM mode
	36: true, // alpha mode
	39: true, // low battery
	40: true, // message showing
	44: true, // printer exists
	48: true, // alpha mode active (duplicate reading, kept distinct per source)
	53: true, // continuous-on
}

// Flags holds the plain stored bits. Virtual flag numbers never consult
// bits; SF/CF calls on IsVirtual(n) are routed through a LiveState instead.
type Flags struct {
	bits [Count]bool
}

func New() *Flags { return &Flags{} }

// Bits and SetBits give persistence (spec §4.10) raw access to the stored
// bit array, bypassing SF/CF's read-only-range and virtual-flag routing —
// a restored snapshot must reproduce the exact prior bit state even for
// flags a running program could never have written directly.
func (f *Flags) Bits() [Count]bool       { return f.bits }
func (f *Flags) SetBits(bits [Count]bool) { f.bits = bits }

func IsVirtual(n int) bool { return virtual[n] }

func inRange(n int) bool { return n >= 0 && n < Count }

// Get reads a plain (non-virtual) flag's raw bit, ignoring the read-only
// range (spec §4.5: user code may always read 36-80, only writes are
// restricted).
func (f *Flags) Get(n int) bool {
	if !inRange(n) {
		return false
	}
	return f.bits[n]
}

func (f *Flags) setRaw(n int, v bool) { f.bits[n] = v }

// SF sets flag n. Flags 36-80 are refused with RestrictedOperation for
// every caller; fromProgram (running program vs. keyboard) does not change
// the outcome.
func (f *Flags) SF(n int, fromProgram bool, live LiveState) *calcerr.CalcError {
	if !inRange(n) {
		return calcerr.OutOfRange()
	}
	if IsVirtual(n) {
		if n == 27 && live != nil && !live.CustomMenuActive() {
			live.SetCustomMenu(true)
		}
		return nil
	}
	if n >= readOnlyLo && n <= readOnlyHi {
		return calcerr.RestrictedOperation()
	}
	f.setRaw(n, true)
	return nil
}

func (f *Flags) CF(n int, fromProgram bool, live LiveState) *calcerr.CalcError {
	if !inRange(n) {
		return calcerr.OutOfRange()
	}
	if IsVirtual(n) {
		if n == 27 && live != nil && live.CustomMenuActive() {
			live.SetCustomMenu(false)
		}
		return nil
	}
	if n >= readOnlyLo && n <= readOnlyHi {
		return calcerr.RestrictedOperation()
	}
	f.setRaw(n, false)
	return nil
}

// FSQ implements FS?: true if flag n is set.
func (f *Flags) FSQ(n int, live LiveState) (bool, *calcerr.CalcError) {
	if !inRange(n) {
		return false, calcerr.OutOfRange()
	}
	if IsVirtual(n) {
		return f.virtualValue(n, live), nil
	}
	return f.bits[n], nil
}

// FCQ implements FC?: true if flag n is clear.
func (f *Flags) FCQ(n int, live LiveState) (bool, *calcerr.CalcError) {
	v, err := f.FSQ(n, live)
	if err != nil {
		return false, err
	}
	return !v, nil
}

// FSQC implements FS?C: read then clear (non-virtual only — clearing a
// virtual flag has no plain bit to clear, so it behaves like FS?).
func (f *Flags) FSQC(n int, fromProgram bool, live LiveState) (bool, *calcerr.CalcError) {
	v, err := f.FSQ(n, live)
	if err != nil {
		return false, err
	}
	if !IsVirtual(n) {
		if cerr := f.CF(n, fromProgram, live); cerr != nil {
			return false, cerr
		}
	}
	return v, nil
}

func (f *Flags) FCQC(n int, fromProgram bool, live LiveState) (bool, *calcerr.CalcError) {
	v, err := f.FSQC(n, fromProgram, live)
	if err != nil {
		return false, err
	}
	return !v, nil
}

func (f *Flags) virtualValue(n int, live LiveState) bool {
	if live == nil {
		return false
	}
	switch n {
	case 11:
		return false
	case 27:
		return live.CustomMenuActive()
	case 35:
		return live.PrgmMode()
	case 36, 48:
		return live.AlphaMode()
	case 39:
		return live.LowBattery()
	case 40:
		return live.MessageShowing()
	case 44:
		return live.PrinterExists()
	case 53:
		return live.ContinuousOn()
	default:
		return false
	}
}

// StackLiftDisabled reports flag 30 (stack_lift_disable): when set, the next
// numeric result overwrites X instead of lifting the stack (spec §4.5).
func (f *Flags) StackLiftDisabled() bool { return f.Get(30) }
