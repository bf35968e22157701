package core

import (
	"fmt"
	"math"
	"strconv"

	"calc42/internal/bytecode"
	"calc42/internal/calcerr"
	"calc42/internal/flags"
	"calc42/internal/matrix"
	"calc42/internal/numeric"
	"calc42/internal/value"
	"calc42/internal/variables"
)

// frame is one entry of the return-address stack a CALL/XEQ pushes (spec
// §4.3). Program indices -1/-2/-3 are sentinels: halt, return-to-solver,
// return-to-integrator.
type frame struct {
	program int
	pc      int
}

const (
	SentinelHalt  = -1
	SentinelSolve = -2
	SentinelInteg = -3
)

// SolverHost and IntegHost let the Solver/Integrator subsystems install
// themselves as synthetic return frames: RTN into a sentinel frame pushed
// by CallForSubsystem calls back through them.
type SolverHost interface {
	ReturnToSolve(failure bool, stop bool) *calcerr.CalcError
}

type IntegHost interface {
	ReturnToInteg(failure bool, stop bool) *calcerr.CalcError
}

// Machine is the single-threaded calculator core: stack, variable store,
// flags, BASE state, and the running program's cursor (spec §4.2-§4.4).
//
// Grounded on spec §4.3's enumeration of interpreter responsibilities
// directly — the teacher has no calculator dispatch loop to adapt from
// (see DESIGN.md), so the command table below is hand-built in its
// texture: one switch over OpCode in Dispatch, with a short case or
// handler per command.
type Machine struct {
	Stack     *Stack
	Vars      *variables.Store
	Flags     *flags.Flags
	Base      *matrix.BaseState
	Programs  []*bytecode.Program
	ProgIndex int // currently selected program
	PC        int

	// AlphaReg is the 44-byte alpha register (spec §4.6). Append operations
	// left-shift the oldest bytes out on overflow rather than truncating the
	// new data.
	AlphaReg []byte

	ScopeLevel int
	returns    []frame

	Running bool
	Solver  SolverHost
	Integ   IntegHost

	// live state queried by flags.LiveState
	customMenu bool
	prgmMode   bool
	alphaMode  bool
}

func NewMachine(bigStack bool) *Machine {
	return &Machine{
		Stack: NewStack(bigStack),
		Vars:  variables.New(),
		Flags: flags.New(),
		Base:  &matrix.BaseState{WordSize: 36, Signed: true, Policy: matrix.PolicyWrap},
	}
}

// flags.LiveState implementation — the machine itself is the live-state
// source the flag system consults for virtual flags (spec §4.5).
func (m *Machine) CustomMenuActive() bool { return m.customMenu }
func (m *Machine) SetCustomMenu(on bool)  { m.customMenu = on }
func (m *Machine) PrgmMode() bool         { return m.prgmMode }
func (m *Machine) AlphaMode() bool        { return m.alphaMode }
func (m *Machine) LowBattery() bool       { return false }
func (m *Machine) MessageShowing() bool   { return false }
func (m *Machine) PrinterExists() bool    { return false }
func (m *Machine) ContinuousOn() bool     { return false }

// liftDisabled reports whether the next numeric result must overwrite X
// rather than lift the stack (flag 30, spec §4.2).
func (m *Machine) liftDisabled() bool { return m.Flags.StackLiftDisabled() }

// clearLiftDisable implements spec §4.2's "after every successfully
// completed command, clear stack_lift_disable unless the command itself
// set mode_disable_stack_lift". Handlers that need the flag to persist
// (ENTER, CLX, number-entry terminator) call setLiftDisabled instead.
func (m *Machine) clearLiftDisable() {
	_ = m.Flags.CF(30, false, m)
}

func (m *Machine) setLiftDisabled() {
	_ = m.Flags.SF(30, false, m)
}

func (m *Machine) currentProgram() *bytecode.Program {
	if m.ProgIndex < 0 || m.ProgIndex >= len(m.Programs) {
		return nil
	}
	return m.Programs[m.ProgIndex]
}

// GetMem implements spec §6's get_mem(): a rough byte count of live state,
// standing in for the original's fixed-size on-device memory pool. There is
// no real allocator to query here (Go's heap isn't addressable that way),
// so this is a structural estimate: one program-store byte per encoded
// instruction byte, plus a fixed per-variable/per-stack-slot overhead.
func (m *Machine) GetMem() int {
	const slotOverhead = 16
	n := 0
	for _, p := range m.Programs {
		n += p.Size()
	}
	n += m.Vars.Len() * slotOverhead
	n += m.Stack.Depth() * slotOverhead
	n += len(m.AlphaReg)
	return n
}

// Outcome is what one dispatched command yields to the caller driving the
// key-event loop or the program stepper (spec §4.3 step 7).
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeYes
	OutcomeNo
	OutcomeStop
	OutcomeRun
	OutcomeInterruptible
)

// Dispatch executes one instruction and reports its outcome, mutating the
// stack/variables/flags in place. This is the fully-succeed-or-fully-abort
// boundary of spec §7: on error, no partial state change is left visible
// (every handler below either completes its writes or returns before
// making any).
func (m *Machine) Dispatch(in bytecode.Instr) (Outcome, *calcerr.CalcError) {
	switch in.Op {
	case bytecode.OpNop:
		return OutcomeNone, nil

	case bytecode.OpEnter:
		m.Stack.Enter()
		m.setLiftDisabled()
		return OutcomeNone, nil

	case bytecode.OpClx:
		m.Stack.Clx(value.Real(numeric.NewFloat64(0)))
		m.setLiftDisabled()
		return OutcomeNone, nil

	case bytecode.OpChs:
		x := m.Stack.X()
		if !x.IsNumeric() {
			return OutcomeNone, calcerr.InvalidType("CHS requires a numeric X")
		}
		if x.Kind == value.KindComplex {
			m.Stack.UnaryResult(value.Complex(x.Re.Neg(), x.Im.Neg()))
		} else {
			m.Stack.UnaryResult(value.Real(x.Re.Neg()))
		}
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpRdn:
		m.Stack.Rdn()
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpLastx:
		m.Stack.RecallResultSilently(m.Stack.LastX(), m.liftDisabled())
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpNum:
		// A program-stored numeric literal (spec §4.3's number-entry
		// sub-mode, recorded as a single instruction rather than a run of
		// digit keys once it lives in program memory).
		m.Stack.RecallResultSilently(value.Real(numeric.NewFloat64(in.Literal)), m.liftDisabled())
		m.setLiftDisabled()
		return OutcomeNone, nil

	case bytecode.OpAdd:
		return m.binaryArith(func(a, b numeric.Num) numeric.Num { return a.Add(b) })
	case bytecode.OpSub:
		return m.binaryArith(func(a, b numeric.Num) numeric.Num { return a.Sub(b) })
	case bytecode.OpMul:
		return m.multiply()
	case bytecode.OpDiv:
		return m.divide()

	case bytecode.OpSquare:
		x := m.Stack.X()
		if !x.IsNumeric() {
			return OutcomeNone, calcerr.InvalidType("X^2 requires a numeric X")
		}
		m.Stack.UnaryResult(value.Real(x.Re.Mul(x.Re)))
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpSign:
		x := m.Stack.X()
		if x.Kind == value.KindString {
			// spec §9 Open Question decision: SIGN on a string returns 0
			// rather than erroring, matching the original's behavior.
			m.Stack.UnaryResult(value.Real(numeric.NewFloat64(0)))
		} else if x.IsNumeric() {
			m.Stack.UnaryResult(value.Real(numeric.NewFloat64(float64(x.Re.Sign()))))
		} else {
			return OutcomeNone, calcerr.InvalidType("SIGN requires a numeric or string X")
		}
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpAbs:
		x := m.Stack.X()
		switch x.Kind {
		case value.KindReal:
			if x.Re.Sign() < 0 {
				m.Stack.UnaryResult(value.Real(x.Re.Neg()))
			} else {
				m.Stack.UnaryResult(value.Real(x.Re))
			}
		case value.KindComplex:
			m.Stack.UnaryResult(value.Real(x.Re.Hypot(x.Im)))
		default:
			return OutcomeNone, calcerr.InvalidType("ABS requires a numeric X")
		}
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpSto:
		m.Vars.Set(in.Str, m.ScopeLevel, m.Stack.X().Dup())
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpRcl:
		v, ok := m.Vars.Lookup(in.Str, m.ScopeLevel)
		if !ok {
			return OutcomeNone, calcerr.Nonexistent()
		}
		m.Stack.RecallResultSilently(v.Dup(), m.liftDisabled())
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpComplex:
		y, x := m.Stack.Y(), m.Stack.X()
		if y.Kind != value.KindReal || x.Kind != value.KindReal {
			return OutcomeNone, calcerr.InvalidType("COMPLEX requires two reals")
		}
		m.Stack.BinaryResult(value.Complex(y.Re, x.Re))
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpToRec:
		return m.toRec()
	case bytecode.OpToPol:
		return m.toPol()

	case bytecode.OpSf:
		if err := m.Flags.SF(in.Num, m.Running, m); err != nil {
			return OutcomeNone, err
		}
		m.clearLiftDisable()
		return OutcomeNone, nil
	case bytecode.OpCf:
		if err := m.Flags.CF(in.Num, m.Running, m); err != nil {
			return OutcomeNone, err
		}
		m.clearLiftDisable()
		return OutcomeNone, nil
	case bytecode.OpFsQ:
		v, err := m.Flags.FSQ(in.Num, m)
		if err != nil {
			return OutcomeNone, err
		}
		return boolOutcome(v), nil
	case bytecode.OpFcQ:
		v, err := m.Flags.FCQ(in.Num, m)
		if err != nil {
			return OutcomeNone, err
		}
		return boolOutcome(v), nil
	case bytecode.OpFsQC:
		v, err := m.Flags.FSQC(in.Num, m.Running, m)
		if err != nil {
			return OutcomeNone, err
		}
		return boolOutcome(v), nil
	case bytecode.OpFcQC:
		v, err := m.Flags.FCQC(in.Num, m.Running, m)
		if err != nil {
			return OutcomeNone, err
		}
		return boolOutcome(v), nil

	case bytecode.OpLbl:
		return OutcomeNone, nil

	case bytecode.OpGto:
		return m.gotoLabel(in.Str)

	case bytecode.OpXeq:
		return m.call(in.Str)

	case bytecode.OpRtn:
		return m.ret()

	case bytecode.OpEnd:
		return OutcomeStop, nil

	case bytecode.OpMvar:
		// MVAR only declares a menu variable for varmenu/solve/integ
		// discovery (spec §4.4); it has nothing to mutate on direct
		// execution, matching a running program stepping straight over it.
		return OutcomeNone, nil

	case bytecode.OpSolve:
		return m.opSolve(in.Str)
	case bytecode.OpInteg:
		return m.opInteg(in.Str)

	case bytecode.OpAnd:
		return m.baseBinary(func(a, b int64) int64 { return m.Base.And(a, b) })
	case bytecode.OpOr:
		return m.baseBinary(func(a, b int64) int64 { return m.Base.Or(a, b) })
	case bytecode.OpXor:
		return m.baseBinary(func(a, b int64) int64 { return m.Base.Xor(a, b) })
	case bytecode.OpNot:
		return m.baseUnary(func(a int64) int64 { return m.Base.Not(a) })
	case bytecode.OpSl:
		return m.baseUnary(func(a int64) int64 { return m.Base.Sl(a) })
	case bytecode.OpSr:
		return m.baseUnary(func(a int64) int64 { return m.Base.Sr(a) })
	case bytecode.OpAsr:
		return m.baseUnary(func(a int64) int64 { return m.Base.Asr(a) })
	case bytecode.OpRl:
		return m.baseUnaryN(in.Num, m.Base.Rl)
	case bytecode.OpRr:
		return m.baseUnaryN(in.Num, m.Base.Rr)
	case bytecode.OpRlc:
		return m.baseUnaryN(in.Num, m.Base.Rlc)
	case bytecode.OpRrc:
		return m.baseUnaryN(in.Num, m.Base.Rrc)
	case bytecode.OpBaseAdd:
		return m.baseBinaryErr(m.Base.BaseAdd)
	case bytecode.OpBaseSub:
		return m.baseBinaryErr(m.Base.BaseSub)
	case bytecode.OpBaseMul:
		return m.baseBinaryErr(m.Base.BaseMul)
	case bytecode.OpBaseDiv:
		return m.baseBinaryErr(m.Base.BaseDiv)

	case bytecode.OpBitQ:
		x := m.Stack.X()
		a, err := m.getBaseParam(x)
		if err != nil {
			return OutcomeNone, err
		}
		return boolOutcome(m.Base.BitQ(a, in.Num)), nil

	case bytecode.OpSb:
		return m.baseUnaryN(in.Num, m.Base.Sb)
	case bytecode.OpCb:
		return m.baseUnaryN(in.Num, m.Base.Cb)

	case bytecode.OpMaskl:
		return m.baseGenerate(m.Base.Maskl(in.Num))
	case bytecode.OpMaskr:
		return m.baseGenerate(m.Base.Maskr(in.Num))

	case bytecode.OpLj:
		x := m.Stack.X()
		a, err := m.getBaseParam(x)
		if err != nil {
			return OutcomeNone, err
		}
		leadingZeros, shifted := m.Base.Lj(a)
		m.Stack.UnaryTwoResults(
			value.Real(numeric.NewFloat64(float64(leadingZeros))),
			value.Real(numeric.NewFloat64(float64(shifted))),
		)
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpAview:
		// Painting the display is a shell responsibility (spec §6's blitter
		// callback); the core side of AVIEW has nothing further to mutate.
		return OutcomeNone, nil

	case bytecode.OpAsto:
		m.Vars.Set(in.Str, m.ScopeLevel, value.NewString(append([]byte{}, m.AlphaReg...)))
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpArcl:
		v, ok := m.Vars.Lookup(in.Str, m.ScopeLevel)
		if !ok {
			return OutcomeNone, calcerr.Nonexistent()
		}
		m.appendAlphaString([]byte(formatValue(v)), false)
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpAip:
		x := m.Stack.X()
		if !x.IsNumeric() {
			return OutcomeNone, calcerr.InvalidType("AIP requires a numeric X")
		}
		m.appendAlphaString([]byte(strconv.FormatInt(x.Re.Int64(), 10)), false)
		m.clearLiftDisable()
		return OutcomeNone, nil

	case bytecode.OpXtoa:
		x := m.Stack.X()
		if !x.IsNumeric() {
			return OutcomeNone, calcerr.InvalidType("XTOA requires a numeric X")
		}
		code := x.Re.Int64()
		if code < 0 || code > 255 {
			return OutcomeNone, calcerr.OutOfRange()
		}
		m.appendAlphaString([]byte{byte(code)}, false)
		m.clearLiftDisable()
		return OutcomeNone, nil

	default:
		return OutcomeNone, calcerr.InternalError("unimplemented opcode")
	}
}

// appendAlphaString implements spec §4.6's append_alpha_string: appends b to
// the alpha register, reverse-copying first if reverse is set (used by
// integer-to-string conversions that build digits least-significant-first),
// left-shifting the oldest bytes out when the 44-byte buffer overflows.
func (m *Machine) appendAlphaString(b []byte, reverse bool) {
	if reverse {
		r := make([]byte, len(b))
		for i, c := range b {
			r[len(b)-1-i] = c
		}
		b = r
	}
	m.AlphaReg = append(m.AlphaReg, b...)
	if len(m.AlphaReg) > value.MaxStringLen {
		m.AlphaReg = m.AlphaReg[len(m.AlphaReg)-value.MaxStringLen:]
	}
}

// formatValue renders v the way ARCL recalls a variable into the alpha
// register (spec §4.6): strings verbatim, reals via the active numeric
// backend's own String, complex as "re+im i" / "re-im i".
func formatValue(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return string(v.Str)
	case value.KindReal:
		return v.Re.String()
	case value.KindComplex:
		im := v.Im
		sign := "+"
		if im.Sign() < 0 {
			sign = "-"
			im = im.Neg()
		}
		return fmt.Sprintf("%s%s%si", v.Re.String(), sign, im.String())
	default:
		return ""
	}
}

func boolOutcome(v bool) Outcome {
	if v {
		return OutcomeYes
	}
	return OutcomeNo
}

// binaryArith applies op componentwise across real/complex Y,X — valid for
// add/sub, where real and imaginary parts never interact. Multiply and
// divide need cross terms and have their own handlers below.
func (m *Machine) binaryArith(op func(a, b numeric.Num) numeric.Num) (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	if x.Kind == value.KindRealMatrix || x.Kind == value.KindComplexMatrix ||
		y.Kind == value.KindRealMatrix || y.Kind == value.KindComplexMatrix {
		return OutcomeNone, calcerr.InvalidType("use matrix ops for matrix operands")
	}
	if !x.IsNumeric() || !y.IsNumeric() {
		return OutcomeNone, calcerr.InvalidType("arithmetic requires numeric operands")
	}
	if x.Kind == value.KindComplex || y.Kind == value.KindComplex {
		xre, xim := asComplex(x)
		yre, yim := asComplex(y)
		// Only + and - are meaningfully generic here; * and / on complex
		// route through the same callback contract with re/im combined by
		// the caller-supplied op applied componentwise for add/sub.
		m.Stack.BinaryResult(value.Complex(op(yre, xre), op(yim, xim)))
		m.clearLiftDisable()
		return OutcomeNone, nil
	}
	m.Stack.BinaryResult(value.Real(op(y.Re, x.Re)))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

func asComplex(v value.Value) (re, im numeric.Num) {
	if v.Kind == value.KindComplex {
		return v.Re, v.Im
	}
	return v.Re, numeric.NewFloat64(0)
}

// multiply handles X (complex multiplication needs cross terms, unlike
// add/sub, so it cannot share binaryArith's componentwise callback shape).
func (m *Machine) multiply() (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	if x.Kind == value.KindRealMatrix || x.Kind == value.KindComplexMatrix ||
		y.Kind == value.KindRealMatrix || y.Kind == value.KindComplexMatrix {
		result, err := matrix.Mul(y, x)
		if err != nil {
			return OutcomeNone, err
		}
		m.Stack.BinaryResult(result)
		m.clearLiftDisable()
		return OutcomeNone, nil
	}
	if !x.IsNumeric() || !y.IsNumeric() {
		return OutcomeNone, calcerr.InvalidType("* requires numeric operands")
	}
	if x.Kind == value.KindComplex || y.Kind == value.KindComplex {
		xre, xim := asComplex(x)
		yre, yim := asComplex(y)
		re := yre.Mul(xre).Sub(yim.Mul(xim))
		im := yre.Mul(xim).Add(yim.Mul(xre))
		m.Stack.BinaryResult(value.Complex(re, im))
	} else {
		m.Stack.BinaryResult(value.Real(y.Re.Mul(x.Re)))
	}
	m.clearLiftDisable()
	return OutcomeNone, nil
}

func (m *Machine) divide() (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	if x.Kind == value.KindRealMatrix || x.Kind == value.KindComplexMatrix {
		result, err := matrix.Div(y, x, matrix.SingularError)
		if err != nil {
			return OutcomeNone, err
		}
		m.Stack.BinaryResult(result)
		m.clearLiftDisable()
		return OutcomeNone, nil
	}
	if !x.IsNumeric() || !y.IsNumeric() {
		return OutcomeNone, calcerr.InvalidType("/ requires numeric operands")
	}
	if x.Kind == value.KindReal && x.Re.Sign() == 0 {
		return OutcomeNone, calcerr.DivideBy0()
	}
	if x.Kind == value.KindComplex || y.Kind == value.KindComplex {
		yre, yim := asComplex(y)
		xre, xim := asComplex(x)
		denom := xre.Mul(xre).Add(xim.Mul(xim))
		re := (yre.Mul(xre).Add(yim.Mul(xim))).Div(denom)
		im := (yim.Mul(xre).Sub(yre.Mul(xim))).Div(denom)
		m.Stack.BinaryResult(value.Complex(re, im))
	} else {
		m.Stack.BinaryResult(value.Real(y.Re.Div(x.Re)))
	}
	m.clearLiftDisable()
	return OutcomeNone, nil
}

func (m *Machine) toRec() (Outcome, *calcerr.CalcError) {
	x := m.Stack.X()
	if x.Kind != value.KindReal {
		return OutcomeNone, calcerr.InvalidType("->REC requires (r, theta) as Y,X")
	}
	y := m.Stack.Y()
	if y.Kind != value.KindReal {
		return OutcomeNone, calcerr.InvalidType("->REC requires (r, theta) as Y,X")
	}
	r, theta := y.Re, x.Re
	re := r.Mul(theta.Cos())
	im := r.Mul(theta.Sin())
	m.Stack.BinaryTwoResults(value.Real(re), value.Real(im))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

func (m *Machine) toPol() (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	if x.Kind != value.KindReal || y.Kind != value.KindReal {
		return OutcomeNone, calcerr.InvalidType("->POL requires (x, y) as Y,X")
	}
	re, im := y.Re, x.Re
	r := re.Hypot(im)
	theta := numeric.NewFloat64(math.Atan2(im.Float64(), re.Float64()))
	m.Stack.BinaryTwoResults(value.Real(r), value.Real(theta))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

func (m *Machine) gotoLabel(name string) (Outcome, *calcerr.CalcError) {
	prog := m.currentProgram()
	if prog == nil {
		return OutcomeNone, calcerr.InternalError("no current program")
	}
	pc, err := prog.FindGlobalLabel(name)
	if err != nil {
		return OutcomeNone, err
	}
	m.PC = pc
	return OutcomeNone, nil
}

func (m *Machine) call(name string) (Outcome, *calcerr.CalcError) {
	prog := m.currentProgram()
	if prog == nil {
		return OutcomeNone, calcerr.InternalError("no current program")
	}
	pc, err := prog.FindGlobalLabel(name)
	if err != nil {
		return OutcomeNone, err
	}
	m.returns = append(m.returns, frame{program: m.ProgIndex, pc: m.PC})
	m.ScopeLevel++
	m.PC = pc
	return OutcomeRun, nil
}

func (m *Machine) ret() (Outcome, *calcerr.CalcError) {
	if len(m.returns) == 0 {
		return OutcomeStop, nil
	}
	top := m.returns[len(m.returns)-1]
	m.returns = m.returns[:len(m.returns)-1]
	m.Vars.PurgeScope(m.ScopeLevel)
	m.ScopeLevel--

	switch top.program {
	case SentinelHalt:
		return OutcomeStop, nil
	case SentinelSolve:
		if m.Solver != nil {
			if err := m.Solver.ReturnToSolve(false, false); err != nil {
				return OutcomeNone, err
			}
		}
		return OutcomeRun, nil
	case SentinelInteg:
		if m.Integ != nil {
			if err := m.Integ.ReturnToInteg(false, false); err != nil {
				return OutcomeNone, err
			}
		}
		return OutcomeRun, nil
	default:
		m.ProgIndex = top.program
		m.PC = top.pc
		return OutcomeNone, nil
	}
}

// CallForSubsystem pushes a sentinel return frame (Solver or Integrator)
// and jumps to the named label, so the next RTN inside the target program
// re-enters the subsystem's callback instead of falling off the end
// (spec §4.3's "synthetic return frames").
func (m *Machine) CallForSubsystem(sentinel int, label string) *calcerr.CalcError {
	prog := m.currentProgram()
	if prog == nil {
		return calcerr.InternalError("no current program")
	}
	pc, err := prog.FindGlobalLabel(label)
	if err != nil {
		return err
	}
	m.returns = append(m.returns, frame{program: sentinel, pc: 0})
	m.ScopeLevel++
	m.PC = pc
	m.Running = true
	return nil
}

// Step decodes and executes the next instruction of the current program,
// honoring the "skip next step on false" convention (spec §4.3 step 8).
func (m *Machine) Step() (Outcome, *calcerr.CalcError) {
	prog := m.currentProgram()
	if prog == nil {
		return OutcomeStop, nil
	}
	if m.PC >= prog.Size() {
		return OutcomeStop, nil
	}
	in, next := prog.Decode(m.PC)
	m.PC = next
	outcome, err := m.Dispatch(in)
	if err != nil {
		m.Running = false
		return OutcomeNone, err
	}
	if outcome == OutcomeNo && m.Running {
		// Skip the next instruction.
		if m.PC < prog.Size() {
			_, skipNext := prog.Decode(m.PC)
			m.PC = skipNext
		}
	}
	return outcome, nil
}
