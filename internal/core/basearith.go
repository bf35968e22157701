package core

import (
	"calc42/internal/bytecode"
	"calc42/internal/calcerr"
	"calc42/internal/integrator"
	"calc42/internal/numeric"
	"calc42/internal/solver"
	"calc42/internal/value"
)

// getBaseParam implements spec §4.7's get_base_param: only a Real operand
// converts, via the backend's own saturating Int64.
func (m *Machine) getBaseParam(v value.Value) (int64, *calcerr.CalcError) {
	if v.Kind != value.KindReal {
		return 0, calcerr.InvalidType("BASE operand must be a real number")
	}
	return v.Re.Int64(), nil
}

func baseResult(n int64) value.Value { return value.Real(numeric.NewFloat64(float64(n))) }

// baseUnary wires a one-operand BASE op (NOT/SL/SR/ASR) reading X.
func (m *Machine) baseUnary(op func(int64) int64) (Outcome, *calcerr.CalcError) {
	a, err := m.getBaseParam(m.Stack.X())
	if err != nil {
		return OutcomeNone, err
	}
	m.Stack.UnaryResult(baseResult(op(a)))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// baseUnaryN wires a one-operand, arg-n BASE op (RL/RR/RLC/RRC/SB/CB)
// reading X and the instruction's numeric argument.
func (m *Machine) baseUnaryN(n int, op func(int64, int) int64) (Outcome, *calcerr.CalcError) {
	a, err := m.getBaseParam(m.Stack.X())
	if err != nil {
		return OutcomeNone, err
	}
	m.Stack.UnaryResult(baseResult(op(a, n)))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// baseBinary wires a two-operand BASE op (AND/OR/XOR) reading Y,X.
func (m *Machine) baseBinary(op func(a, b int64) int64) (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	xa, err := m.getBaseParam(x)
	if err != nil {
		return OutcomeNone, err
	}
	ya, err := m.getBaseParam(y)
	if err != nil {
		return OutcomeNone, err
	}
	m.Stack.BinaryResult(baseResult(op(ya, xa)))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// baseBinaryErr wires a two-operand BASE op that can itself fail
// (BASEADD/BASESUB/BASEMUL/BASEDIV, spec §4.7's overflow/DivideBy0 cases).
func (m *Machine) baseBinaryErr(op func(a, b int64) (int64, *calcerr.CalcError)) (Outcome, *calcerr.CalcError) {
	x, y := m.Stack.X(), m.Stack.Y()
	xa, err := m.getBaseParam(x)
	if err != nil {
		return OutcomeNone, err
	}
	ya, err := m.getBaseParam(y)
	if err != nil {
		return OutcomeNone, err
	}
	result, berr := op(ya, xa)
	if berr != nil {
		return OutcomeNone, berr
	}
	m.Stack.BinaryResult(baseResult(result))
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// baseGenerate wires a BASE op that manufactures a new X without consuming
// one (MASKL/MASKR): it lifts like a literal entry rather than replacing an
// operand.
func (m *Machine) baseGenerate(n int64) (Outcome, *calcerr.CalcError) {
	m.Stack.RecallResultSilently(baseResult(n), m.liftDisabled())
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// findSolveVar locates the variable SOLVE/INTEG should drive by scanning
// forward from a matched LBL for the program's declared MVAR (spec §4.4:
// "varmenu/solve/integ discover [menu variables] by scanning from the
// matched LBL until a non-MVAR instruction"). Programs in this simulator
// that skip an explicit MVAR declaration still name their target variable
// via the first RCL/STO the equation body performs, which is the variable
// SOLVE/INTEG's guesses feed — a pragmatic fallback for bodies like spec
// §8 scenario 3/4's that never declare an MVAR.
func findSolveVar(prog *bytecode.Program, labelPC int) string {
	pc := labelPC
	for pc < prog.Size() {
		in, next := prog.Decode(pc)
		switch in.Op {
		case bytecode.OpMvar, bytecode.OpRcl, bytecode.OpSto:
			return in.Str
		case bytecode.OpLbl, bytecode.OpEnd:
			return ""
		}
		pc = next
	}
	return ""
}

// progEvaluator adapts a label within the Machine's current program into a
// solver.Evaluator/integrator.Evaluator: each guess is stored into the
// target variable, the subroutine is run synchronously to its RTN/END, and
// the resulting X is read back as f(x) (spec §4.8/§4.9's callback
// contract, collapsed into one synchronous call since nothing here needs
// to yield to a shell between evaluations — see internal/solver's own Run
// doc comment for the same simplification).
type progEvaluator struct {
	m         *Machine
	progIndex int
	labelPC   int
	varName   string
}

func (e *progEvaluator) Eval(x float64) (fx float64, ok bool) {
	e.m.Vars.Set(e.varName, e.m.ScopeLevel, value.Real(numeric.NewFloat64(x)))

	savedPC, savedProg, savedRunning := e.m.PC, e.m.ProgIndex, e.m.Running
	e.m.ProgIndex = e.progIndex
	e.m.PC = e.labelPC
	e.m.Running = true
	defer func() { e.m.PC, e.m.ProgIndex, e.m.Running = savedPC, savedProg, savedRunning }()

	for steps := 0; steps < maxEvalSteps; steps++ {
		outcome, err := e.m.Step()
		if err != nil {
			return 0, false
		}
		if outcome == OutcomeStop {
			break
		}
	}
	result := e.m.Stack.X()
	if result.Kind != value.KindReal || result.Re.IsNaN() || result.Re.IsInf() {
		return 0, false
	}
	return result.Re.Float64(), true
}

const maxEvalSteps = 100000

// opSolve implements the SOLVE command: resolve the target program label,
// discover its variable, and drive internal/solver to convergence using
// the guesses currently in Y,X (spec §4.8, §8 scenario 3).
func (m *Machine) opSolve(label string) (Outcome, *calcerr.CalcError) {
	prog := m.currentProgram()
	if prog == nil {
		return OutcomeNone, calcerr.InternalError("no current program")
	}
	labelPC, lerr := prog.FindGlobalLabel(label)
	if lerr != nil {
		return OutcomeNone, lerr
	}
	varName := findSolveVar(prog, labelPC)
	if varName == "" {
		return OutcomeNone, calcerr.NoMenuVariables()
	}
	xv, yv := m.Stack.X(), m.Stack.Y()
	if xv.Kind != value.KindReal || yv.Kind != value.KindReal {
		return OutcomeNone, calcerr.InvalidType("SOLVE requires two real guesses in Y,X")
	}

	ev := &progEvaluator{m: m, progIndex: m.ProgIndex, labelPC: labelPC, varName: varName}
	sv := solver.Start(ev, yv.Re.Float64(), xv.Re.Float64())
	root, fx, term, serr := solver.Run(sv)
	if serr != nil {
		return OutcomeNone, serr
	}

	// Y reports the other bracket endpoint retained in the solver's final
	// state (spec §8 scenario 3: "Y = previous x").
	m.Stack.InstallQuad(
		value.Real(numeric.NewFloat64(root)),
		value.Real(numeric.NewFloat64(sv.X1)),
		value.Real(numeric.NewFloat64(fx)),
		value.Real(numeric.NewFloat64(float64(term))),
	)
	m.clearLiftDisable()
	return OutcomeNone, nil
}

// opInteg implements the ∫f(d) command: resolve the target program label
// and variable, read LLIM/ULIM/ACC from the variable store, and drive
// internal/integrator to convergence (spec §4.9, §8 scenario 4).
func (m *Machine) opInteg(label string) (Outcome, *calcerr.CalcError) {
	prog := m.currentProgram()
	if prog == nil {
		return OutcomeNone, calcerr.InternalError("no current program")
	}
	labelPC, lerr := prog.FindGlobalLabel(label)
	if lerr != nil {
		return OutcomeNone, lerr
	}
	varName := findSolveVar(prog, labelPC)
	if varName == "" {
		return OutcomeNone, calcerr.NoMenuVariables()
	}

	llim, ok1 := m.Vars.Lookup("LLIM", m.ScopeLevel)
	ulim, ok2 := m.Vars.Lookup("ULIM", m.ScopeLevel)
	if !ok1 || !ok2 || llim.Kind != value.KindReal || ulim.Kind != value.KindReal {
		return OutcomeNone, calcerr.Nonexistent()
	}
	acc := 0.0
	if accV, ok := m.Vars.Lookup("ACC", m.ScopeLevel); ok && accV.Kind == value.KindReal {
		acc = accV.Re.Float64()
	}

	ev := &progEvaluator{m: m, progIndex: m.ProgIndex, labelPC: labelPC, varName: varName}
	ig := integrator.Start(ev, llim.Re.Float64(), ulim.Re.Float64(), acc)
	result, eps, ierr := integrator.Run(ig)
	if ierr != nil {
		return OutcomeNone, ierr
	}

	// RecallTwoResults leaves its second argument in X: the integral ends
	// up in X and the achieved error in Y.
	m.Stack.RecallTwoResults(
		value.Real(numeric.NewFloat64(eps)),
		value.Real(numeric.NewFloat64(result)),
		m.liftDisabled(),
	)
	m.clearLiftDisable()
	return OutcomeNone, nil
}
