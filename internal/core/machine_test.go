package core

import (
	"testing"

	"calc42/internal/bytecode"
	"calc42/internal/calcerr"
	"calc42/internal/numeric"
	"calc42/internal/value"
)

func enterNumber(m *Machine, f float64) {
	m.Stack.RecallResultSilently(value.Real(numeric.NewFloat64(f)), m.liftDisabled())
	m.clearLiftDisable()
}

// TestScenario1TwoPlusThree exercises spec end-to-end scenario 1:
// 2 ENTER 3 + -> X = 5, stack lift disabled after ENTER.
func TestScenario1TwoPlusThree(t *testing.T) {
	m := NewMachine(false)
	enterNumber(m, 2)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpEnter}); err != nil {
		t.Fatalf("ENTER: %v", err)
	}
	if !m.liftDisabled() {
		t.Fatal("ENTER should disable stack lift")
	}
	enterNumber(m, 3)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpAdd}); err != nil {
		t.Fatalf("+: %v", err)
	}
	if got := m.Stack.X().Re.Float64(); got != 5 {
		t.Fatalf("X = %v, want 5", got)
	}
}

// TestScenario2DivideByZero exercises spec end-to-end scenario 2:
// 1 ENTER 0 / -> DivideBy0, X unchanged.
func TestScenario2DivideByZero(t *testing.T) {
	m := NewMachine(false)
	enterNumber(m, 1)
	_, _ = m.Dispatch(bytecode.Instr{Op: bytecode.OpEnter})
	enterNumber(m, 0)
	_, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpDiv})
	if !calcerr.Is(err, calcerr.CodeDivideBy0) {
		t.Fatalf("expected DivideBy0, got %v", err)
	}
	if got := m.Stack.X().Re.Float64(); got != 0 {
		t.Fatalf("X should be unchanged at 0, got %v", got)
	}
}

// TestScenario6ComplexAbs exercises spec end-to-end scenario 6:
// 0 ENTER 1 COMPLEX -> X = 0+1i; ABS -> X = 1.
func TestScenario6ComplexAbs(t *testing.T) {
	m := NewMachine(false)
	enterNumber(m, 0)
	_, _ = m.Dispatch(bytecode.Instr{Op: bytecode.OpEnter})
	enterNumber(m, 1)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpComplex}); err != nil {
		t.Fatalf("COMPLEX: %v", err)
	}
	x := m.Stack.X()
	if x.Kind != value.KindComplex || x.Re.Float64() != 0 || x.Im.Float64() != 1 {
		t.Fatalf("X = %v, want 0+1i", x)
	}
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpAbs}); err != nil {
		t.Fatalf("ABS: %v", err)
	}
	if x := m.Stack.X(); x.Kind != value.KindReal || x.Re.Float64() != 1 {
		t.Fatalf("ABS result = %v, want Real(1)", x)
	}
}

func TestStoRcl(t *testing.T) {
	m := NewMachine(false)
	enterNumber(m, 42)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpSto, Str: "X"}); err != nil {
		t.Fatalf("STO: %v", err)
	}
	enterNumber(m, 0)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpRcl, Str: "X"}); err != nil {
		t.Fatalf("RCL: %v", err)
	}
	if got := m.Stack.X().Re.Float64(); got != 42 {
		t.Fatalf("RCL X = %v, want 42", got)
	}
}

func TestGtoXeqRtn(t *testing.T) {
	m := NewMachine(false)
	prog := bytecode.NewProgram()
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpLbl, Str: "A"})
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpChs})
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpRtn})
	m.Programs = []*bytecode.Program{prog}
	m.ProgIndex = 0

	enterNumber(m, 5)
	if _, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpXeq, Str: "A"}); err != nil {
		t.Fatalf("XEQ: %v", err)
	}
	if _, err := m.Step(); err != nil {
		t.Fatalf("step CHS: %v", err)
	}
	if got := m.Stack.X().Re.Float64(); got != -5 {
		t.Fatalf("after CHS, X = %v, want -5", got)
	}
	if _, err := m.Step(); err != nil {
		t.Fatalf("step RTN: %v", err)
	}
	if m.PC != 0 || m.ProgIndex != 0 {
		t.Fatalf("RTN should restore the caller's (program, pc), got (%d, %d)", m.ProgIndex, m.PC)
	}
}

func TestRdnClassicIsIdentityAfterFour(t *testing.T) {
	m := NewMachine(false)
	vals := []float64{1, 2, 3, 4}
	for _, v := range vals {
		enterNumber(m, v)
		_, _ = m.Dispatch(bytecode.Instr{Op: bytecode.OpEnter})
	}
	before := [4]float64{m.Stack.X().Re.Float64(), m.Stack.Y().Re.Float64(), m.Stack.Z().Re.Float64(), m.Stack.T().Re.Float64()}
	for i := 0; i < 4; i++ {
		m.Stack.Rdn()
	}
	after := [4]float64{m.Stack.X().Re.Float64(), m.Stack.Y().Re.Float64(), m.Stack.Z().Re.Float64(), m.Stack.T().Re.Float64()}
	if before != after {
		t.Fatalf("RDN^4 should be identity: before=%v after=%v", before, after)
	}
}

func TestReadOnlyFlagRangeRejectsProgramWrite(t *testing.T) {
	m := NewMachine(false)
	m.Running = true
	_, err := m.Dispatch(bytecode.Instr{Op: bytecode.OpSf, Num: 50})
	if !calcerr.Is(err, calcerr.CodeRestrictedOperation) {
		t.Fatalf("expected RestrictedOperation, got %v", err)
	}
}
