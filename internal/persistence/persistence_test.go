package persistence

import (
	"crypto/ed25519"
	"testing"

	"calc42/internal/bytecode"
	"calc42/internal/core"
	"calc42/internal/integrator"
	"calc42/internal/numeric"
	"calc42/internal/solver"
	"calc42/internal/value"
)

// TestSaveLoadRoundTrip mirrors spec §8's round-trip law: save_state(p);
// cleanup(); init(1,...,p,0) reproduces an equal stack, flags, variables,
// programs, and alpha register.
func TestSaveLoadRoundTrip(t *testing.T) {
	m := core.NewMachine(false)
	m.Stack.Enter()
	m.Stack.UnaryResult(value.Real(numeric.NewFloat64(2)))
	m.Stack.BinaryResult(value.Real(numeric.NewFloat64(5)))
	m.Vars.Set("ALPHA", 0, value.Real(numeric.NewFloat64(3.5)))
	m.Vars.Set("NAME", 0, value.NewString([]byte("hello")))
	_ = m.Flags.SF(1, false, m)
	m.AlphaReg = []byte("HI")

	prog := bytecode.NewProgram()
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpLbl, Str: "A"})
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpAdd})
	prog.WriteInstr(bytecode.Instr{Op: bytecode.OpRtn})
	m.Programs = []*bytecode.Program{prog}
	m.ProgIndex = 0
	m.PC = 2

	data := Save(m, numeric.BackendFloat64, ShellState{AllowBigStack: true}, Subsystems{})

	fresh := core.NewMachine(false)
	shell, sub, err := Load(data, numeric.BackendFloat64, fresh, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !shell.AllowBigStack {
		t.Fatal("shell state did not round-trip")
	}
	if sub.Solver != nil || sub.Integrator != nil {
		t.Fatal("no subsystem state was saved, none should be returned")
	}

	if fresh.Stack.X().Re.Float64() != m.Stack.X().Re.Float64() {
		t.Fatalf("X = %v, want %v", fresh.Stack.X().Re.Float64(), m.Stack.X().Re.Float64())
	}
	if fresh.Stack.Y().Re.Float64() != m.Stack.Y().Re.Float64() {
		t.Fatalf("Y = %v, want %v", fresh.Stack.Y().Re.Float64(), m.Stack.Y().Re.Float64())
	}
	if !fresh.Flags.Get(1) {
		t.Fatal("flag 1 did not round-trip")
	}
	v, ok := fresh.Vars.Lookup("NAME", 0)
	if !ok || string(v.Str) != "hello" {
		t.Fatalf("NAME did not round-trip, got %+v", v)
	}
	if string(fresh.AlphaReg) != "HI" {
		t.Fatalf("alpha register = %q, want HI", fresh.AlphaReg)
	}
	if len(fresh.Programs) != 1 || fresh.Programs[0].LineCount() != 3 {
		t.Fatalf("program did not round-trip: %+v", fresh.Programs)
	}
	if fresh.PC != 2 || fresh.ProgIndex != 0 {
		t.Fatalf("cursor did not round-trip: PC=%d ProgIndex=%d", fresh.PC, fresh.ProgIndex)
	}
	pc, perr := fresh.Programs[0].FindGlobalLabel("A")
	if perr != nil || pc != 3 {
		t.Fatalf("rebuilt label table broken: pc=%d err=%v", pc, perr)
	}
}

func TestSaveLoadRoundTripsComplexAndMatrix(t *testing.T) {
	m := core.NewMachine(false)
	mat := value.NewRealMatData(2, 2, numeric.NewFloat64(0))
	mat.Set(0, 0, value.NumCell(numeric.NewFloat64(1)))
	mat.Set(0, 1, value.NumCell(numeric.NewFloat64(2)))
	mat.Set(1, 0, value.NumCell(numeric.NewFloat64(3)))
	mat.Set(1, 1, value.NumCell(numeric.NewFloat64(4)))
	m.Vars.Set("REGS", 0, value.RealMatrix(mat))
	m.Vars.Set("Z", 0, value.Complex(numeric.NewFloat64(1), numeric.NewFloat64(-2)))

	data := Save(m, numeric.BackendFloat64, ShellState{}, Subsystems{})
	fresh := core.NewMachine(false)
	if _, _, err := Load(data, numeric.BackendFloat64, fresh, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	regs, ok := fresh.Vars.Lookup("REGS", 0)
	if !ok || regs.Kind != value.KindRealMatrix {
		t.Fatalf("REGS did not round-trip: %+v", regs)
	}
	if regs.RealMat.At(1, 1).Num.Float64() != 4 {
		t.Fatalf("matrix cell (1,1) = %v, want 4", regs.RealMat.At(1, 1).Num.Float64())
	}
	z, ok := fresh.Vars.Lookup("Z", 0)
	if !ok || z.Kind != value.KindComplex || z.Im.Float64() != -2 {
		t.Fatalf("Z did not round-trip: %+v", z)
	}
}

type constEval float64

func (c constEval) Eval(x float64) (float64, bool) { return float64(c), true }

func TestSolverAndIntegratorSubBlocksRoundTrip(t *testing.T) {
	m := core.NewMachine(false)
	s := solver.Start(constEval(0), 1, 2)
	g := integrator.Start(constEval(0), 0, 1, 1e-6)

	data := Save(m, numeric.BackendFloat64, ShellState{}, Subsystems{Solver: s, Integrator: g})

	fresh := core.NewMachine(false)
	_, sub, err := Load(data, numeric.BackendFloat64, fresh, constEval(0), constEval(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Solver == nil || sub.Solver.X2 != 2 {
		t.Fatalf("solver state did not round-trip: %+v", sub.Solver)
	}
	if sub.Integrator == nil || sub.Integrator.B != 1 {
		t.Fatalf("integrator state did not round-trip: %+v", sub.Integrator)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	fresh := core.NewMachine(false)
	_, _, err := Load([]byte("not a save file at all"), numeric.BackendFloat64, fresh, nil, nil)
	if err == nil {
		t.Fatal("expected an error for a non-24kF byte stream")
	}
}

func TestSignAndVerifyExport(t *testing.T) {
	pub, priv, genErr := ed25519.GenerateKey(nil)
	if genErr != nil {
		t.Fatalf("key generation failed: %v", genErr)
	}
	payload := []byte("exported snapshot bytes")
	signed := SignExport(payload, priv)

	data, ok := VerifyExport(signed, pub)
	if !ok {
		t.Fatal("expected the signature to verify")
	}
	if string(data) != string(payload) {
		t.Fatalf("recovered payload = %q, want %q", data, payload)
	}

	tampered := append([]byte{}, signed...)
	tampered[0] ^= 0xFF
	if _, ok := VerifyExport(tampered, pub); ok {
		t.Fatal("expected a tampered export to fail verification")
	}
}
