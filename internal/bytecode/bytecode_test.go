package bytecode

import "testing"

func TestWriteInstrAndDecodeRoundTrip(t *testing.T) {
	p := NewProgram()
	p.WriteInstr(Instr{Op: OpSto, Str: "X"})
	p.WriteInstr(Instr{Op: OpAdd})

	in, next := p.Decode(0)
	if in.Op != OpSto || in.Str != "X" {
		t.Fatalf("decode 0 = %+v", in)
	}
	in2, _ := p.Decode(next)
	if in2.Op != OpAdd {
		t.Fatalf("decode 1 = %+v", in2)
	}
}

func TestConstantPoolAppends(t *testing.T) {
	p := NewProgram()
	idx := p.addConstant(2.25)
	if p.Constants[idx] != 2.25 {
		t.Fatalf("constant pool mismatch")
	}
}

func TestFindGlobalLabel(t *testing.T) {
	p := NewProgram()
	p.WriteInstr(Instr{Op: OpLbl, Str: "A"})
	p.WriteInstr(Instr{Op: OpAdd})

	pc, err := p.FindGlobalLabel("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc != 3 {
		t.Fatalf("label pc = %d, want 3", pc)
	}

	if _, err := p.FindGlobalLabel("ZZ"); err == nil {
		t.Fatal("expected LabelNotFound for an undefined label")
	}
}

func TestLine2PCAndPC2Line(t *testing.T) {
	p := NewProgram()
	p.WriteInstr(Instr{Op: OpEnter})
	second := p.WriteInstr(Instr{Op: OpSto, Str: "X"})
	p.WriteInstr(Instr{Op: OpAdd})

	pc, ok := p.Line2PC(2)
	if !ok || pc != second {
		t.Fatalf("Line2PC(2) = %d, %v; want %d, true", pc, ok, second)
	}
	if line := p.PC2Line(second); line != 2 {
		t.Fatalf("PC2Line(%d) = %d, want 2", second, line)
	}
}

func TestFromBytesRebuildsLabelsAndLineMap(t *testing.T) {
	p := NewProgram()
	p.WriteInstr(Instr{Op: OpLbl, Str: "A"})
	p.WriteInstr(Instr{Op: OpSto, Str: "X"})
	p.WriteInstr(Instr{Op: OpAdd})
	p.WriteInstr(Instr{Op: OpRtn})

	rebuilt := FromBytes(append([]byte{}, p.Code...), append([]float64{}, p.Constants...))

	if rebuilt.LineCount() != p.LineCount() {
		t.Fatalf("LineCount = %d, want %d", rebuilt.LineCount(), p.LineCount())
	}
	pc, err := rebuilt.FindGlobalLabel("A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPC, _ := p.FindGlobalLabel("A")
	if pc != wantPC {
		t.Fatalf("rebuilt label pc = %d, want %d", pc, wantPC)
	}
	for line := 1; line <= p.LineCount(); line++ {
		want, _ := p.Line2PC(line)
		got, ok := rebuilt.Line2PC(line)
		if !ok || got != want {
			t.Fatalf("Line2PC(%d) = %d,%v; want %d", line, got, ok, want)
		}
	}
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	if OpAdd.String() != "+" {
		t.Fatalf("OpAdd.String() = %q", OpAdd.String())
	}
	if opCount.String() != "?" {
		t.Fatalf("unknown opcode should stringify to ?, got %q", opCount.String())
	}
}
