package bytecode

import "calc42/internal/calcerr"

// Instr is one decoded instruction: an opcode plus its resolved operand.
// The encoded form in Program.Code is variable-length (1 byte opcode +
// a kind-dependent operand), matching spec §4.4's "byte-encoded instruction
// stream" rather than a fixed-width word, so RAM usage tracks the original
// program sizes.
type Instr struct {
	Op      OpCode
	Num     int     // ArgNum, ArgIndNum, ArgStk payload, ArgLiteral constant index
	Str     string  // ArgStr, ArgLclbl, ArgIndStr payload
	Literal float64 // decoded ArgLiteral value, valid only when Op's kind is ArgLiteral
}

// label is one entry of the program's label table: a name (global LBL "xx",
// or a synthetic key for local/numbered labels) mapped to the pc immediately
// following the LBL instruction.
type label struct {
	name string
	pc   int
}

// Program is the calculator's program store for a single program: the
// instruction stream plus the label index and line/pc maps spec §4.4 needs
// (find_global_label, find_local_label, line2pc, pc2line) that the teacher's
// general-purpose Chunk never required, since it never GTO'd by name.
//
// Grounded on the teacher's Chunk (Code []byte, Constants []interface{}) —
// kept the flat byte-stream-plus-constant-pool shape, dropped the
// line/column/function DebugInfo slice (no source file exists once a
// program is entered key-by-key) in favor of a pc-indexed line table.
type Program struct {
	Code      []byte
	Constants []float64 // ArgLiteral operand pool
	lineOf    []int     // Code index -> 1-based program line, parallel to instruction starts
	labels    []label
}

func NewProgram() *Program {
	return &Program{Code: []byte{}, Constants: []float64{}}
}

// WriteInstr appends one instruction (opcode + operand, encoded per its
// ArgKind) at the next line number and returns the pc it was written at.
func (p *Program) WriteInstr(in Instr) int {
	pc := len(p.Code)
	p.lineOf = append(p.lineOf, pc)
	p.Code = append(p.Code, byte(in.Op))

	switch ArgKindOf(in.Op) {
	case ArgNone:
	case ArgNum, ArgIndNum, ArgStk:
		p.Code = append(p.Code, byte(in.Num))
	case ArgLiteral:
		idx := p.addConstant(in.Literal)
		p.Code = append(p.Code, byte(idx>>8), byte(idx))
	case ArgStr, ArgIndStr, ArgLclbl:
		p.Code = append(p.Code, byte(len(in.Str)))
		p.Code = append(p.Code, in.Str...)
	}

	if in.Op == OpLbl {
		p.labels = append(p.labels, label{name: in.Str, pc: len(p.Code)})
	}
	return pc
}

// FromBytes rebuilds a Program from its encoded instruction stream and
// constant pool — the form persistence (spec §4.10) and program export/
// import (spec §6's "raw" format) round-trip on the wire. The label table
// and line map are not part of the wire format; they are cheap to rederive
// by decoding the stream once, the same way WriteInstr built them the first
// time.
func FromBytes(code []byte, constants []float64) *Program {
	p := &Program{Code: code, Constants: constants}
	for pc := 0; pc < len(p.Code); {
		start := pc
		p.lineOf = append(p.lineOf, start)
		in, next := p.Decode(pc)
		if in.Op == OpLbl {
			p.labels = append(p.labels, label{name: in.Str, pc: next})
		}
		pc = next
	}
	return p
}

func (p *Program) addConstant(v float64) int {
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// Decode reads the instruction starting at pc, returning it and the pc of
// the next instruction.
func (p *Program) Decode(pc int) (Instr, int) {
	op := OpCode(p.Code[pc])
	pc++
	in := Instr{Op: op}

	switch ArgKindOf(op) {
	case ArgNone:
	case ArgNum, ArgIndNum, ArgStk:
		in.Num = int(p.Code[pc])
		pc++
	case ArgLiteral:
		idx := int(p.Code[pc])<<8 | int(p.Code[pc+1])
		pc += 2
		in.Num = idx
		in.Literal = p.Constants[idx]
	case ArgStr, ArgIndStr, ArgLclbl:
		n := int(p.Code[pc])
		pc++
		in.Str = string(p.Code[pc : pc+n])
		pc += n
	}
	return in, pc
}

// FindGlobalLabel returns the pc just past LBL "name", the global-label
// lookup spec §4.4 names for GTO/XEQ target resolution.
func (p *Program) FindGlobalLabel(name string) (int, *calcerr.CalcError) {
	for _, l := range p.labels {
		if l.name == name {
			return l.pc, nil
		}
	}
	return 0, calcerr.LabelNotFound(name)
}

// FindLocalLabel resolves a local label (single letter A-J, a-e, or a
// numbered 00-14 label) the same way as FindGlobalLabel — this calculator's
// program store does not nest local scopes within a single linear program,
// so "local" here means "defined via LBL" as opposed to a line number.
func (p *Program) FindLocalLabel(name string) (int, *calcerr.CalcError) {
	return p.FindGlobalLabel(name)
}

// Line2PC returns the pc of the first instruction on the given 1-based
// program line, or false if line is out of range.
func (p *Program) Line2PC(line int) (int, bool) {
	if line < 1 || line > len(p.lineOf) {
		return 0, false
	}
	return p.lineOf[line-1], true
}

// PC2Line returns the 1-based line number containing pc.
func (p *Program) PC2Line(pc int) int {
	for i, start := range p.lineOf {
		if start == pc {
			return i + 1
		}
	}
	// pc falls inside a multi-byte operand; report the enclosing instruction.
	line := 1
	for i, start := range p.lineOf {
		if start > pc {
			break
		}
		line = i + 1
	}
	return line
}

// LineCount is the number of instructions (program "lines" in the display
// sense) currently stored.
func (p *Program) LineCount() int { return len(p.lineOf) }

// Size is the byte size of the encoded instruction stream, the unit spec
// §4.10/§6 report as program memory usage.
func (p *Program) Size() int { return len(p.Code) }
