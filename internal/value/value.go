// Package value implements the tagged Value sum type from spec §3: Real,
// Complex, String, RealMatrix, ComplexMatrix, List, with copy-on-write
// matrix/list backing arrays.
//
// Grounded on the teacher's own (non-NaN-boxed) vm.Value — `type Value
// interface{}` — generalized here into a Kind-tagged struct, per spec §9's
// explicit call for "a tagged sum" over pointer-style polymorphism.
package value

import (
	"calc42/internal/calcerr"
	"calc42/internal/numeric"
)

// Kind discriminates the Value sum type.
type Kind int

const (
	KindReal Kind = iota
	KindComplex
	KindString
	KindRealMatrix
	KindComplexMatrix
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindReal:
		return "Real"
	case KindComplex:
		return "Complex"
	case KindString:
		return "String"
	case KindRealMatrix:
		return "RealMatrix"
	case KindComplexMatrix:
		return "ComplexMatrix"
	case KindList:
		return "List"
	default:
		return "Unknown"
	}
}

// MaxStringLen is the bound on alpha/identifier strings (spec §3).
const MaxStringLen = 44

// Value is the sum type every stack slot, variable, and list item holds;
// matrix cells are stored as RealCell or re/im Num pairs instead.
type Value struct {
	Kind Kind

	Re numeric.Num // Real, Complex.re
	Im numeric.Num // Complex.im

	Str []byte // String, ≤ MaxStringLen, binary clean

	RealMat *RealMatData
	CplxMat *ComplexMatData
	List    *ListData
}

func Real(n numeric.Num) Value { return Value{Kind: KindReal, Re: n} }

func Complex(re, im numeric.Num) Value { return Value{Kind: KindComplex, Re: re, Im: im} }

// NewString truncates silently is wrong per spec (binary clean, ≤44); callers
// that need the AlphaDataIsInvalid behavior on overflow call it themselves —
// this constructor is for values already known to be in bounds.
func NewString(s []byte) Value {
	b := make([]byte, len(s))
	copy(b, s)
	return Value{Kind: KindString, Str: b}
}

func RealMatrix(m *RealMatData) Value { return Value{Kind: KindRealMatrix, RealMat: m} }

func ComplexMatrix(m *ComplexMatData) Value { return Value{Kind: KindComplexMatrix, CplxMat: m} }

func List(l *ListData) Value { return Value{Kind: KindList, List: l} }

// Dup implements spec §4.1's dup(v): deep copy for primitives, refcount bump
// (shallow copy) for matrices/lists.
func (v Value) Dup() Value {
	switch v.Kind {
	case KindReal, KindComplex:
		return v // numeric.Num values are immutable, sharing is safe
	case KindString:
		return NewString(v.Str)
	case KindRealMatrix:
		v.RealMat.arr.retain()
		return v
	case KindComplexMatrix:
		v.CplxMat.arr.retain()
		return v
	case KindList:
		v.List.arr.retain()
		return v
	default:
		return v
	}
}

// Free implements spec §4.1's free(v): decrement refcounts, free leaves.
func (v Value) Free() {
	switch v.Kind {
	case KindRealMatrix:
		v.RealMat.arr.release()
	case KindComplexMatrix:
		v.CplxMat.arr.release()
	case KindList:
		v.List.arr.release()
	}
}

// Disentangle implements spec §4.1's disentangle(v): ensures the backing
// array has refcount == 1, cloning (and deep-copying long-string cells) if
// not. Fails only with InsufficientMemory (spec §3), which in this
// simulator can only arise from an explicit budget — see matrix package.
func (v *Value) Disentangle() *calcerr.CalcError {
	switch v.Kind {
	case KindRealMatrix:
		if v.RealMat.arr.count() > 1 {
			v.RealMat = v.RealMat.clone()
		}
	case KindComplexMatrix:
		if v.CplxMat.arr.count() > 1 {
			v.CplxMat = v.CplxMat.clone()
		}
	case KindList:
		if v.List.arr.count() > 1 {
			v.List = v.List.clone()
		}
	}
	return nil
}

// IsNumeric reports whether v is Real or Complex.
func (v Value) IsNumeric() bool { return v.Kind == KindReal || v.Kind == KindComplex }
