package value

import (
	"calc42/internal/numeric"
	"testing"
)

func TestDupBumpsRefcountInsteadOfCopying(t *testing.T) {
	m := NewRealMatData(2, 2, numeric.NewFloat64(0))
	v := RealMatrix(m)
	dup := v.Dup()

	if dup.RealMat != v.RealMat {
		t.Fatal("Dup of a matrix should share the backing array")
	}
	if m.arr.count() != 2 {
		t.Fatalf("refcount = %d, want 2", m.arr.count())
	}
}

func TestDisentangleClonesWhenShared(t *testing.T) {
	m := NewRealMatData(1, 1, numeric.NewFloat64(7))
	a := RealMatrix(m)
	b := a.Dup() // refcount now 2

	if err := a.Disentangle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RealMat == b.RealMat {
		t.Fatal("disentangle should have cloned a's array")
	}
	if a.RealMat.arr.count() != 1 {
		t.Fatalf("a's new array refcount = %d, want 1", a.RealMat.arr.count())
	}
	if b.RealMat.arr.count() != 1 {
		t.Fatalf("b's remaining array refcount = %d, want 1", b.RealMat.arr.count())
	}

	// Mutating a after disentangle must not affect b.
	a.RealMat.Set(0, 0, NumCell(numeric.NewFloat64(99)))
	if b.RealMat.At(0, 0).Num.Float64() != 7 {
		t.Fatal("mutation leaked across disentangled copies")
	}
}

func TestDisentangleNoOpWhenUnique(t *testing.T) {
	m := NewRealMatData(1, 1, numeric.NewFloat64(1))
	v := RealMatrix(m)
	if err := v.Disentangle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.RealMat != m {
		t.Fatal("disentangle on a uniquely-owned array should not clone")
	}
}

func TestLongStringCellDeepCopiesOnClone(t *testing.T) {
	m := NewRealMatData(1, 1, numeric.NewFloat64(0))
	m.Set(0, 0, StringCell([]byte("a long string over six bytes")))
	a := RealMatrix(m)
	b := a.Dup()
	_ = a.Disentangle()

	a.RealMat.Set(0, 0, StringCell([]byte("changed")))
	if string(b.RealMat.At(0, 0).Bytes()) != "a long string over six bytes" {
		t.Fatal("long string cell was not deep-copied on disentangle")
	}
}

func TestShortStringCellInline(t *testing.T) {
	c := StringCell([]byte("abc"))
	if c.long != nil {
		t.Fatal("short string should be stored inline, not heap-allocated")
	}
	if string(c.Bytes()) != "abc" {
		t.Fatalf("Bytes() = %q, want abc", c.Bytes())
	}
}
