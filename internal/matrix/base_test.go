package matrix

import (
	"calc42/internal/calcerr"
	"testing"
)

func TestAndOrXorNot(t *testing.T) {
	s := &BaseState{WordSize: 8, Signed: false, Policy: PolicyWrap}
	if s.And(0xF0, 0x0F) != 0 {
		t.Fatal("AND mismatch")
	}
	if s.Or(0xF0, 0x0F) != 0xFF {
		t.Fatal("OR mismatch")
	}
	if s.Xor(0xFF, 0x0F) != 0xF0 {
		t.Fatal("XOR mismatch")
	}
	if s.Not(0x00) != 0xFF {
		t.Fatal("NOT mismatch")
	}
}

func TestShiftUpdatesCarry(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyWrap}
	out := s.Sl(0x81)
	if out != 0x02 {
		t.Fatalf("SL result = %x, want 2", out)
	}
	if !s.Carry {
		t.Fatal("SL should have set carry from the bit shifted out")
	}
}

func TestRotateLeftByOne(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyWrap}
	out := s.Rl(0x81, 1)
	if out != 0x03 {
		t.Fatalf("RL(0x81) = %x, want 3", out)
	}
}

func TestBaseAddWrapVsSaturateVsError(t *testing.T) {
	wrap := &BaseState{WordSize: 8, Policy: PolicyWrap}
	v, _ := wrap.BaseAdd(0xFF, 0x01)
	if v != 0 {
		t.Fatalf("wrap BaseAdd overflow = %v, want 0", v)
	}

	sat := &BaseState{WordSize: 8, Policy: PolicySaturate}
	v, _ = sat.BaseAdd(0xFF, 0x01)
	if v != 0xFF {
		t.Fatalf("saturate BaseAdd overflow = %v, want 0xFF", v)
	}

	fail := &BaseState{WordSize: 8, Policy: PolicyError}
	if _, err := fail.BaseAdd(0xFF, 0x01); !calcerr.Is(err, calcerr.CodeOutOfRange) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestBaseMulWideningDetectsOverflow(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyError}
	if _, err := s.BaseMul(16, 16); !calcerr.Is(err, calcerr.CodeOutOfRange) {
		t.Fatalf("16*16=256 should overflow an 8-bit word, got %v", err)
	}
	wrap := &BaseState{WordSize: 8, Policy: PolicyWrap}
	v, _ := wrap.BaseMul(16, 16)
	if v != 0 {
		t.Fatalf("wrapped 16*16 mod 256 = %v, want 0", v)
	}
}

func TestBaseDivByZero(t *testing.T) {
	s := &BaseState{WordSize: 16, Policy: PolicyWrap}
	if _, err := s.BaseDiv(10, 0); !calcerr.Is(err, calcerr.CodeDivideBy0) {
		t.Fatalf("expected DivideBy0, got %v", err)
	}
}

func TestBitSetClearTest(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyWrap}
	v := s.Sb(0, 3)
	if !s.BitQ(v, 3) {
		t.Fatal("bit 3 should be set")
	}
	v = s.Cb(v, 3)
	if s.BitQ(v, 3) {
		t.Fatal("bit 3 should be clear")
	}
}

func TestMaskLAndMaskR(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyWrap}
	if s.Maskl(3) != 0xE0 {
		t.Fatalf("MASKL(3) = %x, want E0", s.Maskl(3))
	}
	if s.Maskr(3) != 0x07 {
		t.Fatalf("MASKR(3) = %x, want 07", s.Maskr(3))
	}
}

func TestLjCountsLeadingZeros(t *testing.T) {
	s := &BaseState{WordSize: 8, Policy: PolicyWrap}
	lz, shifted := s.Lj(0x04)
	if lz != 5 || shifted != 0x80 {
		t.Fatalf("LJ(0x04) = (%d, %x), want (5, 80)", lz, shifted)
	}
}
