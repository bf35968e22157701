package variables

import (
	"calc42/internal/numeric"
	"calc42/internal/value"
	"testing"
)

func real(f float64) value.Value { return value.Real(numeric.NewFloat64(f)) }

func TestSetThenLookup(t *testing.T) {
	s := New()
	s.Set("X", 0, real(1))
	v, ok := s.Lookup("X", -1)
	if !ok || v.Re.Float64() != 1 {
		t.Fatalf("lookup after set failed: %v %v", v, ok)
	}
}

func TestShadowingByScopeLevel(t *testing.T) {
	s := New()
	s.Set("X", 0, real(1))
	s.Set("X", 1, real(2))

	if v, _ := s.Lookup("X", 1); v.Re.Float64() != 2 {
		t.Error("inner scope should shadow outer")
	}
	if v, _ := s.Lookup("X", 0); v.Re.Float64() != 1 {
		t.Error("outer lookup at level 0 should see the outer entry")
	}
}

func TestPrivateExcludedFromLookup(t *testing.T) {
	s := New()
	s.Set("SECRET", 0, real(42))
	s.SetPrivate("SECRET", 0, true)
	if _, ok := s.Lookup("SECRET", -1); ok {
		t.Error("private entries must not be visible to normal recall")
	}
	cat := s.Catalog()
	for _, e := range cat {
		if e.Name == "SECRET" {
			t.Error("private entries must not appear in the catalog")
		}
	}
}

func TestPurgeScopeDropsFrame(t *testing.T) {
	s := New()
	s.Set("X", 0, real(1))
	s.Set("Y", 1, real(2))
	s.PurgeScope(1)
	if s.Len() != 1 {
		t.Fatalf("after PurgeScope(1) len = %d, want 1", s.Len())
	}
	if _, ok := s.Lookup("X", -1); !ok {
		t.Error("level-0 entry should survive PurgeScope(1)")
	}
}
