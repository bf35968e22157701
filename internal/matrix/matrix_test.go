package matrix

import (
	"calc42/internal/calcerr"
	"calc42/internal/numeric"
	"calc42/internal/value"
	"testing"
)

func real(f float64) value.Value { return value.Real(numeric.NewFloat64(f)) }

func makeReal(rows, cols int, vals []float64) value.Value {
	m := value.NewRealMatData(rows, cols, numeric.NewFloat64(0))
	i := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, value.NumCell(numeric.NewFloat64(vals[i])))
			i++
		}
	}
	return value.RealMatrix(m)
}

func TestGetSetElementOneBased(t *testing.T) {
	m := makeReal(2, 2, []float64{1, 2, 3, 4})
	v, err := GetElement(m, 1, 1)
	if err != nil || v.Re.Float64() != 1 {
		t.Fatalf("GetElement(1,1) = %v, %v", v, err)
	}
	if err := SetElement(m, 2, 2, real(99)); err != nil {
		t.Fatalf("SetElement: %v", err)
	}
	v, _ = GetElement(m, 2, 2)
	if v.Re.Float64() != 99 {
		t.Fatalf("after SetElement(2,2), got %v", v.Re.Float64())
	}
}

func TestGetElementOutOfRange(t *testing.T) {
	m := makeReal(1, 1, []float64{1})
	if _, err := GetElement(m, 2, 1); !calcerr.Is(err, calcerr.CodeOutOfRange) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestAddElementwise(t *testing.T) {
	a := makeReal(2, 1, []float64{1, 2})
	b := makeReal(2, 1, []float64{10, 20})
	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	v, _ := GetElement(sum, 2, 1)
	if v.Re.Float64() != 22 {
		t.Fatalf("sum(2,1) = %v, want 22", v.Re.Float64())
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	a := makeReal(2, 1, []float64{1, 2})
	b := makeReal(1, 2, []float64{1, 2})
	if _, err := Add(a, b); !calcerr.Is(err, calcerr.CodeDimensionError) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestMulIdentity(t *testing.T) {
	a := makeReal(2, 2, []float64{1, 2, 3, 4})
	identity := makeReal(2, 2, []float64{1, 0, 0, 1})
	result, err := Mul(a, identity)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	for r := 1; r <= 2; r++ {
		for c := 1; c <= 2; c++ {
			av, _ := GetElement(a, r, c)
			rv, _ := GetElement(result, r, c)
			if av.Re.Float64() != rv.Re.Float64() {
				t.Fatalf("A*I mismatch at (%d,%d): %v vs %v", r, c, av, rv)
			}
		}
	}
}

func TestDivSolvesLinearSystem(t *testing.T) {
	// a = [2 0; 0 2] (as the divisor), dividend = [4 6] should yield [2 3].
	divisor := makeReal(2, 2, []float64{2, 0, 0, 2})
	dividend := makeReal(1, 2, []float64{4, 6})
	result, err := Div(dividend, divisor, SingularError)
	if err != nil {
		t.Fatalf("Div: %v", err)
	}
	v1, _ := GetElement(result, 1, 1)
	v2, _ := GetElement(result, 1, 2)
	if v1.Re.Float64() != 2 || v2.Re.Float64() != 3 {
		t.Fatalf("Div result = (%v, %v), want (2, 3)", v1.Re.Float64(), v2.Re.Float64())
	}
}

func TestDivSingularMatrixErrors(t *testing.T) {
	divisor := makeReal(2, 2, []float64{1, 1, 1, 1})
	dividend := makeReal(1, 2, []float64{1, 1})
	if _, err := Div(dividend, divisor, SingularError); err == nil {
		t.Fatal("expected an error for a singular divisor")
	}
}

func TestGetBaseParamRejectsNonReal(t *testing.T) {
	s := value.NewString([]byte("abc"))
	if _, err := GetBaseParam(s); !calcerr.Is(err, calcerr.CodeInvalidType) {
		t.Fatalf("expected InvalidType, got %v", err)
	}
}
