package integrator

import (
	"math"
	"testing"
)

type fn func(x float64) (float64, bool)

func (f fn) Eval(x float64) (float64, bool) { return f(x) }

// TestScenario4 mirrors spec end-to-end scenario 4: integrating x^2 over
// [0,1] with ACC=1e-6 should yield X = 1/3 within that tolerance.
func TestScenario4QuadraticIntegral(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return x * x, true })
	g := Start(f, 0, 1, 1e-6)
	result, eps, err := Run(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		t.Fatalf("result should be finite, got %v", result)
	}
	if math.Abs(result-1.0/3.0) > 1e-6 {
		t.Fatalf("result = %v, want ~1/3 within 1e-6", result)
	}
	if eps < 0 {
		t.Fatalf("achieved error estimate should be non-negative, got %v", eps)
	}
}

func TestAccIsClampedToNonNegative(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return 1, true })
	g := Start(f, 0, 1, -5)
	if g.Acc != 0 {
		t.Fatalf("negative ACC should clamp to 0, got %v", g.Acc)
	}
}

func TestStopHaltsAtCurrentLevel(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return x, true })
	g := Start(f, 0, 1, 1e-12)
	g.Stop()
	_, _, err := Run(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.N != 0 {
		t.Fatalf("a pre-stopped integration should never advance a level, got N=%d", g.N)
	}
}

func TestEvalFailureReportsStatMathError(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return 0, false })
	g := Start(f, 0, 1, 1e-6)
	_, _, err := Run(g)
	if err == nil {
		t.Fatal("expected an error when the target program fails to evaluate")
	}
}
