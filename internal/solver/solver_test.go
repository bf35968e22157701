package solver

import (
	"math"
	"testing"
)

type fn func(x float64) (float64, bool)

func (f fn) Eval(x float64) (float64, bool) { return f(x) }

// TestScenario3 mirrors spec end-to-end scenario 3: f(x) = x^2 - 4 with
// guesses (0, 3) converges to a root near x=2.
func TestScenario3QuadraticRoot(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return x*x - 4, true })
	s := Start(f, 0, 3)
	root, fx, term, err := Run(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != TermRoot {
		t.Fatalf("termination = %v, want Root", term)
	}
	if math.Abs(root-2) > 1e-6 {
		t.Fatalf("root = %v, want ~2", root)
	}
	if math.Abs(fx) > 1e-6 {
		t.Fatalf("f(root) = %v, want ~0", fx)
	}
}

func TestMonotonicBracketConvergesWithinErrorBound(t *testing.T) {
	// A monotonic continuous function with a bracketed sign change always
	// terminates with |f(x)| <= |f(x1)| + |f(x2)| (spec §8 numeric property).
	f := fn(func(x float64) (float64, bool) { return x - 1.5, true })
	x1, x2 := 0.0, 10.0
	s := Start(f, x1, x2)
	_, fx, term, err := Run(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != TermRoot {
		t.Fatalf("termination = %v, want Root", term)
	}
	fx1, _ := f(x1)
	fx2, _ := f(x2)
	if math.Abs(fx) > math.Abs(fx1)+math.Abs(fx2)+1e-9 {
		t.Fatalf("|f(x)| = %v exceeds |f(x1)|+|f(x2)| = %v", math.Abs(fx), math.Abs(fx1)+math.Abs(fx2))
	}
}

func TestStopCancelsAndReturnsBestEstimate(t *testing.T) {
	f := fn(func(x float64) (float64, bool) { return x*x - 2, true })
	s := Start(f, 0, 2)
	s.Stop()
	_, _, term, err := Run(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != TermBadGuesses {
		t.Fatalf("a solve stopped before converging should report BadGuesses, got %v", term)
	}
}
