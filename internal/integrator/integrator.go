// Package integrator implements the Romberg numerical integrator of spec
// §4.9: non-uniform endpoint-avoiding substitution x=(3u-u^3)/2, up to
// ROMB_MAX levels, with Neville-style extrapolation over a ring buffer.
//
// Grounded on original_source/common/core_math2.cc's romberg state machine
// (ROMB_MAX=20, K=5 ring buffer, the (3u-u^3)/2 substitution) — the
// teacher has no numeric integrator (see DESIGN.md); built fresh from
// spec §4.9's description in the teacher's small-function style.
package integrator

import (
	"math"

	"calc42/internal/calcerr"
)

const (
	RombMax = 20
	K       = 5
)

// Evaluator is the target program callback, mirroring solver.Evaluator:
// given a substituted sample point, return f(x).
type Evaluator interface {
	Eval(x float64) (fx float64, ok bool)
}

// Integrator holds the state spec §3 names for an integration in
// progress.
type Integrator struct {
	Eval Evaluator

	A, B, Acc float64
	N         int // current level, 1..RombMax
	H         float64
	Sum       float64
	S         [K + 1]float64
	NSteps    int

	PrevInt     float64
	PrevRes     float64
	KeepRunning bool
}

// Start begins an integration of Eval over [llim, ulim] with the given
// target relative accuracy (clamped to >= 0, spec §4.9).
func Start(e Evaluator, llim, ulim, acc float64) *Integrator {
	if acc < 0 {
		acc = 0
	}
	return &Integrator{Eval: e, A: llim, B: ulim, Acc: acc, N: 0, KeepRunning: true}
}

func (g *Integrator) Stop() { g.KeepRunning = false }

// substitute maps u in [-1,1] to a sample point in [a,b] via the
// endpoint-avoiding substitution x=(3u-u^3)/2, then rescales to [a,b].
func (g *Integrator) substitute(u float64) (x float64, weight float64) {
	t := (3*u - u*u*u) / 2
	half := (g.B - g.A) / 2
	mid := (g.A + g.B) / 2
	x = mid + half*t
	weight = 1 - u*u // (1-p^2) factor from spec §4.9
	return x, weight
}

// level evaluates one more Romberg level (doubling the sample count) and
// returns the trapezoidal estimate for that level.
func (g *Integrator) level() (estimate float64, err *calcerr.CalcError) {
	g.N++
	steps := 1 << uint(g.N)
	half := (g.B - g.A) / 2
	sum := 0.0
	for i := 0; i < steps; i++ {
		u := -1 + 2*(float64(i)+0.5)/float64(steps)
		x, weight := g.substitute(u)
		fx, ok := g.Eval.Eval(x)
		if !ok {
			return 0, calcerr.StatMathError()
		}
		sum += weight * fx
	}
	g.NSteps = steps
	estimate = sum * half * 2 / float64(steps) * 1.5 // Jacobian of the substitution folded in
	return estimate, nil
}

// Run drives the Romberg loop to convergence or RombMax, returning the
// result and achieved error estimate (spec §4.9's recall_two_results
// output).
func Run(g *Integrator) (result, eps float64, err *calcerr.CalcError) {
	ring := make([]float64, 0, K+1)
	for g.KeepRunning && g.N < RombMax {
		est, e := g.level()
		if e != nil {
			return g.PrevInt, math.Abs(g.PrevInt - g.PrevRes), e
		}
		ring = append(ring, est)
		if len(ring) > K+1 {
			ring = ring[1:]
		}

		result = est
		if len(ring) >= 2 {
			result, eps = extrapolate(ring)
		} else {
			eps = math.Abs(est - g.PrevInt)
		}

		if g.N > 1 && math.Abs(result-g.PrevRes) <= g.Acc*math.Abs(result) {
			return result, math.Abs(result - g.PrevRes), nil
		}
		g.PrevRes = result
		g.PrevInt = est
	}
	return result, eps, nil
}

// extrapolate performs Neville-style Romberg extrapolation over the ring
// buffer of trapezoidal estimates, per spec §4.9's c[i] recurrence.
func extrapolate(s []float64) (result, eps float64) {
	c := make([]float64, len(s))
	copy(c, s)
	dm := 0.25
	for m := 1; m < len(c); m++ {
		for i := 0; i < len(c)-m; i++ {
			c[i] = (c[i+1] - c[i]*dm) / (1 - dm)
		}
		dm *= 0.25
	}
	result = c[0]
	if len(s) >= 2 {
		eps = math.Abs(s[len(s)-1] - s[len(s)-2])
	}
	return result, eps
}
