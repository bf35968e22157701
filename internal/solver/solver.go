// Package solver implements the root finder of spec §4.8: secant method
// with Ridders-method fallback and bisection safeguards, driving a target
// program via callback.
//
// Grounded on original_source/common/core_math1.cc's solve_secant state
// machine (states 1-7, do_secant/do_ridders/finish_secant labels) — guard
// constants (1e50 slope threshold, 1% of the interval added when a secant
// step lands on an endpoint, 100x extrapolation cap, 10% interpolation
// margin) are pinned
// from that file (see SPEC_FULL.md §10). The teacher has no numeric
// root-finder to adapt (see DESIGN.md); the state-machine shape here is
// built fresh from spec §4.8's table, in the teacher's small-function,
// explicit-error-return style.
package solver

import (
	"math"

	"calc42/internal/calcerr"
)

// Evaluator is the target program callback: given a guess for the solve
// variable, return f(x) and whether the result was a usable finite real
// (spec §4.8: "failure=1 if the result wasn't a finite Real").
type Evaluator interface {
	Eval(x float64) (fx float64, ok bool)
}

// Termination classifies how the solve ended (spec §4.8).
type Termination int

const (
	TermRoot Termination = iota
	TermSignReversal
	TermExtremum
	TermBadGuesses
	TermConstant
)

func (t Termination) String() string {
	switch t {
	case TermRoot:
		return "Root"
	case TermSignReversal:
		return "SignReversal"
	case TermExtremum:
		return "Extremum"
	case TermBadGuesses:
		return "BadGuesses"
	case TermConstant:
		return "Constant"
	default:
		return "Unknown"
	}
}

// Guard constants pinned from core_math1.cc (SPEC_FULL.md §10).
const (
	slopeInfiniteThreshold = 1e50
	perturbFactor          = 1.000001 // one-part-per-million nudge away from an unusable guess
	extrapolationCap       = 100.0
	interpolationMargin    = 0.10
)

const maxIterations = 200

// State names spec §4.8's table entries.
type State int

const (
	StateEvalX1 State = iota + 1
	StateEvalX1Retry
	StateEnsureDistinct
	StateSecantStep
	StateBisectionStep
	StateRiddersMidpoint
	StateRiddersCandidate
)

// Solver holds the full state spec §3 names for a solve-in-progress.
type Solver struct {
	Eval Evaluator

	X1, X2, X3     float64
	Fx1, Fx2       float64
	PrevX, CurrX   float64
	CurrF          float64
	Xm, Fxm        float64
	Which          int // 1, 2, 3, or -1
	State          State
	RetryCounter   int
	RetryValue     float64
	Toggle         bool
	KeepRunning    bool
	iterations     int
}

// Start begins a solve at the two initial guesses (spec §4.8: start_solve).
func Start(e Evaluator, x1, x2 float64) *Solver {
	return &Solver{Eval: e, X1: x1, X2: x2, State: StateEvalX1, KeepRunning: true}
}

// Stop requests cancellation; Run finishes the current step and returns
// its best estimate (spec §5's cancellation contract).
func (s *Solver) Stop() { s.KeepRunning = false }

// Run drives the state machine to completion, invoking Eval synchronously.
// (The production shell instead re-enters via ReturnToSolve on each program
// stop; this loop inlines that re-entry since nothing here needs to yield
// between evaluations in a standalone package test.)
func Run(s *Solver) (root, fx float64, term Termination, err *calcerr.CalcError) {
	for s.KeepRunning && s.iterations < maxIterations {
		done, t, e := s.step()
		s.iterations++
		if e != nil {
			return s.best()
		}
		if done {
			return s.finish(t)
		}
	}
	return s.finish(TermBadGuesses)
}

func (s *Solver) best() (float64, float64, Termination, *calcerr.CalcError) {
	x, f := s.X1, s.Fx1
	if math.Abs(s.Fx2) < math.Abs(f) {
		x, f = s.X2, s.Fx2
	}
	if math.Abs(s.Fx3Safe()) < math.Abs(f) {
		x, f = s.X3, s.Fx3Safe()
	}
	return x, f, TermBadGuesses, nil
}

func (s *Solver) Fx3Safe() float64 {
	if s.X3 == s.X1 || s.X3 == s.X2 {
		return math.Inf(1)
	}
	fx, ok := s.Eval.Eval(s.X3)
	if !ok {
		return math.Inf(1)
	}
	return fx
}

func (s *Solver) finish(t Termination) (float64, float64, Termination, *calcerr.CalcError) {
	// Report whichever of x1/x2/x3 has the smallest |f| (spec §4.8).
	x, f := s.X1, s.Fx1
	if math.Abs(s.Fx2) < math.Abs(f) {
		x, f = s.X2, s.Fx2
	}
	if s.X3 != 0 && math.Abs(s.CurrF) < math.Abs(f) && s.CurrX == s.X3 {
		x, f = s.X3, s.CurrF
	}
	return x, f, t, nil
}

func (s *Solver) step() (done bool, term Termination, err *calcerr.CalcError) {
	switch s.State {
	case StateEvalX1:
		fx, ok := s.Eval.Eval(s.X1)
		if !ok {
			s.X1 = s.X1*perturbFactor + 1e-10
			s.State = StateEvalX1Retry
			return false, 0, nil
		}
		s.Fx1 = fx
		if fx == 0 {
			return true, TermRoot, nil
		}
		s.State = StateEnsureDistinct
		return false, 0, nil

	case StateEvalX1Retry:
		fx, ok := s.Eval.Eval(s.X1)
		if !ok {
			return true, TermBadGuesses, nil
		}
		s.Fx1 = fx
		s.State = StateEnsureDistinct
		return false, 0, nil

	case StateEnsureDistinct:
		fx2, ok := s.Eval.Eval(s.X2)
		if !ok {
			s.X2 = s.X1 + (s.X2-s.X1)*perturbFactor + 1e-10
			return false, 0, nil
		}
		s.Fx2 = fx2
		if fx2 == 0 {
			s.CurrX, s.CurrF = s.X2, fx2
			return true, TermRoot, nil
		}
		if s.Fx1 == s.Fx2 {
			// Widen exponentially until the two evaluations differ.
			s.X2 = s.X1 + (s.X2-s.X1)*2
			return false, 0, nil
		}
		if (s.Fx1 < 0) != (s.Fx2 < 0) {
			// Bracketed opposite-sign case: core_math1.cc's do_secant label
			// routes this to Ridders rather than the secant method.
			s.State = StateRiddersMidpoint
		} else {
			s.State = StateSecantStep
		}
		return false, 0, nil

	case StateSecantStep:
		slope := (s.Fx2 - s.Fx1) / (s.X2 - s.X1)
		if math.IsInf(slope, 0) {
			s.State = StateBisectionStep
			return false, 0, nil
		}
		var x3 float64
		if slope == 0 {
			x3 = s.X1 - s.Fx1*(s.X2-s.X1)/1e-300
		} else {
			x3 = s.X1 - s.Fx1/slope
		}
		if x3 == s.X1 || x3 == s.X2 {
			if math.Abs(slope) > slopeInfiniteThreshold {
				x3 += (s.X2 - s.X1) * 0.01
			}
		}
		lo, hi := s.X1, s.X2
		if lo > hi {
			lo, hi = hi, lo
		}
		span := hi - lo
		if x3 < lo-extrapolationCap*span {
			x3 = lo - extrapolationCap*span
		}
		if x3 > hi+extrapolationCap*span {
			x3 = hi + extrapolationCap*span
		}
		if x3 > lo && x3 < hi {
			margin := span * interpolationMargin
			if x3 < lo+margin {
				x3 = lo + margin
			}
			if x3 > hi-margin {
				x3 = hi - margin
			}
		}
		s.X3 = x3
		fx3, ok := s.Eval.Eval(x3)
		if !ok {
			s.X2 = s.X1 + (s.X2-s.X1)*0.5
			s.State = StateEnsureDistinct
			return false, 0, nil
		}
		s.CurrX, s.CurrF = x3, fx3
		if fx3 == 0 {
			return true, TermRoot, nil
		}
		if (fx3 < 0) != (s.Fx1 < 0) {
			s.X2, s.Fx2 = x3, fx3
		} else {
			s.X1, s.Fx1 = x3, fx3
		}
		if math.Abs(s.X2-s.X1) < 1e-12*(math.Abs(s.X1)+math.Abs(s.X2)+1e-300) {
			return true, TermRoot, nil
		}
		s.State = StateSecantStep
		return false, 0, nil

	case StateBisectionStep:
		xm := (s.X1 + s.X2) / 2
		fxm, ok := s.Eval.Eval(xm)
		if !ok {
			return true, TermBadGuesses, nil
		}
		s.Xm, s.Fxm = xm, fxm
		s.CurrX, s.CurrF = xm, fxm
		if fxm == 0 || math.Abs(s.X2-s.X1) < 1e-12*(math.Abs(s.X1)+math.Abs(s.X2)+1e-300) {
			return true, TermRoot, nil
		}
		if (fxm < 0) != (s.Fx1 < 0) {
			s.X2, s.Fx2 = xm, fxm
		} else {
			s.X1, s.Fx1 = xm, fxm
		}
		return false, 0, nil

	case StateRiddersMidpoint:
		xm := (s.X1 + s.X2) / 2
		fxm, ok := s.Eval.Eval(xm)
		if !ok {
			s.State = StateBisectionStep
			return false, 0, nil
		}
		s.Xm, s.Fxm = xm, fxm
		if fxm == 0 {
			s.CurrX, s.CurrF = xm, fxm
			return true, TermRoot, nil
		}
		denom := fxm*fxm - s.Fx1*s.Fx2
		if denom <= 0 {
			s.State = StateBisectionStep
			return false, 0, nil
		}
		sval := math.Sqrt(denom)
		sign := 1.0
		if s.Fx1 < s.Fx2 {
			sign = -1.0
		}
		s.X3 = xm + (xm-s.X1)*sign*(fxm/sval)
		s.State = StateRiddersCandidate
		return false, 0, nil

	case StateRiddersCandidate:
		fx3, ok := s.Eval.Eval(s.X3)
		if !ok {
			s.State = StateBisectionStep
			return false, 0, nil
		}
		s.CurrX, s.CurrF = s.X3, fx3
		if fx3 == 0 {
			return true, TermRoot, nil
		}
		// Bracket update per core_math1.cc's Ridders cases 6/7: whichever
		// pair (xm,x3), (x1,x3), or (x2,x3) still straddles a sign change
		// becomes the new bracket.
		switch {
		case (s.Fxm >= 0) != (fx3 >= 0):
			s.X1, s.Fx1 = s.Xm, s.Fxm
			s.X2, s.Fx2 = s.X3, fx3
		case (s.Fx1 >= 0) != (fx3 >= 0):
			s.X2, s.Fx2 = s.X3, fx3
		case (s.Fx2 >= 0) != (fx3 >= 0):
			s.X1, s.Fx1 = s.X3, fx3
		default:
			s.State = StateBisectionStep
			return false, 0, nil
		}
		if math.Abs(s.X2-s.X1) < 1e-12*(math.Abs(s.X1)+math.Abs(s.X2)+1e-300) {
			return true, TermRoot, nil
		}
		s.State = StateRiddersMidpoint
		return false, 0, nil

	default:
		return true, TermBadGuesses, nil
	}
}
