// Package numeric implements the scalar N type from spec §3/§4.1: a
// field-like value with two interchangeable backends, binary double and a
// fixed-precision decimal, behind one interface so the rest of the core
// never has to know which backend is active.
package numeric

import "math"

// Num is the abstract scalar contract every backend satisfies.
type Num interface {
	Add(Num) Num
	Sub(Num) Num
	Mul(Num) Num
	Div(Num) Num
	Mod(Num) Num // fmod
	Neg() Num

	Sin() Num
	Cos() Num
	Tan() Num
	Asin() Num
	Acos() Num
	Atan() Num
	Sinh() Num
	Cosh() Num
	Tanh() Num
	Asinh() Num
	Acosh() Num
	Atanh() Num
	Log() Num
	Log10() Num
	Exp() Num
	Pow(Num) Num
	Hypot(Num) Num
	Sqrt() Num

	IsNaN() bool
	IsInf() bool
	IsPosInf() bool
	IsNegInf() bool
	Sign() int

	Float64() float64
	// Int32 / Int64 saturate at the named bounds per spec §3.
	Int32() int32
	Int64() int64

	Cmp(Num) int // -1, 0, 1; NaN compares as neither (-2 sentinel, see backend)
	String() string
}

// Backend names the two Num implementations (built by NewFloat64 and
// NewDecimal128); persistence writes it as a tag ahead of each saved number.
type Backend int

const (
	BackendFloat64 Backend = iota
	BackendDecimal128
)

const (
	MaxInt32 = math.MaxInt32
	MinInt32 = math.MinInt32
	MaxInt64 = math.MaxInt64
	MinInt64 = math.MinInt64
)

func saturateInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= MaxInt32:
		return MaxInt32
	case f <= MinInt32:
		return MinInt32
	default:
		return int32(f)
	}
}

func saturateInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= MaxInt64:
		return MaxInt64
	case f <= MinInt64:
		return MinInt64
	default:
		return int64(f)
	}
}
