package numeric

import (
	"math"
	"strconv"
)

// Float64 is the binary-double backend: a thin wrapper so it satisfies Num.
type Float64 float64

func NewFloat64(f float64) Float64 { return Float64(f) }

func f64(n Num) float64 {
	if v, ok := n.(Float64); ok {
		return float64(v)
	}
	return n.Float64()
}

func (a Float64) Add(b Num) Num { return Float64(float64(a) + f64(b)) }
func (a Float64) Sub(b Num) Num { return Float64(float64(a) - f64(b)) }
func (a Float64) Mul(b Num) Num { return Float64(float64(a) * f64(b)) }
func (a Float64) Div(b Num) Num {
	bv := f64(b)
	if bv == 0 {
		if float64(a) == 0 {
			return Float64(math.NaN())
		}
		if float64(a) > 0 {
			return Float64(math.Inf(1))
		}
		return Float64(math.Inf(-1))
	}
	return Float64(float64(a) / bv)
}
func (a Float64) Mod(b Num) Num  { return Float64(math.Mod(float64(a), f64(b))) }
func (a Float64) Neg() Num       { return Float64(-float64(a)) }
func (a Float64) Sin() Num       { return Float64(math.Sin(float64(a))) }
func (a Float64) Cos() Num       { return Float64(math.Cos(float64(a))) }
func (a Float64) Tan() Num       { return Float64(math.Tan(float64(a))) }
func (a Float64) Asin() Num      { return Float64(math.Asin(float64(a))) }
func (a Float64) Acos() Num      { return Float64(math.Acos(float64(a))) }
func (a Float64) Atan() Num      { return Float64(math.Atan(float64(a))) }
func (a Float64) Sinh() Num      { return Float64(math.Sinh(float64(a))) }
func (a Float64) Cosh() Num      { return Float64(math.Cosh(float64(a))) }
func (a Float64) Tanh() Num      { return Float64(math.Tanh(float64(a))) }
func (a Float64) Asinh() Num     { return Float64(math.Asinh(float64(a))) }
func (a Float64) Acosh() Num     { return Float64(math.Acosh(float64(a))) }
func (a Float64) Atanh() Num     { return Float64(math.Atanh(float64(a))) }
func (a Float64) Log() Num       { return Float64(math.Log(float64(a))) }
func (a Float64) Log10() Num     { return Float64(math.Log10(float64(a))) }
func (a Float64) Exp() Num       { return Float64(math.Exp(float64(a))) }
func (a Float64) Pow(b Num) Num  { return Float64(math.Pow(float64(a), f64(b))) }
func (a Float64) Hypot(b Num) Num { return Float64(math.Hypot(float64(a), f64(b))) }
func (a Float64) Sqrt() Num      { return Float64(math.Sqrt(float64(a))) }

func (a Float64) IsNaN() bool    { return math.IsNaN(float64(a)) }
func (a Float64) IsInf() bool    { return math.IsInf(float64(a), 0) }
func (a Float64) IsPosInf() bool { return math.IsInf(float64(a), 1) }
func (a Float64) IsNegInf() bool { return math.IsInf(float64(a), -1) }
func (a Float64) Sign() int {
	switch {
	case float64(a) > 0:
		return 1
	case float64(a) < 0:
		return -1
	default:
		return 0
	}
}

func (a Float64) Float64() float64 { return float64(a) }
func (a Float64) Int32() int32     { return saturateInt32(float64(a)) }
func (a Float64) Int64() int64     { return saturateInt64(float64(a)) }

func (a Float64) Cmp(b Num) int {
	bv := f64(b)
	av := float64(a)
	if math.IsNaN(av) || math.IsNaN(bv) {
		return -2
	}
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func (a Float64) String() string { return strconv.FormatFloat(float64(a), 'g', -1, 64) }
