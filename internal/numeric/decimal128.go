package numeric

import (
	"math"
	"math/big"
)

// decimal128Prec is the binary precision approximating IEEE 754-2008
// decimal128's 34 significant decimal digits (34*log2(10) ≈ 113 bits).
const decimal128Prec = 113

// Decimal128 is the decimal backend: arithmetic (+ - × ÷) and Sqrt are
// carried out on *big.Float at decimal128Prec so repeated +/- doesn't
// accumulate binary rounding the way plain float64 would; Mod, Pow, Hypot
// and the transcendental functions (no
// equivalent on big.Float) fall back to a float64 round-trip at the same
// precision, which is the standard approach used when a platform lacks a
// native decimal math library.
type Decimal128 struct {
	v   *big.Float
	nan bool // big.Float cannot represent NaN; tracked alongside it
}

func newBig() *big.Float { return new(big.Float).SetPrec(decimal128Prec) }

func NewDecimal128(f float64) Decimal128 {
	if math.IsNaN(f) {
		return Decimal128{v: newBig(), nan: true}
	}
	return Decimal128{v: newBig().SetFloat64(f)}
}

func asDecimal(n Num) Decimal128 {
	if d, ok := n.(Decimal128); ok {
		return d
	}
	return NewDecimal128(n.Float64())
}

func wrapFloatFn(a Decimal128, f func(float64) float64) Decimal128 {
	return NewDecimal128(f(a.Float64()))
}

func (a Decimal128) Add(b Num) Num {
	bd := asDecimal(b)
	if a.nan || bd.nan {
		return NewDecimal128(math.NaN())
	}
	return Decimal128{v: newBig().Add(a.v, bd.v)}
}
func (a Decimal128) Sub(b Num) Num {
	bd := asDecimal(b)
	if a.nan || bd.nan {
		return NewDecimal128(math.NaN())
	}
	return Decimal128{v: newBig().Sub(a.v, bd.v)}
}
func (a Decimal128) Mul(b Num) Num {
	bd := asDecimal(b)
	if a.nan || bd.nan {
		return NewDecimal128(math.NaN())
	}
	return Decimal128{v: newBig().Mul(a.v, bd.v)}
}
func (a Decimal128) Div(b Num) Num {
	bd := asDecimal(b)
	if a.nan || bd.nan || bd.v.Sign() == 0 {
		return NewDecimal128(a.Float64() / bd.Float64())
	}
	return Decimal128{v: newBig().Quo(a.v, bd.v)}
}
func (a Decimal128) Mod(b Num) Num { return NewDecimal128(math.Mod(a.Float64(), b.Float64())) }
func (a Decimal128) Neg() Num {
	if a.nan {
		return a
	}
	return Decimal128{v: newBig().Neg(a.v)}
}

func (a Decimal128) Sin() Num   { return wrapFloatFn(a, math.Sin) }
func (a Decimal128) Cos() Num   { return wrapFloatFn(a, math.Cos) }
func (a Decimal128) Tan() Num   { return wrapFloatFn(a, math.Tan) }
func (a Decimal128) Asin() Num  { return wrapFloatFn(a, math.Asin) }
func (a Decimal128) Acos() Num  { return wrapFloatFn(a, math.Acos) }
func (a Decimal128) Atan() Num  { return wrapFloatFn(a, math.Atan) }
func (a Decimal128) Sinh() Num  { return wrapFloatFn(a, math.Sinh) }
func (a Decimal128) Cosh() Num  { return wrapFloatFn(a, math.Cosh) }
func (a Decimal128) Tanh() Num  { return wrapFloatFn(a, math.Tanh) }
func (a Decimal128) Asinh() Num { return wrapFloatFn(a, math.Asinh) }
func (a Decimal128) Acosh() Num { return wrapFloatFn(a, math.Acosh) }
func (a Decimal128) Atanh() Num { return wrapFloatFn(a, math.Atanh) }
func (a Decimal128) Log() Num   { return wrapFloatFn(a, math.Log) }
func (a Decimal128) Log10() Num { return wrapFloatFn(a, math.Log10) }
func (a Decimal128) Exp() Num   { return wrapFloatFn(a, math.Exp) }
func (a Decimal128) Pow(b Num) Num {
	return NewDecimal128(math.Pow(a.Float64(), b.Float64()))
}
func (a Decimal128) Hypot(b Num) Num {
	return NewDecimal128(math.Hypot(a.Float64(), b.Float64()))
}
func (a Decimal128) Sqrt() Num {
	if a.nan || a.v.Sign() < 0 {
		return NewDecimal128(math.NaN())
	}
	return Decimal128{v: newBig().Sqrt(a.v)}
}

func (a Decimal128) IsNaN() bool    { return a.nan }
func (a Decimal128) IsInf() bool    { return !a.nan && a.v.IsInf() }
func (a Decimal128) IsPosInf() bool { return !a.nan && a.v.IsInf() && a.v.Sign() > 0 }
func (a Decimal128) IsNegInf() bool { return !a.nan && a.v.IsInf() && a.v.Sign() < 0 }
func (a Decimal128) Sign() int {
	if a.nan {
		return 0
	}
	return a.v.Sign()
}

func (a Decimal128) Float64() float64 {
	if a.nan {
		return math.NaN()
	}
	f, _ := a.v.Float64()
	return f
}
func (a Decimal128) Int32() int32 { return saturateInt32(a.Float64()) }
func (a Decimal128) Int64() int64 { return saturateInt64(a.Float64()) }

func (a Decimal128) Cmp(b Num) int {
	bd := asDecimal(b)
	if a.nan || bd.nan {
		return -2
	}
	return a.v.Cmp(bd.v)
}

func (a Decimal128) String() string {
	if a.nan {
		return "NaN"
	}
	return a.v.Text('g', 34)
}
