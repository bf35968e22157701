// Package matrix implements the matrix element-access, disentangle, and
// arithmetic operations of spec §3/§4.7, plus the BASE-mode bitwise ops in
// base.go.
//
// Grounded on spec §3's Arc<RealMatData>/Arc<ComplexMatData> description
// directly; no teacher analog exists (the teacher has no matrix type), so
// this package is built fresh in the teacher's error-returning, no-panic
// style (see DESIGN.md).
package matrix

import (
	"calc42/internal/calcerr"
	"calc42/internal/numeric"
	"calc42/internal/value"
)

// Dimensions returns a matrix Value's row/column count.
func Dimensions(v value.Value) (rows, cols int, err *calcerr.CalcError) {
	switch v.Kind {
	case value.KindRealMatrix:
		return v.RealMat.Rows, v.RealMat.Cols, nil
	case value.KindComplexMatrix:
		return v.CplxMat.Rows, v.CplxMat.Cols, nil
	default:
		return 0, 0, calcerr.InvalidType("not a matrix")
	}
}

// GetElement reads the 1-based (row, col) cell of a matrix Value.
func GetElement(v value.Value, row, col int) (value.Value, *calcerr.CalcError) {
	rows, cols, err := Dimensions(v)
	if err != nil {
		return value.Value{}, err
	}
	if row < 1 || row > rows || col < 1 || col > cols {
		return value.Value{}, calcerr.OutOfRange()
	}
	r, c := row-1, col-1
	switch v.Kind {
	case value.KindRealMatrix:
		cell := v.RealMat.At(r, c)
		if cell.IsString {
			return value.NewString(cell.Bytes()), nil
		}
		return value.Real(cell.Num), nil
	default: // KindComplexMatrix
		re, im := v.CplxMat.At(r, c)
		return value.Complex(re, im), nil
	}
}

// SetElement writes elem into the 1-based (row, col) cell of v, which must
// already be uniquely owned (call Disentangle first — spec §4.1's
// invariant that in-place mutation only ever targets refcount==1 arrays).
func SetElement(v value.Value, row, col int, elem value.Value) *calcerr.CalcError {
	rows, cols, err := Dimensions(v)
	if err != nil {
		return err
	}
	if row < 1 || row > rows || col < 1 || col > cols {
		return calcerr.OutOfRange()
	}
	r, c := row-1, col-1
	switch v.Kind {
	case value.KindRealMatrix:
		switch elem.Kind {
		case value.KindReal:
			v.RealMat.Set(r, c, value.NumCell(elem.Re))
		case value.KindString:
			v.RealMat.Set(r, c, value.StringCell(elem.Str))
		default:
			return calcerr.InvalidType("real matrix cells hold reals or strings")
		}
	case value.KindComplexMatrix:
		if elem.Kind != value.KindComplex && elem.Kind != value.KindReal {
			return calcerr.InvalidType("complex matrix cells hold complex or real numbers")
		}
		im := elem.Im
		if elem.Kind == value.KindReal {
			im = numeric.NewFloat64(0)
		}
		v.CplxMat.Set(r, c, elem.Re, im)
	}
	return nil
}

// Disentangle breaks CoW sharing before a mutating op, per spec §4.1.
func Disentangle(v *value.Value) *calcerr.CalcError { return v.Disentangle() }

// Add performs element-wise matrix addition. Both operands must have
// identical dimensions (spec §4.1's generic_add over matrix combinations).
func Add(a, b value.Value) (value.Value, *calcerr.CalcError) {
	return elementwise(a, b, func(x, y numeric.Num) numeric.Num { return x.Add(y) })
}

func Sub(a, b value.Value) (value.Value, *calcerr.CalcError) {
	return elementwise(a, b, func(x, y numeric.Num) numeric.Num { return x.Sub(y) })
}

func elementwise(a, b value.Value, op func(x, y numeric.Num) numeric.Num) (value.Value, *calcerr.CalcError) {
	ar, ac, err := Dimensions(a)
	if err != nil {
		return value.Value{}, err
	}
	br, bc, err := Dimensions(b)
	if err != nil {
		return value.Value{}, err
	}
	if ar != br || ac != bc {
		return value.Value{}, calcerr.DimensionError()
	}
	if a.Kind == value.KindRealMatrix && b.Kind == value.KindRealMatrix {
		out := value.NewRealMatData(ar, ac, numeric.NewFloat64(0))
		for r := 0; r < ar; r++ {
			for c := 0; c < ac; c++ {
				av, bv := a.RealMat.At(r, c), b.RealMat.At(r, c)
				if av.IsString || bv.IsString {
					return value.Value{}, calcerr.InvalidType("cannot do arithmetic on string cells")
				}
				out.Set(r, c, value.NumCell(op(av.Num, bv.Num)))
			}
		}
		return value.RealMatrix(out), nil
	}
	// Mixed or complex: promote to complex.
	out := value.NewComplexMatData(ar, ac, numeric.NewFloat64(0))
	for r := 0; r < ar; r++ {
		for c := 0; c < ac; c++ {
			are, aim := cellAsComplex(a, r, c)
			bre, bim := cellAsComplex(b, r, c)
			out.Set(r, c, op(are, bre), op(aim, bim))
		}
	}
	return value.ComplexMatrix(out), nil
}

func cellAsComplex(v value.Value, r, c int) (re, im numeric.Num) {
	if v.Kind == value.KindComplexMatrix {
		return v.CplxMat.At(r, c)
	}
	cell := v.RealMat.At(r, c)
	return cell.Num, numeric.NewFloat64(0)
}

// Mul performs matrix multiplication (spec §4.1: "matrix multiply for ×").
func Mul(a, b value.Value) (value.Value, *calcerr.CalcError) {
	ar, ac, err := Dimensions(a)
	if err != nil {
		return value.Value{}, err
	}
	br, bc, err := Dimensions(b)
	if err != nil {
		return value.Value{}, err
	}
	if ac != br {
		return value.Value{}, calcerr.DimensionError()
	}
	out := value.NewRealMatData(ar, bc, numeric.NewFloat64(0))
	isComplex := a.Kind == value.KindComplexMatrix || b.Kind == value.KindComplexMatrix
	var cout *value.ComplexMatData
	if isComplex {
		cout = value.NewComplexMatData(ar, bc, numeric.NewFloat64(0))
	}
	for r := 0; r < ar; r++ {
		for c := 0; c < bc; c++ {
			sumRe := numeric.Num(numeric.NewFloat64(0))
			sumIm := numeric.Num(numeric.NewFloat64(0))
			for k := 0; k < ac; k++ {
				are, aim := cellAsComplex(a, r, k)
				bre, bim := cellAsComplex(b, k, c)
				// (are+i*aim)*(bre+i*bim)
				sumRe = sumRe.Add(are.Mul(bre).Sub(aim.Mul(bim)))
				sumIm = sumIm.Add(are.Mul(bim).Add(aim.Mul(bre)))
			}
			if isComplex {
				cout.Set(r, c, sumRe, sumIm)
			} else {
				out.Set(r, c, value.NumCell(sumRe))
			}
		}
	}
	if isComplex {
		return value.ComplexMatrix(cout), nil
	}
	return value.RealMatrix(out), nil
}

// SingularPolicy mirrors the matrix_singularmatrix user preference (spec
// §9 Open Question: "implementation-defined... the original uses detection
// via LU pivot magnitude, not a fixed epsilon").
type SingularPolicy int

const (
	SingularError SingularPolicy = iota
	SingularTreatAsNearZero
)

// pivotEpsilonFactor scales the LU pivot-magnitude threshold below which a matrix is
// considered singular — matched against the divisor's own scale rather
// than a fixed constant, following the original's pivot-magnitude approach
// (see DESIGN.md Open Question decision).
const pivotEpsilonFactor = 1e-12

// Div solves X×divisor=a for X (X = a×divisor⁻¹, the same shape as a) via
// Gaussian elimination with partial pivoting —
// spec §4.1's "division by a matrix is LU-solve" for ÷ by a matrix
// divisor.
func Div(a, divisor value.Value, policy SingularPolicy) (value.Value, *calcerr.CalcError) {
	dr, dc, err := Dimensions(divisor)
	if err != nil {
		return value.Value{}, err
	}
	if dr != dc {
		return value.Value{}, calcerr.DimensionError()
	}
	ar, ac, err := Dimensions(a)
	if err != nil {
		return value.Value{}, err
	}
	if ac != dr {
		return value.Value{}, calcerr.DimensionError()
	}

	n := dr
	aug := make([][]float64, n)
	scale := 0.0
	for r := 0; r < n; r++ {
		aug[r] = make([]float64, n+ar)
		for c := 0; c < n; c++ {
			re, _ := cellAsComplex(divisor, c, r) // divisor transposed: solving divisor^T X^T = a^T per row system
			f := re.Float64()
			aug[r][c] = f
			if abs(f) > scale {
				scale = abs(f)
			}
		}
		for c := 0; c < ar; c++ {
			re, _ := cellAsComplex(a, c, r)
			aug[r][n+c] = re.Float64()
		}
	}
	if scale == 0 {
		scale = 1
	}
	epsilon := scale * pivotEpsilonFactor

	for col := 0; col < n; col++ {
		pivotRow := col
		pivotMag := abs(aug[col][col])
		for r := col + 1; r < n; r++ {
			if abs(aug[r][col]) > pivotMag {
				pivotMag = abs(aug[r][col])
				pivotRow = r
			}
		}
		if pivotMag < epsilon {
			if policy == SingularTreatAsNearZero {
				pivotMag = epsilon
				aug[pivotRow][col] = epsilon
			} else {
				return value.Value{}, calcerr.New(calcerr.CodeInvalidData, "singular matrix")
			}
		}
		aug[col], aug[pivotRow] = aug[pivotRow], aug[col]
		pivot := aug[col][col]
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col] / pivot
			for c := col; c < n+ar; c++ {
				aug[r][c] -= factor * aug[col][c]
			}
		}
	}

	out := value.NewRealMatData(ar, n, numeric.NewFloat64(0))
	for r := 0; r < n; r++ {
		for c := 0; c < ar; c++ {
			out.Set(c, r, value.NumCell(numeric.NewFloat64(aug[r][n+c]/aug[r][r])))
		}
	}
	return value.RealMatrix(out), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// GetBaseParam converts a Value to the int64 BASE arithmetic operates on;
// only Real is accepted (spec §4.7).
func GetBaseParam(v value.Value) (int64, *calcerr.CalcError) {
	if v.Kind != value.KindReal {
		return 0, calcerr.InvalidType("BASE operations require a real operand")
	}
	return v.Re.Int64(), nil
}
