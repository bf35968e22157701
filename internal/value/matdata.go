package value

import "calc42/internal/numeric"

// RealCell is one cell of a RealMatData: either a numeric scalar or a
// string. Strings up to 6 bytes are stored inline; longer ones are
// heap-allocated and must be deep-copied on disentangle (spec §3).
type RealCell struct {
	IsString bool
	Num      numeric.Num
	short    [6]byte
	shortLen int8
	long     []byte // non-nil only when len > 6
}

func NumCell(n numeric.Num) RealCell { return RealCell{Num: n} }

func StringCell(s []byte) RealCell {
	if len(s) <= 6 {
		c := RealCell{IsString: true, shortLen: int8(len(s))}
		copy(c.short[:], s)
		return c
	}
	long := make([]byte, len(s))
	copy(long, s)
	return RealCell{IsString: true, long: long}
}

func (c RealCell) Bytes() []byte {
	if c.long != nil {
		return c.long
	}
	return c.short[:c.shortLen]
}

func (c RealCell) clone() RealCell {
	if c.long == nil {
		return c
	}
	long := make([]byte, len(c.long))
	copy(long, c.long)
	return RealCell{IsString: true, long: long}
}

// RealMatData is the backing array for a RealMatrix Value (spec §3).
type RealMatData struct {
	arr      *arcRef
	Rows     int
	Cols     int
	Cells    []RealCell
}

// NewRealMatData allocates a rows*cols matrix of zero reals. Per spec §3
// invariants, matrices never have zero dimensions; callers must purge the
// variable instead of constructing a zero-size matrix.
func NewRealMatData(rows, cols int, zero numeric.Num) *RealMatData {
	cells := make([]RealCell, rows*cols)
	for i := range cells {
		cells[i] = NumCell(zero)
	}
	return &RealMatData{arr: newArc(), Rows: rows, Cols: cols, Cells: cells}
}

func (m *RealMatData) At(r, c int) RealCell { return m.Cells[r*m.Cols+c] }
func (m *RealMatData) Set(r, c int, v RealCell) { m.Cells[r*m.Cols+c] = v }

// clone deep-copies the array (and any long-string cells) for disentangle.
func (m *RealMatData) clone() *RealMatData {
	cells := make([]RealCell, len(m.Cells))
	for i, c := range m.Cells {
		cells[i] = c.clone()
	}
	m.arr.release()
	return &RealMatData{arr: newArc(), Rows: m.Rows, Cols: m.Cols, Cells: cells}
}

// ComplexMatData is the backing array for a ComplexMatrix Value: 2*rows*cols
// of N, held as two parallel row-major slices of real and imaginary parts.
type ComplexMatData struct {
	arr  *arcRef
	Rows int
	Cols int
	Re   []numeric.Num
	Im   []numeric.Num
}

func NewComplexMatData(rows, cols int, zero numeric.Num) *ComplexMatData {
	re := make([]numeric.Num, rows*cols)
	im := make([]numeric.Num, rows*cols)
	for i := range re {
		re[i] = zero
		im[i] = zero
	}
	return &ComplexMatData{arr: newArc(), Rows: rows, Cols: cols, Re: re, Im: im}
}

func (m *ComplexMatData) At(r, c int) (re, im numeric.Num) {
	i := r*m.Cols + c
	return m.Re[i], m.Im[i]
}

func (m *ComplexMatData) Set(r, c int, re, im numeric.Num) {
	i := r*m.Cols + c
	m.Re[i], m.Im[i] = re, im
}

func (m *ComplexMatData) clone() *ComplexMatData {
	re := make([]numeric.Num, len(m.Re))
	im := make([]numeric.Num, len(m.Im))
	copy(re, m.Re)
	copy(im, m.Im)
	m.arr.release()
	return &ComplexMatData{arr: newArc(), Rows: m.Rows, Cols: m.Cols, Re: re, Im: im}
}

// ListData is the backing array for a List Value: size owned Values
// (spec §3). Lists may nest other lists; the command surface never creates
// cycles (spec §9), so no cycle detection is needed on free/clone.
type ListData struct {
	arr   *arcRef
	Items []Value
}

func NewListData(items []Value) *ListData {
	return &ListData{arr: newArc(), Items: items}
}

func (l *ListData) clone() *ListData {
	items := make([]Value, len(l.Items))
	for i, it := range l.Items {
		items[i] = it.Dup()
	}
	l.arr.release()
	return &ListData{arr: newArc(), Items: items}
}
