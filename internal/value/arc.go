package value

// arcRef is the reference-counted owner backing every matrix/list array, per
// spec §3: "Arc<RealMatData>"/"Arc<ComplexMatData>"/"Arc<ListData>". It is
// not a Go pointer-sharing trick alone — the count is tracked explicitly so
// Disentangle can tell a uniquely-owned array from a shared one before any
// in-place mutation (spec §4.1, §5's "never both observable in a mixed
// old/new state").
type arcRef struct {
	refcount int
}

func newArc() *arcRef { return &arcRef{refcount: 1} }

func (a *arcRef) retain()    { a.refcount++ }
func (a *arcRef) release()   { a.refcount-- }
func (a *arcRef) count() int { return a.refcount }
