package calcerr

import "testing"

func TestClassification(t *testing.T) {
	cases := []struct {
		err   *CalcError
		class Class
	}{
		{DivideBy0(), ClassMath},
		{OutOfRange(), ClassBounds},
		{Nonexistent(), ClassLookup},
		{InsufficientMemory(), ClassResources},
		{Stop(), ClassFlow},
		{InternalError("regs missing"), ClassSystem},
	}
	for _, c := range cases {
		if c.err.Class != c.class {
			t.Errorf("%s: got class %s, want %s", c.err.Code, c.err.Class, c.class)
		}
	}
}

func TestControlCodesNotDisplayed(t *testing.T) {
	for _, e := range []*CalcError{Yes(), No(), Stop(), Run(), Interruptible(), None()} {
		if !e.IsControl() {
			t.Errorf("%s should be a control code", e.Code)
		}
	}
	if DivideBy0().IsControl() {
		t.Error("DivideBy0 must not be a control code")
	}
}

func TestIs(t *testing.T) {
	var err error = DivideBy0()
	if !Is(err, CodeDivideBy0) {
		t.Error("Is should match DivideBy0")
	}
	if Is(err, CodeOutOfRange) {
		t.Error("Is should not match unrelated code")
	}
}
