package session

import (
	"testing"

	"calc42/internal/core"
)

func newMachine() *core.Machine { return core.NewMachine(false) }

func TestKeyDownDigitsAccumulateThenEnterFlushesToX(t *testing.T) {
	sh := New(newMachine())

	for _, k := range []int{2, 4} { // "1", "3"
		if _, _, err := sh.KeyDown(k); err != nil {
			t.Fatalf("KeyDown(%d): %v", k, err)
		}
	}
	if !sh.entering {
		t.Fatal("expected a pending number entry after digit keys")
	}

	if _, _, err := sh.KeyDown(12); err != nil { // ENTER
		t.Fatalf("KeyDown(ENTER): %v", err)
	}
	if sh.M.Stack.X().Re.Float64() != 13 {
		t.Fatalf("X = %v, want 13", sh.M.Stack.X().Re.Float64())
	}
	if sh.M.Stack.Y().Re.Float64() != 13 {
		t.Fatalf("Y = %v, want 13 (ENTER duplicates X into Y)", sh.M.Stack.Y().Re.Float64())
	}
}

func TestKeyDownOperatorFlushesPendingEntryFirst(t *testing.T) {
	sh := New(newMachine())

	sh.KeyDown(6) // "5" -> X
	sh.KeyDown(12) // ENTER -> Y=5, X=5
	sh.KeyDown(4) // "3" -> pending entry
	if _, _, err := sh.KeyDown(17); err != nil { // "+"
		t.Fatalf("KeyDown(+): %v", err)
	}
	if sh.M.Stack.X().Re.Float64() != 8 {
		t.Fatalf("X = %v, want 8 (5+3)", sh.M.Stack.X().Re.Float64())
	}
}

func TestCopyRendersX(t *testing.T) {
	sh := New(newMachine())
	sh.KeyDown(6)  // "5"
	sh.KeyDown(12) // ENTER

	text, err := sh.Copy()
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if text != "5" {
		t.Fatalf("Copy = %q, want %q", text, "5")
	}
}

func TestPastePushesParsedNumber(t *testing.T) {
	sh := New(newMachine())
	if err := sh.Paste("3.5"); err != nil {
		t.Fatalf("Paste: %v", err)
	}
	if sh.M.Stack.X().Re.Float64() != 3.5 {
		t.Fatalf("X = %v, want 3.5", sh.M.Stack.X().Re.Float64())
	}
}

func TestPasteRejectsNonNumeric(t *testing.T) {
	sh := New(newMachine())
	if err := sh.Paste("not a number"); err == nil {
		t.Fatal("expected an error pasting non-numeric text")
	}
}

func TestRepeatReflectsHeldKey(t *testing.T) {
	sh := New(newMachine())
	sh.KeyDown(20) // "/" wants fast repeat
	if got := sh.Repeat(); got != RepeatFast {
		t.Fatalf("Repeat() = %d, want %d", got, RepeatFast)
	}
	sh.KeyUp()
	if got := sh.Repeat(); got != RepeatNone {
		t.Fatalf("Repeat() after KeyUp = %d, want %d", got, RepeatNone)
	}
}

func TestEachShellGetsAUniqueID(t *testing.T) {
	a := New(newMachine())
	b := New(newMachine())
	if a.ID == b.ID {
		t.Fatal("expected distinct shell IDs")
	}
}
