package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommandAliasesResolve(t *testing.T) {
	cases := map[string]string{"r": "repl", "s": "serve"}
	for alias, want := range cases {
		if got := commandAliases[alias]; got != want {
			t.Errorf("commandAliases[%q] = %q, want %q", alias, got, want)
		}
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dsn := "sqlite://" + filepath.Join(dir, "archive.db")

	in := filepath.Join(dir, "snapshot.24kf")
	body := []byte("24kF" + "fake-save-body")
	if err := os.WriteFile(in, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := importCommand([]string{dsn, "mysession", in}); err != nil {
		t.Fatalf("importCommand: %v", err)
	}

	out := filepath.Join(dir, "roundtrip.24kf")
	if err := exportCommand([]string{dsn, "mysession", out}); err != nil {
		t.Fatalf("exportCommand: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("round-tripped body = %q, want %q", got, body)
	}
}

func TestImportRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	dsn := "sqlite://" + filepath.Join(dir, "archive.db")

	in := filepath.Join(dir, "bad.24kf")
	if err := os.WriteFile(in, []byte("not a save file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := importCommand([]string{dsn, "x", in}); err == nil {
		t.Fatal("expected an error importing a non-24kF file")
	}
}
