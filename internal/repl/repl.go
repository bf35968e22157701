// Package repl implements the line-oriented terminal driver of spec §6:
// each input line is tokenized into a sequence of key events fed to the
// core one at a time, the same "one event in, the display updates" loop
// the original's platform shells ran, minus the bitmap rendering (spec
// §1's Non-goals).
//
// Grounded on the teacher's internal/repl/repl.go (bufio.Scanner read
// loop, ">>> " prompt, "exit" to quit, a fresh interpreter state per
// session) — adapted from "parse and run a whole source line as a
// program" to "translate each token into a keydown/keyup pair and drive
// the shared Shell", since this REPL has no language to parse, only key
// events.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"calc42/internal/core"
	"calc42/internal/session"
)

// tokenKeys maps a REPL token (typed by name, since a terminal has no
// physical keypad) to the key code session.Shell expects.
var tokenKeys = map[string]int{
	"ENTER": 12, "CHS": 13, "CLX": 14, "RDN": 15, "LASTX": 16,
	"+": 17, "-": 18, "*": 19, "/": 20, "X2": 21, "SIGN": 22, "ABS": 23,
	"COMPLEX": 24, "R": 25, "P": 26,
}

// Run starts the REPL over a fresh Machine, reading lines from in and
// writing prompts/output to out. stdin/stdout are the caller's usual
// choice; a non-interactive pipe is accepted the same way the teacher's
// scanner.Scan() loop accepted one (it just sees EOF sooner).
func Run(in io.Reader, out io.Writer) {
	prompt := isatty.IsTerminal(os.Stdin.Fd())

	sh := session.New(core.NewMachine(false))
	scanner := bufio.NewScanner(in)

	for {
		if prompt {
			fmt.Fprint(out, ">>> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}
		if line == "MEM" {
			fmt.Fprintln(out, humanize.Bytes(uint64(sh.M.GetMem())))
			continue
		}

		for _, tok := range strings.Fields(line) {
			if err := feed(sh, tok); err != nil {
				fmt.Fprintln(out, "error:", err)
				break
			}
		}
		fmt.Fprintln(out, render(sh))
	}
}

// feed turns one token into a key event: a bare number is pasted straight
// into X via Shell.Paste (nothing stays pending); a named token looks up
// tokenKeys and is dispatched as that key's KeyDown.
func feed(sh *session.Shell, tok string) error {
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return sh.Paste(tok)
	}
	key, ok := tokenKeys[strings.ToUpper(tok)]
	if !ok {
		return fmt.Errorf("unrecognized token %q", tok)
	}
	_, _, cerr := sh.KeyDown(key)
	if cerr != nil {
		return cerr
	}
	return nil
}

func render(sh *session.Shell) string {
	text, err := sh.Copy()
	if err != nil {
		return "error: " + err.Error()
	}
	return text
}
