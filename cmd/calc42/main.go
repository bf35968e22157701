// cmd/calc42/main.go
package main

import (
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"calc42/internal/archive"
	"calc42/internal/core"
	"calc42/internal/persistence"
	"calc42/internal/remote"
	"calc42/internal/repl"
	"calc42/internal/session"
)

const Version = "1.0.0"

// commandAliases mirrors the teacher's single-letter shortcuts, trimmed to
// this CLI's four subcommands (repl/serve/export/import) from the
// teacher's full language-toolchain set (build/fmt/lint/test/...).
var commandAliases = map[string]string{
	"r": "repl",
	"s": "serve",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Println("calc42", Version)
		return
	}

	switch cmd {
	case "repl":
		repl.Run(os.Stdin, os.Stdout)
	case "serve":
		if err := serveCommand(args[1:]); err != nil {
			log.Fatalf("serve: %v", err)
		}
	case "export":
		if err := exportCommand(args[1:]); err != nil {
			log.Fatalf("export: %v", err)
		}
	case "import":
		if err := importCommand(args[1:]); err != nil {
			log.Fatalf("import: %v", err)
		}
	default:
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`calc42 — a programmable RPN scientific calculator engine

Usage:
  calc42 repl                      interactive line REPL
  calc42 serve <addr>               expose the shell API over websocket
  calc42 export <dsn> <name> <out>  write a named archive snapshot to a file
  calc42 import <dsn> <name> <in>   load a file into a named archive snapshot

Aliases: r=repl, s=serve`)
}

// serveCommand implements spec §4.12's "calc42 serve <addr>" mode: one
// shared core, any number of websocket clients, every shell-to-core entry
// point logged at debug level per spec §6's logging contract.
func serveCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: calc42 serve <addr>")
	}
	addr := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sh := session.New(core.NewMachine(false))
	srv := remote.NewServer(sh, logger)

	http.Handle("/", srv.Handler())
	logger.Info("calc42 serve listening", "addr", addr)
	return http.ListenAndServe(addr, nil)
}

// exportCommand saves the named archive snapshot in dsn to a plain file,
// i.e. "take a named snapshot out of the database and hand it to me as a
// single 24kF byte stream" (spec §4.11's archive sitting next to §4.10's
// single-file format).
func exportCommand(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: calc42 export <dsn> <name> <outfile>")
	}
	dsn, name, outPath := args[0], args[1], args[2]

	store, cerr := archive.Open(dsn)
	if cerr != nil {
		return cerr
	}
	defer store.Close()

	body, cerr := store.Load(name)
	if cerr != nil {
		return cerr
	}
	return os.WriteFile(outPath, body, 0o644)
}

// importCommand is exportCommand's inverse: read a 24kF byte stream from a
// file and save it into the named archive slot, validating the magic
// before it ever reaches the database.
func importCommand(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: calc42 import <dsn> <name> <infile>")
	}
	dsn, name, inPath := args[0], args[1], args[2]

	body, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	if len(body) < len(persistence.Magic) || string(body[:len(persistence.Magic)]) != persistence.Magic {
		return fmt.Errorf("%s does not look like a calc42 save file", inPath)
	}

	store, cerr := archive.Open(dsn)
	if cerr != nil {
		return cerr
	}
	defer store.Close()

	if cerr := store.SaveAs(name, body, fileStamp(inPath)); cerr != nil {
		return cerr
	}
	return nil
}

// fileStamp gives SaveAs a created_at timestamp derived from the import
// file's own mtime rather than the current wall clock, so importing the
// same export twice in a test is deterministic.
func fileStamp(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}
