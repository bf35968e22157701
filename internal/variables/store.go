// Package variables implements the ordered variable store of spec §3/§4:
// an ordered list of {name, length, scope_level, value, flags} entries,
// shadowed by call frame, with purge and catalog enumeration.
package variables

import "calc42/internal/value"

// EntryFlags are per-variable bits; only Private is specified.
type EntryFlags struct {
	Private bool
}

type Entry struct {
	Name       string
	ScopeLevel int
	Value      value.Value
	Flags      EntryFlags
}

// Store is the ordered, append-biased variable list. Order matters: newer
// entries at a given scope level shadow older ones, and catalog enumeration
// walks in store order.
type Store struct {
	entries []Entry
}

func New() *Store { return &Store{} }

// Lookup walks upward (most-recently-appended first) from scopeLevel for a
// matching, non-private name. scopeLevel == -1 means "search all levels".
func (s *Store) Lookup(name string, scopeLevel int) (value.Value, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Name != name {
			continue
		}
		if e.Flags.Private {
			continue
		}
		if scopeLevel != -1 && e.ScopeLevel > scopeLevel {
			continue
		}
		return e.Value, true
	}
	return value.Value{}, false
}

// Set writes v to the entry matching (name, scopeLevel), or appends a new
// one if none exists (spec §3: "Writes either update an existing entry of
// the same (name,level) or append a new one").
func (s *Store) Set(name string, scopeLevel int, v value.Value) {
	for i := range s.entries {
		if s.entries[i].Name == name && s.entries[i].ScopeLevel == scopeLevel {
			s.entries[i].Value = v
			return
		}
	}
	s.entries = append(s.entries, Entry{Name: name, ScopeLevel: scopeLevel, Value: v})
}

// SetPrivate marks the most recent entry for (name, scopeLevel) private,
// excluding it from normal recall (spec §3).
func (s *Store) SetPrivate(name string, scopeLevel int, private bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Name == name && s.entries[i].ScopeLevel == scopeLevel {
			s.entries[i].Flags.Private = private
			return
		}
	}
}

// Purge removes the entry, if any, for (name, scopeLevel). Creating a
// zero-size matrix purges the variable instead of storing it (spec §3);
// callers enforce that by calling Purge rather than Set.
func (s *Store) Purge(name string, scopeLevel int) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Name == name && s.entries[i].ScopeLevel == scopeLevel {
			s.entries[i].Value.Free()
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// PurgeScope drops every entry at or above level (a call frame returning).
func (s *Store) PurgeScope(level int) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ScopeLevel >= level {
			e.Value.Free()
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// Catalog enumerates visible (non-private) entries in store order, for
// catalog listing commands.
func (s *Store) Catalog() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.Flags.Private {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) Len() int { return len(s.entries) }

// All returns every entry, including private ones, in store order — unlike
// Catalog, for persistence (spec §4.10), which must reproduce the exact
// prior variable set rather than only what a catalog listing would show.
func (s *Store) All() []Entry { return append([]Entry{}, s.entries...) }

// Restore replaces the entire entry list, used when reloading a saved
// state (spec §8's save_state/init round-trip law).
func (s *Store) Restore(entries []Entry) { s.entries = append([]Entry{}, entries...) }
