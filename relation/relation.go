// Package relation implements the Relation/RelationEntry value model that
// flows between physical operators: an ordered, immutable tuple stream
// plus the set of source tables its attributes are addressed against.
package relation

import (
	"sort"

	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/row"
)

// Field addresses one attribute, optionally qualified by its source table.
type Field struct {
	Table  string // empty when not prefix-applied
	Column string
}

// IdGen allocates process-unique, strictly increasing entry ids. Each
// Environment (see package lovefield) owns one, so ids are unique per open
// database rather than globally across a process, matching this rework's
// per-instance replacement for the original's process-wide counter.
type IdGen struct {
	next int64
}

func (g *IdGen) Next() int64 {
	g.next++
	return g.next
}

// Entry wraps one row plus a dedup id and a prefixApplied flag. When
// prefixApplied, Payload is keyed by "table\x00column"; otherwise by
// "column". Aliases bypass both and are stored under the bare alias name,
// consulted before any prefixed lookup.
type Entry struct {
	entryID       int64
	row           row.Row
	prefixApplied bool
	payload       row.Payload // keys: alias, "column", or "table\x00column"
	aliases       map[string]bool
}

func fieldKey(table, column string) string {
	if table == "" {
		return column
	}
	return table + "\x00" + column
}

// FromRow wraps a single row into an Entry sourced from exactly one table.
func FromRow(gen *IdGen, table string, r row.Row) Entry {
	payload := make(row.Payload, len(r.Payload()))
	for col, v := range r.Payload() {
		payload[col] = v
	}
	return Entry{
		entryID:       gen.Next(),
		row:           r,
		prefixApplied: false,
		payload:       payload,
	}
}

// EntryID returns the process-unique id used to dedupe across set
// operations.
func (e Entry) EntryID() int64 { return e.entryID }

// Row returns the underlying row (only meaningful when the entry wraps a
// single, non-combined row; combined entries carry row.DummyId).
func (e Entry) Row() row.Row { return e.row }

func (e Entry) PrefixApplied() bool { return e.prefixApplied }

// Get resolves an attribute. If an alias was set for column, it is
// consulted first (a flat slot, ignoring table); otherwise lookup is by
// (table, column) when prefixApplied, or by bare column name otherwise.
func (e Entry) Get(table, column string) (row.Value, bool) {
	if e.aliases != nil && e.aliases[column] {
		v, ok := e.payload[column]
		return v, ok
	}
	if e.prefixApplied {
		v, ok := e.payload[fieldKey(table, column)]
		return v, ok
	}
	v, ok := e.payload[column]
	return v, ok
}

// SetAlias writes value to a flat slot keyed by alias, which subsequent
// Get(_, alias) calls will find ahead of any table-prefixed slot.
func (e Entry) SetAlias(alias string, v row.Value) Entry {
	out := e.clone()
	out.payload[alias] = v
	if out.aliases == nil {
		out.aliases = map[string]bool{}
	}
	out.aliases[alias] = true
	return out
}

func (e Entry) clone() Entry {
	payload := make(row.Payload, len(e.payload))
	for k, v := range e.payload {
		payload[k] = v
	}
	var aliases map[string]bool
	if e.aliases != nil {
		aliases = make(map[string]bool, len(e.aliases))
		for k, v := range e.aliases {
			aliases[k] = v
		}
	}
	return Entry{
		entryID:       e.entryID,
		row:           e.row,
		prefixApplied: e.prefixApplied,
		payload:       payload,
		aliases:       aliases,
	}
}

// CombineEntries produces a prefix-applied entry carrying both sides'
// attributes, used by join operators. When a side is already
// prefix-applied its existing (table, column) slots are copied verbatim;
// otherwise its payload is re-keyed under its single source table name.
func CombineEntries(gen *IdGen, left Entry, leftTables []string, right Entry, rightTables []string) Entry {
	payload := make(row.Payload, len(left.payload)+len(right.payload))
	copySide := func(e Entry, tables []string) {
		if e.prefixApplied {
			for k, v := range e.payload {
				payload[k] = v
			}
			return
		}
		table := ""
		if len(tables) == 1 {
			table = tables[0]
		}
		for col, v := range e.payload {
			payload[fieldKey(table, col)] = v
		}
	}
	copySide(left, leftTables)
	copySide(right, rightTables)

	aliases := map[string]bool{}
	for k := range left.aliases {
		aliases[k] = true
	}
	for k := range right.aliases {
		aliases[k] = true
	}
	if len(aliases) == 0 {
		aliases = nil
	}

	return Entry{
		entryID:       gen.Next(),
		row:           row.New(row.DummyId, nil),
		prefixApplied: true,
		payload:       payload,
		aliases:       aliases,
	}
}

// Relation is an ordered sequence of Entry plus the set of source tables.
// It is immutable after construction.
type Relation struct {
	entries []Entry
	tables  map[string]bool
}

var empty = Relation{tables: map[string]bool{}}

// Empty returns the shared empty relation singleton.
func Empty() Relation { return empty }

// New builds a Relation from entries and an explicit table set.
func New(entries []Entry, tables []string) Relation {
	set := make(map[string]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return Relation{entries: entries, tables: set}
}

// FromRows wraps rows into fresh entries, all sourced from a single table
// (the common case for a table-access leaf operator).
func FromRows(gen *IdGen, table string, rows []row.Row) Relation {
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = FromRow(gen, table, r)
	}
	return New(entries, []string{table})
}

func (r Relation) Entries() []Entry { return r.entries }
func (r Relation) Len() int         { return len(r.entries) }

// Tables returns the relation's source-table set, sorted for determinism.
func (r Relation) Tables() []string {
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r Relation) hasTables(tables map[string]bool) bool {
	if len(tables) != len(r.tables) {
		return false
	}
	for t := range tables {
		if !r.tables[t] {
			return false
		}
	}
	return true
}

// IsCompatible reports whether r and other share an identical source-table
// set, the precondition for Union/Intersect.
func (r Relation) IsCompatible(other Relation) bool {
	return r.hasTables(other.tables)
}

// Union returns the shared empty singleton for no inputs; otherwise the
// entries of all inputs deduped by entry id, in first-seen order. All
// inputs must be pairwise compatible with the first.
func Union(relations []Relation) (Relation, error) {
	if len(relations) == 0 {
		return Empty(), nil
	}
	first := relations[0]
	var out []Entry
	seen := map[int64]bool{}
	for _, r := range relations {
		if !first.IsCompatible(r) {
			return Relation{}, lferrors.New(lferrors.SCOPE, "union requires identical source-table sets")
		}
		for _, e := range r.entries {
			if !seen[e.entryID] {
				seen[e.entryID] = true
				out = append(out, e)
			}
		}
	}
	return New(out, first.Tables()), nil
}

// Intersect returns the shared empty singleton for no inputs; otherwise
// entries whose id is present in every input, in the order they appear in
// the first input. All inputs must be pairwise compatible with the first.
func Intersect(relations []Relation) (Relation, error) {
	if len(relations) == 0 {
		return Empty(), nil
	}
	first := relations[0]
	counts := map[int64]int{}
	byID := map[int64]Entry{}
	for _, r := range relations {
		if !first.IsCompatible(r) {
			return Relation{}, lferrors.New(lferrors.SCOPE, "intersect requires identical source-table sets")
		}
		present := map[int64]bool{}
		for _, e := range r.entries {
			if !present[e.entryID] {
				present[e.entryID] = true
				counts[e.entryID]++
				byID[e.entryID] = e
			}
		}
	}
	var out []Entry
	for _, e := range first.entries {
		if counts[e.entryID] == len(relations) {
			out = append(out, e)
			delete(counts, e.entryID) // avoid duplicate emission on repeats within first
		}
	}
	return New(out, first.Tables()), nil
}

// Except returns entries of minuend whose id does not occur in
// subtrahend. Both must be compatible.
func Except(minuend, subtrahend Relation) (Relation, error) {
	if !minuend.IsCompatible(subtrahend) {
		return Relation{}, lferrors.New(lferrors.SCOPE, "except requires identical source-table sets")
	}
	exclude := map[int64]bool{}
	for _, e := range subtrahend.entries {
		exclude[e.entryID] = true
	}
	var out []Entry
	for _, e := range minuend.entries {
		if !exclude[e.entryID] {
			out = append(out, e)
		}
	}
	return New(out, minuend.Tables()), nil
}
