// Package schema models the engine's table/column/constraint metadata: the
// immutable object the builder and planner consume, and the loader that
// turns a declarative YAML document (§6) into one.
package schema

import (
	"github.com/ghchinoy/lovefield/row"
)

// ColumnType is the declared type vocabulary for a column.
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeNumber
	TypeString
	TypeBoolean
	TypeDatetime
	TypeBytes
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeDatetime:
		return "datetime"
	case TypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Matches reports whether v's dynamic Kind is compatible with t (a null
// value always matches, regardless of t; callers enforce nullable
// separately).
func (t ColumnType) Matches(v row.Value) bool {
	if v.IsNull() {
		return true
	}
	switch t {
	case TypeInteger:
		return v.Kind == row.KindInteger
	case TypeNumber:
		return v.Kind == row.KindNumber || v.Kind == row.KindInteger
	case TypeString:
		return v.Kind == row.KindString
	case TypeBoolean:
		return v.Kind == row.KindBoolean
	case TypeDatetime:
		return v.Kind == row.KindDatetime
	case TypeBytes:
		return v.Kind == row.KindBytes
	default:
		return false
	}
}

// Column describes one declared column of a Table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Alias    string // optional, set by the query builder's Project step
}

// IndexColumn is one column participating in an Index, in declaration
// order (composite indices compare lexicographically by this order).
type IndexColumn struct {
	Column string
}

// Index describes one secondary index declared on a Table.
type Index struct {
	Name    string
	Columns []IndexColumn
	Unique  bool
	// Ordered selects a range-capable (B+-tree-like) physical shape over
	// a hash shape; non-unique indices are always Ordered so the planner
	// can serve range predicates from them.
	Ordered bool
}

// ForeignKey constrains LocalColumns of the owning Table to reference
// existing rows of RemoteTable's RemoteColumns.
type ForeignKey struct {
	Name          string
	LocalColumns  []string
	RemoteTable   string
	RemoteColumns []string
}

// Table describes one table's full schema: its columns, primary key,
// secondary indices, and foreign keys.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string // column names, empty if the table has none
	Indices     []Index
	ForeignKeys []ForeignKey
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// HasPrimaryKey reports whether the table declares a primary key.
func (t *Table) HasPrimaryKey() bool { return len(t.PrimaryKey) > 0 }

// Schema is the immutable, fully validated collection of tables. It never
// changes after Load succeeds; version upgrades are out of scope
// (§3).
type Schema struct {
	Name    string
	Version int
	tables  map[string]*Table
	order   []string // table names sorted by name, for deterministic iteration
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Tables returns all tables sorted by name; the schema document's own
// table order is not kept.
func (s *Schema) Tables() []*Table {
	out := make([]*Table, len(s.order))
	for i, name := range s.order {
		out[i] = s.tables[name]
	}
	return out
}

// LoadOrder returns table names in an order where, whenever possible, a
// table referenced by a foreign key precedes the table declaring it — the
// deterministic order package store warms caches/indices in at Open. It
// is not a correctness requirement (foreign keys may cycle, §9) purely a
// tie-break for reproducible warm-up logs.
func (s *Schema) LoadOrder() []string {
	deps := make(map[string][]string, len(s.order))
	for _, name := range s.order {
		t := s.tables[name]
		for _, fk := range t.ForeignKeys {
			deps[name] = append(deps[name], fk.RemoteTable)
		}
	}
	return topologicalSort(s.order, deps, func(name string) string { return name })
}
