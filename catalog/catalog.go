// Package catalog builds and holds the in-memory index set derived from a
// schema: one physical index per declared primary key and secondary index,
// plus a synthetic row-id index per table whose cost the planner uses as
// the table's row count when ordering joins. It is the bridge between package schema's static metadata and
// package index's physical structures, consumed by both the planner (cost
// estimates, access-path selection) and the transaction runtime (index
// maintenance at commit).
package catalog

import (
	"github.com/ghchinoy/lovefield/index"
	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

// SecondaryIndex pairs a physical index with the declared column list it
// was built over, in declaration order (the order composite keys compare
// lexicographically by).
type SecondaryIndex struct {
	Name    string
	Columns []string
	Unique  bool
	Index   index.Index
}

// TableIndices holds every physical index maintained for one table.
type TableIndices struct {
	PrimaryColumns []string
	Primary        index.Index // nil if the table has no primary key
	Secondary      []SecondaryIndex
	RowIDs         *index.RowIdIndex
}

// ColumnIndex returns the best index over exactly the single column name,
// preferring the primary key, then a unique secondary, then any other
// secondary — the tie-break order SPEC_FULL §4.6 prescribes for physical
// choice. ok is false if no such index exists.
func (t *TableIndices) ColumnIndex(column string) (idx index.Index, columns []string, ok bool) {
	if len(t.PrimaryColumns) == 1 && t.PrimaryColumns[0] == column {
		return t.Primary, t.PrimaryColumns, true
	}
	var best *SecondaryIndex
	for i := range t.Secondary {
		s := &t.Secondary[i]
		if len(s.Columns) != 1 || s.Columns[0] != column {
			continue
		}
		if best == nil || (s.Unique && !best.Unique) {
			best = s
		}
	}
	if best == nil {
		return nil, nil, false
	}
	return best.Index, best.Columns, true
}

// IndexSet holds every table's TableIndices for one open database.
type IndexSet struct {
	tables map[string]*TableIndices
}

// New builds an empty IndexSet shaped by sc: one physical index per
// declared primary key and secondary index, ready to be filled by Add.
func New(sc *schema.Schema) *IndexSet {
	set := &IndexSet{tables: map[string]*TableIndices{}}
	for _, t := range sc.Tables() {
		ti := &TableIndices{RowIDs: index.NewRowIdIndex(t.Name + ".rowid")}
		if t.HasPrimaryKey() {
			ti.PrimaryColumns = t.PrimaryKey
			ti.Primary = index.NewOrdered(t.Name+".pk", true)
		}
		for _, si := range t.Indices {
			cols := make([]string, len(si.Columns))
			for i, c := range si.Columns {
				cols[i] = c.Column
			}
			var physical index.Index
			if si.Ordered {
				physical = index.NewOrdered(t.Name+"."+si.Name, si.Unique)
			} else {
				physical = index.NewHash(t.Name+"."+si.Name, si.Unique)
			}
			ti.Secondary = append(ti.Secondary, SecondaryIndex{
				Name: si.Name, Columns: cols, Unique: si.Unique, Index: physical,
			})
		}
		set.tables[t.Name] = ti
	}
	return set
}

// Table returns the index set for the named table.
func (s *IndexSet) Table(name string) (*TableIndices, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Add installs r's indices entries for a freshly loaded or inserted row.
// Errors surface a unique-index conflict; callers validate uniqueness
// before committing a batch so this should not fail in practice once
// commit-time validation (txn package) has run.
func Add(ti *TableIndices, r row.Row) error {
	ti.RowIDs.Add(key.Of(row.Integer(int64(r.ID()))), r.ID())
	if ti.Primary != nil {
		if err := ti.Primary.Add(key.Encode(ti.PrimaryColumns, r.Payload()), r.ID()); err != nil {
			return err
		}
	}
	for _, si := range ti.Secondary {
		if err := si.Index.Add(key.Encode(si.Columns, r.Payload()), r.ID()); err != nil {
			return err
		}
	}
	return nil
}

// Remove evicts every index entry recorded for r.
func Remove(ti *TableIndices, r row.Row) {
	id := r.ID()
	ti.RowIDs.Remove(key.Of(row.Integer(int64(id))), &id)
	if ti.Primary != nil {
		ti.Primary.Remove(key.Encode(ti.PrimaryColumns, r.Payload()), &id)
	}
	for _, si := range ti.Secondary {
		si.Index.Remove(key.Encode(si.Columns, r.Payload()), &id)
	}
}
