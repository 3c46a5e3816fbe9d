package exec

import (
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
)

// InsertValues records a journal insert for each of Rows into Table and
// returns the inserted rows as a relation. Row ids are allocated from
// scope.NextRowID, matching package txn's per-table high-water mark. When
// AllowReplace is set, a row whose primary key matches an already-committed
// row is journaled as an update against that row's existing id instead of a
// fresh insert (package query's builder rejects AllowReplace on a table
// without a primary key before this ever runs).
type InsertValues struct {
	Table        string
	Rows         []row.Payload
	AllowReplace bool
}

func (n InsertValues) Execute(scope Scope) (relation.Relation, error) {
	ti, hasIndices := scope.Indices(n.Table)
	var existing map[row.Id]row.Payload
	if n.AllowReplace && hasIndices && ti.Primary != nil {
		rows, err := scope.ReadTable(n.Table)
		if err != nil {
			return relation.Relation{}, err
		}
		existing = make(map[row.Id]row.Payload, len(rows))
		for _, r := range rows {
			existing[r.ID()] = r.Payload()
		}
	}

	rows := make([]row.Row, 0, len(n.Rows))
	for _, payload := range n.Rows {
		id, before := n.matchExisting(ti, existing, payload)
		if before == nil {
			id = scope.NextRowID(n.Table)
		}
		if err := scope.Mutate(n.Table, id, before, payload); err != nil {
			return relation.Relation{}, err
		}
		rows = append(rows, row.New(id, payload))
	}
	return relation.FromRows(scope.Gen(), n.Table, rows), nil
}

// matchExisting looks up payload's primary-key value against ti's primary
// index; if a committed row already holds that key, its id and payload are
// returned so the caller journals a replace rather than a fresh insert.
func (n InsertValues) matchExisting(ti *catalog.TableIndices, existing map[row.Id]row.Payload, payload row.Payload) (row.Id, row.Payload) {
	if !n.AllowReplace || ti == nil || ti.Primary == nil {
		return 0, nil
	}
	k := key.Encode(ti.PrimaryColumns, payload)
	for _, id := range ti.Primary.Get(k) {
		if before, ok := existing[id]; ok {
			return id, before
		}
	}
	return 0, nil
}

// Update applies Assignments to every row of Input (typically a Filter
// over a FullTableScan/IndexScan) and journals the resulting mutation,
// returning the post-update rows.
type Update struct {
	Input       Node
	Table       string
	Assignments []expr.Assignment
}

func (n Update) Execute(scope Scope) (relation.Relation, error) {
	in, err := n.Input.Execute(scope)
	if err != nil {
		return relation.Relation{}, err
	}
	var out []row.Row
	for _, e := range in.Entries() {
		before := e.Row()
		after := before.Payload().Clone()
		for _, a := range n.Assignments {
			after[a.Column] = a.Value
		}
		if err := scope.Mutate(n.Table, before.ID(), before.Payload(), after); err != nil {
			return relation.Relation{}, err
		}
		out = append(out, row.New(before.ID(), after))
	}
	return relation.FromRows(scope.Gen(), n.Table, out), nil
}

// Delete journals a delete for every row of Input and returns the deleted
// rows (their pre-delete payloads), matching the builder's convention of
// returning affected rows from every Exec call.
type Delete struct {
	Input Node
	Table string
}

func (n Delete) Execute(scope Scope) (relation.Relation, error) {
	in, err := n.Input.Execute(scope)
	if err != nil {
		return relation.Relation{}, err
	}
	var out []row.Row
	for _, e := range in.Entries() {
		r := e.Row()
		if err := scope.Mutate(n.Table, r.ID(), r.Payload(), nil); err != nil {
			return relation.Relation{}, err
		}
		out = append(out, r)
	}
	return relation.FromRows(scope.Gen(), n.Table, out), nil
}

// setOp is the shared shape of Union/Intersect/Except: evaluate every
// input child, then combine via package relation's set-law implementation.
type setOp struct {
	inputs []Node
	combine func([]relation.Relation) (relation.Relation, error)
}

func (n setOp) Execute(scope Scope) (relation.Relation, error) {
	rels := make([]relation.Relation, len(n.inputs))
	for i, in := range n.inputs {
		r, err := in.Execute(scope)
		if err != nil {
			return relation.Relation{}, err
		}
		rels[i] = r
	}
	return n.combine(rels)
}

// Union returns the relational union (deduped by entry id) of inputs.
func Union(inputs []Node) Node {
	return setOp{inputs: inputs, combine: relation.Union}
}

// Intersect returns the relational intersection of inputs.
func Intersect(inputs []Node) Node {
	return setOp{inputs: inputs, combine: relation.Intersect}
}

// Except returns minuend's rows absent from subtrahend.
func Except(minuend, subtrahend Node) Node {
	return setOp{inputs: []Node{minuend, subtrahend}, combine: func(rels []relation.Relation) (relation.Relation, error) {
		if len(rels) != 2 {
			return relation.Relation{}, lferrors.New(lferrors.UNKNOWN, "exec: except requires exactly two inputs")
		}
		return relation.Except(rels[0], rels[1])
	}}
}
