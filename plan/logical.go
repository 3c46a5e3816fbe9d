// Package plan implements the logical query tree (§4.6): the nodes the
// query builder emits, the fixed, idempotent rewrite pass that simplifies
// and optimizes them, and the Compile step that turns a rewritten logical
// tree into a package exec physical operator tree.
package plan

import (
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/row"
)

// Node is one logical plan node. It carries no execution behavior of its
// own — Compile walks the tree and emits the matching exec.Node.
type Node interface {
	isLogical()
}

type base struct{}

func (base) isLogical() {}

// TableAccess is a logical leaf: read Table in full, unfiltered, unordered.
type TableAccess struct {
	base
	Table string
}

// Select filters Input by Pred. Consecutive Selects are combined into one
// conjunction by the rewrite pass (rule 2).
type Select struct {
	base
	Input Node
	Pred  *expr.Predicate
}

// ProjectColumn names one output column, optionally renamed via Alias.
type ProjectColumn struct {
	Table, Column string
	Alias         string
}

// Project reshapes Input down to Columns. Consecutive Projects are
// composed into one by the rewrite pass (rule 2).
type Project struct {
	base
	Input   Node
	Columns []ProjectColumn
}

// JoinType selects the logical join semantics; only Inner is implemented,
// matching §4.9's builder surface (InnerJoin).
type JoinType int

const (
	InnerJoin JoinType = iota
)

// Join combines Left and Right under Pred.
type Join struct {
	base
	Left, Right Node
	Type        JoinType
	Pred        *expr.Predicate
}

// GroupBy partitions Input's rows of Table by Columns. Columns may be
// empty, denoting a single implicit group (a scalar aggregation).
type GroupBy struct {
	base
	Input   Node
	Table   string
	Columns []string
}

// Aggregation applies Aggregates over Input, which is typically a GroupBy
// node (grouped aggregation) but may be any other node (scalar
// aggregation over the whole input).
type Aggregation struct {
	base
	Input      Node
	Table      string
	Aggregates []expr.Aggregate
}

// OrderBy stably sorts Input's rows by Keys.
type OrderBy struct {
	base
	Input Node
	Keys  []expr.OrderKey
}

// Skip discards the first N rows of Input.
type Skip struct {
	base
	Input Node
	N     int
}

// Limit retains at most N rows of Input, applied after Skip (§4.7).
type Limit struct {
	base
	Input Node
	N     int
}

// Union is the relational union of Inputs.
type Union struct {
	base
	Inputs []Node
}

// Intersect is the relational intersection of Inputs.
type Intersect struct {
	base
	Inputs []Node
}

// Except is Minuend's rows absent from Subtrahend.
type Except struct {
	base
	Minuend, Subtrahend Node
}

// InsertValues inserts Rows into Table. AllowReplace requests insert-or-
// replace semantics on primary-key conflict (§4.9); the query builder
// rejects it at Build time for a table without a primary key.
type InsertValues struct {
	base
	Table        string
	Rows         []row.Payload
	AllowReplace bool
}

// Update applies Assignments to every row of Input (typically a Select
// over a TableAccess) of Table.
type Update struct {
	base
	Input       Node
	Table       string
	Assignments []expr.Assignment
}

// Delete removes every row of Input (typically a Select over a
// TableAccess) of Table.
type Delete struct {
	base
	Input Node
	Table string
}

// empty is the logical empty-relation marker rewrite rule 6 substitutes
// for any operator whose input is known to produce nothing.
type empty struct{ base }

// Empty returns the logical empty-relation singleton.
func Empty() Node { return empty{} }

// IsEmpty reports whether n is the empty-relation marker.
func IsEmpty(n Node) bool {
	_, ok := n.(empty)
	return ok
}
