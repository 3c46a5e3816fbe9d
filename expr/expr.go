// Package expr implements the small predicate and expression language the
// query builder emits and the planner inspects: column/literal comparisons,
// boolean combinators, order keys, and aggregate function tags. Keeping
// this as a concrete, inspectable tree (rather than opaque closures) is
// what lets the planner pattern-match "column op literal" shapes for
// primary-key and index-scan substitution.
package expr

import (
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
)

// Op is a scalar comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op Op) String() string {
	switch op {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

func (op Op) eval(c int) bool {
	switch op {
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Gt:
		return c > 0
	case Ge:
		return c >= 0
	default:
		return false
	}
}

// kind tags which shape a Predicate node holds.
type kind int

const (
	cmpKind kind = iota
	colCmpKind
	andKind
	orKind
	notKind
	customKind
)

// Predicate is a boolean tree evaluated against one RelationEntry at a time.
// Cmp leaves carry enough structure (table, column, op, literal) for the
// planner's rewrite pass to recognize primary-key and range-scan shapes;
// ColCmp leaves compare two attributes against each other, the shape a
// join condition takes; Custom is an escape hatch for predicates the
// builder can't express as either, at the cost of being opaque to those
// rewrites.
type Predicate struct {
	kind kind

	table, column   string
	table2, column2 string
	op              Op
	literal         row.Value

	left, right *Predicate
	operand     *Predicate

	custom func(e relation.Entry) (bool, error)
}

// Column builds a leaf comparing the (table, column) attribute against a
// literal value. table may be "" for an unqualified, pre-join predicate.
func Column(table, column string, op Op, literal row.Value) *Predicate {
	return &Predicate{kind: cmpKind, table: table, column: column, op: op, literal: literal}
}

// ColumnCompare builds a leaf comparing two attributes against each
// other — the shape a join predicate takes, e.g. user.id = order.userId.
func ColumnCompare(table, column string, op Op, table2, column2 string) *Predicate {
	return &Predicate{kind: colCmpKind, table: table, column: column, op: op, table2: table2, column2: column2}
}

// And combines two predicates conjunctively.
func And(left, right *Predicate) *Predicate {
	return &Predicate{kind: andKind, left: left, right: right}
}

// Or combines two predicates disjunctively.
func Or(left, right *Predicate) *Predicate {
	return &Predicate{kind: orKind, left: left, right: right}
}

// Not negates a predicate.
func Not(operand *Predicate) *Predicate {
	return &Predicate{kind: notKind, operand: operand}
}

// True returns a predicate that holds for every entry, used as the join
// condition for a cross join (no connecting predicate found).
func True() *Predicate {
	return Custom(func(relation.Entry) (bool, error) { return true, nil })
}

// Custom wraps an arbitrary entry predicate the builder could not express
// as a comparison tree. The planner treats it as touching every table in
// scope, which disables pushdown/index rewrites for it specifically.
func Custom(f func(e relation.Entry) (bool, error)) *Predicate {
	return &Predicate{kind: customKind, custom: f}
}

// Eval applies the predicate to one entry.
func (p *Predicate) Eval(e relation.Entry) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch p.kind {
	case cmpKind:
		v, ok := e.Get(p.table, p.column)
		if !ok {
			return false, nil
		}
		if v.IsNull() || p.literal.IsNull() {
			return p.op == Ne, nil // NULL compares false to everything except "!=", which holds
		}
		return p.op.eval(v.Compare(p.literal)), nil
	case colCmpKind:
		a, aok := e.Get(p.table, p.column)
		b, bok := e.Get(p.table2, p.column2)
		if !aok || !bok {
			return false, nil
		}
		if a.IsNull() || b.IsNull() {
			return p.op == Ne, nil
		}
		return p.op.eval(a.Compare(b)), nil
	case andKind:
		l, err := p.left.Eval(e)
		if err != nil || !l {
			return false, err
		}
		return p.right.Eval(e)
	case orKind:
		l, err := p.left.Eval(e)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return p.right.Eval(e)
	case notKind:
		v, err := p.operand.Eval(e)
		return !v, err
	case customKind:
		return p.custom(e)
	default:
		return false, lferrors.New(lferrors.UNKNOWN, "expr: unhandled predicate kind %d", p.kind)
	}
}

// IsCmp reports whether p is a single column-op-literal comparison, and
// returns its parts. Used by the planner's PrimaryKeyLookup/IndexScan
// rewrites (SPEC_FULL §4.6 rules 4-5).
func (p *Predicate) IsCmp() (table, column string, op Op, literal row.Value, ok bool) {
	if p == nil || p.kind != cmpKind {
		return "", "", 0, row.Value{}, false
	}
	return p.table, p.column, p.op, p.literal, true
}

// IsColumnCmp reports whether p compares two attributes against each
// other (a join-condition shape), and returns its parts. Used by the
// planner's hash-join substitution (§4.7).
func (p *Predicate) IsColumnCmp() (table, column string, op Op, table2, column2 string, ok bool) {
	if p == nil || p.kind != colCmpKind {
		return "", "", 0, "", "", false
	}
	return p.table, p.column, p.op, p.table2, p.column2, true
}

// Conjuncts flattens a tree of And nodes into its leaf conjuncts, the shape
// rule 2 (combine stacked Select) and rules 4/5 (per-column range detection)
// both need.
func (p *Predicate) Conjuncts() []*Predicate {
	if p == nil {
		return nil
	}
	if p.kind != andKind {
		return []*Predicate{p}
	}
	return append(p.left.Conjuncts(), p.right.Conjuncts()...)
}

// FreeTables returns the set of source tables p's comparisons reference.
// A Custom predicate conservatively reports every table in scope since its
// body is opaque.
func (p *Predicate) FreeTables(scope []string) map[string]bool {
	out := map[string]bool{}
	p.collectTables(scope, out)
	return out
}

func (p *Predicate) collectTables(scope []string, out map[string]bool) {
	if p == nil {
		return
	}
	switch p.kind {
	case cmpKind:
		if p.table != "" {
			out[p.table] = true
		}
	case colCmpKind:
		if p.table != "" {
			out[p.table] = true
		}
		if p.table2 != "" {
			out[p.table2] = true
		}
	case andKind, orKind:
		p.left.collectTables(scope, out)
		p.right.collectTables(scope, out)
	case notKind:
		p.operand.collectTables(scope, out)
	case customKind:
		for _, t := range scope {
			out[t] = true
		}
	}
}

// Dir selects ascending or descending order for one OrderBy key.
type Dir int

const (
	Asc Dir = iota
	Desc
)

// OrderKey is one (column, direction) pair of an ORDER BY clause.
type OrderKey struct {
	Table, Column string
	Dir           Dir
}

// AggFunc names a supported aggregate function (SPEC_FULL §4.7).
type AggFunc int

const (
	Count AggFunc = iota
	Sum
	Avg
	Min
	Max
	Distinct
	Stddev
	Geomean
)

// Aggregate applies AggFunc over the named column, optionally aliased in
// the output relation.
type Aggregate struct {
	Func   AggFunc
	Table  string
	Column string
	Alias  string
}

// Assignment is one column := value pair of an UPDATE clause.
type Assignment struct {
	Column string
	Value  row.Value
}
