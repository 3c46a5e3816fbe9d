package query

import (
	"context"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/plan"
	"github.com/ghchinoy/lovefield/relation"
)

type joinClause struct {
	table string
	pred  *expr.Predicate
}

// SelectBuilder assembles a SELECT query. Zero value is not usable;
// construct with Select.
type SelectBuilder struct {
	db      *lovefield.Database
	columns []ColumnRef

	table   string
	fromSet bool

	pred *expr.Predicate

	joins []joinClause

	groupTable string
	groupCols  []string
	groupSet   bool
	aggs       []expr.Aggregate

	order    []expr.OrderKey
	orderSet bool

	skipN   int
	skipSet bool

	limitN   int
	limitSet bool

	err error
}

// Select starts a SELECT query against db, projecting columns. An empty
// columns list selects every attribute in scope, unprojected.
func Select(db *lovefield.Database, columns ...ColumnRef) *SelectBuilder {
	return &SelectBuilder{db: db, columns: columns}
}

// From names the query's base table. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) From(table string) *SelectBuilder {
	if b.fromSet {
		b.err = syntaxErr("query: From already set")
		return b
	}
	b.table = table
	b.fromSet = true
	return b
}

// Where filters rows by pred. Repeated calls conjoin their predicates.
func (b *SelectBuilder) Where(pred *expr.Predicate) *SelectBuilder {
	if b.pred == nil {
		b.pred = pred
	} else {
		b.pred = expr.And(b.pred, pred)
	}
	return b
}

// InnerJoin adds an inner join against table under pred. Joins apply in
// the order added, left-deep.
func (b *SelectBuilder) InnerJoin(table string, pred *expr.Predicate) *SelectBuilder {
	b.joins = append(b.joins, joinClause{table: table, pred: pred})
	return b
}

// GroupBy partitions the result by columns of table. Calling it twice is
// a SYNTAX error.
func (b *SelectBuilder) GroupBy(table string, columns ...string) *SelectBuilder {
	if b.groupSet {
		b.err = syntaxErr("query: GroupBy already set")
		return b
	}
	b.groupTable, b.groupCols, b.groupSet = table, columns, true
	return b
}

// Aggregate appends one aggregate function to the result, valid with or
// without a preceding GroupBy (a scalar aggregation with no GroupBy
// produces a single output row).
func (b *SelectBuilder) Aggregate(agg expr.Aggregate) *SelectBuilder {
	b.aggs = append(b.aggs, agg)
	return b
}

// OrderBy sorts the result by keys. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) OrderBy(keys ...expr.OrderKey) *SelectBuilder {
	if b.orderSet {
		b.err = syntaxErr("query: OrderBy already set")
		return b
	}
	b.order, b.orderSet = keys, true
	return b
}

// Skip discards the first n rows, applied before Limit (§4.7). Calling it
// twice is a SYNTAX error.
func (b *SelectBuilder) Skip(n int) *SelectBuilder {
	if b.skipSet {
		b.err = syntaxErr("query: Skip already set")
		return b
	}
	b.skipN, b.skipSet = n, true
	return b
}

// Limit retains at most n rows. Calling it twice is a SYNTAX error.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	if b.limitSet {
		b.err = syntaxErr("query: Limit already set")
		return b
	}
	b.limitN, b.limitSet = n, true
	return b
}

// Build assembles the logical plan node for this query, along with the
// set of tables it reads (used by the transaction runtime to acquire
// read locks). It does not execute anything.
func (b *SelectBuilder) Build() (plan.Node, []string, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	if !b.fromSet {
		return nil, nil, syntaxErr("query: Select requires From")
	}

	var node plan.Node = plan.TableAccess{Table: b.table}
	tables := []string{b.table}
	for _, j := range b.joins {
		node = plan.Join{Left: node, Right: plan.TableAccess{Table: j.table}, Type: plan.InnerJoin, Pred: j.pred}
		tables = append(tables, j.table)
	}
	if b.pred != nil {
		node = plan.Select{Input: node, Pred: b.pred}
	}
	if b.groupSet || len(b.aggs) > 0 {
		groupTable := b.groupTable
		if groupTable == "" {
			groupTable = b.table
		}
		if b.groupSet {
			node = plan.GroupBy{Input: node, Table: groupTable, Columns: b.groupCols}
		}
		if len(b.aggs) > 0 {
			node = plan.Aggregation{Input: node, Table: groupTable, Aggregates: b.aggs}
		}
	}
	if len(b.columns) > 0 {
		node = plan.Project{Input: node, Columns: toProjectColumns(b.columns)}
	}
	if b.orderSet {
		node = plan.OrderBy{Input: node, Keys: b.order}
	}
	if b.skipSet {
		node = plan.Skip{Input: node, N: b.skipN}
	}
	if b.limitSet {
		node = plan.Limit{Input: node, N: b.limitN}
	}
	return node, tables, nil
}

// Exec runs the query as a single-statement, read-only transaction.
func (b *SelectBuilder) Exec(ctx context.Context) (relation.Relation, error) {
	node, tables, err := b.Build()
	if err != nil {
		return relation.Relation{}, err
	}
	return runSingle(ctx, b.db, node, tables, false)
}
