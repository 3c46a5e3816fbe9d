package query

import (
	"context"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/plan"
	"github.com/ghchinoy/lovefield/relation"
)

// DeleteBuilder assembles a DELETE FROM query.
type DeleteBuilder struct {
	db    *lovefield.Database
	table string

	pred *expr.Predicate
	err  error
}

// DeleteFrom starts a DELETE query against table.
func DeleteFrom(db *lovefield.Database, table string) *DeleteBuilder {
	return &DeleteBuilder{db: db, table: table}
}

// Where restricts which rows are deleted. Repeated calls conjoin their
// predicates. Omitting Where deletes every row of the table.
func (b *DeleteBuilder) Where(pred *expr.Predicate) *DeleteBuilder {
	if b.pred == nil {
		b.pred = pred
	} else {
		b.pred = expr.And(b.pred, pred)
	}
	return b
}

// Build assembles the logical plan node for this delete.
func (b *DeleteBuilder) Build() (plan.Node, []string, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	var input plan.Node = plan.TableAccess{Table: b.table}
	if b.pred != nil {
		input = plan.Select{Input: input, Pred: b.pred}
	}
	return plan.Delete{Input: input, Table: b.table}, []string{b.table}, nil
}

// Exec runs the delete as a single-statement, write transaction.
func (b *DeleteBuilder) Exec(ctx context.Context) (relation.Relation, error) {
	node, tables, err := b.Build()
	if err != nil {
		return relation.Relation{}, err
	}
	return runSingle(ctx, b.db, node, tables, true)
}
