package query

import (
	"context"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/plan"
	"github.com/ghchinoy/lovefield/relation"
)

// UpdateBuilder assembles an UPDATE query.
type UpdateBuilder struct {
	db    *lovefield.Database
	table string

	assignments []Assignment
	pred        *expr.Predicate

	err error
}

// Update starts an UPDATE query against table.
func Update(db *lovefield.Database, table string) *UpdateBuilder {
	return &UpdateBuilder{db: db, table: table}
}

// Set appends one column assignment. Repeated calls accumulate.
func (b *UpdateBuilder) Set(assignments ...Assignment) *UpdateBuilder {
	b.assignments = append(b.assignments, assignments...)
	return b
}

// Where restricts which rows are updated. Repeated calls conjoin their
// predicates. Omitting Where updates every row of the table.
func (b *UpdateBuilder) Where(pred *expr.Predicate) *UpdateBuilder {
	if b.pred == nil {
		b.pred = pred
	} else {
		b.pred = expr.And(b.pred, pred)
	}
	return b
}

// Build assembles the logical plan node for this update.
func (b *UpdateBuilder) Build() (plan.Node, []string, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	if len(b.assignments) == 0 {
		return nil, nil, syntaxErr("query: Update requires at least one Set")
	}
	var input plan.Node = plan.TableAccess{Table: b.table}
	if b.pred != nil {
		input = plan.Select{Input: input, Pred: b.pred}
	}
	return plan.Update{Input: input, Table: b.table, Assignments: b.assignments}, []string{b.table}, nil
}

// Exec runs the update as a single-statement, write transaction.
func (b *UpdateBuilder) Exec(ctx context.Context) (relation.Relation, error) {
	node, tables, err := b.Build()
	if err != nil {
		return relation.Relation{}, err
	}
	return runSingle(ctx, b.db, node, tables, true)
}
