// Package query is the typed builder-style façade (§4.9): fluent
// Select/InsertInto/Update/DeleteFrom calls that assemble a package plan
// logical tree, check clause legality as they go, and run it through a
// single-statement transaction on Exec.
package query

import (
	"context"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/plan"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/txn"
)

// ColumnRef names one column a Select projects, optionally table-qualified
// and renamed via Alias.
type ColumnRef struct {
	Table, Column, Alias string
}

// Col references a table-qualified column in a Select's column list.
func Col(table, column string) ColumnRef { return ColumnRef{Table: table, Column: column} }

// ColAs references a table-qualified column under an output alias.
func ColAs(table, column, alias string) ColumnRef {
	return ColumnRef{Table: table, Column: column, Alias: alias}
}

func toProjectColumns(cols []ColumnRef) []plan.ProjectColumn {
	out := make([]plan.ProjectColumn, len(cols))
	for i, c := range cols {
		out[i] = plan.ProjectColumn{Table: c.Table, Column: c.Column, Alias: c.Alias}
	}
	return out
}

// runSingle executes one logical node as its own single-statement
// transaction: rewrite, compile, then a one-query txn.Exec batch. This is
// the convenience path every builder's Exec uses; a caller that needs
// several statements to commit atomically together instead builds each
// with Build and batches them itself via db.NewTransaction.
func runSingle(ctx context.Context, db *lovefield.Database, node plan.Node, tables []string, write bool) (relation.Relation, error) {
	env := db.Environment()
	idx := env.Indices()
	compiled, err := plan.Compile(plan.Rewrite(node, idx), idx)
	if err != nil {
		return relation.Relation{}, err
	}
	tx, err := db.NewTransaction(ctx)
	if err != nil {
		return relation.Relation{}, err
	}
	results, err := tx.Exec(ctx, []txn.Query{{Plan: compiled, Tables: tables, Write: write}})
	if err != nil {
		return relation.Relation{}, err
	}
	if len(results) == 0 {
		return relation.Empty(), nil
	}
	return results[0], nil
}

func syntaxErr(format string, args ...any) error {
	return lferrors.New(lferrors.SYNTAX, format, args...)
}

// assignment is reexported so builder callers don't need to import
// package expr just to build UPDATE ... SET clauses.
type Assignment = expr.Assignment

// Set builds one UPDATE assignment.
func Set(column string, value row.Value) Assignment {
	return Assignment{Column: column, Value: value}
}
