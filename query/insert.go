package query

import (
	"context"

	lovefield "github.com/ghchinoy/lovefield"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/plan"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
)

// InsertBuilder assembles an INSERT INTO query.
type InsertBuilder struct {
	db    *lovefield.Database
	table string

	rows      []row.Payload
	valuesSet bool

	allowReplace bool

	err error
}

// InsertInto starts an INSERT query against table.
func InsertInto(db *lovefield.Database, table string) *InsertBuilder {
	return &InsertBuilder{db: db, table: table}
}

// Values supplies the rows to insert. Calling it twice is a SYNTAX error.
func (b *InsertBuilder) Values(rows ...row.Payload) *InsertBuilder {
	if b.valuesSet {
		b.err = syntaxErr("query: Values already set")
		return b
	}
	b.rows, b.valuesSet = rows, true
	return b
}

// AllowReplace requests insert-or-replace semantics: a row whose primary
// key matches an already-committed row is replaced in place instead of
// raising a unique-constraint violation. It is a CONSTRAINT error at Build
// time on a table with no declared primary key, since there is then no key
// to match a replace against.
func (b *InsertBuilder) AllowReplace(allow bool) *InsertBuilder {
	b.allowReplace = allow
	return b
}

// Build assembles the logical plan node for this insert.
func (b *InsertBuilder) Build() (plan.Node, []string, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	if b.table == "" {
		return nil, nil, syntaxErr("query: InsertInto requires a table")
	}
	if !b.valuesSet || len(b.rows) == 0 {
		return nil, nil, syntaxErr("query: InsertInto requires Values")
	}
	if b.allowReplace {
		table, ok := b.db.Environment().Schema().Table(b.table)
		if !ok {
			return nil, nil, lferrors.New(lferrors.NOT_FOUND, "query: unknown table %s", b.table)
		}
		if !table.HasPrimaryKey() {
			return nil, nil, lferrors.New(lferrors.CONSTRAINT, "query: AllowReplace requires table %s to have a primary key", b.table)
		}
	}
	return plan.InsertValues{Table: b.table, Rows: b.rows, AllowReplace: b.allowReplace}, []string{b.table}, nil
}

// Exec runs the insert as a single-statement, write transaction.
func (b *InsertBuilder) Exec(ctx context.Context) (relation.Relation, error) {
	node, tables, err := b.Build()
	if err != nil {
		return relation.Relation{}, err
	}
	return runSingle(ctx, b.db, node, tables, true)
}
