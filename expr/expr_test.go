package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
)

func entryOf(t *testing.T, table string, payload row.Payload) relation.Entry {
	t.Helper()
	gen := &relation.IdGen{}
	return relation.FromRow(gen, table, row.New(1, payload))
}

func TestColumnCmpEval(t *testing.T) {
	e := entryOf(t, "user", row.Payload{"age": row.Integer(30)})
	p := Column("user", "age", Ge, row.Integer(18))
	ok, err := p.Eval(e)
	require.NoError(t, err)
	assert.True(t, ok)

	p2 := Column("user", "age", Lt, row.Integer(18))
	ok, err = p2.Eval(e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestColumnCmpNullNeverMatchesExceptNe(t *testing.T) {
	e := entryOf(t, "user", row.Payload{"age": row.Null})
	eq, err := Column("user", "age", Eq, row.Integer(1)).Eval(e)
	require.NoError(t, err)
	assert.False(t, eq)

	ne, err := Column("user", "age", Ne, row.Integer(1)).Eval(e)
	require.NoError(t, err)
	assert.True(t, ne)
}

func TestColumnCompareJoinPredicate(t *testing.T) {
	gen := &relation.IdGen{}
	left := relation.FromRow(gen, "user", row.New(1, row.Payload{"id": row.Integer(1)}))
	right := relation.FromRow(gen, "order", row.New(10, row.Payload{"userId": row.Integer(1)}))
	combined := relation.CombineEntries(gen, left, []string{"user"}, right, []string{"order"})

	p := ColumnCompare("user", "id", Eq, "order", "userId")
	ok, err := p.Eval(combined)
	require.NoError(t, err)
	assert.True(t, ok)

	table, column, op, table2, column2, isColCmp := p.IsColumnCmp()
	assert.True(t, isColCmp)
	assert.Equal(t, "user", table)
	assert.Equal(t, "id", column)
	assert.Equal(t, Eq, op)
	assert.Equal(t, "order", table2)
	assert.Equal(t, "userId", column2)
}

func TestAndOrNotCombinators(t *testing.T) {
	e := entryOf(t, "t", row.Payload{"a": row.Integer(1), "b": row.Integer(2)})
	pa := Column("t", "a", Eq, row.Integer(1))
	pb := Column("t", "b", Eq, row.Integer(99))

	and, err := And(pa, pb).Eval(e)
	require.NoError(t, err)
	assert.False(t, and)

	or, err := Or(pa, pb).Eval(e)
	require.NoError(t, err)
	assert.True(t, or)

	not, err := Not(pb).Eval(e)
	require.NoError(t, err)
	assert.True(t, not)
}

func TestConjunctsFlattensAndTree(t *testing.T) {
	pa := Column("t", "a", Eq, row.Integer(1))
	pb := Column("t", "b", Eq, row.Integer(2))
	pc := Column("t", "c", Eq, row.Integer(3))
	tree := And(And(pa, pb), pc)

	conjuncts := tree.Conjuncts()
	require.Len(t, conjuncts, 3)
	assert.Same(t, pa, conjuncts[0])
	assert.Same(t, pb, conjuncts[1])
	assert.Same(t, pc, conjuncts[2])
}

func TestConjunctsOfNonAndIsSingleton(t *testing.T) {
	p := Column("t", "a", Eq, row.Integer(1))
	assert.Equal(t, []*Predicate{p}, p.Conjuncts())
}

func TestIsCmpReportsOnlyCmpLeaves(t *testing.T) {
	cmp := Column("t", "a", Eq, row.Integer(1))
	_, _, _, _, ok := cmp.IsCmp()
	assert.True(t, ok)

	and := And(cmp, cmp)
	_, _, _, _, ok = and.IsCmp()
	assert.False(t, ok)
}

func TestFreeTablesCollectsReferencedTables(t *testing.T) {
	p := And(
		Column("user", "id", Eq, row.Integer(1)),
		ColumnCompare("user", "id", Eq, "order", "userId"),
	)
	tables := p.FreeTables([]string{"user", "order"})
	assert.True(t, tables["user"])
	assert.True(t, tables["order"])
	assert.Len(t, tables, 2)
}

func TestFreeTablesOfCustomIsConservative(t *testing.T) {
	p := Custom(func(relation.Entry) (bool, error) { return true, nil })
	tables := p.FreeTables([]string{"user", "order"})
	assert.Len(t, tables, 2)
}

func TestTrueMatchesEveryEntry(t *testing.T) {
	e := entryOf(t, "t", row.Payload{})
	ok, err := True().Eval(e)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNilPredicateEvalsTrue(t *testing.T) {
	var p *Predicate
	ok, err := p.Eval(entryOf(t, "t", row.Payload{}))
	require.NoError(t, err)
	assert.True(t, ok)
}
