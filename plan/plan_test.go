package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/exec"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

func testSchemaAndIndex(t *testing.T) (*schema.Schema, *catalog.IndexSet) {
	t.Helper()
	sc, err := schema.Load([]byte(`
name: testdb
version: 1
table:
  user:
    column:
      id: integer
      name: string
    constraint:
      primaryKey: [id]
  order:
    column:
      id: integer
      userId: integer
    constraint:
      primaryKey: [id]
`))
	require.NoError(t, err)
	return sc, catalog.New(sc)
}

func TestCombineSelectMergesStackedSelects(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	inner := Select{Input: TableAccess{Table: "user"}, Pred: expr.Column("user", "id", expr.Eq, row.Integer(1))}
	outer := Select{Input: inner, Pred: expr.Column("user", "name", expr.Eq, row.String("alice"))}

	rewritten := Rewrite(outer, idx)
	sel, ok := rewritten.(Select)
	require.True(t, ok)
	_, ok = sel.Input.(TableAccess)
	assert.True(t, ok, "stacked selects should combine into one Select directly over the TableAccess")
	assert.Len(t, sel.Pred.Conjuncts(), 2)
}

func TestCombineProjectCollapsesUnaliasedStack(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	inner := Project{Input: TableAccess{Table: "user"}, Columns: []ProjectColumn{{Table: "user", Column: "id"}, {Table: "user", Column: "name"}}}
	outer := Project{Input: inner, Columns: []ProjectColumn{{Table: "user", Column: "name"}}}

	rewritten := Rewrite(outer, idx)
	proj, ok := rewritten.(Project)
	require.True(t, ok)
	_, ok = proj.Input.(TableAccess)
	assert.True(t, ok, "unaliased stacked projects should collapse to one")
}

func TestCombineProjectKeepsAliasedInnerProject(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	inner := Project{Input: TableAccess{Table: "user"}, Columns: []ProjectColumn{{Table: "user", Column: "id", Alias: "uid"}}}
	outer := Project{Input: inner, Columns: []ProjectColumn{{Column: "uid"}}}

	rewritten := Rewrite(outer, idx)
	proj, ok := rewritten.(Project)
	require.True(t, ok)
	_, ok = proj.Input.(Project)
	assert.True(t, ok, "an aliased inner project must not be collapsed away")
}

func TestPushdownSelectBelowProject(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	proj := Project{Input: TableAccess{Table: "user"}, Columns: []ProjectColumn{{Table: "user", Column: "id"}}}
	sel := Select{Input: proj, Pred: expr.Column("user", "id", expr.Eq, row.Integer(1))}

	rewritten := Rewrite(sel, idx)
	outerProj, ok := rewritten.(Project)
	require.True(t, ok, "select should push below the project")
	_, ok = outerProj.Input.(Select)
	assert.True(t, ok)
}

func TestPushdownSelectBelowJoinToOneSide(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	join := Join{
		Left: TableAccess{Table: "user"}, Right: TableAccess{Table: "order"},
		Type: InnerJoin, Pred: expr.True(),
	}
	sel := Select{Input: join, Pred: expr.Column("user", "name", expr.Eq, row.String("alice"))}

	rewritten := Rewrite(sel, idx)
	j, ok := rewritten.(Join)
	require.True(t, ok, "predicate over a single side should push into the join")
	_, ok = j.Left.(Select)
	assert.True(t, ok)
}

func TestEliminateEmptyPropagatesUpward(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	sel := Select{Input: Empty(), Pred: expr.Column("user", "id", expr.Eq, row.Integer(1))}
	rewritten := Rewrite(sel, idx)
	assert.True(t, IsEmpty(rewritten))
}

func TestEliminateEmptyShortCircuitsJoin(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	join := Join{Left: Empty(), Right: TableAccess{Table: "order"}, Type: InnerJoin, Pred: expr.True()}
	rewritten := Rewrite(join, idx)
	assert.True(t, IsEmpty(rewritten))
}

func TestCompileSelectOverPrimaryKeyChoosesLookup(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	node := Select{Input: TableAccess{Table: "user"}, Pred: expr.Column("user", "id", expr.Eq, row.Integer(1))}

	compiled, err := Compile(Rewrite(node, idx), idx)
	require.NoError(t, err)
	_, ok := compiled.(exec.PrimaryKeyLookup)
	assert.True(t, ok, "equality on the primary key should compile to a PrimaryKeyLookup")
}

func TestCompileFullScanFallbackWhenNoIndex(t *testing.T) {
	_, idx := testSchemaAndIndex(t)
	node := Select{Input: TableAccess{Table: "order"}, Pred: expr.Column("order", "userId", expr.Eq, row.Integer(1))}

	compiled, err := Compile(Rewrite(node, idx), idx)
	require.NoError(t, err)
	filter, ok := compiled.(exec.Filter)
	require.True(t, ok, "a non-indexed column should fall back to Filter over FullTableScan")
	_, ok = filter.Input.(exec.FullTableScan)
	assert.True(t, ok)
}

func TestEquiJoinColumnsRecognizesHashJoinShape(t *testing.T) {
	lCol, rCol, ok := equiJoinColumns(
		expr.ColumnCompare("user", "id", expr.Eq, "order", "userId"),
		[]string{"user"}, []string{"order"},
	)
	require.True(t, ok)
	assert.Equal(t, "id", lCol)
	assert.Equal(t, "userId", rCol)
}

func TestEquiJoinColumnsRejectsNonEqualityOp(t *testing.T) {
	_, _, ok := equiJoinColumns(
		expr.ColumnCompare("user", "id", expr.Lt, "order", "userId"),
		[]string{"user"}, []string{"order"},
	)
	assert.False(t, ok)
}
