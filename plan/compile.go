package plan

import (
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/exec"
	"github.com/ghchinoy/lovefield/expr"
	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
)

// emptyNode is the physical counterpart of the logical empty-relation
// marker: it always produces the shared empty relation without touching
// the scope at all.
type emptyNode struct{}

func (emptyNode) Execute(exec.Scope) (relation.Relation, error) { return relation.Empty(), nil }

// Compile turns a rewritten logical tree into a physical operator tree,
// choosing among FullTableScan, IndexScan and PrimaryKeyLookup for each
// Select-over-TableAccess leaf by estimated cost (§4.6 rules 4, 5, and
// "physical choice"). idx must describe every table the plan touches.
func Compile(n Node, idx *catalog.IndexSet) (exec.Node, error) {
	switch t := n.(type) {
	case empty:
		return emptyNode{}, nil

	case TableAccess:
		return exec.FullTableScan{Table: t.Table}, nil

	case Select:
		if access, ok := t.Input.(TableAccess); ok {
			return compileFilteredAccess(access.Table, t.Pred, idx)
		}
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.Filter{Input: child, Pred: t.Pred}, nil

	case Project:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		cols := make([]exec.ProjectColumn, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = exec.ProjectColumn{Table: c.Table, Column: c.Column, Alias: c.Alias}
		}
		return exec.Project{Input: child, Columns: cols}, nil

	case Join:
		left, err := Compile(t.Left, idx)
		if err != nil {
			return nil, err
		}
		right, err := Compile(t.Right, idx)
		if err != nil {
			return nil, err
		}
		leftTables, rightTables := collectTables(t.Left), collectTables(t.Right)
		if lc, rc, ok := equiJoinColumns(t.Pred, leftTables, rightTables); ok {
			return exec.HashJoin{Left: left, Right: right, LeftCol: lc, RightCol: rc}, nil
		}
		return exec.NestedLoopJoin{Left: left, Right: right, Pred: t.Pred}, nil

	case GroupBy:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.GroupBy{Input: child, Table: t.Table, Columns: t.Columns}, nil

	case Aggregation:
		if gb, ok := t.Input.(GroupBy); ok {
			child, err := Compile(gb.Input, idx)
			if err != nil {
				return nil, err
			}
			return exec.GroupBy{Input: child, Table: t.Table, Columns: gb.Columns, Aggregates: t.Aggregates}, nil
		}
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.GroupBy{Input: child, Table: t.Table, Aggregates: t.Aggregates}, nil

	case OrderBy:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.OrderBy{Input: child, Keys: t.Keys}, nil

	case Skip:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.Skip{Input: child, N: t.N}, nil

	case Limit:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.Limit{Input: child, N: t.N}, nil

	case Union:
		children, err := compileAll(t.Inputs, idx)
		if err != nil {
			return nil, err
		}
		return exec.Union(children), nil

	case Intersect:
		children, err := compileAll(t.Inputs, idx)
		if err != nil {
			return nil, err
		}
		return exec.Intersect(children), nil

	case Except:
		m, err := Compile(t.Minuend, idx)
		if err != nil {
			return nil, err
		}
		s, err := Compile(t.Subtrahend, idx)
		if err != nil {
			return nil, err
		}
		return exec.Except(m, s), nil

	case InsertValues:
		return exec.InsertValues{Table: t.Table, Rows: t.Rows, AllowReplace: t.AllowReplace}, nil

	case Update:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.Update{Input: child, Table: t.Table, Assignments: t.Assignments}, nil

	case Delete:
		child, err := Compile(t.Input, idx)
		if err != nil {
			return nil, err
		}
		return exec.Delete{Input: child, Table: t.Table}, nil

	default:
		return nil, lferrors.New(lferrors.UNKNOWN, "plan: unhandled logical node %T", n)
	}
}

func compileAll(nodes []Node, idx *catalog.IndexSet) ([]exec.Node, error) {
	out := make([]exec.Node, len(nodes))
	for i, n := range nodes {
		c, err := Compile(n, idx)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// compileFilteredAccess picks the cheapest access path for scanning table
// under pred: a primary-key lookup when the primary key is a single column
// and an equality conjunct pins it, an index scan when a conjunct is range-expressible
// over a single-column index, or a full scan otherwise. Any conjuncts not
// consumed by the chosen access path are applied as a residual Filter.
func compileFilteredAccess(table string, pred *expr.Predicate, idx *catalog.IndexSet) (exec.Node, error) {
	ti, ok := idx.Table(table)
	if !ok {
		return nil, lferrors.New(lferrors.NOT_FOUND, "plan: unknown table %s", table)
	}
	conjuncts := pred.Conjuncts()

	if len(ti.PrimaryColumns) == 1 {
		for i, leaf := range conjuncts {
			_, col, op, lit, isCmp := leaf.IsCmp()
			if isCmp && op == expr.Eq && col == ti.PrimaryColumns[0] {
				residual := residualPredicate(conjuncts, i)
				node := exec.Node(exec.PrimaryKeyLookup{Table: table, Key: key.Of(lit)})
				if residual != nil {
					node = exec.Filter{Input: node, Pred: residual}
				}
				return node, nil
			}
		}
	}

	bestCost := -1
	bestIdx := -1
	var bestRange key.Range
	for i, leaf := range conjuncts {
		_, col, op, lit, isCmp := leaf.IsCmp()
		if !isCmp {
			continue
		}
		_, cols, ok := ti.ColumnIndex(col)
		if !ok || len(cols) != 1 {
			continue
		}
		rng, ok := rangeForOp(op, lit)
		if !ok {
			continue
		}
		physIdx, _, _ := ti.ColumnIndex(col)
		cost := physIdx.Cost(&rng)
		if bestCost == -1 || cost < bestCost {
			bestCost, bestIdx, bestRange = cost, i, rng
		}
	}
	if bestIdx >= 0 {
		_, col, _, _, _ := conjuncts[bestIdx].IsCmp()
		residual := residualPredicate(conjuncts, bestIdx)
		node := exec.Node(exec.IndexScan{Table: table, Columns: []string{col}, Range: bestRange})
		if residual != nil {
			node = exec.Filter{Input: node, Pred: residual}
		}
		return node, nil
	}

	return exec.Filter{Input: exec.FullTableScan{Table: table}, Pred: pred}, nil
}

func residualPredicate(conjuncts []*expr.Predicate, consumed int) *expr.Predicate {
	var residual *expr.Predicate
	for i, c := range conjuncts {
		if i == consumed {
			continue
		}
		if residual == nil {
			residual = c
		} else {
			residual = expr.And(residual, c)
		}
	}
	return residual
}

// rangeForOp builds the key.Range a single comparison op/literal implies,
// usable as the bound for an ordered-index scan. Ne has no single-range
// expression and is rejected.
func rangeForOp(op expr.Op, lit row.Value) (key.Range, bool) {
	k := key.Of(lit)
	switch op {
	case expr.Eq:
		return key.Only(k), true
	case expr.Lt:
		return key.UpperBound(k, true), true
	case expr.Le:
		return key.UpperBound(k, false), true
	case expr.Gt:
		return key.LowerBound(k, true), true
	case expr.Ge:
		return key.LowerBound(k, false), true
	default:
		return key.Range{}, false
	}
}

// equiJoinColumns recognizes a predicate's single equi-join conjunct whose
// two sides fall one in leftTables and one in rightTables, returning the
// column name on each side in that order. The planner's hash-join
// substitution (§4.7) requires exactly this shape; anything else falls
// back to NestedLoopJoin.
func equiJoinColumns(pred *expr.Predicate, leftTables, rightTables []string) (leftCol, rightCol string, ok bool) {
	inSet := func(t string, set []string) bool {
		for _, s := range set {
			if s == t {
				return true
			}
		}
		return false
	}
	conjuncts := pred.Conjuncts()
	if len(conjuncts) != 1 {
		return "", "", false
	}
	t1, c1, op, t2, c2, isColCmp := conjuncts[0].IsColumnCmp()
	if !isColCmp || op != expr.Eq {
		return "", "", false
	}
	if inSet(t1, leftTables) && inSet(t2, rightTables) {
		return c1, c2, true
	}
	if inSet(t2, leftTables) && inSet(t1, rightTables) {
		return c2, c1, true
	}
	return "", "", false
}
