package plan

import (
	"sort"

	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/expr"
)

// Rewrite applies the fixed, idempotent rewrite pass of §4.6 (rules 1, 2,
// 3, 6 — rules 4 and 5, the primary-key/index-scan substitutions, are
// folded into Compile's access-path selection since they choose a
// physical, not logical, node). idx supplies the cardinality estimates
// rule 3's join reordering consumes; it may be nil, in which case
// reordering is skipped and the tree is returned in builder order.
func Rewrite(n Node, idx *catalog.IndexSet) Node {
	n = rewriteChildren(n, idx)
	n = combineSelect(n)
	n = combineProject(n)
	n = pushdownSelect(n)
	n = reorderJoins(n, idx)
	n = eliminateEmpty(n)
	return n
}

// rewriteChildren recurses into every node's children first, so the rules
// above always see an already-simplified subtree (bottom-up rewriting).
func rewriteChildren(n Node, idx *catalog.IndexSet) Node {
	switch t := n.(type) {
	case Select:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Project:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Join:
		t.Left = Rewrite(t.Left, idx)
		t.Right = Rewrite(t.Right, idx)
		return t
	case GroupBy:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Aggregation:
		t.Input = Rewrite(t.Input, idx)
		return t
	case OrderBy:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Skip:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Limit:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Union:
		for i := range t.Inputs {
			t.Inputs[i] = Rewrite(t.Inputs[i], idx)
		}
		return t
	case Intersect:
		for i := range t.Inputs {
			t.Inputs[i] = Rewrite(t.Inputs[i], idx)
		}
		return t
	case Except:
		t.Minuend = Rewrite(t.Minuend, idx)
		t.Subtrahend = Rewrite(t.Subtrahend, idx)
		return t
	case Update:
		t.Input = Rewrite(t.Input, idx)
		return t
	case Delete:
		t.Input = Rewrite(t.Input, idx)
		return t
	default:
		return n
	}
}

// combineSelect merges a Select directly over another Select into one,
// conjoining their predicates (rule 2).
func combineSelect(n Node) Node {
	outer, ok := n.(Select)
	if !ok {
		return n
	}
	if inner, ok := outer.Input.(Select); ok {
		return combineSelect(Select{Input: inner.Input, Pred: expr.And(inner.Pred, outer.Pred)})
	}
	return outer
}

// combineProject collapses a Project directly over another pure
// passthrough Project (no aliasing) into the outer Project alone, since
// the inner one narrows nothing the outer doesn't already narrow on its
// own (rule 2). Aliased inner projects are left in place: composing alias
// references correctly requires rewriting the outer's column refs through
// the inner's alias map, which this rewrite pass does not attempt.
func combineProject(n Node) Node {
	outer, ok := n.(Project)
	if !ok {
		return n
	}
	if inner, ok := outer.Input.(Project); ok && !anyAliased(inner.Columns) {
		outer.Input = inner.Input
		return combineProject(outer)
	}
	return outer
}

func anyAliased(cols []ProjectColumn) bool {
	for _, c := range cols {
		if c.Alias != "" {
			return true
		}
	}
	return false
}

// pushdownSelect moves a Select below a Project (when the predicate only
// names the project's own, unaliased source columns) and below a
// commutative Join (when the predicate's free tables are entirely on one
// side), per rule 1. It is conservative: any shape it cannot prove safe
// is left exactly where the builder put it.
func pushdownSelect(n Node) Node {
	sel, ok := n.(Select)
	if !ok {
		return n
	}
	switch child := sel.Input.(type) {
	case Project:
		if selectRefsOnlyPlainColumns(sel.Pred, child.Columns) {
			return Project{Input: pushdownSelect(Select{Input: child.Input, Pred: sel.Pred}), Columns: child.Columns}
		}
	case Join:
		free := sel.Pred.FreeTables(append(collectTables(child.Left), collectTables(child.Right)...))
		if subsetOf(free, collectTables(child.Left)) {
			child.Left = pushdownSelect(Select{Input: child.Left, Pred: sel.Pred})
			return child
		}
		if subsetOf(free, collectTables(child.Right)) {
			child.Right = pushdownSelect(Select{Input: child.Right, Pred: sel.Pred})
			return child
		}
	}
	return sel
}

func selectRefsOnlyPlainColumns(pred *expr.Predicate, cols []ProjectColumn) bool {
	plain := map[string]bool{}
	for _, c := range cols {
		if c.Alias == "" {
			plain[c.Column] = true
		}
	}
	for _, leaf := range pred.Conjuncts() {
		_, col, _, _, ok := leaf.IsCmp()
		if !ok || !plain[col] {
			return false
		}
	}
	return true
}

func collectTables(n Node) []string {
	switch t := n.(type) {
	case TableAccess:
		return []string{t.Table}
	case Select:
		return collectTables(t.Input)
	case Project:
		return collectTables(t.Input)
	case Join:
		return append(collectTables(t.Left), collectTables(t.Right)...)
	default:
		return nil
	}
}

func subsetOf(set map[string]bool, universe []string) bool {
	allowed := map[string]bool{}
	for _, t := range universe {
		allowed[t] = true
	}
	for t := range set {
		if !allowed[t] {
			return false
		}
	}
	return true
}

// reorderJoins collects a left-deep chain of InnerJoins rooted at n and
// rebuilds it greedily cheapest-table-first, using idx's row-id index
// cost as the cardinality estimate (rule 3). Non-chain shapes (a single
// Join, or anything idx can't estimate) are returned unchanged.
func reorderJoins(n Node, idx *catalog.IndexSet) Node {
	join, ok := n.(Join)
	if !ok || idx == nil {
		return n
	}
	leaves, preds := flattenJoinChain(join)
	if len(leaves) < 3 {
		return n
	}

	type scored struct {
		table TableAccess
		cost  int
	}
	remaining := make([]scored, len(leaves))
	for i, t := range leaves {
		remaining[i] = scored{table: t, cost: tableCost(idx, t.Table)}
	}
	sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].cost < remaining[j].cost })

	var result Node = remaining[0].table
	includedTables := []string{remaining[0].table.Table}
	rest := remaining[1:]
	for len(rest) > 0 {
		pickIdx := 0
		var pickPred *expr.Predicate
		found := false
		for i, cand := range rest {
			if p := predicateBetween(preds, includedTables, cand.table.Table); p != nil {
				pickIdx, pickPred, found = i, p, true
				break
			}
		}
		if !found {
			pickIdx = 0
		}
		next := rest[pickIdx]
		rest = append(rest[:pickIdx], rest[pickIdx+1:]...)
		pred := pickPred
		if pred == nil {
			pred = expr.True()
		}
		result = Join{Left: result, Right: next.table, Type: InnerJoin, Pred: pred}
		includedTables = append(includedTables, next.table.Table)
	}
	return result
}

func tableCost(idx *catalog.IndexSet, table string) int {
	ti, ok := idx.Table(table)
	if !ok || ti.RowIDs == nil {
		return 0
	}
	return ti.RowIDs.Cost(nil)
}

// flattenJoinChain walks a left-deep tree of InnerJoins over bare
// TableAccess leaves, returning the leaves in original order and every
// join predicate encountered. Any other shape aborts by returning fewer
// than the full leaf set, which callers treat as "can't reorder".
func flattenJoinChain(n Node) ([]TableAccess, []*expr.Predicate) {
	switch t := n.(type) {
	case TableAccess:
		return []TableAccess{t}, nil
	case Join:
		if t.Type != InnerJoin {
			return nil, nil
		}
		lLeaves, lPreds := flattenJoinChain(t.Left)
		rLeaves, rPreds := flattenJoinChain(t.Right)
		if lLeaves == nil || rLeaves == nil {
			return nil, nil
		}
		return append(lLeaves, rLeaves...), append(append(lPreds, rPreds...), t.Pred)
	default:
		return nil, nil
	}
}

// predicateBetween finds a join predicate referencing candidate and at
// least one table already in included, if any.
func predicateBetween(preds []*expr.Predicate, included []string, candidate string) *expr.Predicate {
	for _, p := range preds {
		free := p.FreeTables(append(append([]string(nil), included...), candidate))
		if free[candidate] {
			for _, t := range included {
				if free[t] {
					return p
				}
			}
		}
	}
	return nil
}

// eliminateEmpty propagates the empty-relation marker upward: any
// operator whose required input(s) are statically known to be empty
// collapses to Empty() itself (rule 6).
func eliminateEmpty(n Node) Node {
	switch t := n.(type) {
	case Select:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Project:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Join:
		if IsEmpty(t.Left) || IsEmpty(t.Right) {
			return Empty()
		}
	case GroupBy:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Aggregation:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case OrderBy:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Skip:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Limit:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Update:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Delete:
		if IsEmpty(t.Input) {
			return Empty()
		}
	case Intersect:
		for _, in := range t.Inputs {
			if IsEmpty(in) {
				return Empty()
			}
		}
	case Union:
		var kept []Node
		for _, in := range t.Inputs {
			if !IsEmpty(in) {
				kept = append(kept, in)
			}
		}
		if len(kept) == 0 {
			return Empty()
		}
		t.Inputs = kept
		return t
	case Except:
		if IsEmpty(t.Minuend) {
			return Empty()
		}
	}
	return n
}
