package key

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghchinoy/lovefield/row"
)

func TestKeyCompareScalar(t *testing.T) {
	a := Of(row.Integer(1))
	b := Of(row.Integer(2))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestKeyCompareComposite(t *testing.T) {
	a := Of(row.Integer(1), row.String("a"))
	b := Of(row.Integer(1), row.String("b"))
	c := Of(row.Integer(2), row.String("a"))
	assert.Equal(t, -1, a.Compare(b))
	assert.True(t, a.Compare(c) < 0)
	assert.True(t, a.Equal(Of(row.Integer(1), row.String("a"))))
}

func TestRangeOnlyMatchesExactKey(t *testing.T) {
	r := Only(Of(row.Integer(5)))
	assert.True(t, r.Matches(Of(row.Integer(5))))
	assert.False(t, r.Matches(Of(row.Integer(4))))
	assert.False(t, r.Matches(Of(row.Integer(6))))
}

func TestRangeBoundsInclusiveExclusive(t *testing.T) {
	lo := Of(row.Integer(1))
	hi := Of(row.Integer(10))

	closed := Between(lo, false, hi, false)
	assert.True(t, closed.Matches(lo))
	assert.True(t, closed.Matches(hi))

	open := Between(lo, true, hi, true)
	assert.False(t, open.Matches(lo))
	assert.False(t, open.Matches(hi))
	assert.True(t, open.Matches(Of(row.Integer(5))))
}

func TestRangeAllIsUnbounded(t *testing.T) {
	r := All()
	assert.True(t, r.IsAll())
	assert.True(t, r.Matches(Of(row.Integer(-1000))))
	assert.True(t, r.Matches(Of(row.Integer(1000))))
}

func TestRangeIntersectTightensBounds(t *testing.T) {
	a := Between(Of(row.Integer(1)), false, Of(row.Integer(10)), false)
	b := Between(Of(row.Integer(5)), false, Of(row.Integer(20)), false)
	got := Intersect(a, b)
	assert.True(t, got.Matches(Of(row.Integer(5))))
	assert.True(t, got.Matches(Of(row.Integer(10))))
	assert.False(t, got.Matches(Of(row.Integer(4))))
	assert.False(t, got.Matches(Of(row.Integer(11))))
}

func TestRangeIntersectExclusiveBoundWins(t *testing.T) {
	a := LowerBound(Of(row.Integer(5)), false)
	b := LowerBound(Of(row.Integer(5)), true)
	got := Intersect(a, b)
	assert.False(t, got.Matches(Of(row.Integer(5))))
	assert.True(t, got.Matches(Of(row.Integer(6))))
}

func TestEncodeUsesDeclaredColumnOrder(t *testing.T) {
	payload := row.Payload{"b": row.Integer(2), "a": row.Integer(1)}
	k := Encode([]string{"a", "b"}, payload)
	assert.Equal(t, []row.Value{row.Integer(1), row.Integer(2)}, k.Parts())
}
