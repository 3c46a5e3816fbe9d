package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/row"
)

func TestFromRowsUnprefixedWhenSingleTable(t *testing.T) {
	gen := &IdGen{}
	rows := []row.Row{
		row.New(1, row.Payload{"id": row.Integer(1), "name": row.String("alice")}),
		row.New(2, row.Payload{"id": row.Integer(2), "name": row.String("bob")}),
	}
	rel := FromRows(gen, "user", rows)
	assert.Equal(t, 2, rel.Len())
	assert.Equal(t, []string{"user"}, rel.Tables())

	v, ok := rel.Entries()[0].Get("user", "name")
	require.True(t, ok)
	assert.Equal(t, row.String("alice"), v)
}

func TestCombineEntriesIsPrefixApplied(t *testing.T) {
	gen := &IdGen{}
	left := FromRow(gen, "user", row.New(1, row.Payload{"id": row.Integer(1)}))
	right := FromRow(gen, "order", row.New(10, row.Payload{"id": row.Integer(10), "userId": row.Integer(1)}))

	combined := CombineEntries(gen, left, []string{"user"}, right, []string{"order"})
	assert.True(t, combined.PrefixApplied())

	uv, ok := combined.Get("user", "id")
	require.True(t, ok)
	assert.Equal(t, row.Integer(1), uv)

	ov, ok := combined.Get("order", "userId")
	require.True(t, ok)
	assert.Equal(t, row.Integer(1), ov)
}

func TestEntryIDsStrictlyIncreasing(t *testing.T) {
	gen := &IdGen{}
	a := FromRow(gen, "t", row.New(1, row.Payload{}))
	b := FromRow(gen, "t", row.New(2, row.Payload{}))
	assert.Less(t, a.EntryID(), b.EntryID())
}

func TestSetAliasShortCircuitsTablePrefix(t *testing.T) {
	gen := &IdGen{}
	e := FromRow(gen, "user", row.New(1, row.Payload{"id": row.Integer(1)}))
	aliased := e.SetAlias("userId", row.Integer(1))

	v, ok := aliased.Get("anything", "userId")
	require.True(t, ok)
	assert.Equal(t, row.Integer(1), v)
}

// TestUnionIntersectEmptySingleton is property 3: Union(nil) = Intersect(nil)
// = the shared empty relation.
func TestUnionIntersectEmptySingleton(t *testing.T) {
	u, err := Union(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, u.Len())

	i, err := Intersect(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, i.Len())
}

func TestUnionDedupesByEntryID(t *testing.T) {
	gen := &IdGen{}
	rows := []row.Row{row.New(1, row.Payload{"id": row.Integer(1)})}
	a := FromRows(gen, "t", rows)

	u, err := Union([]Relation{a, a})
	require.NoError(t, err)
	assert.Equal(t, 1, u.Len())
}

func TestIntersectRequiresPresenceInEveryInput(t *testing.T) {
	gen := &IdGen{}
	shared := FromRow(gen, "t", row.New(1, row.Payload{}))
	onlyLeft := FromRow(gen, "t", row.New(2, row.Payload{}))

	a := New([]Entry{shared, onlyLeft}, []string{"t"})
	b := New([]Entry{shared}, []string{"t"})

	got, err := Intersect([]Relation{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, shared.EntryID(), got.Entries()[0].EntryID())
}

func TestUnionRejectsIncompatibleTableSets(t *testing.T) {
	gen := &IdGen{}
	a := FromRows(gen, "t1", []row.Row{row.New(1, row.Payload{})})
	b := FromRows(gen, "t2", []row.Row{row.New(1, row.Payload{})})

	_, err := Union([]Relation{a, b})
	assert.Error(t, err)
}

func TestExceptRemovesSubtrahendEntries(t *testing.T) {
	gen := &IdGen{}
	shared := FromRow(gen, "t", row.New(1, row.Payload{}))
	onlyLeft := FromRow(gen, "t", row.New(2, row.Payload{}))
	minuend := New([]Entry{shared, onlyLeft}, []string{"t"})
	subtrahend := New([]Entry{shared}, []string{"t"})

	got, err := Except(minuend, subtrahend)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, onlyLeft.EntryID(), got.Entries()[0].EntryID())
}
