package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

func loadSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.Load([]byte(`
name: testdb
version: 1
table:
  user:
    column:
      id: integer
      email: string
    constraint:
      primaryKey: [id]
      unique:
        byEmail: [email]
`))
	require.NoError(t, err)
	return sc
}

func TestNewBuildsOneTableIndicesPerTable(t *testing.T) {
	set := New(loadSchema(t))
	ti, ok := set.Table("user")
	require.True(t, ok)
	assert.NotNil(t, ti.Primary)
	assert.Equal(t, []string{"id"}, ti.PrimaryColumns)
	require.Len(t, ti.Secondary, 1)
	assert.Equal(t, "byEmail", ti.Secondary[0].Name)
	assert.True(t, ti.Secondary[0].Unique)
}

func TestAddInstallsPrimaryAndSecondaryAndRowID(t *testing.T) {
	set := New(loadSchema(t))
	ti, _ := set.Table("user")
	r := row.New(1, row.Payload{"id": row.Integer(1), "email": row.String("a@example.com")})
	require.NoError(t, Add(ti, r))

	ids := ti.Primary.Get(key.Of(row.Integer(1)))
	assert.Equal(t, []row.Id{1}, ids)

	ids = ti.Secondary[0].Index.Get(key.Of(row.String("a@example.com")))
	assert.Equal(t, []row.Id{1}, ids)

	assert.True(t, ti.RowIDs.ContainsKey(key.Of(row.Integer(1))))
}

func TestRemoveEvictsEveryIndexEntry(t *testing.T) {
	set := New(loadSchema(t))
	ti, _ := set.Table("user")
	r := row.New(1, row.Payload{"id": row.Integer(1), "email": row.String("a@example.com")})
	require.NoError(t, Add(ti, r))

	Remove(ti, r)

	assert.Nil(t, ti.Primary.Get(key.Of(row.Integer(1))))
	assert.False(t, ti.RowIDs.ContainsKey(key.Of(row.Integer(1))))
}

func TestColumnIndexPrefersPrimaryThenUnique(t *testing.T) {
	set := New(loadSchema(t))
	ti, _ := set.Table("user")

	idx, cols, ok := ti.ColumnIndex("id")
	require.True(t, ok)
	assert.Same(t, ti.Primary, idx)
	assert.Equal(t, []string{"id"}, cols)

	_, cols, ok = ti.ColumnIndex("email")
	require.True(t, ok)
	assert.Equal(t, []string{"email"}, cols)

	_, _, ok = ti.ColumnIndex("nope")
	assert.False(t, ok)
}
