package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/lferrors"
)

const sampleYAML = `
name: mydb
version: 1
table:
  user:
    column:
      id: integer
      name: string
      email: string
    constraint:
      primaryKey: [id]
      unique:
        byEmail: [email]
      nullable: [name]
  order:
    column:
      id: integer
      userId: integer
      total: number
    constraint:
      primaryKey: [id]
      foreignKey:
        toUser:
          localColumn: userId
          reference: user
          remoteColumn: id
`

func TestLoadValidSchema(t *testing.T) {
	s, err := Load([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "mydb", s.Name)
	assert.Equal(t, 1, s.Version)

	user, ok := s.Table("user")
	require.True(t, ok)
	assert.True(t, user.HasPrimaryKey())
	col, ok := user.Column("name")
	require.True(t, ok)
	assert.True(t, col.Nullable)

	order, ok := s.Table("order")
	require.True(t, ok)
	require.Len(t, order.ForeignKeys, 1)
	assert.Equal(t, "user", order.ForeignKeys[0].RemoteTable)
}

func TestLoadOrderPutsReferencedTableFirst(t *testing.T) {
	s, err := Load([]byte(sampleYAML))
	require.NoError(t, err)

	order := s.LoadOrder()
	userIdx, orderIdx := -1, -1
	for i, name := range order {
		switch name {
		case "user":
			userIdx = i
		case "order":
			orderIdx = i
		}
	}
	require.NotEqual(t, -1, userIdx)
	require.NotEqual(t, -1, orderIdx)
	assert.Less(t, userIdx, orderIdx)
}

func TestLoadRejectsUnknownType(t *testing.T) {
	_, err := Load([]byte(`
name: bad
version: 1
table:
  t:
    column:
      c: nosuchtype
`))
	require.Error(t, err)
	assert.Equal(t, lferrors.SYNTAX, lferrors.KindOf(err))
}

func TestLoadRejectsUnknownForeignKeyTarget(t *testing.T) {
	_, err := Load([]byte(`
name: bad
version: 1
table:
  t:
    column:
      id: integer
      otherId: integer
    constraint:
      foreignKey:
        fk:
          localColumn: otherId
          reference: nope
          remoteColumn: id
`))
	require.Error(t, err)
	assert.Equal(t, lferrors.SYNTAX, lferrors.KindOf(err))
}

func TestLoadRejectsUnknownYAMLField(t *testing.T) {
	_, err := Load([]byte(`
name: bad
version: 1
typo: true
table: {}
`))
	require.Error(t, err)
	assert.Equal(t, lferrors.SYNTAX, lferrors.KindOf(err))
}

func TestCyclicForeignKeysAreLegal(t *testing.T) {
	_, err := Load([]byte(`
name: cyclic
version: 1
table:
  a:
    column:
      id: integer
      bId: integer
    constraint:
      primaryKey: [id]
      foreignKey:
        toB:
          localColumn: bId
          reference: b
          remoteColumn: id
  b:
    column:
      id: integer
      aId: integer
    constraint:
      primaryKey: [id]
      foreignKey:
        toA:
          localColumn: aId
          reference: a
          remoteColumn: id
`))
	require.NoError(t, err)
}
