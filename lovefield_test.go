package lovefield

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/exec"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
	"github.com/ghchinoy/lovefield/store"
	"github.com/ghchinoy/lovefield/txn"
)

const openTestSchemaYAML = `
name: testdb
version: 1
table:
  user:
    column:
      id: integer
      name: string
    constraint:
      primaryKey: [id]
`

func loadOpenTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.Load([]byte(openTestSchemaYAML))
	require.NoError(t, err)
	return sc
}

func TestOpenWarmsCacheAndIndicesFromStore(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	sc := loadOpenTestSchema(t)
	require.NoError(t, mem.Open(ctx, sc))
	require.NoError(t, mem.Write(ctx, nil)) // a no-op write to exercise the adapter before Open rewarms it

	db, err := Open(ctx, sc, mem, 0)
	require.NoError(t, err)
	defer db.Close()

	e := db.Environment()
	assert.Same(t, sc, e.Schema())
	assert.NotNil(t, e.Cache())
	assert.NotNil(t, e.Indices())
}

func TestNewTransactionRunsInsertAndReadsItBack(t *testing.T) {
	ctx := context.Background()
	sc := loadOpenTestSchema(t)
	db, err := Open(ctx, sc, store.NewMemory(), 0)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.NewTransaction(ctx)
	require.NoError(t, err)

	results, err := tx.Exec(ctx, []txn.Query{{
		Tables: []string{"user"},
		Write:  true,
		Plan:   exec.InsertValues{Table: "user", Rows: []row.Payload{{"id": row.Integer(1), "name": row.String("alice")}}},
	}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Len())

	_, ok := env(db).Cache().Get("user", 1)
	assert.True(t, ok)
}

func TestNewTransactionRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := loadOpenTestSchema(t)
	db, err := Open(context.Background(), sc, store.NewMemory(), 0)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.NewTransaction(ctx)
	require.Error(t, err)
}

func TestOpenPropagatesAdapterFailure(t *testing.T) {
	sc := loadOpenTestSchema(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, sc, store.NewMemory(), 0)
	require.Error(t, err)
}

func env(db *Database) *Environment { return db.env }
