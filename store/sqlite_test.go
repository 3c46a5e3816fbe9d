package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

func sqliteTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sc, err := schema.Load([]byte(`
name: testdb
version: 3
table:
  user:
    column:
      id: integer
      name: string
    constraint:
      primaryKey: [id]
`))
	require.NoError(t, err)
	return sc
}

func TestSQLiteHighWaterMarkSurvivesRowDeletionAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lovefield.db")
	sc := sqliteTestSchema(t)

	db, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Open(ctx, sc))
	require.NoError(t, db.Write(ctx, []cache.Mutation{
		{Table: "user", RowID: 1, Op: cache.OpInsert, After: row.Payload{"id": row.Integer(1), "name": row.String("a")}},
		{Table: "user", RowID: 2, Op: cache.OpInsert, After: row.Payload{"id": row.Integer(2), "name": row.String("b")}},
	}))
	require.NoError(t, db.Write(ctx, []cache.Mutation{
		{Table: "user", RowID: 1, Op: cache.OpDelete, Before: row.Payload{"id": row.Integer(1), "name": row.String("a")}},
		{Table: "user", RowID: 2, Op: cache.OpDelete, Before: row.Payload{"id": row.Integer(2), "name": row.String("b")}},
	}))
	require.NoError(t, db.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, reopened.Open(ctx, sc))
	defer reopened.Close()

	rows, err := reopened.Scan(ctx, "user")
	require.NoError(t, err)
	assert.Empty(t, rows, "every row was deleted before reopening")

	hwm, err := reopened.HighWaterMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, row.Id(2), hwm["user"], "the high-water mark must survive even though the table is now empty")
}

func TestSQLiteHighWaterMarkNeverLoweredByDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lovefield.db")
	sc := sqliteTestSchema(t)

	db, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Open(ctx, sc))
	require.NoError(t, db.Write(ctx, []cache.Mutation{
		{Table: "user", RowID: 5, Op: cache.OpInsert, After: row.Payload{"id": row.Integer(5), "name": row.String("e")}},
	}))
	require.NoError(t, db.Write(ctx, []cache.Mutation{
		{Table: "user", RowID: 5, Op: cache.OpDelete, Before: row.Payload{"id": row.Integer(5), "name": row.String("e")}},
	}))

	hwm, err := db.HighWaterMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, row.Id(5), hwm["user"])
	require.NoError(t, db.Close())
}

func TestSQLiteRecordsSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lovefield.db")
	sc := sqliteTestSchema(t)

	db, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Open(ctx, sc))
	defer db.Close()

	var value string
	row := db.db.QueryRowContext(ctx, `SELECT value FROM `+metadataTable+` WHERE name = 'schema_version'`)
	require.NoError(t, row.Scan(&value))
	assert.Equal(t, "3", value)
}
