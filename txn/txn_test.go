package txn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/exec"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
	"github.com/ghchinoy/lovefield/store"
)

// fakeEnv implements Env without importing package lovefield, the same
// one-way-dependency shape the real Environment satisfies structurally.
type fakeEnv struct {
	sc        *schema.Schema
	cache     *cache.Cache
	store     store.Adapter
	gen       *relation.IdGen
	indices   *catalog.IndexSet
	commitMu  sync.Mutex
	tableMus  map[string]*sync.RWMutex
	tableMusL sync.Mutex
	nextID    map[string]*int64
}

func newFakeEnv(t *testing.T, yaml string) *fakeEnv {
	t.Helper()
	sc, err := schema.Load([]byte(yaml))
	require.NoError(t, err)
	mem := store.NewMemory()
	require.NoError(t, mem.Open(context.Background(), sc))
	return &fakeEnv{
		sc:       sc,
		cache:    cache.New(),
		store:    mem,
		gen:      &relation.IdGen{},
		indices:  catalog.New(sc),
		tableMus: map[string]*sync.RWMutex{},
		nextID:   map[string]*int64{},
	}
}

func (e *fakeEnv) Schema() *schema.Schema       { return e.sc }
func (e *fakeEnv) Cache() *cache.Cache          { return e.cache }
func (e *fakeEnv) Store() store.Adapter         { return e.store }
func (e *fakeEnv) IDGen() *relation.IdGen       { return e.gen }
func (e *fakeEnv) Indices() *catalog.IndexSet   { return e.indices }
func (e *fakeEnv) CommitMutex() *sync.Mutex     { return &e.commitMu }

func (e *fakeEnv) TableLock(table string) *sync.RWMutex {
	e.tableMusL.Lock()
	defer e.tableMusL.Unlock()
	mu, ok := e.tableMus[table]
	if !ok {
		mu = &sync.RWMutex{}
		e.tableMus[table] = mu
	}
	return mu
}

func (e *fakeEnv) NextRowID(table string) row.Id {
	e.tableMusL.Lock()
	defer e.tableMusL.Unlock()
	counter, ok := e.nextID[table]
	if !ok {
		counter = new(int64)
		e.nextID[table] = counter
	}
	return row.Id(atomic.AddInt64(counter, 1))
}

const userSchemaYAML = `
name: testdb
version: 1
table:
  user:
    column:
      id: integer
      email: string
      age: integer
    constraint:
      primaryKey: [id]
      unique:
        byEmail: [email]
      nullable: [age]
  order:
    column:
      id: integer
      userId: integer
    constraint:
      primaryKey: [id]
      nullable: [userId]
      foreignKey:
        fkUser:
          localColumn: userId
          reference: user
          remoteColumn: id
`

func insertUserQuery(payload row.Payload) Query {
	return Query{
		Plan:   exec.InsertValues{Table: "user", Rows: []row.Payload{payload}},
		Tables: []string{"user"},
		Write:  true,
	}
}

func TestExecInsertCommitsToStoreAndCache(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)

	results, err := tx.Exec(context.Background(), []Query{
		insertUserQuery(row.Payload{"id": row.Integer(1), "email": row.String("a@example.com"), "age": row.Integer(30)}),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Len())
	assert.Equal(t, Finished, tx.State())

	_, ok := env.cache.Get("user", 1)
	assert.True(t, ok, "commit should apply the mutation to the shared cache")

	rows, err := env.store.Scan(context.Background(), "user")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExecRejectsSecondUseOfSameTransaction(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)

	_, err := tx.Exec(context.Background(), []Query{insertUserQuery(row.Payload{"id": row.Integer(1), "email": row.String("a@example.com")})})
	require.NoError(t, err)

	_, err = tx.Exec(context.Background(), []Query{insertUserQuery(row.Payload{"id": row.Integer(2), "email": row.String("b@example.com")})})
	require.Error(t, err)
	assert.Equal(t, lferrors.SCOPE, lferrors.KindOf(err))
}

func TestExecRollsBackOnUniqueConstraintViolation(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	seed := New(env)
	_, err := seed.Exec(context.Background(), []Query{insertUserQuery(row.Payload{"id": row.Integer(1), "email": row.String("dup@example.com")})})
	require.NoError(t, err)

	tx := New(env)
	_, err = tx.Exec(context.Background(), []Query{insertUserQuery(row.Payload{"id": row.Integer(2), "email": row.String("dup@example.com")})})
	require.Error(t, err)
	assert.Equal(t, lferrors.CONSTRAINT, lferrors.KindOf(err))
	assert.Equal(t, Failed, tx.State())

	// The rejected row must not have reached the cache.
	_, ok := env.cache.Get("user", 2)
	assert.False(t, ok)
}

func TestExecRollsBackOnMissingForeignKey(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	q := Query{
		Plan:   exec.InsertValues{Table: "order", Rows: []row.Payload{{"id": row.Integer(1), "userId": row.Integer(99)}}},
		Tables: []string{"order"},
		Write:  true,
	}
	_, err := tx.Exec(context.Background(), []Query{q})
	require.Error(t, err)
	assert.Equal(t, lferrors.CONSTRAINT, lferrors.KindOf(err))
}

func TestExecAllowsNullForeignKey(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	q := Query{
		Plan:   exec.InsertValues{Table: "order", Rows: []row.Payload{{"id": row.Integer(1), "userId": row.Null}}},
		Tables: []string{"order"},
		Write:  true,
	}
	_, err := tx.Exec(context.Background(), []Query{q})
	require.NoError(t, err)
}

func TestExecRejectsNonNullableColumnMissing(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	_, err := tx.Exec(context.Background(), []Query{insertUserQuery(row.Payload{"id": row.Integer(1)})})
	require.Error(t, err)
	assert.Equal(t, lferrors.CONSTRAINT, lferrors.KindOf(err))
}

func TestReadYourOwnWritesBeforeCommit(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	tx.state = Created
	tx.ctx = context.Background()
	require.NoError(t, tx.acquireLocks(context.Background(), []Query{{Tables: []string{"user"}, Write: true}}))
	tx.state = Executing

	require.NoError(t, tx.Mutate("user", 1, nil, row.Payload{"id": row.Integer(1), "email": row.String("x@example.com")}))

	rows, err := tx.ReadTable("user")
	require.NoError(t, err)
	require.Len(t, rows, 1, "a pending insert must be visible to the same transaction before commit")

	_, ok := env.cache.Get("user", 1)
	assert.False(t, ok, "a pending mutation must not leak into the shared cache before commit")

	tx.releaseLocks()
}

func TestRollbackDiscardsJournalAndReleasesLocks(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	tx.state = Created
	tx.ctx = context.Background()
	require.NoError(t, tx.acquireLocks(context.Background(), []Query{{Tables: []string{"user"}, Write: true}}))
	tx.state = Executing
	require.NoError(t, tx.Mutate("user", 1, nil, row.Payload{"id": row.Integer(1), "email": row.String("x@example.com")}))

	tx.Rollback()
	assert.Equal(t, Failed, tx.State())
	assert.Empty(t, tx.journal.Mutations())
	assert.Empty(t, tx.held)

	// Locks were released: a fresh acquire on the same table must succeed promptly.
	other := New(env)
	require.NoError(t, other.acquireLocks(context.Background(), []Query{{Tables: []string{"user"}, Write: true}}))
	other.releaseLocks()
}

func TestAcquireLocksOrdersByTableNameAndEscalatesOnWrite(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	require.NoError(t, tx.acquireLocks(context.Background(), []Query{
		{Tables: []string{"order"}, Write: false},
		{Tables: []string{"user"}, Write: true},
	}))
	require.Len(t, tx.held, 2)
	assert.Equal(t, "order", tx.held[0].table)
	assert.Equal(t, "user", tx.held[1].table)
	assert.False(t, tx.held[0].exclusive)
	assert.True(t, tx.held[1].exclusive)
	tx.releaseLocks()
}

func TestExecCancelledContextDuringExecutionRollsBack(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tx.Exec(ctx, []Query{insertUserQuery(row.Payload{"id": row.Integer(1), "email": row.String("x@example.com")})})
	require.Error(t, err)
	assert.Equal(t, lferrors.CANCELLED, lferrors.KindOf(err))
}

// panickingPlan is a Node stand-in for an invariant breach deep inside
// plan execution, used to exercise the transaction-boundary recover.
type panickingPlan struct{}

func (panickingPlan) Execute(scope exec.Scope) (relation.Relation, error) {
	panic("simulated invariant breach")
}

func TestExecRecoversPanicAsUnknownErrorAndRollsBack(t *testing.T) {
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)

	_, err := tx.Exec(context.Background(), []Query{
		{Plan: panickingPlan{}, Tables: []string{"user"}, Write: true},
	})
	require.Error(t, err)
	assert.Equal(t, lferrors.UNKNOWN, lferrors.KindOf(err))
	assert.Equal(t, Failed, tx.State())
	assert.Empty(t, tx.held, "locks held during the panicking query must be released")
}

func TestExecPanicsUncoveredWhenDebugEnvSet(t *testing.T) {
	t.Setenv("LOVEFIELD_DEBUG", "1")
	env := newFakeEnv(t, userSchemaYAML)
	tx := New(env)

	assert.Panics(t, func() {
		_, _ = tx.Exec(context.Background(), []Query{
			{Plan: panickingPlan{}, Tables: []string{"user"}, Write: true},
		})
	})
}

func TestStateStringCoversEveryState(t *testing.T) {
	for _, s := range []State{Created, AcquiringLocks, Executing, Committing, Finished, RollingBack, Failed} {
		assert.NotEqual(t, "UNKNOWN", s.String())
	}
	assert.Equal(t, "UNKNOWN", State(99).String())
}
