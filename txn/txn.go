// Package txn implements the transaction runtime (§4.8): the lock/commit
// state machine, read-your-writes journal overlay, and the commit
// sequence that validates constraints, applies mutations to indices and
// cache, and flushes them to the backing store.
package txn

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/exec"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
	"github.com/ghchinoy/lovefield/store"
)

// Env is everything a Transaction needs from its owning database. A
// lovefield.Environment structurally satisfies this interface; package
// txn never imports package lovefield, so the dependency runs one way.
type Env interface {
	Schema() *schema.Schema
	Cache() *cache.Cache
	Store() store.Adapter
	IDGen() *relation.IdGen
	Indices() *catalog.IndexSet
	CommitMutex() *sync.Mutex
	TableLock(table string) *sync.RWMutex
	NextRowID(table string) row.Id
}

// State is one point in a transaction's lifecycle (§4.8).
type State int

const (
	Created State = iota
	AcquiringLocks
	Executing
	Committing
	Finished
	RollingBack
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "CREATED"
	case AcquiringLocks:
		return "ACQUIRING_LOCKS"
	case Executing:
		return "EXECUTING"
	case Committing:
		return "COMMITTING"
	case Finished:
		return "FINISHED"
	case RollingBack:
		return "ROLLING_BACK"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Query is one compiled physical plan to run as part of a transaction's
// Exec batch, tagged with the tables it touches and whether it mutates
// them — the information Exec needs to acquire the right locks up front.
type Query struct {
	Plan   exec.Node
	Tables []string
	Write  bool
}

// Transaction runs a batch of physical plans under snapshot isolation and
// table-level locking, journaling mutations until Exec's internal commit
// phase applies them (§4.8, §5).
type Transaction struct {
	env     Env
	state   State
	journal *cache.Journal
	held    []heldLock
	ctx     context.Context
}

type heldLock struct {
	table     string
	mu        *sync.RWMutex
	exclusive bool
}

// New constructs a fresh, unstarted transaction bound to env.
func New(env Env) *Transaction {
	return &Transaction{env: env, state: Created, journal: cache.NewJournal()}
}

// State reports the transaction's current lifecycle state.
func (t *Transaction) State() State { return t.state }

// Exec runs queries as one atomic batch: lock acquisition, execution,
// constraint validation, index/cache application, and store flush, in
// that order. Any failure up through validation rolls the whole batch
// back; a failure during the store flush marks the transaction Failed
// (§4.8's degraded-mode note) since indices and cache have already moved.
func (t *Transaction) Exec(ctx context.Context, queries []Query) ([]relation.Relation, error) {
	if t.state != Created {
		return nil, lferrors.New(lferrors.SCOPE, "transaction already used (state %s)", t.state)
	}
	t.ctx = ctx

	if err := t.acquireLocks(ctx, queries); err != nil {
		t.state = RollingBack
		return nil, err
	}

	t.state = Executing
	results, err := t.runQueries(ctx, queries)
	if err != nil {
		return nil, err
	}

	if err := t.commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// runQueries runs queries in order and recovers a panic at this
// transaction boundary: any query that panics rolls the batch back and
// surfaces as an UNKNOWN lferrors.Error (§7's catch-all kind) rather than
// crashing the caller's goroutine. Setting LOVEFIELD_DEBUG=1 disables the
// recover so a panic surfaces with its original stack during development.
func (t *Transaction) runQueries(ctx context.Context, queries []Query) (result []relation.Relation, err error) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if os.Getenv("LOVEFIELD_DEBUG") == "1" {
			panic(p)
		}
		t.rollback()
		result, err = nil, lferrors.New(lferrors.UNKNOWN, "transaction panicked: %v", p)
	}()

	results := make([]relation.Relation, 0, len(queries))
	for _, q := range queries {
		select {
		case <-ctx.Done():
			t.rollback()
			return nil, lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "transaction cancelled during execution")
		default:
		}
		r, err := q.Plan.Execute(t)
		if err != nil {
			t.rollback()
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// acquireLocks takes every table lock queries will need, in lexicographic
// table-name order, so two transactions contending for overlapping table
// sets cannot deadlock (§5).
func (t *Transaction) acquireLocks(ctx context.Context, queries []Query) error {
	t.state = AcquiringLocks
	exclusive := map[string]bool{}
	for _, q := range queries {
		for _, table := range q.Tables {
			if q.Write {
				exclusive[table] = true
			} else if _, ok := exclusive[table]; !ok {
				exclusive[table] = false
			}
		}
	}
	tables := make([]string, 0, len(exclusive))
	for table := range exclusive {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		mu := t.env.TableLock(table)
		excl := exclusive[table]
		if err := acquire(ctx, mu, excl); err != nil {
			t.releaseLocks()
			return err
		}
		t.held = append(t.held, heldLock{table: table, mu: mu, exclusive: excl})
	}
	return nil
}

// acquire takes mu, polling with TryLock so a cancelled ctx is noticed
// promptly without ever leaving a background goroutine that might still
// acquire the mutex after the caller has given up and moved on.
func acquire(ctx context.Context, mu *sync.RWMutex, exclusive bool) error {
	tryLock := mu.TryLock
	if !exclusive {
		tryLock = mu.TryRLock
	}
	for {
		if tryLock() {
			return nil
		}
		select {
		case <-ctx.Done():
			return lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "acquiring table lock")
		case <-time.After(time.Millisecond):
		}
	}
}

func (t *Transaction) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		h := t.held[i]
		if h.exclusive {
			h.mu.Unlock()
		} else {
			h.mu.RUnlock()
		}
	}
	t.held = nil
}

func (t *Transaction) rollback() {
	t.state = RollingBack
	t.journal = cache.NewJournal()
	t.releaseLocks()
	t.state = Failed
}

// Rollback discards the transaction's pending journal and releases its
// locks. Safe to call only before Exec's commit phase begins.
func (t *Transaction) Rollback() {
	if t.state == Executing || t.state == AcquiringLocks || t.state == Created {
		t.rollback()
	}
}
