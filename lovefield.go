// Package lovefield is the engine's entry point: Open a schema and a
// backing store adapter into a Database, then start transactions against
// it. Database ties together the subsystems implemented by packages
// schema, store, cache, catalog, relation, and txn.
package lovefield

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
	"github.com/ghchinoy/lovefield/store"
	"github.com/ghchinoy/lovefield/txn"
)

// Environment is the explicit, per-instance replacement for the original
// engine's process-wide service registry (§9): it owns the entry-id
// counter, cache, index set, and lock table for one open database, and
// structurally satisfies txn.Env without package txn ever importing this
// package back.
type Environment struct {
	sc     *schema.Schema
	adapter store.Adapter
	cache  *cache.Cache
	idx    *catalog.IndexSet
	gen    *relation.IdGen

	commitMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.RWMutex

	nextRowIDMu sync.Mutex
	nextRowID   map[string]row.Id
}

func (e *Environment) Schema() *schema.Schema        { return e.sc }
func (e *Environment) Cache() *cache.Cache           { return e.cache }
func (e *Environment) Store() store.Adapter          { return e.adapter }
func (e *Environment) IDGen() *relation.IdGen        { return e.gen }
func (e *Environment) Indices() *catalog.IndexSet    { return e.idx }
func (e *Environment) CommitMutex() *sync.Mutex      { return &e.commitMu }

func (e *Environment) TableLock(table string) *sync.RWMutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[table]
	if !ok {
		mu = &sync.RWMutex{}
		e.locks[table] = mu
	}
	return mu
}

func (e *Environment) NextRowID(table string) row.Id {
	e.nextRowIDMu.Lock()
	defer e.nextRowIDMu.Unlock()
	e.nextRowID[table]++
	return e.nextRowID[table]
}

// Database is the open handle a caller holds: the schema-bound
// Environment plus the transaction lifecycle entry point.
type Database struct {
	env *Environment
}

// Open warms the cache and indices from adapter's current content (via
// store.WarmTables, concurrently across tables per §5) and returns a
// ready-to-use Database. concurrency bounds how many tables are scanned
// at once; 0 means unbounded.
func Open(ctx context.Context, sc *schema.Schema, adapter store.Adapter, concurrency int) (*Database, error) {
	if err := adapter.Open(ctx, sc); err != nil {
		return nil, lferrors.Wrap(lferrors.STORE, err, "opening backing store")
	}

	env := &Environment{
		sc:        sc,
		adapter:   adapter,
		cache:     cache.New(),
		idx:       catalog.New(sc),
		gen:       &relation.IdGen{},
		locks:     map[string]*sync.RWMutex{},
		nextRowID: map[string]row.Id{},
	}

	tables := sc.LoadOrder()
	warmed, err := store.WarmTables(ctx, adapter, tables, concurrency)
	if err != nil {
		return nil, err
	}

	// A MetadataStore adapter (store.SQLite) persists each table's row-id
	// high-water mark across restarts; prefer it over rederiving from the
	// scanned rows, which would reuse a deleted row's id once every row of
	// a table has been removed and the store reopened. store.Memory has no
	// persisted state to recover, so it falls back to the scanned max.
	var persisted map[string]row.Id
	if ms, ok := adapter.(store.MetadataStore); ok {
		persisted, err = ms.HighWaterMarks(ctx)
		if err != nil {
			return nil, err
		}
	}

	for _, tr := range warmed {
		ti, ok := env.idx.Table(tr.Table)
		if !ok {
			continue
		}
		for _, r := range tr.Rows {
			env.cache.Fill(tr.Table, r.ID(), r.Payload())
			if err := catalog.Add(ti, r); err != nil {
				return nil, lferrors.Wrap(lferrors.CONSTRAINT, err, "rebuilding indices for table %s", tr.Table)
			}
		}
		hwm := highWaterMark(tr.Rows)
		if persistedHwm, ok := persisted[tr.Table]; ok && persistedHwm > hwm {
			hwm = persistedHwm
		}
		env.nextRowID[tr.Table] = hwm
		slog.Debug("warmed table", "table", tr.Table, "rows", len(tr.Rows))
	}

	return &Database{env: env}, nil
}

func highWaterMark(rows []row.Row) row.Id {
	var max row.Id
	for _, r := range rows {
		if r.ID() > max {
			max = r.ID()
		}
	}
	return max
}

// NewTransaction starts a fresh transaction bound to this database.
func (d *Database) NewTransaction(ctx context.Context) (*txn.Transaction, error) {
	select {
	case <-ctx.Done():
		return nil, lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "starting transaction")
	default:
	}
	return txn.New(d.env), nil
}

// Environment exposes the database's Environment, mainly for the query
// builder (package query) to construct plans against the right schema
// and index set without importing package txn itself.
func (d *Database) Environment() *Environment { return d.env }

// Close releases the backing store.
func (d *Database) Close() error {
	return d.env.adapter.Close()
}
