// Package cache implements the process-wide row cache and the
// per-transaction write journal that overlays it for read-your-writes
// semantics.
package cache

import (
	"sync"

	"github.com/ghchinoy/lovefield/row"
)

type rowKey struct {
	table string
	id    row.Id
}

// Cache maps (table, rowId) to payload. It is shared across transactions;
// mutation is only permitted during a transaction's COMMITTING phase
// while that table's writer lock is held (see package txn).
type Cache struct {
	mu   sync.RWMutex
	rows map[rowKey]row.Payload
}

// New constructs an empty cache.
func New() *Cache {
	return &Cache{rows: map[rowKey]row.Payload{}}
}

// Get returns the cached payload for (table, id), if present.
func (c *Cache) Get(table string, id row.Id) (row.Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.rows[rowKey{table, id}]
	return p, ok
}

// Fill installs a payload fetched from the backing store on a cache miss.
func (c *Cache) Fill(table string, id row.Id, payload row.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[rowKey{table, id}] = payload
}

// Set writes or overwrites a cached payload; used at commit time to apply
// a journal's insert/update entries.
func (c *Cache) Set(table string, id row.Id, payload row.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[rowKey{table, id}] = payload
}

// Remove evicts a row; used at commit time for journal delete entries.
func (c *Cache) Remove(table string, id row.Id) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, rowKey{table, id})
}

// Snapshot returns every cached row id and payload for table, used by a
// full table scan once the table's read lock is held.
func (c *Cache) Snapshot(table string) map[row.Id]row.Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[row.Id]row.Payload{}
	for k, v := range c.rows {
		if k.table == table {
			out[k.id] = v
		}
	}
	return out
}

// Op tags the kind of mutation a journal entry represents.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

// Mutation is one pending change: Before is the payload a table/row had
// before this transaction touched it (nil for an insert); After is its
// payload going forward (nil for a delete).
type Mutation struct {
	Table  string
	RowID  row.Id
	Op     Op
	Before row.Payload
	After  row.Payload
}

// Journal is one transaction's ordered list of pending mutations. It is
// owned by exactly one transaction and never shared.
type Journal struct {
	mutations []Mutation
	// latest tracks the most recent pending mutation per (table, row),
	// so that read-your-writes consults the net effect rather than
	// every intermediate edit.
	latest map[rowKey]int
}

// NewJournal constructs an empty journal.
func NewJournal() *Journal {
	return &Journal{latest: map[rowKey]int{}}
}

// Record appends a mutation to the journal.
func (j *Journal) Record(m Mutation) {
	key := rowKey{m.Table, m.RowID}
	j.mutations = append(j.mutations, m)
	j.latest[key] = len(j.mutations) - 1
}

// Lookup returns the net pending mutation for (table, id), if any.
func (j *Journal) Lookup(table string, id row.Id) (Mutation, bool) {
	idx, ok := j.latest[rowKey{table, id}]
	if !ok {
		return Mutation{}, false
	}
	return j.mutations[idx], true
}

// Mutations returns the journal in recorded order.
func (j *Journal) Mutations() []Mutation {
	return append([]Mutation(nil), j.mutations...)
}

// TableRows returns the net effect, for table, of every row this journal
// has touched: inserted/updated rows with their current payload, and
// deleted rows mapped to nil so callers can distinguish "not touched"
// from "deleted".
func (j *Journal) TableRows(table string) map[row.Id]row.Payload {
	out := map[row.Id]row.Payload{}
	for key, idx := range j.latest {
		if key.table != table {
			continue
		}
		m := j.mutations[idx]
		if m.Op == OpDelete {
			out[key.id] = nil
		} else {
			out[key.id] = m.After
		}
	}
	return out
}
