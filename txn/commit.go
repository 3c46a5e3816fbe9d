package txn

import (
	"context"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/catalog"
	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/relation"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

// Context returns the context Exec was called with. Only physical
// operators invoked from within Exec hold a reference to the Transaction,
// so this is always called after ctx has been set.
func (t *Transaction) Context() context.Context { return t.ctx }

// Gen returns the entry-id generator entries allocated during this
// transaction draw from.
func (t *Transaction) Gen() *relation.IdGen { return t.env.IDGen() }

// Indices exposes the database-wide index set, read-only during
// execution; the transaction only mutates it at commit time.
func (t *Transaction) Indices(table string) (*catalog.TableIndices, bool) {
	return t.env.Indices().Table(table)
}

// NextRowID allocates a fresh row id for table, used by InsertValues.
func (t *Transaction) NextRowID(table string) row.Id {
	return t.env.NextRowID(table)
}

// ReadTable returns table's committed rows overlaid with this
// transaction's own pending journal entries, so a transaction always sees
// its own writes even before they are applied to the shared cache.
func (t *Transaction) ReadTable(table string) ([]row.Row, error) {
	base := t.env.Cache().Snapshot(table)
	pending := t.journal.TableRows(table)
	for id, payload := range pending {
		if payload == nil {
			delete(base, id)
		} else {
			base[id] = payload
		}
	}
	out := make([]row.Row, 0, len(base))
	for id, payload := range base {
		out = append(out, row.New(id, payload))
	}
	return out, nil
}

// Mutate records a pending write. before/after follow the convention
// documented on exec.Scope: an insert has before==nil, a delete has
// after==nil, an update has both.
func (t *Transaction) Mutate(table string, id row.Id, before, after row.Payload) error {
	op := cache.OpUpdate
	switch {
	case before == nil:
		op = cache.OpInsert
	case after == nil:
		op = cache.OpDelete
	}
	t.journal.Record(cache.Mutation{Table: table, RowID: id, Op: op, Before: before, After: after})
	return nil
}

// commit runs the five commit phases of §4.8: validate constraints against
// the journal, apply it to indices, apply it to cache, flush to the
// backing store, then release locks. A failure in phases 1-2 is a full
// rollback since nothing durable has moved yet; a failure flushing to the
// store (phase 4) marks the transaction Failed since indices and cache
// have already committed the change in memory.
func (t *Transaction) commit(ctx context.Context) error {
	t.state = Committing

	commitMu := t.env.CommitMutex()
	commitMu.Lock()
	err := t.validate()
	var mutations []cache.Mutation
	if err == nil {
		mutations = t.journal.Mutations()
		t.applyToIndices(mutations)
		t.applyToCache(mutations)
	}
	commitMu.Unlock()
	if err != nil {
		t.rollback()
		return err
	}

	if err := t.env.Store().Write(ctx, mutations); err != nil {
		t.state = Failed
		t.releaseLocks()
		return lferrors.Wrap(lferrors.STORE, err, "commit: flushing to backing store")
	}

	t.releaseLocks()
	t.state = Finished
	return nil
}

// validate checks every pending mutation's column types/nullability,
// primary-key and unique-index constraints, and foreign keys, entirely
// against already-committed state. A mutation that inserts into one table
// and references that same insert from another table later in the same
// batch is not considered visible to the later check — a conservative
// simplification of intra-batch cross-table visibility.
func (t *Transaction) validate() error {
	sc := t.env.Schema()
	for _, m := range t.journal.Mutations() {
		if m.After == nil {
			continue
		}
		table, ok := sc.Table(m.Table)
		if !ok {
			return lferrors.New(lferrors.NOT_FOUND, "commit: unknown table %s", m.Table)
		}
		if err := validateColumns(table, m.After); err != nil {
			return err
		}
		if err := t.validateUnique(table, m.Table, m.RowID, m.After); err != nil {
			return err
		}
		if err := t.validateForeignKeys(table, m.After); err != nil {
			return err
		}
	}
	return nil
}

func validateColumns(table *schema.Table, payload row.Payload) error {
	for _, col := range table.Columns {
		v := payload[col.Name] // zero Value is the null value when absent
		if v.IsNull() {
			if !col.Nullable {
				return lferrors.New(lferrors.CONSTRAINT, "table %s: column %s is not nullable", table.Name, col.Name)
			}
			continue
		}
		if !col.Type.Matches(v) {
			return lferrors.New(lferrors.TYPE, "table %s: column %s expects %s, got %s", table.Name, col.Name, col.Type, v.Kind)
		}
	}
	return nil
}

func (t *Transaction) applyToIndices(mutations []cache.Mutation) {
	for _, m := range mutations {
		ti, ok := t.env.Indices().Table(m.Table)
		if !ok {
			continue
		}
		if m.Before != nil {
			catalog.Remove(ti, row.New(m.RowID, m.Before))
		}
		if m.After != nil {
			_ = catalog.Add(ti, row.New(m.RowID, m.After))
		}
	}
}

func (t *Transaction) applyToCache(mutations []cache.Mutation) {
	c := t.env.Cache()
	for _, m := range mutations {
		if m.After == nil {
			c.Remove(m.Table, m.RowID)
		} else {
			c.Set(m.Table, m.RowID, m.After)
		}
	}
}

// uniqueIndex is the subset of index.Index validateUnique needs; both
// *index.Ordered and *index.Hash satisfy it.
type uniqueIndex interface {
	Get(k key.Key) []row.Id
}

func (t *Transaction) validateUnique(table *schema.Table, tableName string, id row.Id, after row.Payload) error {
	ti, ok := t.env.Indices().Table(tableName)
	if !ok {
		return nil
	}
	check := func(idx uniqueIndex, columns []string) error {
		if idx == nil {
			return nil
		}
		k := key.Encode(columns, after)
		for _, existing := range idx.Get(k) {
			if existing != id {
				return lferrors.New(lferrors.CONSTRAINT, "table %s: unique constraint violated on %v", tableName, columns)
			}
		}
		return nil
	}
	if err := check(ti.Primary, ti.PrimaryColumns); err != nil {
		return err
	}
	for _, si := range ti.Secondary {
		if !si.Unique {
			continue
		}
		if err := check(si.Index, si.Columns); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transaction) validateForeignKeys(table *schema.Table, after row.Payload) error {
	for _, fk := range table.ForeignKeys {
		remote, ok := t.env.Indices().Table(fk.RemoteTable)
		if !ok || remote.Primary == nil {
			continue
		}
		values := make([]row.Value, len(fk.LocalColumns))
		allNull := true
		for i, c := range fk.LocalColumns {
			values[i] = after[c]
			if !values[i].IsNull() {
				allNull = false
			}
		}
		if allNull {
			continue // a wholly-NULL foreign key is vacuously satisfied
		}
		k := key.Of(values...)
		if !remote.Primary.ContainsKey(k) {
			return lferrors.New(lferrors.CONSTRAINT, "foreign key %s: no matching row in %s", fk.Name, fk.RemoteTable)
		}
	}
	return nil
}
