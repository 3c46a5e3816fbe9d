// Package store defines the backing-store adapter contract (§6) and ships
// two implementations: an in-memory adapter used by the core and by
// tests, and a persistent adapter over an embedded single-file database —
// the concrete stand-in for "a browser's structured-storage facility"
// named in §1.
package store

import (
	"context"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

// Adapter is the uniform interface every backing store implements.
// Every method is context-aware so callers can cancel a pending fetch or
// flush, the realization of this engine's "asynchronous boundary" (§5).
type Adapter interface {
	// Open loads or initializes the store for the given schema.
	Open(ctx context.Context, s *schema.Schema) error
	// Scan reads every row of table, used at startup to warm the cache
	// and rebuild indices (indices are never persisted, §3).
	Scan(ctx context.Context, table string) ([]row.Row, error)
	// Write commits a batch of mutations as a single logical operation.
	// Atomicity is best-effort, bounded by the concrete adapter.
	Write(ctx context.Context, batch []cache.Mutation) error
	Close() error
}

// MetadataStore is implemented by adapters that persist a `__metadata__`
// entry across process restarts (§6's "persisted state layout"): schema
// version plus the row-id high-water mark per table. lovefield.Open type-
// asserts for it to recover each table's high-water mark directly instead
// of rederiving it from Scan's result, which would silently reuse a
// deleted row's id once every row of a table has been removed and the
// store reopened. store.Memory does not implement it: an in-memory store
// never outlives the process, so there is no persisted state to recover
// from, and rederiving from the freshly seeded scan is exact by
// construction.
type MetadataStore interface {
	// HighWaterMarks returns the persisted row-id high-water mark for
	// every table that has one recorded. A table absent from the map has
	// never been written to through this adapter.
	HighWaterMarks(ctx context.Context) (map[string]row.Id, error)
}
