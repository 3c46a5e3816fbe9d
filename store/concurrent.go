package store

import (
	"cmp"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/util"
)

// concurrentOutput pairs a worker's result with its original input position,
// so a pool of goroutines that finish out of order can still be reassembled
// deterministically.
type concurrentOutput struct {
	order  int
	output any
}

// concurrentMap runs f over every input with at most concurrency goroutines
// in flight, returning results in input order. concurrency <= 0 means
// unlimited fan-out; it exists so Database.Open can bound how many tables
// it scans from the backing store at once instead of opening one goroutine
// per table in a schema with hundreds of them.
func concurrentMap[Tin any, Tout any](ctx context.Context, inputs []Tin, concurrency int, f func(context.Context, Tin) (Tout, error)) ([]Tout, error) {
	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	ch := make(chan concurrentOutput, len(inputs))

	for i := range inputs {
		order, in := i, inputs[i]
		eg.Go(func() error {
			out, err := f(ctx, in)
			if err != nil {
				return err
			}
			ch <- concurrentOutput{order, out}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	close(ch)

	tmp := make([]concurrentOutput, 0, len(inputs))
	for t := range ch {
		tmp = append(tmp, t)
	}
	slices.SortFunc(tmp, func(a, b concurrentOutput) int {
		return cmp.Compare(a.order, b.order)
	})

	return util.TransformSlice(tmp, func(t concurrentOutput) Tout {
		return t.output.(Tout)
	}), nil
}

// TableRows is one table's full row set, as warmed from a backing store at
// database-open time.
type TableRows struct {
	Table string
	Rows  []row.Row
}

// WarmTables scans every named table from adapter concurrently, bounded by
// concurrency, and returns their rows in the same order tables was given in
// regardless of which goroutine finished first. Database.Open calls this
// once per backing store to fill the cache and rebuild indices before
// accepting transactions (§3: indices are derived, never persisted).
func WarmTables(ctx context.Context, adapter Adapter, tables []string, concurrency int) ([]TableRows, error) {
	results, err := concurrentMap(ctx, tables, concurrency, func(ctx context.Context, table string) (TableRows, error) {
		rows, err := adapter.Scan(ctx, table)
		if err != nil {
			return TableRows{}, lferrors.Wrap(lferrors.STORE, err, "warming table %s", table)
		}
		return TableRows{Table: table, Rows: rows}, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
