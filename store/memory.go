package store

import (
	"context"
	"sync"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

// Memory is the core, always-available backing store: a process-local map
// of table name to row id to payload. It backs the unit tests outside
// package store and is a legitimate production choice for a database that need
// not outlive the process.
type Memory struct {
	mu     sync.Mutex
	schema *schema.Schema
	tables map[string]map[row.Id]row.Payload
}

// NewMemory constructs an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{tables: map[string]map[row.Id]row.Payload{}}
}

func (m *Memory) Open(ctx context.Context, s *schema.Schema) error {
	select {
	case <-ctx.Done():
		return lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "opening memory store")
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schema = s
	for _, t := range s.Tables() {
		if _, ok := m.tables[t.Name]; !ok {
			m.tables[t.Name] = map[row.Id]row.Payload{}
		}
	}
	return nil
}

func (m *Memory) Scan(ctx context.Context, table string) ([]row.Row, error) {
	select {
	case <-ctx.Done():
		return nil, lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "scanning table %s", table)
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	out := make([]row.Row, 0, len(rows))
	for id, payload := range rows {
		out = append(out, row.New(id, payload))
	}
	return out, nil
}

func (m *Memory) Write(ctx context.Context, batch []cache.Mutation) error {
	select {
	case <-ctx.Done():
		return lferrors.Wrap(lferrors.CANCELLED, ctx.Err(), "writing batch")
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mut := range batch {
		table, ok := m.tables[mut.Table]
		if !ok {
			table = map[row.Id]row.Payload{}
			m.tables[mut.Table] = table
		}
		switch mut.Op {
		case cache.OpInsert, cache.OpUpdate:
			table[mut.RowID] = mut.After
		case cache.OpDelete:
			delete(table, mut.RowID)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
