package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/ghchinoy/lovefield/cache"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/schema"
)

// metadataTable holds the `__metadata__` entry of §6's persisted state
// layout: one row for the schema version and one row per table recording
// its row-id high-water mark, so a restart never reuses a row id even if
// every row of that table has since been deleted.
const metadataTable = "lovefield___metadata__"

const hwmPrefix = "hwm:"

// SQLite is the persistent adapter: a single-file embedded database used
// as the concrete stand-in for "a browser's structured-storage facility"
// (§1). Each Lovefield table maps to one SQL table with two columns,
// row_id and payload, keeping the adapter agnostic to the declared column
// set — the typed schema lives one layer up, in package schema.
type SQLite struct {
	path string
	db   *sql.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed adapter at
// path. Pass ":memory:" for a private, unshared in-memory database useful
// in tests that want to exercise the persistent code path without a file.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, lferrors.Wrap(lferrors.STORE, err, "opening sqlite store %s", path)
	}
	return &SQLite{path: path, db: db}, nil
}

func tableName(logical string) string {
	return "lovefield_" + logical
}

func (s *SQLite) Open(ctx context.Context, sc *schema.Schema) error {
	metaDDL := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		metadataTable,
	)
	if _, err := s.db.ExecContext(ctx, metaDDL); err != nil {
		return lferrors.Wrap(lferrors.STORE, err, "creating metadata table")
	}

	for _, t := range sc.Tables() {
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (row_id INTEGER PRIMARY KEY, payload BLOB NOT NULL)`,
			tableName(t.Name),
		)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return lferrors.Wrap(lferrors.STORE, err, "creating storage table for %s", t.Name)
		}
	}

	versionQuery := fmt.Sprintf(
		`INSERT INTO %s (name, value) VALUES ('schema_version', ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		metadataTable,
	)
	if _, err := s.db.ExecContext(ctx, versionQuery, strconv.Itoa(sc.Version)); err != nil {
		return lferrors.Wrap(lferrors.STORE, err, "recording schema version")
	}
	return nil
}

// HighWaterMarks implements store.MetadataStore by reading every
// persisted hwm:<table> entry back out of the metadata table.
func (s *SQLite) HighWaterMarks(ctx context.Context) (map[string]row.Id, error) {
	query := fmt.Sprintf(`SELECT name, value FROM %s WHERE name LIKE ?`, metadataTable)
	rows, err := s.db.QueryContext(ctx, query, hwmPrefix+"%")
	if err != nil {
		return nil, lferrors.Wrap(lferrors.STORE, err, "reading persisted high-water marks")
	}
	defer rows.Close()

	out := map[string]row.Id{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, lferrors.Wrap(lferrors.STORE, err, "reading metadata row")
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, lferrors.Wrap(lferrors.STORE, err, "parsing high-water mark for %s", name)
		}
		out[strings.TrimPrefix(name, hwmPrefix)] = row.Id(n)
	}
	return out, rows.Err()
}

func (s *SQLite) Scan(ctx context.Context, table string) ([]row.Row, error) {
	query := fmt.Sprintf(`SELECT row_id, payload FROM %s`, tableName(table))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, lferrors.Wrap(lferrors.STORE, err, "scanning table %s", table)
	}
	defer rows.Close()

	var out []row.Row
	for rows.Next() {
		var id int64
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, lferrors.Wrap(lferrors.STORE, err, "reading row of table %s", table)
		}
		decoded, err := row.UnmarshalPayload(payload)
		if err != nil {
			return nil, lferrors.Wrap(lferrors.STORE, err, "decoding payload of table %s row %d", table, id)
		}
		out = append(out, row.New(row.Id(id), decoded))
	}
	return out, rows.Err()
}

func (s *SQLite) Write(ctx context.Context, batch []cache.Mutation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lferrors.Wrap(lferrors.STORE, err, "beginning sqlite write batch")
	}

	highWater := map[string]row.Id{}
	for _, mut := range batch {
		switch mut.Op {
		case cache.OpInsert, cache.OpUpdate:
			payload, err := row.MarshalPayload(mut.After)
			if err != nil {
				tx.Rollback()
				return lferrors.Wrap(lferrors.STORE, err, "encoding payload for %s row %d", mut.Table, mut.RowID)
			}
			query := fmt.Sprintf(
				`INSERT INTO %s (row_id, payload) VALUES (?, ?)
				 ON CONFLICT(row_id) DO UPDATE SET payload = excluded.payload`,
				tableName(mut.Table),
			)
			if _, err := tx.ExecContext(ctx, query, int64(mut.RowID), payload); err != nil {
				tx.Rollback()
				return lferrors.Wrap(lferrors.STORE, err, "writing %s row %d", mut.Table, mut.RowID)
			}
			if mut.RowID > highWater[mut.Table] {
				highWater[mut.Table] = mut.RowID
			}
		case cache.OpDelete:
			query := fmt.Sprintf(`DELETE FROM %s WHERE row_id = ?`, tableName(mut.Table))
			if _, err := tx.ExecContext(ctx, query, int64(mut.RowID)); err != nil {
				tx.Rollback()
				return lferrors.Wrap(lferrors.STORE, err, "deleting %s row %d", mut.Table, mut.RowID)
			}
		}
	}

	// A delete never lowers a table's persisted high-water mark: row ids
	// are never reused even after every row of a table is removed.
	for table, id := range highWater {
		query := fmt.Sprintf(
			`INSERT INTO %s (name, value) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET value = CASE
			   WHEN CAST(excluded.value AS INTEGER) > CAST(%s.value AS INTEGER) THEN excluded.value
			   ELSE %s.value
			 END`,
			metadataTable, metadataTable, metadataTable,
		)
		if _, err := tx.ExecContext(ctx, query, hwmPrefix+table, strconv.FormatInt(int64(id), 10)); err != nil {
			tx.Rollback()
			return lferrors.Wrap(lferrors.STORE, err, "recording high-water mark for %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return lferrors.Wrap(lferrors.STORE, err, "committing sqlite write batch")
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
