/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package store persists the mirrored operation log in SQLite. It is an
// append-only record of what upstream exported: reads hand complete
// per-DID logs to the validator, which recomputes everything the store
// claims (including nullification) from first principles.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/trustbloc/plc-go/operation"
)

const schema = `
CREATE TABLE IF NOT EXISTS plc_log (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	did        TEXT NOT NULL,
	cid        TEXT NOT NULL,
	op         TEXT NOT NULL,
	nullified  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE (did, cid)
);

CREATE INDEX IF NOT EXISTS plc_log_created ON plc_log (created_at, seq);
CREATE INDEX IF NOT EXISTS plc_log_did ON plc_log (did, seq);
`

// Store is a SQLite-backed operation log.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. The parent directory must exist.
	Path string

	// PoolSize is the connection pool size; writes serialize in SQLite
	// regardless, extra connections serve concurrent readers. Defaults
	// to 4.
	PoolSize int

	// Logger receives operational messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// Open opens (creating if needed) the operation log database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL,
		PoolSize: cfg.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite pool: %w", err)
	}

	s := &Store{pool: pool, logger: cfg.Logger}

	conn, err := pool.Take(ctx)
	if err != nil {
		pool.Close()

		return nil, err
	}
	defer pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		pool.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// AppendEntries inserts a batch of exported entries in one transaction.
// Entries already present (same did and cid) are skipped, so replaying an
// overlapping export page is harmless.
func (s *Store) AppendEntries(ctx context.Context, entries []*operation.LogEntry) (inserted int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	for _, entry := range entries {
		opJSON, err := json.Marshal(&entry.Operation)
		if err != nil {
			return inserted, fmt.Errorf("marshal operation %s: %w", entry.CID, err)
		}

		err = sqlitex.Execute(conn,
			`INSERT INTO plc_log (did, cid, op, nullified, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (did, cid) DO NOTHING;`,
			&sqlitex.ExecOptions{
				Args: []interface{}{entry.DID, entry.CID, string(opJSON), boolToInt(entry.Nullified), entry.CreatedAt},
			})
		if err != nil {
			return inserted, fmt.Errorf("insert %s %s: %w", entry.DID, entry.CID, err)
		}

		inserted += conn.Changes()
	}

	return inserted, nil
}

// OpsForDID returns the full mirrored log for one DID, ordered as
// upstream exported it.
func (s *Store) OpsForDID(ctx context.Context, did string) ([]*operation.LogEntry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var entries []*operation.LogEntry

	err = sqlitex.Execute(conn,
		`SELECT did, cid, op, nullified, created_at FROM plc_log
		 WHERE did = ? ORDER BY created_at, seq;`,
		&sqlitex.ExecOptions{
			Args:       []interface{}{did},
			ResultFunc: collectEntry(&entries),
		})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Export returns a page of the global log ordered by createdAt ascending.
// after filters to entries strictly later than the given timestamp; did
// restricts to one DID; count caps the page size.
func (s *Store) Export(ctx context.Context, after, did string, count int) ([]*operation.LogEntry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `SELECT did, cid, op, nullified, created_at FROM plc_log WHERE 1=1`

	var args []interface{}

	if after != "" {
		query += ` AND created_at > ?`
		args = append(args, after)
	}

	if did != "" {
		query += ` AND did = ?`
		args = append(args, did)
	}

	query += ` ORDER BY created_at, seq LIMIT ?;`
	args = append(args, count)

	var entries []*operation.LogEntry

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: collectEntry(&entries),
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// LastCreatedAt returns the newest createdAt in the log, or "" for an
// empty log. The importer resumes from this cursor.
func (s *Store) LastCreatedAt(ctx context.Context) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", err
	}
	defer s.pool.Put(conn)

	var last string

	err = sqlitex.Execute(conn,
		`SELECT created_at FROM plc_log ORDER BY created_at DESC, seq DESC LIMIT 1;`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				last = stmt.ColumnText(0)

				return nil
			},
		})
	if err != nil {
		return "", err
	}

	return last, nil
}

func collectEntry(entries *[]*operation.LogEntry) func(stmt *sqlite.Stmt) error {
	return func(stmt *sqlite.Stmt) error {
		entry := &operation.LogEntry{
			DID:       stmt.ColumnText(0),
			CID:       stmt.ColumnText(1),
			Nullified: stmt.ColumnInt(3) != 0,
			CreatedAt: stmt.ColumnText(4),
		}

		if err := json.Unmarshal([]byte(stmt.ColumnText(2)), &entry.Operation); err != nil {
			return fmt.Errorf("decode stored operation %s: %w", entry.CID, err)
		}

		*entries = append(*entries, entry)

		return nil
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
