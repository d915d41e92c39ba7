// Package store is the persistence layer: an embedded sqlite catalog with
// upsert-by-primary-key writes, foreign-key cascade semantics, and
// observable list queries. All list orderings are deterministic
// (sort_order ASC, name ASC, id ASC) so UI rows never jump between
// recomputations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle and the change notifier that backs
// observable queries. Single-device, single-writer: one connection keeps
// sqlite's locking out of the picture.
type Store struct {
	db       *sql.DB
	notifier *notifier
}

// Open opens (or creates) the catalog database at path and applies any
// pending schema migrations. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between the refresh goroutine and
	// observable query recomputation.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, notifier: newNotifier()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database and tears down all subscriptions.
func (s *Store) Close() error {
	s.notifier.closeAll()
	return s.db.Close()
}

// inTx runs fn inside a transaction and, on commit, notifies watchers of
// the listed tables. Bulk writes are all-or-nothing: any row error rolls
// the whole batch back.
func (s *Store) inTx(tables []string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.notifier.notify(tables...)
	return nil
}

// Ping verifies the handle is usable. Used by the status endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// unix converts a time to the stored integer form; zero time stores as 0.
func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// fromUnix is the inverse of unix.
func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// prefixCols qualifies a comma-separated column list with a table alias,
// for queries that join against playlists.
func prefixCols(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
