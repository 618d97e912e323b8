// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitestore is a SQLite-backed [objectstore.Store]
// implementation, built on lib/sqlitepool. It gives logback durable,
// single-host storage without requiring a full distributed object
// store.
//
// Watch/notify is implemented with an in-process channel registry: it
// only delivers notifications to watchers registered in the same
// process. A logback deployment that needs cross-process or
// cross-host notify delivery must supply its own [objectstore.Store].
package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/objectlog/logback/lib/sqlitepool"
	"github.com/objectlog/logback/objectstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	oid         TEXT PRIMARY KEY,
	body        BLOB NOT NULL DEFAULT x'',
	omap_header BLOB,
	ver         INTEGER NOT NULL,
	tag         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS omap_entries (
	oid   TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (oid, key)
);
`

// Store is a durable [objectstore.Store] backed by a SQLite database.
type Store struct {
	pool *sqlitepool.Pool

	mu         sync.Mutex
	watchers   map[uint64]*watcher
	nextCookie uint64
	nextNotify uint64
}

type watcher struct {
	oid string
	ch  chan objectstore.Notification
}

// Open opens (creating if necessary) the SQLite database at path and
// returns a Store backed by it. The caller must call Close when done.
func Open(path string) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: path,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	return &Store{
		pool:     pool,
		watchers: make(map[uint64]*watcher),
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) Read(ctx context.Context, oid string, op objectstore.ReadOp) (objectstore.ReadResult, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return objectstore.ReadResult{}, fmt.Errorf("sqlitestore: read: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		body, header []byte
		ver           uint64
		tag           string
		found         bool
	)
	err = sqlitex.Execute(conn, `SELECT body, omap_header, ver, tag FROM objects WHERE oid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{oid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				body = columnBytes(stmt, 0)
				header = columnBytesOrNil(stmt, 1)
				ver = uint64(stmt.ColumnInt64(2))
				tag = stmt.ColumnText(3)
				return nil
			},
		})
	if err != nil {
		return objectstore.ReadResult{}, fmt.Errorf("sqlitestore: read %s: %w", oid, err)
	}
	if !found {
		return objectstore.ReadResult{}, objectstore.ErrNotFound
	}

	version := objectstore.Version{Ver: ver, Tag: tag}
	if op.VersionCheckAtLeast != nil && !version.AtLeast(*op.VersionCheckAtLeast) {
		return objectstore.ReadResult{}, objectstore.ErrCancelled
	}
	if op.Range != nil {
		body = sliceRange(body, op.Range.Offset, op.Range.Length)
	}

	return objectstore.ReadResult{
		Body:       body,
		OmapHeader: header,
		Version:    version,
	}, nil
}

func sliceRange(body []byte, offset, length int64) []byte {
	if offset < 0 || offset > int64(len(body)) {
		return nil
	}
	end := int64(len(body))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return body[offset:end]
}

func (s *Store) Write(ctx context.Context, oid string, op objectstore.WriteOp) (version objectstore.Version, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return objectstore.Version{}, fmt.Errorf("sqlitestore: write: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: begin transaction: %w", oid, err)
	}
	defer endTransaction(&err)

	var (
		body, header []byte
		ver          uint64
		tag          string
		exists       bool
	)
	queryErr := sqlitex.Execute(conn, `SELECT body, omap_header, ver, tag FROM objects WHERE oid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{oid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				exists = true
				body = columnBytes(stmt, 0)
				header = columnBytesOrNil(stmt, 1)
				ver = uint64(stmt.ColumnInt64(2))
				tag = stmt.ColumnText(3)
				return nil
			},
		})
	if queryErr != nil {
		return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: %w", oid, queryErr)
	}

	if op.CreateExclusive && exists {
		return objectstore.Version{}, newExistsError(oid)
	}
	if op.VersionCheckAtLeast != nil && exists {
		current := objectstore.Version{Ver: ver, Tag: tag}
		if !current.AtLeast(*op.VersionCheckAtLeast) {
			return objectstore.Version{}, objectstore.ErrCancelled
		}
	}
	if !exists {
		tag = objectstore.RandomAlpha(24)
	}

	if op.WriteFull != nil {
		body = append([]byte(nil), op.WriteFull...)
	}
	if op.Truncate != nil {
		n := int(*op.Truncate)
		switch {
		case n < len(body):
			body = body[:n]
		case n > len(body):
			grown := make([]byte, n)
			copy(grown, body)
			body = grown
		}
	}
	if op.OmapSetHeader != nil {
		header = append([]byte(nil), op.OmapSetHeader...)
	}
	if op.OmapClear {
		if err := sqlitex.Execute(conn, `DELETE FROM omap_entries WHERE oid = ?`,
			&sqlitex.ExecOptions{Args: []any{oid}}); err != nil {
			return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: clear omap: %w", oid, err)
		}
	}

	ver++
	version = objectstore.Version{Ver: ver, Tag: tag}

	if op.Remove {
		if err := sqlitex.Execute(conn, `DELETE FROM objects WHERE oid = ?`,
			&sqlitex.ExecOptions{Args: []any{oid}}); err != nil {
			return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: remove: %w", oid, err)
		}
		if err := sqlitex.Execute(conn, `DELETE FROM omap_entries WHERE oid = ?`,
			&sqlitex.ExecOptions{Args: []any{oid}}); err != nil {
			return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: remove omap: %w", oid, err)
		}
		return version, nil
	}

	upsertErr := sqlitex.Execute(conn, `
		INSERT INTO objects (oid, body, omap_header, ver, tag) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(oid) DO UPDATE SET body = excluded.body, omap_header = excluded.omap_header,
			ver = excluded.ver, tag = excluded.tag`,
		&sqlitex.ExecOptions{Args: []any{oid, body, asNullable(header), ver, tag}})
	if upsertErr != nil {
		return objectstore.Version{}, fmt.Errorf("sqlitestore: write %s: %w", oid, upsertErr)
	}

	return version, nil
}

// SetOmap implements [objectstore.Store].
func (s *Store) SetOmap(ctx context.Context, oid, key string, value []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: setomap: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlitestore: setomap %s: begin transaction: %w", oid, err)
	}
	defer endTransaction(&err)

	var exists bool
	if err := sqlitex.Execute(conn, `SELECT 1 FROM objects WHERE oid = ?`, &sqlitex.ExecOptions{
		Args:       []any{oid},
		ResultFunc: func(stmt *sqlite.Stmt) error { exists = true; return nil },
	}); err != nil {
		return fmt.Errorf("sqlitestore: setomap %s: %w", oid, err)
	}
	if !exists {
		if err := sqlitex.Execute(conn, `INSERT INTO objects (oid, ver, tag) VALUES (?, 0, ?)`,
			&sqlitex.ExecOptions{Args: []any{oid, objectstore.RandomAlpha(24)}}); err != nil {
			return fmt.Errorf("sqlitestore: setomap %s: create: %w", oid, err)
		}
	}

	return sqlitex.Execute(conn, `
		INSERT INTO omap_entries (oid, key, value) VALUES (?, ?, ?)
		ON CONFLICT(oid, key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{oid, key, value}})
}

func (s *Store) ListOmap(ctx context.Context, oid, afterMarker string, max int) ([]objectstore.OmapEntry, string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, "", false, fmt.Errorf("sqlitestore: listomap: %w", err)
	}
	defer s.pool.Put(conn)

	var exists bool
	if err := sqlitex.Execute(conn, `SELECT 1 FROM objects WHERE oid = ?`, &sqlitex.ExecOptions{
		Args:       []any{oid},
		ResultFunc: func(stmt *sqlite.Stmt) error { exists = true; return nil },
	}); err != nil {
		return nil, "", false, fmt.Errorf("sqlitestore: listomap %s: %w", oid, err)
	}
	if !exists {
		return nil, "", false, objectstore.ErrNotFound
	}

	limit := max
	if limit <= 0 {
		limit = -1
	} else {
		limit++ // fetch one extra row to detect truncation
	}

	var entries []objectstore.OmapEntry
	queryErr := sqlitex.Execute(conn, `
		SELECT key, value FROM omap_entries WHERE oid = ? AND key > ? ORDER BY key LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{oid, afterMarker, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, objectstore.OmapEntry{
					Key:   stmt.ColumnText(0),
					Value: columnBytes(stmt, 1),
				})
				return nil
			},
		})
	if queryErr != nil {
		return nil, "", false, fmt.Errorf("sqlitestore: listomap %s: %w", oid, queryErr)
	}

	truncated := false
	if max > 0 && len(entries) > max {
		entries = entries[:max]
		truncated = true
	}

	nextMarker := ""
	if len(entries) > 0 {
		nextMarker = entries[len(entries)-1].Key
	}
	return entries, nextMarker, truncated, nil
}

func (s *Store) Watch(ctx context.Context, oid string) (uint64, <-chan objectstore.Notification, error) {
	s.mu.Lock()
	s.nextCookie++
	cookie := s.nextCookie
	ch := make(chan objectstore.Notification, 32)
	s.watchers[cookie] = &watcher{oid: oid, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Unwatch(context.Background(), cookie)
	}()

	return cookie, ch, nil
}

func (s *Store) Unwatch(ctx context.Context, cookie uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[cookie]
	if !ok {
		return nil
	}
	delete(s.watchers, cookie)
	close(w.ch)
	return nil
}

func (s *Store) Notify(ctx context.Context, oid string, payload []byte, timeout time.Duration) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlitestore: notify: %w", err)
	}
	var exists bool
	queryErr := sqlitex.Execute(conn, `SELECT 1 FROM objects WHERE oid = ?`, &sqlitex.ExecOptions{
		Args:       []any{oid},
		ResultFunc: func(stmt *sqlite.Stmt) error { exists = true; return nil },
	})
	s.pool.Put(conn)
	if queryErr != nil {
		return fmt.Errorf("sqlitestore: notify %s: %w", oid, queryErr)
	}
	if !exists {
		return objectstore.ErrNotFound
	}

	s.mu.Lock()
	s.nextNotify++
	notifyID := s.nextNotify
	notifierID := objectstore.NotifierIDFromContext(ctx)
	var targets []chan objectstore.Notification
	for _, w := range s.watchers {
		if w.oid == oid {
			targets = append(targets, w.ch)
		}
	}
	s.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, ch := range targets {
		select {
		case ch <- objectstore.Notification{NotifyID: notifyID, NotifierID: notifierID, Payload: payload}:
		case <-deadline.C:
			return errors.New("sqlitestore: notify timed out delivering to a watcher")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}


func columnBytes(stmt *sqlite.Stmt, col int) []byte {
	n := stmt.ColumnLen(col)
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	stmt.ColumnBytes(col, buf)
	return buf
}

func columnBytesOrNil(stmt *sqlite.Stmt, col int) []byte {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return nil
	}
	return columnBytes(stmt, col)
}

func asNullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

func newExistsError(oid string) error {
	return &os.PathError{Op: "create", Path: oid, Err: os.ErrExist}
}
