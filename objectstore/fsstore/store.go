// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsstore is a filesystem-backed [objectstore.Store]
// implementation: one data file plus one CBOR metadata sidecar per
// object, written via the create-temp-then-rename pattern so a reader
// never observes a partially written file.
//
// fsstore serializes every Read/Write/ListOmap/Notify against a given
// oid through an in-process mutex. That makes it correct for a single
// process (the intended use: cmd/logback-ctl operating directly on a
// local log-backing tree with no daemon in front of it) but not safe
// to point two separate processes at the same root directory — a
// production multi-process deployment should use objectstore/sqlitestore
// or a real distributed object store instead.
package fsstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/objectlog/logback/lib/codec"
	"github.com/objectlog/logback/objectstore"
)

// meta is the CBOR sidecar persisted alongside each object's data
// file. It carries everything Read/Write need that isn't the raw body:
// the omap (fsstore has no separate key-value store, so small omap
// maps live in the sidecar), the header, and the CAS version.
type meta struct {
	OmapHeader []byte            `cbor:"omap_header,omitempty"`
	Omap       map[string][]byte `cbor:"omap,omitempty"`
	Ver        uint64            `cbor:"ver"`
	Tag        string            `cbor:"tag"`
}

// Store is a filesystem-backed [objectstore.Store] rooted at a
// directory.
type Store struct {
	root string

	mu       sync.Mutex // guards locks and the watcher registry
	locks    map[string]*sync.Mutex
	watchers map[uint64]*watcher

	notifyMu   sync.Mutex
	nextCookie uint64
	nextNotify uint64
}

type watcher struct {
	oid string
	ch  chan objectstore.Notification
}

// Open returns a Store rooted at root, creating the directory (and
// its "tmp" staging subdirectory) if necessary.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("fsstore: creating %s: %w", root, err)
	}
	return &Store{
		root:     root,
		locks:    make(map[string]*sync.Mutex),
		watchers: make(map[uint64]*watcher),
	}, nil
}

func (s *Store) lockFor(oid string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[oid]
	if !ok {
		m = &sync.Mutex{}
		s.locks[oid] = m
	}
	return m
}

// oidPath maps an oid to a flat, filesystem-safe filename. Hex-encoding
// avoids any path-separator or reserved-character collision between an
// oid and the filesystem.
func (s *Store) oidPath(oid string) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(oid)))
}

func (s *Store) dataPath(oid string) string { return s.oidPath(oid) + ".data" }
func (s *Store) metaPath(oid string) string { return s.oidPath(oid) + ".meta" }

func (s *Store) readMeta(oid string) (*meta, []byte, bool, error) {
	metaBytes, err := os.ReadFile(s.metaPath(oid))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("fsstore: reading metadata for %s: %w", oid, err)
	}

	var m meta
	if err := codec.Unmarshal(metaBytes, &m); err != nil {
		return nil, nil, false, fmt.Errorf("fsstore: decoding metadata for %s: %w", oid, err)
	}

	body, err := os.ReadFile(s.dataPath(oid))
	if errors.Is(err, os.ErrNotExist) {
		body = nil
	} else if err != nil {
		return nil, nil, false, fmt.Errorf("fsstore: reading data for %s: %w", oid, err)
	}

	return &m, body, true, nil
}

// writeAtomic writes data to path via create-temp-then-rename, so a
// concurrent reader never observes a partial write.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "write-*")
	if err != nil {
		return fmt.Errorf("fsstore: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsstore: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsstore: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsstore: renaming to %s: %w", path, err)
	}

	success = true
	return nil
}

func (s *Store) Read(ctx context.Context, oid string, op objectstore.ReadOp) (objectstore.ReadResult, error) {
	lock := s.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	m, body, exists, err := s.readMeta(oid)
	if err != nil {
		return objectstore.ReadResult{}, err
	}
	if !exists {
		return objectstore.ReadResult{}, objectstore.ErrNotFound
	}

	version := objectstore.Version{Ver: m.Ver, Tag: m.Tag}
	if op.VersionCheckAtLeast != nil && !version.AtLeast(*op.VersionCheckAtLeast) {
		return objectstore.ReadResult{}, objectstore.ErrCancelled
	}
	if op.Range != nil {
		body = sliceRange(body, op.Range.Offset, op.Range.Length)
	}

	return objectstore.ReadResult{
		Body:       body,
		OmapHeader: m.OmapHeader,
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

func (s *Store) Write(ctx context.Context, oid string, op objectstore.WriteOp) (objectstore.Version, error) {
	lock := s.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	m, body, exists, err := s.readMeta(oid)
	if err != nil {
		return objectstore.Version{}, err
	}
	if op.CreateExclusive && exists {
		return objectstore.Version{}, newExistsError(oid)
	}
	if !exists {
		m = &meta{Omap: make(map[string][]byte), Tag: objectstore.RandomAlpha(24)}
	}
	if op.VersionCheckAtLeast != nil && exists {
		current := objectstore.Version{Ver: m.Ver, Tag: m.Tag}
		if !current.AtLeast(*op.VersionCheckAtLeast) {
			return objectstore.Version{}, objectstore.ErrCancelled
		}
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
		m.OmapHeader = append([]byte(nil), op.OmapSetHeader...)
	}
	if op.OmapClear {
		m.Omap = make(map[string][]byte)
	}

	m.Ver++
	version := objectstore.Version{Ver: m.Ver, Tag: m.Tag}

	if op.Remove {
		os.Remove(s.dataPath(oid))
		os.Remove(s.metaPath(oid))
		return version, nil
	}

	if err := s.writeAtomic(s.dataPath(oid), body); err != nil {
		return objectstore.Version{}, err
	}
	metaBytes, err := codec.Marshal(m)
	if err != nil {
		return objectstore.Version{}, fmt.Errorf("fsstore: encoding metadata for %s: %w", oid, err)
	}
	if err := s.writeAtomic(s.metaPath(oid), metaBytes); err != nil {
		return objectstore.Version{}, err
	}

	return version, nil
}

// SetOmap implements [objectstore.Store].
func (s *Store) SetOmap(ctx context.Context, oid, key string, value []byte) error {
	lock := s.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	m, _, exists, err := s.readMeta(oid)
	if err != nil {
		return err
	}
	if !exists {
		m = &meta{Omap: make(map[string][]byte), Tag: objectstore.RandomAlpha(24)}
	}
	if m.Omap == nil {
		m.Omap = make(map[string][]byte)
	}
	m.Omap[key] = value

	metaBytes, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("fsstore: encoding metadata for %s: %w", oid, err)
	}
	return s.writeAtomic(s.metaPath(oid), metaBytes)
}

func (s *Store) ListOmap(ctx context.Context, oid, afterMarker string, max int) ([]objectstore.OmapEntry, string, bool, error) {
	lock := s.lockFor(oid)
	lock.Lock()
	defer lock.Unlock()

	m, _, exists, err := s.readMeta(oid)
	if err != nil {
		return nil, "", false, err
	}
	if !exists {
		return nil, "", false, objectstore.ErrNotFound
	}

	keys := make([]string, 0, len(m.Omap))
	for k := range m.Omap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if afterMarker != "" {
		start = sort.SearchStrings(keys, afterMarker)
		if start < len(keys) && keys[start] == afterMarker {
			start++
		}
	}

	var entries []objectstore.OmapEntry
	truncated := false
	for i := start; i < len(keys); i++ {
		if max > 0 && len(entries) >= max {
			truncated = true
			break
		}
		entries = append(entries, objectstore.OmapEntry{Key: keys[i], Value: m.Omap[keys[i]]})
	}

	nextMarker := ""
	if len(entries) > 0 {
		nextMarker = entries[len(entries)-1].Key
	}
	return entries, nextMarker, truncated, nil
}

func (s *Store) Watch(ctx context.Context, oid string) (uint64, <-chan objectstore.Notification, error) {
	s.notifyMu.Lock()
	s.nextCookie++
	cookie := s.nextCookie
	ch := make(chan objectstore.Notification, 32)
	s.watchers[cookie] = &watcher{oid: oid, ch: ch}
	s.notifyMu.Unlock()

	go func() {
		<-ctx.Done()
		s.Unwatch(context.Background(), cookie)
	}()

	return cookie, ch, nil
}

func (s *Store) Unwatch(ctx context.Context, cookie uint64) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	w, ok := s.watchers[cookie]
	if !ok {
		return nil
	}
	delete(s.watchers, cookie)
	close(w.ch)
	return nil
}

func (s *Store) Notify(ctx context.Context, oid string, payload []byte, timeout time.Duration) error {
	lock := s.lockFor(oid)
	lock.Lock()
	_, _, exists, err := s.readMeta(oid)
	lock.Unlock()
	if err != nil {
		return err
	}
	if !exists {
		return objectstore.ErrNotFound
	}

	s.notifyMu.Lock()
	s.nextNotify++
	notifyID := s.nextNotify
	notifierID := objectstore.NotifierIDFromContext(ctx)
	var targets []chan objectstore.Notification
	for _, w := range s.watchers {
		if w.oid == oid {
			targets = append(targets, w.ch)
		}
	}
	s.notifyMu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, ch := range targets {
		select {
		case ch <- objectstore.Notification{NotifyID: notifyID, NotifierID: notifierID, Payload: payload}:
		case <-deadline.C:
			return errors.New("fsstore: notify timed out delivering to a watcher")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func newExistsError(oid string) error {
	return &os.PathError{Op: "create", Path: oid, Err: os.ErrExist}
}
