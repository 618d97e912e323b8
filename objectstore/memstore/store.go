// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package memstore is an in-memory [objectstore.Store] implementation.
// It has no persistence and is intended for tests and for embedding a
// logback registry in a single process with no durability requirement.
package memstore

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/objectlog/logback/objectstore"
)

// randomAlpha generates a Version.Tag using the shared objectstore
// alphabet, so every Store implementation's tags look identical to a
// caller.
func randomAlpha(n int) string { return objectstore.RandomAlpha(n) }

type object struct {
	body       []byte
	omapHeader []byte
	omap       map[string][]byte
	version    objectstore.Version
}

type watcher struct {
	oid string
	ch  chan objectstore.Notification
}

// Store is a goroutine-safe, in-memory [objectstore.Store].
type Store struct {
	mu         sync.Mutex
	objects    map[string]*object
	watchers   map[uint64]*watcher
	nextCookie uint64
	nextNotify uint64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		objects:  make(map[string]*object),
		watchers: make(map[uint64]*watcher),
	}
}

func (s *Store) Read(ctx context.Context, oid string, op objectstore.ReadOp) (objectstore.ReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[oid]
	if !ok {
		return objectstore.ReadResult{}, objectstore.ErrNotFound
	}
	if op.VersionCheckAtLeast != nil && !obj.version.AtLeast(*op.VersionCheckAtLeast) {
		return objectstore.ReadResult{}, objectstore.ErrCancelled
	}

	body := obj.body
	if op.Range != nil {
		body = sliceRange(body, op.Range.Offset, op.Range.Length)
	}

	return objectstore.ReadResult{
		Body:       append([]byte(nil), body...),
		OmapHeader: append([]byte(nil), obj.omapHeader...),
		Version:    obj.version,
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
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.objects[oid]
	if op.CreateExclusive && exists {
		return objectstore.Version{}, newExistsError(oid)
	}
	if !exists {
		obj = &object{omap: make(map[string][]byte)}
	}
	if op.VersionCheckAtLeast != nil && exists && !obj.version.AtLeast(*op.VersionCheckAtLeast) {
		return objectstore.Version{}, objectstore.ErrCancelled
	}

	if op.WriteFull != nil {
		obj.body = append([]byte(nil), op.WriteFull...)
	}
	if op.Truncate != nil {
		n := int(*op.Truncate)
		if n < len(obj.body) {
			obj.body = obj.body[:n]
		} else if n > len(obj.body) {
			grown := make([]byte, n)
			copy(grown, obj.body)
			obj.body = grown
		}
	}
	if op.OmapSetHeader != nil {
		obj.omapHeader = append([]byte(nil), op.OmapSetHeader...)
	}
	if op.OmapClear {
		obj.omap = make(map[string][]byte)
	}

	obj.version.Ver++
	obj.version.Tag = versionTag(obj)
	s.objects[oid] = obj

	if op.Remove {
		delete(s.objects, oid)
	}

	return obj.version, nil
}

// versionTag assigns a tag the first time an object is created and
// keeps it stable across subsequent writes, matching the RADOS
// convention that the tag identifies a writer lineage rather than a
// specific revision.
func versionTag(obj *object) string {
	if obj.version.Tag != "" {
		return obj.version.Tag
	}
	return randomAlpha(24)
}

func (s *Store) ListOmap(ctx context.Context, oid, afterMarker string, max int) ([]objectstore.OmapEntry, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[oid]
	if !ok {
		return nil, "", false, objectstore.ErrNotFound
	}

	keys := make([]string, 0, len(obj.omap))
	for k := range obj.omap {
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
		entries = append(entries, objectstore.OmapEntry{Key: keys[i], Value: obj.omap[keys[i]]})
	}

	nextMarker := ""
	if len(entries) > 0 {
		nextMarker = entries[len(entries)-1].Key
	}
	return entries, nextMarker, truncated, nil
}

// SetOmap implements [objectstore.Store].
func (s *Store) SetOmap(ctx context.Context, oid, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[oid]
	if !ok {
		obj = &object{omap: make(map[string][]byte)}
		obj.version.Tag = randomAlpha(24)
		s.objects[oid] = obj
	}
	obj.omap[key] = value
	return nil
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
	s.mu.Lock()
	if _, ok := s.objects[oid]; !ok {
		s.mu.Unlock()
		return objectstore.ErrNotFound
	}
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
			return errors.New("objectstore: notify timed out delivering to a watcher")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func newExistsError(oid string) error {
	return &os.PathError{Op: "create", Path: oid, Err: os.ErrExist}
}
