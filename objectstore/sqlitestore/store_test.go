// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/objectlog/logback/objectstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objects.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Read(context.Background(), "missing", objectstore.ReadOp{})
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("hello")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if v.Ver != 1 {
		t.Fatalf("expected ver=1, got %d", v.Ver)
	}
	if v.Tag == "" {
		t.Fatal("expected a non-empty tag on first write")
	}

	res, err := s.Read(ctx, "obj", objectstore.ReadOp{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(res.Body) != "hello" {
		t.Fatalf("expected body=hello, got %q", res.Body)
	}
	if res.Version != v {
		t.Fatalf("expected version %+v, got %+v", v, res.Version)
	}
}

func TestWriteTagStableAcrossRevisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("a")})
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	v2, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("b")})
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}

	if v2.Ver != v1.Ver+1 {
		t.Fatalf("expected ver to increment by 1, got %d -> %d", v1.Ver, v2.Ver)
	}
	if v2.Tag != v1.Tag {
		t.Fatalf("expected tag to stay stable across writes, got %q -> %q", v1.Tag, v2.Tag)
	}
}

func TestWriteVersionCheckCancelled(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("a")})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	stale := objectstore.Version{Ver: v.Ver + 1, Tag: v.Tag}
	_, err = s.Write(ctx, "obj", objectstore.WriteOp{
		VersionCheckAtLeast: &stale,
		WriteFull:           []byte("b"),
	})
	if !errors.Is(err, objectstore.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	res, err := s.Read(ctx, "obj", objectstore.ReadOp{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(res.Body) != "a" {
		t.Fatalf("expected body unchanged after cancelled write, got %q", res.Body)
	}
}

func TestWriteCreateExclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "obj", objectstore.WriteOp{CreateExclusive: true, WriteFull: []byte("a")}); err != nil {
		t.Fatalf("first create-exclusive write: %v", err)
	}
	_, err := s.Write(ctx, "obj", objectstore.WriteOp{CreateExclusive: true, WriteFull: []byte("b")})
	if err == nil {
		t.Fatal("expected error on second create-exclusive write")
	}
}

func TestWriteRemove(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("a")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := s.Write(ctx, "obj", objectstore.WriteOp{Remove: true}); err != nil {
		t.Fatalf("Write remove: %v", err)
	}
	_, err := s.Read(ctx, "obj", objectstore.ReadOp{})
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestListOmapOrderingAndPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, k := range []string{"c", "a", "b", "d"} {
		if err := s.SetOmap(ctx, "obj", k, []byte(k)); err != nil {
			t.Fatalf("SetOmap(%s): %v", k, err)
		}
	}

	entries, marker, truncated, err := s.ListOmap(ctx, "obj", "", 2)
	if err != nil {
		t.Fatalf("ListOmap: %v", err)
	}
	if !truncated {
		t.Fatal("expected truncated=true for a 2-of-4 page")
	}
	if len(entries) != 2 || entries[0].Key != "a" || entries[1].Key != "b" {
		t.Fatalf("expected [a b], got %+v", entries)
	}
	if marker != "b" {
		t.Fatalf("expected next marker=b, got %s", marker)
	}

	rest, _, truncated, err := s.ListOmap(ctx, "obj", marker, 10)
	if err != nil {
		t.Fatalf("ListOmap continuation: %v", err)
	}
	if truncated {
		t.Fatal("expected truncated=false on the final page")
	}
	if len(rest) != 2 || rest[0].Key != "c" || rest[1].Key != "d" {
		t.Fatalf("expected [c d], got %+v", rest)
	}
}

func TestWatchNotifyDelivery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("a")}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, ch, err := s.Watch(ctx, "obj")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	notifierCtx := objectstore.WithNotifierID(ctx, 42)
	if err := s.Notify(notifierCtx, "obj", []byte("ping"), time.Second); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case n := <-ch:
		if n.NotifierID != 42 {
			t.Fatalf("expected notifier id 42, got %d", n.NotifierID)
		}
		if string(n.Payload) != "ping" {
			t.Fatalf("expected payload=ping, got %q", n.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestUnwatchClosesChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Write(ctx, "obj", objectstore.WriteOp{WriteFull: []byte("a")}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cookie, ch, err := s.Watch(ctx, "obj")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := s.Unwatch(ctx, cookie); err != nil {
		t.Fatalf("Unwatch: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestNotifyNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.Notify(context.Background(), "missing", nil, time.Second)
	if !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
