// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"testing"

	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/shardbackend/fifo"
)

func TestLogRemoveDeletesFIFOPartsAndShards(t *testing.T) {
	store := memstore.New()
	f := fifo.New(store)
	ctx := context.Background()
	oids := shardOID("gen1-shard-")

	for i := uint32(0); i < 2; i++ {
		if err := f.Create(ctx, oids(i)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.Append(ctx, oids(i), []byte("hello")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := logRemove(ctx, store, f, 2, oids, false); err != nil {
		t.Fatalf("logRemove: %v", err)
	}

	for i := uint32(0); i < 2; i++ {
		if _, err := store.Read(ctx, oids(i), objectstore.ReadOp{}); err == nil {
			t.Fatalf("expected shard %d to be removed", i)
		}
		partOID := oids(i) + ".0"
		if _, err := store.Read(ctx, partOID, objectstore.ReadOp{}); err == nil {
			t.Fatalf("expected part %s to be removed", partOID)
		}
	}
}

func TestLogRemoveLeaveZeroKeepsShardZeroAlive(t *testing.T) {
	store := memstore.New()
	f := fifo.New(store)
	ctx := context.Background()
	oids := shardOID("gen0-shard-")

	if err := f.Create(ctx, oids(0)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Append(ctx, oids(0), []byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.SetOmap(ctx, oids(0), "lock", []byte("held")); err != nil {
		t.Fatalf("setomap: %v", err)
	}

	if err := logRemove(ctx, store, f, 1, oids, true); err != nil {
		t.Fatalf("logRemove: %v", err)
	}

	res, err := store.Read(ctx, oids(0), objectstore.ReadOp{})
	if err != nil {
		t.Fatalf("expected shard 0 to survive: %v", err)
	}
	if len(res.Body) != 0 {
		t.Fatalf("expected body truncated to empty, got %d bytes", len(res.Body))
	}
}

func TestLogRemoveSkipsAbsentShards(t *testing.T) {
	store := memstore.New()
	f := fifo.New(store)
	ctx := context.Background()

	if err := logRemove(ctx, store, f, 3, shardOID("nope-"), false); err != nil {
		t.Fatalf("logRemove on all-absent shards: %v", err)
	}
}
