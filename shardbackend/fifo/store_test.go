// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package fifo

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/shardbackend"
)

func TestOpenNotFound(t *testing.T) {
	d := New(memstore.New())
	_, err := d.Open(context.Background(), "shard0", false)
	if !errors.Is(err, shardbackend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenNoData(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	// A bare object with no FIFO header, e.g. a lock-only marker.
	if _, err := store.Write(ctx, "shard0", objectstore.WriteOp{OmapSetHeader: []byte("lock")}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	d := New(store)
	_, err := d.Open(ctx, "shard0", false)
	if !errors.Is(err, shardbackend.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()

	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("second create should be a no-op, got: %v", err)
	}
}

func TestGetMetaEmptyFIFO(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()
	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	info, err := d.GetMeta(ctx, "shard0")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if info.HeadPartNum != -1 || info.TailPartNum != -1 {
		t.Fatalf("expected an empty FIFO to report head=tail=-1, got %+v", info)
	}
}

func TestAppendAndList(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()
	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, entry := range []string{"one", "two", "three"} {
		if err := d.Append(ctx, "shard0", []byte(entry)); err != nil {
			t.Fatalf("Append(%s): %v", entry, err)
		}
	}

	info, err := d.GetMeta(ctx, "shard0")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if info.HeadPartNum != 0 {
		t.Fatalf("expected head part 0, got %d", info.HeadPartNum)
	}

	h, err := d.Open(ctx, "shard0", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries, more, err := d.List(ctx, h, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if more {
		t.Fatal("expected more=false")
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if string(entries[0].Data) != "one" || string(entries[1].Data) != "two" || string(entries[2].Data) != "three" {
		t.Fatalf("expected entries in append order, got %+v", entries)
	}
}

func TestAppendCompressesLargeEntries(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()
	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	large := bytes.Repeat([]byte("x"), InlineCompressThreshold*4)
	if err := d.Append(ctx, "shard0", large); err != nil {
		t.Fatalf("Append: %v", err)
	}

	h, err := d.Open(ctx, "shard0", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries, _, err := d.List(ctx, h, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || !bytes.Equal(entries[0].Data, large) {
		t.Fatalf("expected round-tripped large entry, got %d entries", len(entries))
	}
}

func TestListPagination(t *testing.T) {
	d := New(memstore.New())
	ctx := context.Background()
	if err := d.Create(ctx, "shard0"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := d.Append(ctx, "shard0", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	h, err := d.Open(ctx, "shard0", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	entries, more, err := d.List(ctx, h, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !more || len(entries) != 2 {
		t.Fatalf("expected a truncated 2-entry page, got %+v more=%v", entries, more)
	}
}
