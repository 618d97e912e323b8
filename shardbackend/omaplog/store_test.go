// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package omaplog

import (
	"context"
	"errors"
	"testing"

	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/shardbackend"
)

func TestInfoNotFound(t *testing.T) {
	d := New(memstore.New())
	_, err := d.Info(context.Background(), "shard0")
	if !errors.Is(err, shardbackend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInfoReturnsHeader(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	if _, err := store.Write(ctx, "shard0", objectstore.WriteOp{OmapSetHeader: []byte("hdr")}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	d := New(store)
	header, err := d.Info(ctx, "shard0")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if string(header) != "hdr" {
		t.Fatalf("expected header=hdr, got %q", header)
	}
}

func TestAppendAssignsIncreasingMarkers(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	d := New(store)

	if err := d.Append(ctx, "shard0", []byte("a")); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if err := d.Append(ctx, "shard0", []byte("b")); err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if err := d.Append(ctx, "shard0", []byte("c")); err != nil {
		t.Fatalf("Append 3: %v", err)
	}

	entries, _, truncated, err := d.List(ctx, "shard0", 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if truncated {
		t.Fatal("expected truncated=false")
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if string(entries[0].Data) != "a" || string(entries[1].Data) != "b" || string(entries[2].Data) != "c" {
		t.Fatalf("expected entries in append order, got %+v", entries)
	}
	if entries[0].Marker >= entries[1].Marker || entries[1].Marker >= entries[2].Marker {
		t.Fatalf("expected strictly increasing markers, got %+v", entries)
	}
}

func TestListPagination(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	d := New(store)

	for i := 0; i < 5; i++ {
		if err := d.Append(ctx, "shard0", []byte{byte('a' + i)}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	first, marker, truncated, err := d.List(ctx, "shard0", 2, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !truncated || len(first) != 2 {
		t.Fatalf("expected a truncated 2-entry page, got %+v truncated=%v", first, truncated)
	}

	rest, _, truncated, err := d.List(ctx, "shard0", 10, marker)
	if err != nil {
		t.Fatalf("List continuation: %v", err)
	}
	if truncated {
		t.Fatal("expected truncated=false on final page")
	}
	if len(rest) != 3 {
		t.Fatalf("expected 3 remaining entries, got %d", len(rest))
	}
}

func TestListNotFound(t *testing.T) {
	d := New(memstore.New())
	_, _, _, err := d.List(context.Background(), "missing", 10, "")
	if !errors.Is(err, shardbackend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
