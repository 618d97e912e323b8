// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"errors"
	"testing"

	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/shardbackend/fifo"
	"github.com/objectlog/logback/shardbackend/omaplog"
)

func shardOID(prefix string) func(uint32) string {
	return func(i uint32) string { return prefix + string(rune('0'+i)) }
}

func TestLogBackingTypeAllAbsentDefaultsOmap(t *testing.T) {
	store := memstore.New()
	omap := omaplog.New(store)
	f := fifo.New(store)

	typ, err := logBackingType(context.Background(), TypeOmap, 3, shardOID("shard-"), omap, f)
	if err != nil {
		t.Fatalf("logBackingType: %v", err)
	}
	if typ != TypeOmap {
		t.Fatalf("got %s, want omap", typ)
	}
}

func TestLogBackingTypeAllAbsentDefaultsFIFOCreatesShardZero(t *testing.T) {
	store := memstore.New()
	omap := omaplog.New(store)
	f := fifo.New(store)

	typ, err := logBackingType(context.Background(), TypeFIFO, 3, shardOID("shard-"), omap, f)
	if err != nil {
		t.Fatalf("logBackingType: %v", err)
	}
	if typ != TypeFIFO {
		t.Fatalf("got %s, want fifo", typ)
	}
	if _, err := f.GetMeta(context.Background(), "shard-0"); err != nil {
		t.Fatalf("expected shard 0 fifo to exist: %v", err)
	}
}

func TestLogBackingTypeAgreesOnExistingFIFO(t *testing.T) {
	store := memstore.New()
	omap := omaplog.New(store)
	f := fifo.New(store)
	ctx := context.Background()

	for i := uint32(0); i < 3; i++ {
		if err := f.Create(ctx, shardOID("shard-")(i)); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := f.Append(ctx, shardOID("shard-")(i), []byte("x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	typ, err := logBackingType(ctx, TypeOmap, 3, shardOID("shard-"), omap, f)
	if err != nil {
		t.Fatalf("logBackingType: %v", err)
	}
	if typ != TypeFIFO {
		t.Fatalf("got %s, want fifo", typ)
	}
}

func TestLogBackingTypeDisagreementIsIOError(t *testing.T) {
	store := memstore.New()
	omap := omaplog.New(store)
	f := fifo.New(store)
	ctx := context.Background()

	if err := f.Create(ctx, "shard-0"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Append(ctx, "shard-0", []byte("x")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := omap.Append(ctx, "shard-1", []byte("y")); err != nil {
		t.Fatalf("append: %v", err)
	}

	_, err := logBackingType(ctx, TypeOmap, 2, shardOID("shard-"), omap, f)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("got %v, want ErrIO", err)
	}
}

func TestLogBackingTypeIsIdempotent(t *testing.T) {
	store := memstore.New()
	omap := omaplog.New(store)
	f := fifo.New(store)
	ctx := context.Background()

	first, err := logBackingType(ctx, TypeFIFO, 2, shardOID("shard-"), omap, f)
	if err != nil {
		t.Fatalf("logBackingType: %v", err)
	}
	second, err := logBackingType(ctx, TypeFIFO, 2, shardOID("shard-"), omap, f)
	if err != nil {
		t.Fatalf("logBackingType (second call): %v", err)
	}
	if first != second {
		t.Fatalf("not idempotent: %s != %s", first, second)
	}
}
