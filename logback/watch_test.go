// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"testing"
	"time"

	"github.com/objectlog/logback/lib/testutil"
	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/objectstore/memstore"
	"github.com/objectlog/logback/shardbackend/fifo"
	"github.com/objectlog/logback/shardbackend/omaplog"
)

func TestHandleNotifyIgnoresSelf(t *testing.T) {
	g, _ := newTestRegistry(t, Callbacks{})
	ctx := context.Background()
	if err := g.Setup(ctx, TypeOmap); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	before, _ := g.snapshot()
	g.handleNotify(ctx, objectstore.Notification{NotifierID: g.myID})
	after, _ := g.snapshot()

	if len(before) != len(after) {
		t.Fatalf("self-notification should not trigger update: before=%v after=%v", before, after)
	}
}

func TestHandleNotifyAbortsOnUpdateFailure(t *testing.T) {
	g, _ := newTestRegistry(t, Callbacks{})
	ctx := context.Background()
	if err := g.Setup(ctx, TypeOmap); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	var caught any
	orig := fatal
	fatal = func(err error) { caught = err }
	defer func() { fatal = orig }()

	// Bump this instance's in-memory version past what's stored, so
	// read()'s version check fails and update() returns an error.
	g.mu.Lock()
	g.st.version.Ver += 1000
	g.mu.Unlock()

	g.handleNotify(ctx, objectstore.Notification{NotifierID: g.myID + 1})
	if caught == nil {
		t.Fatalf("expected handleNotify to invoke fatal on update failure")
	}
}

func TestWatchDeliversUpdatesAcrossInstances(t *testing.T) {
	store := memstore.New()
	oidOf := shardOID2

	g1, err := New(store, omaplog.New(store), fifo.New(store), 1, oidOf, "logback.meta", Callbacks{}, nil)
	if err != nil {
		t.Fatalf("New g1: %v", err)
	}
	ctx := context.Background()
	if err := g1.Setup(ctx, TypeOmap); err != nil {
		t.Fatalf("Setup g1: %v", err)
	}
	defer g1.Close(ctx)

	notified := make(chan GenMap, 1)
	g2, err := New(store, omaplog.New(store), fifo.New(store), 1, oidOf, "logback.meta", Callbacks{
		HandleNewGens: func(added GenMap) error {
			notified <- added
			return nil
		},
	}, nil)
	if err != nil {
		t.Fatalf("New g2: %v", err)
	}
	if err := g2.Setup(ctx, TypeOmap); err != nil {
		t.Fatalf("Setup g2: %v", err)
	}
	defer g2.Close(ctx)

	if err := g1.NewBacking(ctx, TypeFIFO); err != nil {
		t.Fatalf("NewBacking: %v", err)
	}

	added := testutil.RequireReceive(t, notified, 2*time.Second, "g2 never observed g1's new_backing via watch")
	if added[1].Type != TypeFIFO {
		t.Fatalf("unexpected delta: %+v", added)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	g, _ := newTestRegistry(t, Callbacks{})
	ctx := context.Background()
	if err := g.Setup(ctx, TypeOmap); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close (second call): %v", err)
	}
}
