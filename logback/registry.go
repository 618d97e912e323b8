// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/objectlog/logback/lib/clock"
	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/shardbackend"
)

// maxCASAttempts bounds the retry loop every mutating operation runs
// against a concurrent writer. Exceeding it returns the last error
// observed rather than retrying forever.
const maxCASAttempts = 10

// Generations tracks one log's generation map: which generations
// exist, which backing type each uses, and which have been fully
// drained of active writers. It is the entry point for the whole
// package — construct one with New, drive it with Setup and the
// mutating operations, and let its Callbacks observe the changes.
//
// A Generations is safe for concurrent use by multiple goroutines.
type Generations struct {
	store     objectstore.Store
	omap      shardbackend.OmapLog
	fifo      shardbackend.FIFO
	shards    uint32
	oidOf     OIDFunc
	metaOID   string
	callbacks Callbacks
	myID      uint64
	logger    *slog.Logger
	clock     clock.Clock

	mu sync.Mutex
	st state

	watchMu     sync.Mutex
	watchCookie uint64
	watching    bool
	stopWatch   context.CancelFunc
	watchDone   chan struct{}
}

// Option configures optional Generations behavior. See WithClock.
type Option func(*Generations)

// WithClock overrides the clock used for the CAS retry backoff in
// NewBacking, EmptyTo, and RemoveEmpty. The default is clock.Real().
// Tests inject clock.Fake() to drive backoff deterministically.
func WithClock(c clock.Clock) Option {
	return func(g *Generations) {
		g.clock = c
	}
}

// New constructs a Generations for the log described by metaOID,
// shards, and oidOf. It does not perform any I/O; call Setup before
// any other method.
func New(store objectstore.Store, omap shardbackend.OmapLog, fifo shardbackend.FIFO, shards uint32, oidOf OIDFunc, metaOID string, callbacks Callbacks, logger *slog.Logger, opts ...Option) (*Generations, error) {
	if shards == 0 {
		return nil, fmt.Errorf("%w: shards must be at least 1", ErrInvalidArg)
	}
	id, err := newInstanceID()
	if err != nil {
		return nil, fmt.Errorf("logback: generating instance id: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generations{
		store:     store,
		omap:      omap,
		fifo:      fifo,
		shards:    shards,
		oidOf:     oidOf,
		metaOID:   metaOID,
		callbacks: callbacks,
		myID:      id,
		logger:    logger,
		clock:     clock.Real(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// oidForGen0 adapts oidOf for logBackingType's single-shard-index
// signature, always addressing generation 0.
func (g *Generations) oidForGen0(shardIdx uint32) string {
	return g.oidOf(0, shardIdx)
}

func oidOfGen(oidOf OIDFunc, genID uint64) func(uint32) string {
	return func(shardIdx uint32) string { return oidOf(genID, shardIdx) }
}

// read performs the compound metadata read: a version check against
// whatever this instance has already observed, then a decode of the
// returned body into a generation map. It never touches g.st — callers
// decide what to do with the result.
func (g *Generations) read(ctx context.Context) (GenMap, objectstore.Version, error) {
	g.mu.Lock()
	minVersion := g.st.version
	g.mu.Unlock()

	res, err := g.store.Read(ctx, g.metaOID, objectstore.ReadOp{VersionCheckAtLeast: &minVersion})
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, objectstore.Version{}, ErrNotFound
	}
	if err != nil {
		return nil, objectstore.Version{}, err
	}
	entries, err := decodeGenMap(res.Body)
	if err != nil {
		return nil, objectstore.Version{}, err
	}
	return entries, res.Version, nil
}

// write attempts to persist newEntries as the metadata object's new
// body, guarded by a compare-and-swap against the version this
// instance currently believes is live. The caller must hold g.mu on
// entry.
//
// On success, write commits newEntries into g.st and returns with the
// lock still held — the caller performs any further under-lock work,
// then unlocks itself.
//
// On a CAS conflict, write releases the lock, calls update to
// reconcile with whatever another writer committed, and returns
// ErrCancelled with the lock already released — the caller must not
// unlock again and should retry from its own top. If update itself
// fails, its error is joined with ErrCancelled.
func (g *Generations) write(ctx context.Context, newEntries GenMap) error {
	current := g.st.version
	encoded, err := encodeGenMap(newEntries)
	if err != nil {
		return err
	}

	newVersion, err := g.store.Write(ctx, g.metaOID, objectstore.WriteOp{
		VersionCheckAtLeast: &current,
		WriteFull:           encoded,
	})
	if errors.Is(err, objectstore.ErrCancelled) {
		g.mu.Unlock()
		if uerr := g.update(ctx); uerr != nil {
			return errors.Join(ErrCancelled, uerr)
		}
		return ErrCancelled
	}
	if err != nil {
		return err
	}

	g.st.entries = newEntries
	g.st.version = newVersion
	return nil
}

// update re-reads the metadata object and, if it has changed, merges
// the result into in-memory state and fires the delta callbacks. It is
// the sole path by which state changes as a result of another
// instance's write.
func (g *Generations) update(ctx context.Context) error {
	newEntries, newVersion, err := g.read(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if newVersion.Ver == g.st.version.Ver {
		g.mu.Unlock()
		return nil
	}

	old := g.st.entries
	if len(newEntries) == 0 {
		g.mu.Unlock()
		return fmt.Errorf("%w: metadata read returned an empty generation map", ErrInconsistent)
	}
	if len(old) > 0 {
		if newEntries.activeTail() < old.activeTail() {
			g.mu.Unlock()
			return fmt.Errorf("%w: active tail moved backward (%d -> %d)", ErrInconsistent, old.activeTail(), newEntries.activeTail())
		}
		if newEntries.headGenID() < old.headGenID() {
			g.mu.Unlock()
			return fmt.Errorf("%w: head generation moved backward (%d -> %d)", ErrInconsistent, old.headGenID(), newEntries.headGenID())
		}
	}

	haveHighestEmpty := len(old) > 0 && newEntries.activeTail() > old.activeTail()
	highestEmpty := newEntries.activeTail() - 1

	added := make(GenMap)
	for k, v := range newEntries {
		if len(old) == 0 || k > old.headGenID() {
			added[k] = v
		}
	}

	g.st.entries = newEntries
	g.st.version = newVersion
	g.mu.Unlock()

	if haveHighestEmpty && g.callbacks.HandleEmptyTo != nil {
		if err := g.callbacks.HandleEmptyTo(highestEmpty); err != nil {
			return err
		}
	}
	if len(added) > 0 && g.callbacks.HandleNewGens != nil {
		if err := g.callbacks.HandleNewGens(added); err != nil {
			return err
		}
	}
	return nil
}

// notify sends a watch notification on the metadata object tagged with
// this instance's ID, so other instances' watch handlers can suppress
// it as a self-notification.
func (g *Generations) notify(ctx context.Context) error {
	ctx = objectstore.WithNotifierID(ctx, g.myID)
	return g.store.Notify(ctx, g.metaOID, nil, notifyTimeout)
}

// snapshot returns a copy of the currently committed generation map
// and version.
func (g *Generations) snapshot() (GenMap, objectstore.Version) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.entries.clone(), g.st.version
}

// Entries returns a copy of the currently committed generation map.
// Setup must have been called first.
func (g *Generations) Entries() GenMap {
	entries, _ := g.snapshot()
	return entries
}
