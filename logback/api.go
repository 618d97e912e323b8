// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/objectlog/logback/objectstore"
)

// Backoff bounds for the CAS retry loops shared by NewBacking, EmptyTo,
// and RemoveEmpty. A conflict means a concurrent writer committed
// between this instance's update() and its own write() attempt;
// backing off briefly rather than retrying in a tight loop gives that
// writer's notify a chance to land before the next attempt.
const (
	casInitialBackoff = 5 * time.Millisecond
	casMaxBackoff     = 100 * time.Millisecond
)

// nextCASBackoff returns the backoff to wait before the next CAS retry,
// doubling cur and capping at casMaxBackoff. Called with 0 to get the
// first attempt's backoff.
func nextCASBackoff(cur time.Duration) time.Duration {
	if cur <= 0 {
		return casInitialBackoff
	}
	next := cur * 2
	if next > casMaxBackoff {
		return casMaxBackoff
	}
	return next
}

// waitCASBackoff pauses for d on g's clock, returning ctx's error early
// if it is cancelled first.
func (g *Generations) waitCASBackoff(ctx context.Context, d time.Duration) error {
	select {
	case <-g.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Setup brings this instance's in-memory state in line with the
// metadata object, creating and bootstrapping it if this is the first
// instance ever to touch this log. defaultType selects generation 0's
// backing type when bootstrapping; it has no effect if the metadata
// object already exists.
//
// Setup registers this instance's watch and invokes Callbacks.HandleInit
// before returning. It must be called exactly once, before any other
// method.
func (g *Generations) Setup(ctx context.Context, defaultType LogType) error {
	entries, version, err := g.read(ctx)
	switch {
	case err == nil:
		g.mu.Lock()
		g.st.entries = entries
		g.st.version = version
		g.mu.Unlock()

	case errors.Is(err, ErrNotFound):
		if err := g.bootstrap(ctx, defaultType); err != nil {
			return err
		}

	default:
		return err
	}

	if err := g.registerWatch(ctx); err != nil {
		g.logger.Warn("logback: failed to register watch during setup, continuing without one", "error", err)
	}

	active, _ := g.snapshot()
	tail := active.activeTail()
	initial := make(GenMap)
	for k, v := range active {
		if k >= tail {
			initial[k] = v
		}
	}

	if g.callbacks.HandleInit != nil {
		return g.callbacks.HandleInit(initial)
	}
	return nil
}

// bootstrap handles Setup's not-found path: this instance believes it
// may be the first to ever write the metadata object.
func (g *Generations) bootstrap(ctx context.Context, defaultType LogType) error {
	typ, err := logBackingType(ctx, defaultType, g.shards, g.oidForGen0, g.omap, g.fifo)
	if err != nil {
		return err
	}

	initial := GenMap{0: {GenID: 0, Type: typ, Empty: false}}
	encoded, err := encodeGenMap(initial)
	if err != nil {
		return err
	}

	newVersion, err := g.store.Write(ctx, g.metaOID, objectstore.WriteOp{
		CreateExclusive: true,
		WriteFull:       encoded,
	})
	if err == nil {
		g.mu.Lock()
		g.st.entries = initial
		g.st.version = newVersion
		g.mu.Unlock()
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return err
	}

	// Another instance raced us and won. Re-read to see what it left
	// behind.
	entries, version, err := g.read(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: setup lost the create race but found an empty generation map", ErrIO)
	}
	if entries.minKey() != 0 {
		// Another client created generation 0, then already reclaimed
		// it. Clean up whatever residue our own type resolution left
		// on shard 0.
		if err := logRemove(ctx, g.store, g.fifo, g.shards, g.oidForGen0, true); err != nil {
			return err
		}
	}

	g.mu.Lock()
	g.st.entries = entries
	g.st.version = version
	g.mu.Unlock()
	return nil
}

// NewBacking adds a new head generation backed by typ, unless the
// current head is already backed by typ (idempotent no-op). It retries
// internally on CAS conflicts up to a bounded number of attempts.
func (g *Generations) NewBacking(ctx context.Context, typ LogType) error {
	var lastErr error
	var backoff time.Duration
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := g.update(ctx); err != nil {
			return err
		}

		g.mu.Lock()
		current := g.st.entries
		head := current.headGenID()
		if current[head].Type == typ {
			g.mu.Unlock()
			return nil
		}

		newGenID := head + 1
		proposed := current.clone()
		proposed[newGenID] = GenerationEntry{GenID: newGenID, Type: typ, Empty: false}

		err := g.write(ctx, proposed)
		if errors.Is(err, ErrCancelled) {
			lastErr = err
			backoff = nextCASBackoff(backoff)
			if werr := g.waitCASBackoff(ctx, backoff); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			g.mu.Unlock()
			return err
		}
		g.mu.Unlock()

		notifyErr := g.notify(ctx)
		var cbErr error
		if g.callbacks.HandleNewGens != nil {
			cbErr = g.callbacks.HandleNewGens(GenMap{newGenID: proposed[newGenID]})
		}
		return errors.Join(notifyErr, cbErr)
	}
	return fmt.Errorf("logback: new_backing exceeded %d cas attempts: %w", maxCASAttempts, lastErr)
}

// EmptyTo marks every generation at or below genID as empty, draining
// them of active writers. genID must be strictly below the current
// head generation — there must always be a non-empty head. It retries
// internally on CAS conflicts.
func (g *Generations) EmptyTo(ctx context.Context, genID uint64) error {
	var lastErr error
	var backoff time.Duration
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := g.update(ctx); err != nil {
			return err
		}

		g.mu.Lock()
		current := g.st.entries
		if genID >= current.headGenID() {
			g.mu.Unlock()
			return fmt.Errorf("%w: empty_to(%d) targets the head generation or beyond (head=%d)", ErrInvalidArg, genID, current.headGenID())
		}

		proposed := current.clone()
		touched := false
		for k, e := range proposed {
			if k <= genID && !e.Empty {
				e.Empty = true
				proposed[k] = e
				touched = true
			}
		}
		if !touched {
			g.mu.Unlock()
			return nil
		}

		err := g.write(ctx, proposed)
		if errors.Is(err, ErrCancelled) {
			lastErr = err
			backoff = nextCASBackoff(backoff)
			if werr := g.waitCASBackoff(ctx, backoff); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			g.mu.Unlock()
			return err
		}
		g.mu.Unlock()

		notifyErr := g.notify(ctx)
		var cbErr error
		if g.callbacks.HandleEmptyTo != nil {
			cbErr = g.callbacks.HandleEmptyTo(genID)
		}
		return errors.Join(notifyErr, cbErr)
	}
	return fmt.Errorf("logback: empty_to exceeded %d cas attempts: %w", maxCASAttempts, lastErr)
}

// RemoveEmpty reclaims every generation below the active tail: their
// shard objects are removed (generation 0's shard 0 is emptied rather
// than deleted, preserving it as a lock rendezvous point) and they are
// dropped from the generation map. It retries internally on CAS
// conflicts, reprobing which generations still need reclaiming on each
// attempt.
func (g *Generations) RemoveEmpty(ctx context.Context) error {
	var lastErr error
	var backoff time.Duration
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := g.update(ctx); err != nil {
			return err
		}

		g.mu.Lock()
		current := g.st.entries
		tail := current.activeTail()
		if tail == current.minKey() {
			g.mu.Unlock()
			return nil
		}

		toReclaim := make(GenMap)
		for k, e := range current {
			if k < tail {
				if !e.Empty {
					g.mu.Unlock()
					return fmt.Errorf("%w: generation %d is below the active tail but not marked empty", ErrInconsistent, k)
				}
				toReclaim[k] = e
			}
		}
		g.mu.Unlock()

		var removeErr error
		for genID := range toReclaim {
			removeErr = logRemove(ctx, g.store, g.fifo, g.shards, oidOfGen(g.oidOf, genID), genID == 0)
			if removeErr != nil {
				break
			}
		}
		if removeErr != nil {
			return removeErr
		}

		g.mu.Lock()
		remaining := make(GenMap, len(g.st.entries))
		for k, e := range g.st.entries {
			if k >= tail {
				remaining[k] = e
			}
		}

		err := g.write(ctx, remaining)
		if errors.Is(err, ErrCancelled) {
			lastErr = err
			backoff = nextCASBackoff(backoff)
			if werr := g.waitCASBackoff(ctx, backoff); werr != nil {
				return werr
			}
			continue
		}
		if err != nil {
			g.mu.Unlock()
			return err
		}
		g.mu.Unlock()

		return nil
	}
	return fmt.Errorf("logback: remove_empty exceeded %d cas attempts: %w", maxCASAttempts, lastErr)
}
