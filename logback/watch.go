// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"time"

	"github.com/objectlog/logback/objectstore"
)

// notifyTimeout bounds how long a mutating operation waits for its
// post-write notify to reach every current watcher.
const notifyTimeout = 10 * time.Second

// registerWatch registers a watch on the metadata object and starts
// the background loop that applies incoming notifications to
// in-memory state. Safe to call at most once per Generations; Setup is
// the only caller.
func (g *Generations) registerWatch(ctx context.Context) error {
	cookie, ch, err := g.store.Watch(ctx, g.metaOID)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	g.watchMu.Lock()
	g.watchCookie = cookie
	g.watching = true
	g.stopWatch = cancel
	g.watchDone = make(chan struct{})
	g.watchMu.Unlock()

	go g.runWatchLoop(watchCtx, ch)
	return nil
}

// runWatchLoop consumes notifications for the metadata object until
// the channel closes. A close caused by our own Close/teardown is
// distinguished from a store-side watch failure by watchCtx: teardown
// cancels it first, so a loop that sees the channel close after
// watchCtx.Err() != nil exits quietly; anything else attempts one
// re-registration, per the spec's on_error handler.
func (g *Generations) runWatchLoop(watchCtx context.Context, ch <-chan objectstore.Notification) {
	defer close(g.watchDone)

	for {
		select {
		case notif, ok := <-ch:
			if !ok {
				if watchCtx.Err() != nil {
					return
				}
				newCh, err := g.reregisterWatch(watchCtx)
				if err != nil {
					g.logger.Error("logback: watch re-registration failed, giving up", "error", err)
					return
				}
				ch = newCh
				continue
			}
			g.handleNotify(watchCtx, notif)
		case <-watchCtx.Done():
			return
		}
	}
}

// handleNotify applies one incoming notification. Self-notifications
// (this instance's own writes) are ignored — the writer already
// updated its own state before sending the notify. Any other
// notification triggers update(); by the spec's design, a failure here
// means this instance's view of the registry can no longer be trusted,
// so it aborts the process rather than silently continuing on stale or
// corrupt state.
func (g *Generations) handleNotify(ctx context.Context, notif objectstore.Notification) {
	if notif.NotifierID == g.myID {
		return
	}
	if err := g.update(ctx); err != nil {
		g.logger.Error("logback: update from watch notification failed, aborting", "error", err)
		fatal(err)
	}
}

// reregisterWatch tears down the old watch registration (best-effort)
// and installs a new one, returning its notification channel.
func (g *Generations) reregisterWatch(ctx context.Context) (<-chan objectstore.Notification, error) {
	g.watchMu.Lock()
	oldCookie := g.watchCookie
	g.watchMu.Unlock()

	_ = g.store.Unwatch(ctx, oldCookie)

	cookie, ch, err := g.store.Watch(ctx, g.metaOID)
	if err != nil {
		return nil, err
	}

	g.watchMu.Lock()
	g.watchCookie = cookie
	g.watchMu.Unlock()
	return ch, nil
}

// Close unregisters this instance's active watch, if any, and waits
// for the watch loop to exit. Close does not touch persisted state:
// the metadata object is an external resource with its own lifetime.
func (g *Generations) Close(ctx context.Context) error {
	g.watchMu.Lock()
	if !g.watching {
		g.watchMu.Unlock()
		return nil
	}
	g.watching = false
	cookie := g.watchCookie
	stop := g.stopWatch
	done := g.watchDone
	g.watchMu.Unlock()

	stop()
	err := g.store.Unwatch(ctx, cookie)
	<-done
	return err
}

// fatal is the abort path spec.md's watch handler requires when
// update() fails after a live notification: this instance's cached
// state may now be behind an invariant-violating write, and there is
// no safe way to keep serving requests against it. Overridden in tests
// so a simulated fatal condition doesn't actually kill the test
// binary.
var fatal = func(err error) {
	panic(err)
}
