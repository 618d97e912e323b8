// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import "errors"

// Sentinel errors. Callers use errors.Is against these rather than
// comparing implementation-specific error values, following the same
// convention lib/servicetoken uses for its own sentinel errors.
var (
	// ErrNotFound replaces the -ENOENT case: the metadata object or a
	// shard object does not exist.
	ErrNotFound = errors.New("logback: object not found")

	// ErrCancelled replaces ECANCELED: a compare-and-swap write lost a
	// race against a concurrent writer. Internal retry loops absorb
	// this; it only escapes a public API call after exhausting the
	// bounded retry budget.
	ErrCancelled = errors.New("logback: version check failed (cas conflict)")

	// ErrIO replaces EIO: a shard is in an ambiguous or corrupt state
	// (both omap and FIFO present, a driver read failed for a reason
	// other than "not found", or the shard prober disagreed across
	// shards of the same generation).
	ErrIO = errors.New("logback: shard state is corrupt or ambiguous")

	// ErrInvalidArg replaces EINVAL: a caller-supplied argument
	// violates a precondition (e.g. EmptyTo targeting the head
	// generation).
	ErrInvalidArg = errors.New("logback: invalid argument")

	// ErrInconsistent replaces the hard EFAULT case: update() observed
	// a persisted generation map that violates a registry invariant
	// (active tail or head generation moved backward, or an empty
	// read). This indicates corruption on the store side — logback's
	// own invariants guarantee it never writes such a map itself.
	ErrInconsistent = errors.New("logback: persisted generation map violates invariants")

	// ErrWatchLost names the case where a previously-registered watch
	// was torn down and re-registration failed, leaving the registry's
	// view possibly stale. No call returns it: the watch loop logs a
	// failed re-registration and stops watching.
	ErrWatchLost = errors.New("logback: watch connection lost")
)
