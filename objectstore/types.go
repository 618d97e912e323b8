// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by [Store] implementations. Callers use
// errors.Is against these rather than comparing implementation-specific
// error values.
var (
	// ErrNotFound is returned when an operation targets an object that
	// does not exist.
	ErrNotFound = errors.New("objectstore: object not found")

	// ErrCancelled is returned by Write when the caller's version check
	// fails against the stored version — a compare-and-swap conflict.
	ErrCancelled = errors.New("objectstore: version check failed")

	// ErrNoData names the "object exists but carries no omap header and
	// no body" case. None of the bundled stores returns it: their Read
	// of such a bare object succeeds with an empty Body and nil
	// OmapHeader.
	ErrNoData = errors.New("objectstore: object exists but has no data")

	// ErrWatchNotFound names an unknown watch cookie. None of the
	// bundled stores returns it: their Unwatch of an unknown cookie
	// returns nil.
	ErrWatchNotFound = errors.New("objectstore: unknown watch cookie")
)

// Version is the compare-and-swap stamp attached to every object: a
// monotonically increasing counter plus a random tag chosen once when
// the object is first created. The tag lets a reader distinguish "the
// object was rewritten by the same lineage" from "the object was
// deleted and recreated by an unrelated writer" even if Ver happens to
// coincide.
type Version struct {
	Ver uint64
	Tag string
}

// AtLeast reports whether v is greater than or equal to other, using
// Ver as the sole ordering key. Two versions with equal Ver but
// different Tag are still considered equal for CAS purposes — the tag
// is informational, not part of the ordering.
func (v Version) AtLeast(other Version) bool {
	return v.Ver >= other.Ver
}

// ByteRange selects a sub-range of an object's body for Read. A nil
// *ByteRange in [ReadOp] means "the whole object."
type ByteRange struct {
	Offset int64
	Length int64 // 0 means "to the end"
}

// ReadOp describes a compound read operation, mirroring the RADOS
// pattern of chaining a version check, a version read, and a data read
// into one atomic round trip.
type ReadOp struct {
	// VersionCheckAtLeast, if non-nil, fails the whole operation with
	// ErrCancelled unless the stored version is >= this value. Used to
	// guarantee a reader never observes an object older than what it
	// has already seen.
	VersionCheckAtLeast *Version

	// Range selects which bytes of the body to return. Nil reads the
	// whole object.
	Range *ByteRange
}

// ReadResult is the outcome of a successful Read.
type ReadResult struct {
	// Body holds the requested byte range of the object's data.
	Body []byte

	// OmapHeader holds the object's omap header, if any (may be nil).
	OmapHeader []byte

	// Version is the object's version as observed by this read.
	Version Version
}

// WriteOp describes a compound write operation. Fields are applied in
// a fixed order within a single atomic transaction: version check,
// then create/write/truncate/omap mutations, then the version
// increment. Every field is optional; the version increment is not a
// field, and implementations always apply it on success.
type WriteOp struct {
	// VersionCheckAtLeast, if non-nil, fails the whole operation with
	// ErrCancelled unless the stored version is >= this value.
	VersionCheckAtLeast *Version

	// CreateExclusive, if true, fails the operation with
	// os.ErrExist-compatible semantics (surfaced as a plain error, not
	// ErrCancelled) if the object already exists. Used by first-time
	// bootstrap so a racing writer is detected distinctly from a CAS
	// conflict.
	CreateExclusive bool

	// WriteFull, if non-nil, replaces the object's entire body.
	WriteFull []byte

	// Truncate, if non-nil, truncates the body to this length. Applied
	// after WriteFull if both are set. The bulk remover empties an
	// object while keeping it alive with OmapSetHeader (empty),
	// OmapClear and Truncate(0).
	Truncate *int64

	// OmapSetHeader, if non-nil, replaces the object's omap header.
	OmapSetHeader []byte

	// OmapClear, if true, removes all omap entries associated with the
	// object.
	OmapClear bool

	// Remove, if true, deletes the object entirely. Mutually exclusive
	// in practice with the other fields (a removed object has no body
	// or omap left to write), but implementations apply Remove last so
	// a WriteOp that sets both is well-defined: the object ends up
	// removed.
	Remove bool
}

// Notification is a single watch/notify delivery.
type Notification struct {
	// NotifyID identifies this specific notify call, for acking.
	NotifyID uint64

	// NotifierID identifies the instance that called Notify. Watchers
	// compare this against their own instance ID to suppress
	// self-notifications.
	NotifierID uint64

	// Payload is the caller-supplied notify payload.
	Payload []byte
}

// Store is the object-store adapter the logback registry and shard
// backends are built on. All methods accept a context for cancellation;
// blocking calls (Watch's returned channel, Notify) honor ctx.
type Store interface {
	// Read performs a compound read against oid. Returns ErrNotFound if
	// the object does not exist, ErrCancelled if op.VersionCheckAtLeast
	// is set and not satisfied.
	Read(ctx context.Context, oid string, op ReadOp) (ReadResult, error)

	// Write performs a compound write against oid. Returns the new
	// version on success. Returns ErrCancelled if op.VersionCheckAtLeast
	// is set and not satisfied; the caller's in-memory state is left
	// untouched in that case. Returns an error satisfying
	// errors.Is(err, os.ErrExist) if CreateExclusive is set and the
	// object already exists.
	Write(ctx context.Context, oid string, op WriteOp) (Version, error)

	// ListOmap lists up to max omap entries for oid in key order,
	// starting after afterMarker (empty string starts from the
	// beginning). Returns ErrNotFound if the object does not exist.
	ListOmap(ctx context.Context, oid string, afterMarker string, max int) (entries []OmapEntry, nextMarker string, truncated bool, err error)

	// SetOmap sets a single omap key/value pair on oid, creating oid
	// (with ver 0) if it does not already exist. This is narrower than
	// a RADOS omap_set compound op — logback only ever needs to append
	// one key at a time (shardbackend/omaplog's entry rows) — but every
	// [Store] implementation provides it directly rather than routing
	// it through [WriteOp], since WriteOp's fixed field set has no room
	// for an arbitrary key.
	SetOmap(ctx context.Context, oid, key string, value []byte) error

	// Watch registers interest in notifications for oid. The returned
	// channel is closed when Unwatch is called or the context passed to
	// Watch is cancelled. Implementations MUST NOT block Notify callers
	// on a slow watcher forever; a bounded buffer with best-effort
	// delivery is acceptable (see [Store] implementations for their
	// specific policy).
	Watch(ctx context.Context, oid string) (cookie uint64, notifications <-chan Notification, err error)

	// Unwatch cancels a watch registered with Watch.
	Unwatch(ctx context.Context, cookie uint64) error

	// Notify delivers payload to every current watcher of oid and waits
	// up to timeout for the delivery round to complete. Returns
	// ErrNotFound if oid has never been written.
	Notify(ctx context.Context, oid string, payload []byte, timeout time.Duration) error
}

// OmapEntry is one key/value pair from an object's omap.
type OmapEntry struct {
	Key   string
	Value []byte
}
