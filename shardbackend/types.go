// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package shardbackend

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors shared by both drivers. The shard prober
// (logback.probeShard) distinguishes these from each other and from a
// generic error, so drivers must return exactly these values (or
// something matching via errors.Is), never a bare fmt.Errorf.
var (
	// ErrNotFound is returned when the shard object does not exist at
	// all.
	ErrNotFound = errors.New("shardbackend: shard object not found")

	// ErrNoData is returned by FIFO.Open when the shard object exists
	// but carries no FIFO header yet — the object is present (perhaps
	// as a lock-only marker) but has not been initialized as a FIFO.
	ErrNoData = errors.New("shardbackend: shard object has no data")
)

// Entry is one logged record, as returned by either driver's List.
type Entry struct {
	Marker string
	Data   []byte
}

// OmapLog is the ordered-map shard driver: entries are rows in the
// object's omap, keyed by a marker that sorts in append order.
type OmapLog interface {
	// Info returns the shard's omap header. Returns ErrNotFound if oid
	// does not exist. A zero-length, non-nil header distinguishes "the
	// shard exists but has never been written to" from "absent."
	Info(ctx context.Context, oid string) ([]byte, error)

	// List returns up to max entries after afterMarker, in marker
	// order, along with the marker to resume from and whether more
	// entries remain. Returns ErrNotFound if oid does not exist.
	List(ctx context.Context, oid string, max int, afterMarker string) (entries []Entry, nextMarker string, truncated bool, err error)

	// Append adds one entry to the shard, assigning it the next
	// marker in sequence.
	Append(ctx context.Context, oid string, data []byte) error
}

// Info describes a FIFO's part-chain layout, as returned by
// FIFO.GetMeta.
type Info struct {
	// HeadPartNum is the newest part currently being appended to.
	// -1 means the FIFO has been created but never written to.
	HeadPartNum int64

	// TailPartNum is the oldest part not yet trimmed.
	TailPartNum int64

	// PartHeaderSize is the fixed size, in bytes, of a part object's
	// header — accounting overhead the caller may need when estimating
	// shard size.
	PartHeaderSize int64

	// PartEntryOverhead is the fixed per-entry framing overhead, in
	// bytes, added to each appended entry's encoded length.
	PartEntryOverhead int64
}

// PartOID returns the object name of part j of this FIFO.
func (info Info) PartOID(oid string, j int64) string {
	return fmt.Sprintf("%s.%d", oid, j)
}

// Handle is an opaque reference to an opened FIFO, returned by
// FIFO.Open and consumed by List.
type Handle interface {
	// OID returns the FIFO head object's name.
	OID() string
}

// FIFO is the partitioned append-only log shard driver.
type FIFO interface {
	// Create initializes a FIFO head object at oid with an empty part
	// chain (head_part_num = tail_part_num = -1). Returns nil if the
	// object already exists as a FIFO (idempotent create), matching
	// the "ignore EEXIST" contract the type resolver relies on.
	Create(ctx context.Context, oid string) error

	// Open returns a handle to the FIFO at oid. If probeOnly is true,
	// Open does the minimum work needed to classify the object
	// (existence plus header validity) without preparing for
	// subsequent reads — callers that only need the probe verdict pass
	// true. Returns ErrNotFound if oid does not exist, ErrNoData if oid
	// exists but carries no FIFO header.
	Open(ctx context.Context, oid string, probeOnly bool) (Handle, error)

	// List returns up to max entries starting from the tail of the
	// open FIFO, and whether more entries remain beyond what was
	// returned.
	List(ctx context.Context, handle Handle, max int) (entries []Entry, more bool, err error)

	// Append adds one entry to the FIFO referenced by oid, compressing
	// it first if the driver's inline-compression threshold applies.
	Append(ctx context.Context, oid string, data []byte) error

	// GetMeta returns the FIFO's part-chain metadata. Returns
	// ErrNotFound/ErrNoData with the same semantics as Open.
	GetMeta(ctx context.Context, oid string) (Info, error)
}
