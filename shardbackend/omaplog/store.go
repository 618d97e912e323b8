// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package omaplog is a reference [shardbackend.OmapLog] implementation
// layered directly on an [objectstore.Store]: a shard's header is the
// object's omap header, and its entries are omap rows keyed by a
// zero-padded, monotonically increasing marker.
package omaplog

import (
	"context"
	"errors"
	"fmt"

	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/shardbackend"
)

// markerWidth is wide enough that lexicographic and numeric order
// agree for any realistic shard size.
const markerWidth = 20

// Driver is a [shardbackend.OmapLog] backed by an [objectstore.Store].
type Driver struct {
	store objectstore.Store
}

// New returns an omap-log driver layered on store.
func New(store objectstore.Store) *Driver {
	return &Driver{store: store}
}

func (d *Driver) Info(ctx context.Context, oid string) ([]byte, error) {
	res, err := d.store.Read(ctx, oid, objectstore.ReadOp{})
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, shardbackend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("omaplog: info %s: %w", oid, err)
	}
	return res.OmapHeader, nil
}

func (d *Driver) List(ctx context.Context, oid string, max int, afterMarker string) ([]shardbackend.Entry, string, bool, error) {
	entries, nextMarker, truncated, err := d.store.ListOmap(ctx, oid, afterMarker, max)
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, "", false, shardbackend.ErrNotFound
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("omaplog: list %s: %w", oid, err)
	}

	out := make([]shardbackend.Entry, len(entries))
	for i, e := range entries {
		out[i] = shardbackend.Entry{Marker: e.Key, Data: e.Value}
	}
	return out, nextMarker, truncated, nil
}

// Append writes data under the next marker in sequence, determined by
// scanning the shard's existing entries for the current maximum. This
// keeps the driver stateless (no counter to persist or lose across a
// process restart) at the cost of an O(n) scan per append — acceptable
// for a reference driver whose wire format is explicitly not part of
// this module's contract. After the row is stored, the new marker is
// also written as the object's omap header, so a shard that has been
// appended to always carries a non-empty header.
func (d *Driver) Append(ctx context.Context, oid string, data []byte) error {
	next, err := d.nextMarker(ctx, oid)
	if err != nil {
		return err
	}
	if err := d.store.SetOmap(ctx, oid, next, data); err != nil {
		return fmt.Errorf("omaplog: append %s: %w", oid, err)
	}
	if _, err := d.store.Write(ctx, oid, objectstore.WriteOp{OmapSetHeader: []byte(next)}); err != nil {
		return fmt.Errorf("omaplog: append %s: setting header: %w", oid, err)
	}
	return nil
}

func (d *Driver) nextMarker(ctx context.Context, oid string) (string, error) {
	last := int64(-1)
	after := ""
	for {
		entries, nextMarker, truncated, err := d.store.ListOmap(ctx, oid, after, 1000)
		if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
			return "", fmt.Errorf("omaplog: scanning %s for next marker: %w", oid, err)
		}
		for _, e := range entries {
			var n int64
			if _, scanErr := fmt.Sscanf(e.Key, "%020d", &n); scanErr == nil && n > last {
				last = n
			}
		}
		if !truncated {
			break
		}
		after = nextMarker
	}
	return fmt.Sprintf("%0*d", markerWidth, last+1), nil
}
