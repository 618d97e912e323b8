// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"errors"
	"fmt"

	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/shardbackend"
)

// logRemove tears down every shard object in [0, shards) for one
// generation. It accumulates the first error encountered but keeps
// going — a partial failure on one shard must not leave the others
// leaked. When leaveZero is set, shard 0 is emptied rather than
// deleted: generation 0's shard-0 object is the rendezvous point for
// lock xattrs used before any generation map exists, and must survive
// its own reclamation.
func logRemove(ctx context.Context, store objectstore.Store, fifo shardbackend.FIFO, shards uint32, oidOf func(shardIdx uint32) string, leaveZero bool) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for i := uint32(0); i < shards; i++ {
		oid := oidOf(i)

		meta, err := fifo.GetMeta(ctx, oid)
		switch {
		case errors.Is(err, shardbackend.ErrNotFound), errors.Is(err, shardbackend.ErrNoData):
			// No FIFO parts to remove.
		case err != nil:
			record(fmt.Errorf("logback: reading fifo meta for %s: %w", oid, err))
		default:
			if meta.HeadPartNum > -1 {
				for j := meta.TailPartNum; j <= meta.HeadPartNum; j++ {
					partOID := meta.PartOID(oid, j)
					_, err := store.Write(ctx, partOID, objectstore.WriteOp{Remove: true})
					if err != nil && !errors.Is(err, objectstore.ErrNotFound) {
						record(fmt.Errorf("logback: removing part %s: %w", partOID, err))
					}
				}
			}
		}

		var writeErr error
		if i == 0 && leaveZero {
			zero := int64(0)
			_, writeErr = store.Write(ctx, oid, objectstore.WriteOp{
				OmapSetHeader: []byte{},
				OmapClear:     true,
				Truncate:      &zero,
			})
		} else {
			_, writeErr = store.Write(ctx, oid, objectstore.WriteOp{Remove: true})
		}
		if writeErr != nil && !errors.Is(writeErr, objectstore.ErrNotFound) {
			record(fmt.Errorf("logback: clearing shard %s: %w", oid, writeErr))
		}
	}

	return firstErr
}
