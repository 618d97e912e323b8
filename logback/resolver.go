// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"context"
	"fmt"

	"github.com/objectlog/logback/shardbackend"
)

// logBackingType probes every shard in [0, shards) and returns the
// backing type they agree on, or resolves and records defaultType if
// every shard is absent. It is idempotent: calling it again after it
// has already resolved a generation's type returns the same answer.
func logBackingType(ctx context.Context, defaultType LogType, shards uint32, oidOf func(shardIdx uint32) string, omap shardbackend.OmapLog, fifo shardbackend.FIFO) (LogType, error) {
	agreed := verdictAbsent

	for i := uint32(0); i < shards; i++ {
		v, _ := probeShard(ctx, omap, fifo, oidOf(i))
		if v == verdictCorrupt {
			return 0, fmt.Errorf("%w: shard %d is corrupt or ambiguous", ErrIO, i)
		}
		if v == verdictAbsent {
			continue
		}
		if agreed == verdictAbsent {
			agreed = v
			continue
		}
		if agreed != v {
			return 0, fmt.Errorf("%w: shard %d disagrees on backing type", ErrIO, i)
		}
	}

	if agreed == verdictAbsent {
		if err := handleDNE(ctx, defaultType, oidOf(0), fifo); err != nil {
			return 0, err
		}
		return defaultType, nil
	}

	switch agreed {
	case verdictOmap:
		return TypeOmap, nil
	case verdictFIFO:
		return TypeFIFO, nil
	default:
		return 0, fmt.Errorf("%w: unexpected probe verdict %s", ErrIO, agreed)
	}
}

// handleDNE resolves the "no shard has been touched yet" case for
// logBackingType. A FIFO default requires shard 0 to actually exist as
// a FIFO object before any writer can append to it; an omap-log
// default needs no eager initialization since a shard's omap header
// comes into being on first write.
func handleDNE(ctx context.Context, defaultType LogType, gen0shard0 string, fifo shardbackend.FIFO) error {
	if defaultType != TypeFIFO {
		return nil
	}
	if err := fifo.Create(ctx, gen0shard0); err != nil {
		return fmt.Errorf("logback: creating fifo for %s: %w", gen0shard0, err)
	}
	return nil
}
