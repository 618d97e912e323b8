// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/objectlog/logback/shardbackend"
)

// verdict is the shard prober's classification of a single shard
// object.
type verdict int

const (
	verdictAbsent verdict = iota
	verdictOmap
	verdictFIFO
	verdictCorrupt
)

// zeroHeader is the omap-log header value probeShard treats as "not
// actually present" — a bare object whose header was never set by a
// real writer reads back as this.
var zeroHeader = []byte{}

// probeShard classifies the shard object at oid. It never returns an
// error: any driver failure other than "not found" collapses into
// verdictCorrupt, matching the spec's "probe never escalates" design —
// ambiguity is data for the type resolver to aggregate, not a failure
// of the probe itself.
func probeShard(ctx context.Context, omap shardbackend.OmapLog, fifo shardbackend.FIFO, oid string) (verdict, bool) {
	omapPresent := false
	header, err := omap.Info(ctx, oid)
	switch {
	case errors.Is(err, shardbackend.ErrNotFound):
		return verdictAbsent, false
	case err != nil:
		return verdictCorrupt, false
	case !bytes.Equal(header, zeroHeader):
		omapPresent = true
	}

	fifoHandle, err := fifo.Open(ctx, oid, true)
	fifoPresent := err == nil
	switch {
	case errors.Is(err, shardbackend.ErrNotFound), errors.Is(err, shardbackend.ErrNoData):
		// FIFO absent; omapPresent (if any) still stands.
	case err != nil:
		return verdictCorrupt, false
	}

	if omapPresent && fifoPresent {
		return verdictCorrupt, false
	}

	if fifoPresent {
		entries, _, err := fifo.List(ctx, fifoHandle, 1)
		if err != nil {
			return verdictCorrupt, false
		}
		return verdictFIFO, len(entries) > 0
	}

	if omapPresent {
		entries, _, _, err := omap.List(ctx, oid, 1, "")
		if err != nil {
			return verdictCorrupt, false
		}
		return verdictOmap, len(entries) > 0
	}

	return verdictAbsent, false
}

func (v verdict) String() string {
	switch v {
	case verdictAbsent:
		return "absent"
	case verdictOmap:
		return "omap"
	case verdictFIFO:
		return "fifo"
	case verdictCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}
