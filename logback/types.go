// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import "github.com/objectlog/logback/objectstore"

// LogType identifies which shard backend a generation is stored with.
type LogType int

const (
	// TypeOmap backs a generation with the omap-log shard driver.
	TypeOmap LogType = iota
	// TypeFIFO backs a generation with the FIFO shard driver.
	TypeFIFO
)

func (t LogType) String() string {
	switch t {
	case TypeOmap:
		return "omap"
	case TypeFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// GenerationEntry is one row of a [GenMap]: a generation's backing
// type and whether it has been drained of active writers.
//
// GenID is dense and monotonically increasing, assigned at creation.
// Type is immutable once set. Empty is a sticky bit: it may only
// transition false -> true.
type GenerationEntry struct {
	GenID uint64  `cbor:"gen_id"`
	Type  LogType `cbor:"type"`
	Empty bool    `cbor:"empty"`
}

// GenMap is the registry's persisted generation map: a dense,
// contiguous (no gaps), non-empty mapping from generation ID to entry.
// The maximum key is the head generation; the smallest key whose Empty
// flag is false is the active tail. Every entry below the active tail
// must have Empty set.
type GenMap map[uint64]GenerationEntry

// clone returns a shallow copy of m — GenerationEntry is a value type,
// so this is a full deep copy. Callers mutate the copy and commit it
// via write(), never the live map (which is replaced wholesale, not
// mutated in place, once a write succeeds).
func (m GenMap) clone() GenMap {
	out := make(GenMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HeadGenID returns the largest generation ID in m. m must be non-empty.
func (m GenMap) HeadGenID() uint64 {
	return m.headGenID()
}

// headGenID returns the largest key in m. m must be non-empty.
func (m GenMap) headGenID() uint64 {
	var max uint64
	first := true
	for k := range m {
		if first || k > max {
			max = k
			first = false
		}
	}
	return max
}

// activeTail returns the smallest key whose entry is not empty. If
// every entry is empty (should not happen in a well-formed map — the
// head entry is always non-empty), activeTail returns the head
// generation ID as a safe fallback.
func (m GenMap) activeTail() uint64 {
	head := m.headGenID()
	tail := head
	for k, e := range m {
		if !e.Empty && k < tail {
			tail = k
		}
	}
	return tail
}

// minKey returns the smallest key in m. m must be non-empty.
func (m GenMap) minKey() uint64 {
	var min uint64
	first := true
	for k := range m {
		if first || k < min {
			min = k
			first = false
		}
	}
	return min
}

// OIDFunc names the shard object for generation genID, shard index
// shardIdx. Callers supply this; logback has no naming convention of
// its own.
type OIDFunc func(genID uint64, shardIdx uint32) string

// Callbacks are invoked by [Generations] whenever the observable
// generation set changes, always without the registry's internal
// mutex held. A non-nil return from any callback propagates as the
// error of whichever operation triggered it — the persisted state is
// not rolled back.
type Callbacks struct {
	// HandleInit is called once, at the end of Setup, with every
	// generation at or above the active tail.
	HandleInit func(active GenMap) error

	// HandleNewGens is called after NewBacking commits, and after
	// update() observes generations added by another instance, with
	// the newly added entries.
	HandleNewGens func(added GenMap) error

	// HandleEmptyTo is called after EmptyTo commits, and after
	// update() observes the active tail advance, with the highest
	// generation ID newly marked empty.
	HandleEmptyTo func(highestEmptyGenID uint64) error
}

// state is the registry's mutex-protected in-memory snapshot.
type state struct {
	entries GenMap
	version objectstore.Version
}
