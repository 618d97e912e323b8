// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package logback manages the lifecycle of sharded, append-only logs
// stored as objects in a [objectstore.Store]: shard probing and type
// inference, a replicated generation registry kept consistent under
// concurrent access via compare-and-swap writes and watch/notify, and
// bulk shard removal when old generations are reclaimed.
//
// A log is partitioned across a fixed number of shards. Over time its
// physical representation may be migrated — a new generation is
// created with a new backing type — and old generations may be marked
// empty and later reclaimed. [Generations] is the entry point: one
// instance per process per logical log, constructed with [New] and
// driven through [Generations.Setup], [Generations.NewBacking],
// [Generations.EmptyTo], and [Generations.RemoveEmpty].
package logback
