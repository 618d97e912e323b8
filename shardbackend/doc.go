// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package shardbackend defines the two shard driver interfaces the
// logback registry's prober and bulk remover are built on — an
// ordered-map log ("omap-log") and a partitioned append-only log
// ("fifo") — plus reference implementations of each layered directly
// on an [objectstore.Store].
//
// Neither driver defines a production wire format: [shardbackend/fifo]
// picks its own part layout, and [shardbackend/omaplog] picks its own
// entry encoding. What matters to the registry is the contract in this
// package, not the bytes on the wire.
package shardbackend
