// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package objectstore defines the RADOS-like storage adapter that the
// logback registry is built on: named objects supporting atomic
// compound read/write with optimistic-concurrency version checks, and
// a watch/notify publish-subscribe channel per object.
//
// Three implementations are provided:
//
//   - [objectstore/memstore]: an in-memory store, used by tests and
//     suitable for embedding in a single process with no persistence.
//   - [objectstore/sqlitestore]: a SQLite-backed store for durable
//     single-host deployments, built on lib/sqlitepool.
//   - [objectstore/fsstore]: a filesystem-backed store guarded by
//     in-process per-object mutexes, intended for single-process CLI use.
//
// A production multi-host deployment supplies its own [Store] backed by
// a real distributed object store; this package's job is to define the
// contract logback needs, not to be the only possible backend.
package objectstore
