// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Logback packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. The
// logback package's tests use real wall-clock timeouts only through
// these helpers — its watch/notify tests wait on channels delivered by
// a background goroutine, which a clock.FakeClock cannot drive. Other
// packages' tests (the object stores, lib/clock) still call time.After
// directly.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when a test needs a
// metadata object name it won't collide with another test's.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Logback-internal dependencies.
package testutil
