// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides logback's standard CBOR encoding
// configuration.
//
// Logback uses CBOR for every internal protocol: generation maps
// persisted to objectstore bodies, shardbackend part headers, and
// fsstore's on-disk metadata sidecars. CLI output (cmd/logback-ctl)
// is plain text printed with fmt, since it only ever talks to a human
// or a shell pipeline.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every logback package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes, so two writers of the same logical generation map produce
// byte-identical encodings. (The [objectstore.Version] tag does not
// depend on this: it is a random string chosen when an object is
// created.)
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
package codec
