// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import "crypto/rand"

const alphaAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomAlpha returns a random alphanumeric string of length n. Used to
// generate a Version.Tag the first time an object is written, so that a
// reader can tell "rewritten by the same lineage" apart from "deleted
// and recreated by someone else" even when Ver coincides.
func RandomAlpha(n int) string {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		panic("objectstore: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = alphaAlphabet[int(b)%len(alphaAlphabet)]
	}
	return string(out)
}
