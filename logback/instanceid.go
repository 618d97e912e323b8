// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// instanceIDDomainKey separates logback's instance-ID hashing from any
// other BLAKE3 keyed use in a process that happens to link this
// package alongside others doing their own keyed hashing.
var instanceIDDomainKey = [32]byte{
	'l', 'o', 'g', 'b', 'a', 'c', 'k', '.', 'i', 'n', 's', 't', 'a', 'n', 'c', 'e',
	'.', 'i', 'd',
}

// newInstanceID returns a fresh, collision-resistant 64-bit identifier
// for this process's [Generations] instance (spec's my_id). It folds
// 32 bytes of crypto/rand through keyed BLAKE3 rather than truncating
// the random bytes directly, so the identifier distribution doesn't
// depend on crypto/rand's byte-level bias (there is none in practice,
// but the hash step costs nothing and matches how the rest of the
// codebase derives short IDs from random input).
func newInstanceID() (uint64, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return 0, err
	}

	hasher, err := blake3.NewKeyed(instanceIDDomainKey[:])
	if err != nil {
		return 0, err
	}
	hasher.Write(seed)

	var digest [8]byte
	if _, err := hasher.Digest().Read(digest[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(digest[:]), nil
}
