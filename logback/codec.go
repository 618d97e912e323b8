// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

package logback

import (
	"fmt"

	"github.com/objectlog/logback/lib/codec"
)

// encodeGenMap serializes m with logback's standard CBOR deterministic
// encoding (sorted map keys), so two writers that persist the same
// logical map produce byte-identical output — required by the
// round-trip property every [Generations] operation relies on.
func encodeGenMap(m GenMap) ([]byte, error) {
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("logback: encoding generation map: %w", err)
	}
	return data, nil
}

// decodeGenMap deserializes bytes produced by encodeGenMap. An empty
// or malformed payload is reported distinctly so callers can
// distinguish "not-found" (handled one level up, before decode is ever
// attempted) from "found but not a valid generation map."
func decodeGenMap(data []byte) (GenMap, error) {
	var m GenMap
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding generation map: %v", ErrInconsistent, err)
	}
	return m, nil
}
