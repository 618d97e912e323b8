// Copyright 2026 The Logback Authors
// SPDX-License-Identifier: Apache-2.0

// Package fifo is a reference [shardbackend.FIFO] implementation
// layered on an [objectstore.Store]: a FIFO head object carries a
// small CBOR header naming its part-chain bounds, and each part is a
// separate object holding a sequence of length-framed entries.
//
// This is not a production FIFO wire format — the module's contract is
// the [shardbackend.FIFO] interface, not these bytes on the wire. A
// deployment with an existing FIFO implementation (e.g. one already
// used by its object store) should adapt that instead of this package.
package fifo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/objectlog/logback/lib/codec"
	"github.com/objectlog/logback/objectstore"
	"github.com/objectlog/logback/shardbackend"
)

// InlineCompressThreshold is the entry size, in bytes, above which
// Append compresses the entry before framing it into a part. Below
// this the zstd frame overhead nets negative.
const InlineCompressThreshold = 256

const (
	partHeaderSize    = 0 // parts carry no header of their own beyond framing
	partEntryOverhead = 5 // 4-byte length prefix + 1-byte compression flag
	maxPartEntries    = 1024
)

const (
	flagRaw  = 0
	flagZstd = 1
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// header is the FIFO head object's persisted state.
type header struct {
	HeadPartNum int64 `cbor:"head_part_num"`
	TailPartNum int64 `cbor:"tail_part_num"`
}

func emptyHeader() header { return header{HeadPartNum: -1, TailPartNum: -1} }

func partOID(oid string, j int64) string {
	return shardbackend.Info{}.PartOID(oid, j)
}

// Driver is a [shardbackend.FIFO] backed by an [objectstore.Store].
type Driver struct {
	store objectstore.Store
}

// New returns a FIFO driver layered on store.
func New(store objectstore.Store) *Driver {
	return &Driver{store: store}
}

// handle implements [shardbackend.Handle].
type handle struct {
	oid string
	hdr header
}

func (h *handle) OID() string { return h.oid }

func (d *Driver) Create(ctx context.Context, oid string) error {
	encoded, err := codec.Marshal(emptyHeader())
	if err != nil {
		return fmt.Errorf("fifo: create %s: %w", oid, err)
	}
	_, err = d.store.Write(ctx, oid, objectstore.WriteOp{CreateExclusive: true, WriteFull: encoded})
	if err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("fifo: create %s: %w", oid, err)
	}
	return nil
}

func (d *Driver) Open(ctx context.Context, oid string, probeOnly bool) (shardbackend.Handle, error) {
	res, err := d.store.Read(ctx, oid, objectstore.ReadOp{})
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, shardbackend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fifo: open %s: %w", oid, err)
	}
	if len(res.Body) == 0 {
		return nil, shardbackend.ErrNoData
	}

	var hdr header
	if err := codec.Unmarshal(res.Body, &hdr); err != nil {
		return nil, shardbackend.ErrNoData
	}
	return &handle{oid: oid, hdr: hdr}, nil
}

func (d *Driver) GetMeta(ctx context.Context, oid string) (shardbackend.Info, error) {
	h, err := d.Open(ctx, oid, true)
	if err != nil {
		return shardbackend.Info{}, err
	}
	hd := h.(*handle)
	return shardbackend.Info{
		HeadPartNum:       hd.hdr.HeadPartNum,
		TailPartNum:       hd.hdr.TailPartNum,
		PartHeaderSize:    partHeaderSize,
		PartEntryOverhead: partEntryOverhead,
	}, nil
}

// Append writes data to the current part, creating part 0 and
// advancing the head header if this is the first entry or the current
// part is full. Not safe for concurrent callers against the same oid —
// production use behind logback's registry always serializes appends
// per shard through the caller's own locking.
func (d *Driver) Append(ctx context.Context, oid string, data []byte) error {
	h, err := d.Open(ctx, oid, false)
	if err != nil && !errors.Is(err, shardbackend.ErrNoData) {
		return err
	}
	hdr := emptyHeader()
	if h != nil {
		hdr = h.(*handle).hdr
	}

	if hdr.HeadPartNum == -1 {
		hdr.HeadPartNum = 0
		hdr.TailPartNum = 0
	}

	currentPart := partOID(oid, hdr.HeadPartNum)
	entries, err := d.readPart(ctx, currentPart)
	if err != nil {
		return err
	}
	if len(entries) >= maxPartEntries {
		hdr.HeadPartNum++
		currentPart = partOID(oid, hdr.HeadPartNum)
		entries = nil
	}

	encoded := data
	flag := byte(flagRaw)
	if len(data) > InlineCompressThreshold {
		encoded = encoder.EncodeAll(data, nil)
		flag = flagZstd
	}
	entries = append(entries, framedEntry{flag: flag, data: encoded})

	if err := d.writePart(ctx, currentPart, entries); err != nil {
		return err
	}

	encodedHeader, err := codec.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("fifo: append %s: encoding header: %w", oid, err)
	}
	if _, err := d.store.Write(ctx, oid, objectstore.WriteOp{WriteFull: encodedHeader}); err != nil {
		return fmt.Errorf("fifo: append %s: writing header: %w", oid, err)
	}
	return nil
}

func (d *Driver) List(ctx context.Context, h shardbackend.Handle, max int) ([]shardbackend.Entry, bool, error) {
	hd := h.(*handle)
	if hd.hdr.HeadPartNum == -1 {
		return nil, false, nil
	}

	var out []shardbackend.Entry
	more := false
	for partNum := hd.hdr.TailPartNum; partNum <= hd.hdr.HeadPartNum; partNum++ {
		partOID := partOID(hd.oid, partNum)
		entries, err := d.readPart(ctx, partOID)
		if err != nil {
			return nil, false, err
		}
		for _, e := range entries {
			if len(out) >= max {
				more = true
				break
			}
			data := e.data
			if e.flag == flagZstd {
				decoded, err := decoder.DecodeAll(e.data, nil)
				if err != nil {
					return nil, false, fmt.Errorf("fifo: decompressing entry in %s: %w", partOID, err)
				}
				data = decoded
			}
			out = append(out, shardbackend.Entry{Data: data})
		}
		if more {
			break
		}
	}
	return out, more, nil
}

type framedEntry struct {
	flag byte
	data []byte
}

// readPart decodes a part object's body into its framed entries.
// Framing: repeated [1-byte flag][4-byte big-endian length][payload].
func (d *Driver) readPart(ctx context.Context, partOID string) ([]framedEntry, error) {
	res, err := d.store.Read(ctx, partOID, objectstore.ReadOp{})
	if errors.Is(err, objectstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fifo: reading part %s: %w", partOID, err)
	}

	var entries []framedEntry
	body := res.Body
	for len(body) > 0 {
		if len(body) < 5 {
			return nil, fmt.Errorf("fifo: part %s: truncated entry frame", partOID)
		}
		flag := body[0]
		length := binary.BigEndian.Uint32(body[1:5])
		body = body[5:]
		if uint32(len(body)) < length {
			return nil, fmt.Errorf("fifo: part %s: truncated entry payload", partOID)
		}
		entries = append(entries, framedEntry{flag: flag, data: body[:length]})
		body = body[length:]
	}
	return entries, nil
}

func (d *Driver) writePart(ctx context.Context, partOID string, entries []framedEntry) error {
	var body []byte
	for _, e := range entries {
		var lenBuf [5]byte
		lenBuf[0] = e.flag
		binary.BigEndian.PutUint32(lenBuf[1:], uint32(len(e.data)))
		body = append(body, lenBuf[:]...)
		body = append(body, e.data...)
	}
	if _, err := d.store.Write(ctx, partOID, objectstore.WriteOp{WriteFull: body}); err != nil {
		return fmt.Errorf("fifo: writing part %s: %w", partOID, err)
	}
	return nil
}
