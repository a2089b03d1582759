// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grid

import (
	"encoding/binary"
	"fmt"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// -----------------------------------------------------------------------------
// Snapshot Serialization
// -----------------------------------------------------------------------------

// Snapshot wire format, big-endian throughout:
//
//	magic   uint32  "ALAT"
//	version uint8   currently 1
//	dims    uint8   1..MaxDims
//	step    uint64
//	count   uint64  number of cell records
//	records count × { coord dims×int32, word uint32 }
//
// Records are sorted by ascending lexicographic coordinate and never
// contain ground cells, so equal grids always produce identical bytes.
// The snapshot store keys blobs by content hash, which depends on this
// determinism.

const (
	// snapshotMagic is "ALAT" as a big-endian uint32.
	snapshotMagic uint32 = 0x414C4154

	// snapshotVersion is the current wire format version.
	snapshotVersion uint8 = 1

	// snapshotHeaderSize is the fixed byte length before records.
	snapshotHeaderSize = 4 + 1 + 1 + 8 + 8
)

// EncodeSnapshot serializes a snapshot deterministically.
//
// Equal grids at the same step encode to identical bytes regardless of
// insertion order or platform.
func EncodeSnapshot(s *Snapshot) []byte {
	recordSize := s.dims*4 + 4
	buf := make([]byte, 0, snapshotHeaderSize+len(s.cells)*recordSize)

	buf = binary.BigEndian.AppendUint32(buf, snapshotMagic)
	buf = append(buf, snapshotVersion, uint8(s.dims))
	buf = binary.BigEndian.AppendUint64(buf, s.step)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(s.cells)))

	for _, c := range s.sortedCoords() {
		for axis := 0; axis < s.dims; axis++ {
			buf = binary.BigEndian.AppendUint32(buf, uint32(c[axis]))
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(s.cells[c]))
	}
	return buf
}

// DecodeSnapshot parses and validates a serialized snapshot.
//
// Description:
//
//	Validation is strict: magic, version, dims range, exact length,
//	strictly ascending record order, clear reserved bits, and no ground
//	records. A blob that decodes successfully is safe to Restore.
//
// Inputs:
//   - data: Bytes previously produced by EncodeSnapshot.
//
// Outputs:
//   - *Snapshot: A detached snapshot (generation 0).
//   - error: ErrCorruptSnapshot describing the first violation.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if len(data) < snapshotHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrCorruptSnapshot, len(data), snapshotHeaderSize)
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %#08x", ErrCorruptSnapshot, magic)
	}
	if version := data[4]; version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, version)
	}
	dims := int(data[5])
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: dims %d outside 1..%d", ErrCorruptSnapshot, dims, MaxDims)
	}
	step := binary.BigEndian.Uint64(data[6:14])
	count := binary.BigEndian.Uint64(data[14:22])

	recordSize := dims*4 + 4
	want := snapshotHeaderSize + int(count)*recordSize
	if uint64(len(data)-snapshotHeaderSize) != count*uint64(recordSize) {
		return nil, fmt.Errorf("%w: %d bytes, want %d for %d records", ErrCorruptSnapshot, len(data), want, count)
	}

	cells := make(map[Coordinate]codec.Word, count)
	var prev Coordinate
	off := snapshotHeaderSize
	for i := uint64(0); i < count; i++ {
		var c Coordinate
		for axis := 0; axis < dims; axis++ {
			c[axis] = int32(binary.BigEndian.Uint32(data[off : off+4]))
			off += 4
		}
		w := codec.Word(binary.BigEndian.Uint32(data[off : off+4]))
		off += 4

		if i > 0 && prev.Compare(c) >= 0 {
			return nil, fmt.Errorf("%w: record %d out of order at %s", ErrCorruptSnapshot, i, c)
		}
		if err := codec.Validate(w); err != nil {
			return nil, fmt.Errorf("%w: record %d at %s: %v", ErrCorruptSnapshot, i, c, err)
		}
		if w.IsGround() {
			return nil, fmt.Errorf("%w: ground record %d at %s", ErrCorruptSnapshot, i, c)
		}
		cells[c] = w
		prev = c
	}

	snap := &Snapshot{
		dims:  dims,
		step:  step,
		cells: cells,
	}
	return snap, nil
}
