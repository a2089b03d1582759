// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grid stores sparse lattice state keyed by coordinate.
//
// The grid is a map from Coordinate to codec.Word. Only non-ground cells
// occupy memory; reading an absent coordinate yields codec.Ground, and
// writing codec.Ground deletes the entry. This keeps occupancy equal to
// the number of live cells regardless of the coordinate space extent.
//
// # Sparsity Model
//
// A Store never retains a ground value. Set and Commit both prune
// entries that become ground, so Len() always counts live cells and
// serialized snapshots never carry ground records.
//
// # Snapshot Semantics
//
// Snapshot() returns an immutable deep copy of the cell map. Mutations
// applied to the Store after a snapshot is taken are never visible
// through that snapshot. Step evaluation reads exclusively from a
// snapshot so every cell observes the same pre-step state.
//
// # Thread Safety
//
// Store is safe for concurrent use; all access goes through an RWMutex.
// Snapshot values are immutable after creation and safe to share across
// goroutines without synchronization.
//
// # Determinism
//
// Every place the package iterates cells (Range, Coords, EncodeSnapshot)
// visits coordinates in ascending lexicographic order, so byte output
// and fold results are reproducible across runs and platforms.
package grid

import "errors"

// Sentinel errors for grid operations.
var (
	// ErrDimensionMismatch is returned when a coordinate, offset, or
	// snapshot does not fit the store's configured dimensionality, or
	// when the dimensionality itself is outside 1..MaxDims.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyShape is returned when constructing a Shape with no offsets.
	ErrEmptyShape = errors.New("shape has no offsets")

	// ErrZeroOffset is returned when a Shape offset is the zero vector.
	// A cell is never its own neighbor.
	ErrZeroOffset = errors.New("zero offset in shape")

	// ErrDuplicateOffset is returned when the same offset appears twice
	// in a Shape. Duplicate offsets would double-count a neighbor.
	ErrDuplicateOffset = errors.New("duplicate offset in shape")

	// ErrCorruptSnapshot is returned by DecodeSnapshot when the byte
	// stream fails structural validation: bad magic, unknown version,
	// truncation, unsorted records, ground cells, or reserved bits.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrNilSnapshot is returned by Restore when passed a nil snapshot.
	ErrNilSnapshot = errors.New("nil snapshot")
)
