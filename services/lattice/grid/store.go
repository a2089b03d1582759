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
	"fmt"
	"maps"
	"sync"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Store holds the live sparse grid.
//
// Reads of absent coordinates yield codec.Ground. Writes of
// codec.Ground delete the entry, so the store never retains ground
// values. The step scheduler is the only writer during a run; readers
// take snapshots.
//
// Thread Safety: Safe for concurrent use. All access is guarded by an
// RWMutex; Snapshot() returns an immutable deep copy.
type Store struct {
	mu         sync.RWMutex
	dims       int
	step       uint64
	generation uint64
	cells      map[Coordinate]codec.Word
}

// NewStore creates an empty store for the given dimensionality.
//
// Inputs:
//   - dims: Lattice dimensionality, 1..MaxDims.
//
// Outputs:
//   - *Store: The empty store at step 0.
//   - error: ErrDimensionMismatch when dims is out of range.
func NewStore(dims int) (*Store, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: dims %d outside 1..%d", ErrDimensionMismatch, dims, MaxDims)
	}
	return &Store{
		dims:  dims,
		cells: make(map[Coordinate]codec.Word),
	}, nil
}

// Dims returns the store's dimensionality.
func (s *Store) Dims() int {
	return s.dims
}

// Len returns the number of live (non-ground) cells.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Step returns the index of the last committed step.
func (s *Store) Step() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// Generation returns a counter that increments on every mutation.
// Snapshots record the generation they were taken at.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Get returns the cell at c, or codec.Ground when absent. Get is total:
// coordinates outside the store's dimensionality read as ground.
func (s *Store) Get(c Coordinate) codec.Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[c]
}

// Set writes a single cell.
//
// Description:
//
//	Writing codec.Ground deletes the entry. The write is atomic: on any
//	validation failure the grid is unchanged.
//
// Inputs:
//   - c: Target coordinate; must fit the store's dimensionality.
//   - w: Cell word; reserved bits must be clear.
//
// Outputs:
//   - error: ErrDimensionMismatch or codec.ErrReservedBits.
func (s *Store) Set(c Coordinate, w codec.Word) error {
	if !c.InDims(s.dims) {
		return fmt.Errorf("%w: coordinate %s exceeds %d dims", ErrDimensionMismatch, c, s.dims)
	}
	if err := codec.Validate(w); err != nil {
		return fmt.Errorf("set %s: %w", c, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.IsGround() {
		delete(s.cells, c)
	} else {
		s.cells[c] = w
	}
	s.generation++
	return nil
}

// Commit applies a full step's cell updates as one transaction.
//
// Description:
//
//	Every word is validated before any write is applied, so a single
//	invalid cell leaves the grid exactly as it was. Cells absent from
//	the update map keep their pre-step values; ground updates delete.
//	The scheduler calls Commit from its single writer goroutine after
//	the correction barrier.
//
// Inputs:
//   - step: The step index this commit completes.
//   - next: Updated cells for the step's active set.
//
// Outputs:
//   - error: ErrDimensionMismatch or codec.ErrReservedBits naming the
//     offending coordinate; the grid is unchanged on error.
func (s *Store) Commit(step uint64, next map[Coordinate]codec.Word) error {
	for c, w := range next {
		if !c.InDims(s.dims) {
			return fmt.Errorf("%w: coordinate %s exceeds %d dims", ErrDimensionMismatch, c, s.dims)
		}
		if err := codec.Validate(w); err != nil {
			return fmt.Errorf("commit %s: %w", c, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c, w := range next {
		if w.IsGround() {
			delete(s.cells, c)
		} else {
			s.cells[c] = w
		}
	}
	s.step = step
	s.generation++
	return nil
}

// Snapshot returns an immutable copy of the current grid.
//
// The copy is deep: subsequent Set, Commit, or Restore calls never
// change a previously taken snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newSnapshot(s.dims, s.step, s.generation, s.cells)
}

// Restore replaces the store contents from a snapshot.
//
// Used for warm starts from persisted state. The snapshot's step index
// becomes the store's current step.
//
// Outputs:
//   - error: ErrNilSnapshot, or ErrDimensionMismatch when the snapshot
//     was taken at a different dimensionality.
func (s *Store) Restore(snap *Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if snap.Dims() != s.dims {
		return fmt.Errorf("%w: snapshot dims %d, store dims %d", ErrDimensionMismatch, snap.Dims(), s.dims)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = maps.Clone(snap.cells)
	s.step = snap.step
	s.generation++
	return nil
}
