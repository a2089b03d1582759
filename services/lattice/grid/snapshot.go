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
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// Snapshot is an immutable view of a grid at a single step.
//
// All step evaluation reads from a Snapshot so every cell observes the
// same pre-step state regardless of worker scheduling.
//
// Thread Safety: Safe for concurrent use (immutable after creation).
type Snapshot struct {
	dims       int
	step       uint64
	generation uint64
	createdAt  time.Time

	// cells is deep-copied from the source store on creation.
	cells map[Coordinate]codec.Word

	// coords caches the sorted coordinate list, built on first use.
	coordsOnce sync.Once
	coords     []Coordinate
}

// newSnapshot deep-copies the cell map into an immutable view.
//
// Thread Safety: Caller must hold at least a read lock on the source.
func newSnapshot(dims int, step, generation uint64, cells map[Coordinate]codec.Word) *Snapshot {
	s := &Snapshot{
		dims:       dims,
		step:       step,
		generation: generation,
		createdAt:  time.Now(),
	}
	if cells != nil {
		s.cells = maps.Clone(cells)
	} else {
		s.cells = make(map[Coordinate]codec.Word)
	}
	return s
}

// Dims returns the dimensionality the snapshot was taken at.
func (s *Snapshot) Dims() int {
	return s.dims
}

// Step returns the step index the snapshot captures.
func (s *Snapshot) Step() uint64 {
	return s.step
}

// Generation returns the store generation at snapshot time.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// CreatedAt returns when the snapshot was taken.
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Len returns the number of live cells in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.cells)
}

// Get returns the cell at c, or codec.Ground when absent.
func (s *Snapshot) Get(c Coordinate) codec.Word {
	return s.cells[c]
}

// Has reports whether c holds a live cell.
func (s *Snapshot) Has(c Coordinate) bool {
	_, ok := s.cells[c]
	return ok
}

// Coords returns a copy of the live coordinates in ascending
// lexicographic order.
func (s *Snapshot) Coords() []Coordinate {
	return slices.Clone(s.sortedCoords())
}

// Range calls fn for each live cell in ascending lexicographic
// coordinate order, stopping early when fn returns false.
func (s *Snapshot) Range(fn func(Coordinate, codec.Word) bool) {
	for _, c := range s.sortedCoords() {
		if !fn(c, s.cells[c]) {
			return
		}
	}
}

// Cells returns a copy of the cell map.
func (s *Snapshot) Cells() map[Coordinate]codec.Word {
	return maps.Clone(s.cells)
}

// sortedCoords builds the coordinate cache once. The cached slice is
// shared; callers inside the package must not mutate it.
func (s *Snapshot) sortedCoords() []Coordinate {
	s.coordsOnce.Do(func() {
		s.coords = make([]Coordinate, 0, len(s.cells))
		for c := range s.cells {
			s.coords = append(s.coords, c)
		}
		slices.SortFunc(s.coords, Coordinate.Compare)
	})
	return s.coords
}
