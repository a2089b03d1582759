// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coherence

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// ReferencePattern is the target a snapshot is scored against.
//
// At must be total: coordinates outside the pattern read as ground.
// Support returns the pattern's non-ground coordinates sorted
// lexicographically; implementations return a fresh slice each call.
type ReferencePattern interface {
	At(c grid.Coordinate) codec.Layers
	Support() []grid.Coordinate
}

// -----------------------------------------------------------------------------
// ExactPattern
// -----------------------------------------------------------------------------

// ExactPattern scores against an explicit cell map, typically a stored
// snapshot of a previous run.
type ExactPattern struct {
	cells  map[grid.Coordinate]codec.Layers
	coords []grid.Coordinate
}

// NewExactPattern builds a pattern from explicit cells. Ground entries
// are dropped; the map is copied.
func NewExactPattern(cells map[grid.Coordinate]codec.Layers) *ExactPattern {
	p := &ExactPattern{cells: make(map[grid.Coordinate]codec.Layers, len(cells))}
	for c, l := range cells {
		if l.IsZero() {
			continue
		}
		p.cells[c] = l
		p.coords = append(p.coords, c)
	}
	slices.SortFunc(p.coords, grid.Coordinate.Compare)
	return p
}

// ExactFromSnapshot builds a pattern mirroring a snapshot's cells.
func ExactFromSnapshot(snap *grid.Snapshot) *ExactPattern {
	cells := make(map[grid.Coordinate]codec.Layers, snap.Len())
	snap.Range(func(c grid.Coordinate, w codec.Word) bool {
		cells[c] = codec.Decode(w)
		return true
	})
	return NewExactPattern(cells)
}

// At implements ReferencePattern.
func (p *ExactPattern) At(c grid.Coordinate) codec.Layers {
	return p.cells[c]
}

// Support implements ReferencePattern.
func (p *ExactPattern) Support() []grid.Coordinate {
	return slices.Clone(p.coords)
}

// -----------------------------------------------------------------------------
// ConstantPattern
// -----------------------------------------------------------------------------

// ConstantPattern holds one fixed layer tuple over a coordinate set.
type ConstantPattern struct {
	layers codec.Layers
	member map[grid.Coordinate]struct{}
	coords []grid.Coordinate
}

// NewConstantPattern builds a constant pattern. Duplicate support
// coordinates collapse; a ground tuple yields an empty pattern.
func NewConstantPattern(layers codec.Layers, support []grid.Coordinate) *ConstantPattern {
	p := &ConstantPattern{
		layers: layers,
		member: make(map[grid.Coordinate]struct{}, len(support)),
	}
	if layers.IsZero() {
		return p
	}
	for _, c := range support {
		if _, ok := p.member[c]; ok {
			continue
		}
		p.member[c] = struct{}{}
		p.coords = append(p.coords, c)
	}
	slices.SortFunc(p.coords, grid.Coordinate.Compare)
	return p
}

// At implements ReferencePattern.
func (p *ConstantPattern) At(c grid.Coordinate) codec.Layers {
	if _, ok := p.member[c]; ok {
		return p.layers
	}
	return codec.Layers{}
}

// Support implements ReferencePattern.
func (p *ConstantPattern) Support() []grid.Coordinate {
	return slices.Clone(p.coords)
}

// -----------------------------------------------------------------------------
// RadialPattern
// -----------------------------------------------------------------------------

// RadialPattern derives layers from the Chebyshev distance to an
// origin: ring d holds the layers for every coordinate at distance d.
// Coordinates beyond the last ring, or outside the configured
// dimensionality, read as ground.
type RadialPattern struct {
	dims   int
	origin grid.Coordinate
	rings  []codec.Layers
}

// NewRadialPattern validates the rings and builds a radial pattern.
//
// Description:
//
//	Ring 0 is the origin itself, ring d covers the shell at Chebyshev
//	distance d. Every ring value must be a valid layer tuple; ground
//	rings are allowed and leave a gap in the support.
//
// Inputs:
//   - dims: Lattice dimensionality of the pattern.
//   - origin: Center coordinate, confined to dims.
//   - rings: Layer tuples per distance, origin outward.
//
// Outputs:
//   - *RadialPattern: The validated pattern.
//   - error: ErrBadDims or ErrRingRange.
func NewRadialPattern(dims int, origin grid.Coordinate, rings []codec.Layers) (*RadialPattern, error) {
	if dims < 1 || dims > grid.MaxDims {
		return nil, fmt.Errorf("%w: %d", ErrBadDims, dims)
	}
	if !origin.InDims(dims) {
		return nil, fmt.Errorf("%w: origin %s exceeds %d dims", ErrBadDims, origin, dims)
	}
	for d, l := range rings {
		if _, err := codec.Encode(l); err != nil {
			return nil, fmt.Errorf("%w: ring %d: %v", ErrRingRange, d, err)
		}
	}
	return &RadialPattern{
		dims:   dims,
		origin: origin,
		rings:  slices.Clone(rings),
	}, nil
}

// At implements ReferencePattern.
func (p *RadialPattern) At(c grid.Coordinate) codec.Layers {
	if !c.InDims(p.dims) {
		return codec.Layers{}
	}
	d := int(c.Chebyshev(p.origin))
	if d >= len(p.rings) {
		return codec.Layers{}
	}
	return p.rings[d]
}

// Support implements ReferencePattern.
//
// The support enumerates the box around the origin out to the last
// ring and keeps coordinates whose ring is non-ground, in ascending
// lexicographic order.
func (p *RadialPattern) Support() []grid.Coordinate {
	if len(p.rings) == 0 {
		return nil
	}
	radius := int32(len(p.rings) - 1)
	var out []grid.Coordinate

	// Walk the box like an odometer, least significant axis last, so
	// the output is already sorted.
	c := p.origin
	for i := 0; i < p.dims; i++ {
		c[i] -= radius
	}
	for {
		if !p.At(c).IsZero() {
			out = append(out, c)
		}
		axis := p.dims - 1
		for axis >= 0 {
			c[axis]++
			if c[axis] <= p.origin[axis]+radius {
				break
			}
			c[axis] = p.origin[axis] - radius
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return out
}
