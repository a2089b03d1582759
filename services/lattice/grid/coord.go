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
	"strings"
)

// MaxDims is the maximum supported lattice dimensionality.
//
// Coordinates are fixed-width arrays so they can serve as map keys;
// a store configured with fewer dimensions requires all higher axes
// to be zero.
const MaxDims = 6

// -----------------------------------------------------------------------------
// Coordinate
// -----------------------------------------------------------------------------

// Coordinate addresses a single lattice cell. The array is comparable,
// so Coordinate works directly as a map key.
type Coordinate [MaxDims]int32

// Offset is a relative displacement between coordinates. Shapes are
// built from offsets.
type Offset = Coordinate

// Coord builds a Coordinate from the leading axis values. Unspecified
// axes are zero.
func Coord(axes ...int32) Coordinate {
	var c Coordinate
	for i, v := range axes {
		if i >= MaxDims {
			break
		}
		c[i] = v
	}
	return c
}

// Add returns the coordinate displaced by the offset.
func (c Coordinate) Add(o Offset) Coordinate {
	var out Coordinate
	for i := 0; i < MaxDims; i++ {
		out[i] = c[i] + o[i]
	}
	return out
}

// Neg returns the offset with every axis negated.
func (c Coordinate) Neg() Offset {
	var out Offset
	for i := 0; i < MaxDims; i++ {
		out[i] = -c[i]
	}
	return out
}

// InDims reports whether all axes at or above dims are zero.
func (c Coordinate) InDims(dims int) bool {
	for i := dims; i < MaxDims; i++ {
		if c[i] != 0 {
			return false
		}
	}
	return true
}

// IsZero reports whether every axis is zero.
func (c Coordinate) IsZero() bool {
	return c == Coordinate{}
}

// Compare orders coordinates lexicographically by axis. It returns a
// negative value when c sorts before other, zero on equality, and a
// positive value otherwise.
func (c Coordinate) Compare(other Coordinate) int {
	for i := 0; i < MaxDims; i++ {
		switch {
		case c[i] < other[i]:
			return -1
		case c[i] > other[i]:
			return 1
		}
	}
	return 0
}

// Chebyshev returns the Chebyshev (max-axis) distance to other.
func (c Coordinate) Chebyshev(other Coordinate) int32 {
	var max int32
	for i := 0; i < MaxDims; i++ {
		d := c[i] - other[i]
		if d < 0 {
			d = -d
		}
		if d > max {
			max = d
		}
	}
	return max
}

// String renders the leading non-trivial axes, always at least two,
// for logs and test failures: "(3,-1)" or "(3,-1,0,2)".
func (c Coordinate) String() string {
	last := 1
	for i := MaxDims - 1; i > 1; i-- {
		if c[i] != 0 {
			last = i
			break
		}
	}
	parts := make([]string, 0, last+1)
	for i := 0; i <= last; i++ {
		parts = append(parts, fmt.Sprintf("%d", c[i]))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// -----------------------------------------------------------------------------
// Shape
// -----------------------------------------------------------------------------

// Shape is an ordered neighborhood: a duplicate-free list of non-zero
// offsets. Neighbor enumeration follows declaration order exactly, and
// weight tables elsewhere in the kernel index by offset position.
//
// Thread Safety: Shape is immutable after construction.
type Shape struct {
	dims    int
	offsets []Offset
}

// NewShape validates dims and offsets and builds a Shape.
//
// Description:
//
//	The offset slice is copied; the caller may reuse it. Validation
//	rejects dims outside 1..MaxDims, offsets reaching into unused axes,
//	the zero offset, duplicates, and an empty list.
//
// Inputs:
//   - dims: Lattice dimensionality the shape applies to.
//   - offsets: Relative neighbor displacements in enumeration order.
//
// Outputs:
//   - *Shape: The validated shape.
//   - error: ErrDimensionMismatch, ErrEmptyShape, ErrZeroOffset, or
//     ErrDuplicateOffset.
func NewShape(dims int, offsets []Offset) (*Shape, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: dims %d outside 1..%d", ErrDimensionMismatch, dims, MaxDims)
	}
	if len(offsets) == 0 {
		return nil, ErrEmptyShape
	}
	seen := make(map[Offset]struct{}, len(offsets))
	for i, o := range offsets {
		if o.IsZero() {
			return nil, fmt.Errorf("%w: index %d", ErrZeroOffset, i)
		}
		if !o.InDims(dims) {
			return nil, fmt.Errorf("%w: offset %s at index %d exceeds %d dims", ErrDimensionMismatch, o, i, dims)
		}
		if _, dup := seen[o]; dup {
			return nil, fmt.Errorf("%w: offset %s at index %d", ErrDuplicateOffset, o, i)
		}
		seen[o] = struct{}{}
	}
	cp := make([]Offset, len(offsets))
	copy(cp, offsets)
	return &Shape{dims: dims, offsets: cp}, nil
}

// VonNeumann returns the 2*dims shape of unit offsets along each axis,
// positive direction first: +x, -x, +y, -y, ...
func VonNeumann(dims int) (*Shape, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: dims %d outside 1..%d", ErrDimensionMismatch, dims, MaxDims)
	}
	offsets := make([]Offset, 0, 2*dims)
	for axis := 0; axis < dims; axis++ {
		var pos, neg Offset
		pos[axis] = 1
		neg[axis] = -1
		offsets = append(offsets, pos, neg)
	}
	return NewShape(dims, offsets)
}

// Moore returns the (3^dims)-1 shape of all offsets with axis values in
// {-1,0,1}, excluding the zero offset, in ascending lexicographic order.
func Moore(dims int) (*Shape, error) {
	if dims < 1 || dims > MaxDims {
		return nil, fmt.Errorf("%w: dims %d outside 1..%d", ErrDimensionMismatch, dims, MaxDims)
	}
	count := 1
	for i := 0; i < dims; i++ {
		count *= 3
	}
	offsets := make([]Offset, 0, count-1)
	var o Offset
	for i := range o {
		if i < dims {
			o[i] = -1
		}
	}
	for {
		if !o.IsZero() {
			offsets = append(offsets, o)
		}
		// Increment like an odometer over {-1,0,1}^dims.
		axis := dims - 1
		for axis >= 0 {
			o[axis]++
			if o[axis] <= 1 {
				break
			}
			o[axis] = -1
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return NewShape(dims, offsets)
}

// Dims returns the dimensionality the shape was built for.
func (s *Shape) Dims() int {
	return s.dims
}

// Len returns the number of offsets in the shape.
func (s *Shape) Len() int {
	return len(s.offsets)
}

// At returns the offset at position i in declaration order.
func (s *Shape) At(i int) Offset {
	return s.offsets[i]
}

// Offsets returns a copy of the offset list in declaration order.
func (s *Shape) Offsets() []Offset {
	cp := make([]Offset, len(s.offsets))
	copy(cp, s.offsets)
	return cp
}

// Neighbors enumerates the neighbor coordinates of c in declaration
// order. The result is freshly allocated on each call.
func (s *Shape) Neighbors(c Coordinate) []Coordinate {
	out := make([]Coordinate, len(s.offsets))
	for i, o := range s.offsets {
		out[i] = c.Add(o)
	}
	return out
}

// Contains reports whether o is one of the shape's offsets and returns
// its position.
func (s *Shape) Contains(o Offset) (int, bool) {
	for i, cand := range s.offsets {
		if cand == o {
			return i, true
		}
	}
	return 0, false
}
