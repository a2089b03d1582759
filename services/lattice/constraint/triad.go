// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package constraint

import (
	"fmt"

	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// AxisCount is the number of axis groups in a triad.
const AxisCount = 3

// FaceCount is the number of face weight slots: a positive and a
// negative face per axis.
const FaceCount = 2 * AxisCount

// Triad configures the balance constraint for one run.
//
// AxisGroups partitions the shape's offset indices into three groups.
// Groups may be empty on low-dimensional lattices; an empty group
// always derives an axis value of zero. FaceWeights holds the positive
// face weight at slot 2k and the negative face weight at slot 2k+1 for
// axis k. PairWeights couples raw per-axis aggregates into the final
// axis values.
//
// Thread Safety: a Triad is treated as immutable once a Checker holds
// it.
type Triad struct {
	AxisGroups  [AxisCount][]int
	FaceWeights [FaceCount]float64
	PairWeights [AxisCount][AxisCount]float64

	// Tolerance is the largest allowed deviation between the axis sum
	// and the cell's activation before repair runs.
	Tolerance uint8

	// AxisBound caps the magnitude an axis value may take after
	// axis-record repair.
	AxisBound int32

	// MaxActivationShift caps how far activation repair may move the
	// candidate's activation field.
	MaxActivationShift uint8
}

// faceIndex returns 0 for a positive-face offset and 1 for a negative
// one. The face is the sign of the offset's first non-zero axis.
func faceIndex(o grid.Offset) int {
	for i := 0; i < grid.MaxDims; i++ {
		switch {
		case o[i] > 0:
			return 0
		case o[i] < 0:
			return 1
		}
	}
	return 0
}

// UniformTriad builds a reasonable default triad for the shape: each
// offset joins the group of its first non-zero axis modulo three, both
// faces weigh one, and the pair matrix averages the three raw axes so a
// uniform activation field balances near tolerance.
func UniformTriad(shape *grid.Shape) Triad {
	t := Triad{
		Tolerance:          6,
		AxisBound:          256,
		MaxActivationShift: 8,
	}
	for i := range t.FaceWeights {
		t.FaceWeights[i] = 1
	}
	for k := 0; k < AxisCount; k++ {
		t.PairWeights[k][k] = 1.0 / AxisCount
	}
	if shape == nil {
		return t
	}
	for i := 0; i < shape.Len(); i++ {
		o := shape.At(i)
		axis := 0
		for d := 0; d < grid.MaxDims; d++ {
			if o[d] != 0 {
				axis = d % AxisCount
				break
			}
		}
		t.AxisGroups[axis] = append(t.AxisGroups[axis], i)
	}
	return t
}

// validate checks the partition against the shape and the bounds.
func (t Triad) validate(shape *grid.Shape) error {
	if shape == nil {
		return ErrNilShape
	}
	if t.AxisBound < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeBound, t.AxisBound)
	}
	seen := make(map[int]struct{}, shape.Len())
	for axis, group := range t.AxisGroups {
		for _, idx := range group {
			if idx < 0 || idx >= shape.Len() {
				return fmt.Errorf("%w: index %d in axis %d, shape has %d offsets",
					ErrIndexOutOfRange, idx, axis, shape.Len())
			}
			if _, dup := seen[idx]; dup {
				return fmt.Errorf("%w: index %d", ErrDuplicateIndex, idx)
			}
			seen[idx] = struct{}{}
		}
	}
	if len(seen) != shape.Len() {
		return fmt.Errorf("%w: %d of %d covered", ErrPartialCover, len(seen), shape.Len())
	}
	return nil
}
