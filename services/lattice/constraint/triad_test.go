// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

func TestFaceIndex(t *testing.T) {
	assert.Equal(t, 0, faceIndex(grid.Coord(1, 0)))
	assert.Equal(t, 1, faceIndex(grid.Coord(-1, 0)))
	assert.Equal(t, 0, faceIndex(grid.Coord(0, 0, 2)))
	assert.Equal(t, 1, faceIndex(grid.Coord(0, -1, 1)))
}

func TestUniformTriad(t *testing.T) {
	t.Run("von neumann 3d partitions by axis", func(t *testing.T) {
		shape, err := grid.VonNeumann(3)
		require.NoError(t, err)
		triad := UniformTriad(shape)

		assert.Equal(t, []int{0, 1}, triad.AxisGroups[0])
		assert.Equal(t, []int{2, 3}, triad.AxisGroups[1])
		assert.Equal(t, []int{4, 5}, triad.AxisGroups[2])
		require.NoError(t, triad.validate(shape))
	})

	t.Run("moore 2d leaves the third group empty", func(t *testing.T) {
		shape, err := grid.Moore(2)
		require.NoError(t, err)
		triad := UniformTriad(shape)

		assert.Empty(t, triad.AxisGroups[2])
		require.NoError(t, triad.validate(shape))
	})

	t.Run("pair matrix averages the axes", func(t *testing.T) {
		shape, err := grid.VonNeumann(2)
		require.NoError(t, err)
		triad := UniformTriad(shape)
		for k := 0; k < AxisCount; k++ {
			assert.InDelta(t, 1.0/3, triad.PairWeights[k][k], 1e-12)
		}
	})
}

func TestTriad_Validate(t *testing.T) {
	shape, err := grid.VonNeumann(2)
	require.NoError(t, err)

	valid := func() Triad {
		return UniformTriad(shape)
	}

	t.Run("nil shape", func(t *testing.T) {
		assert.ErrorIs(t, valid().validate(nil), ErrNilShape)
	})

	t.Run("negative axis bound", func(t *testing.T) {
		triad := valid()
		triad.AxisBound = -1
		assert.ErrorIs(t, triad.validate(shape), ErrNegativeBound)
	})

	t.Run("index out of range", func(t *testing.T) {
		triad := valid()
		triad.AxisGroups[0] = append(triad.AxisGroups[0], shape.Len())
		assert.ErrorIs(t, triad.validate(shape), ErrIndexOutOfRange)
	})

	t.Run("duplicate index", func(t *testing.T) {
		triad := valid()
		triad.AxisGroups[2] = append(triad.AxisGroups[2], triad.AxisGroups[0][0])
		assert.ErrorIs(t, triad.validate(shape), ErrDuplicateIndex)
	})

	t.Run("partial cover", func(t *testing.T) {
		triad := valid()
		triad.AxisGroups[0] = triad.AxisGroups[0][:1]
		assert.ErrorIs(t, triad.validate(shape), ErrPartialCover)
	})
}
