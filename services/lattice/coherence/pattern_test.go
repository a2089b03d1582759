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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

func TestExactPattern(t *testing.T) {
	t.Run("drops ground entries", func(t *testing.T) {
		p := NewExactPattern(map[grid.Coordinate]codec.Layers{
			grid.Coord(0, 0): {Activation: 5},
			grid.Coord(1, 0): {},
		})
		assert.Equal(t, []grid.Coordinate{grid.Coord(0, 0)}, p.Support())
	})

	t.Run("total at", func(t *testing.T) {
		p := NewExactPattern(map[grid.Coordinate]codec.Layers{
			grid.Coord(0, 0): {Activation: 5},
		})
		assert.Equal(t, codec.Layers{Activation: 5}, p.At(grid.Coord(0, 0)))
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(9, 9)))
	})

	t.Run("support is sorted and detached", func(t *testing.T) {
		p := NewExactPattern(map[grid.Coordinate]codec.Layers{
			grid.Coord(2, 0):  {Activation: 1},
			grid.Coord(-1, 3): {Activation: 2},
			grid.Coord(0, 0):  {Activation: 3},
		})
		got := p.Support()
		want := []grid.Coordinate{grid.Coord(-1, 3), grid.Coord(0, 0), grid.Coord(2, 0)}
		require.Equal(t, want, got)

		got[0] = grid.Coord(99, 99)
		assert.Equal(t, want, p.Support())
	})
}

func TestExactFromSnapshot(t *testing.T) {
	s, err := grid.NewStore(2)
	require.NoError(t, err)
	w, err := codec.Encode(codec.Layers{Activation: 7, Information: 2})
	require.NoError(t, err)
	require.NoError(t, s.Set(grid.Coord(3, -2), w))

	p := ExactFromSnapshot(s.Snapshot())
	assert.Equal(t, []grid.Coordinate{grid.Coord(3, -2)}, p.Support())
	assert.Equal(t, codec.Layers{Activation: 7, Information: 2}, p.At(grid.Coord(3, -2)))
}

func TestConstantPattern(t *testing.T) {
	t.Run("membership", func(t *testing.T) {
		p := NewConstantPattern(codec.Layers{Activation: 9}, []grid.Coordinate{
			grid.Coord(1, 1),
			grid.Coord(0, 0),
			grid.Coord(1, 1),
		})
		assert.Equal(t, []grid.Coordinate{grid.Coord(0, 0), grid.Coord(1, 1)}, p.Support())
		assert.Equal(t, codec.Layers{Activation: 9}, p.At(grid.Coord(1, 1)))
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(2, 2)))
	})

	t.Run("ground tuple yields empty pattern", func(t *testing.T) {
		p := NewConstantPattern(codec.Layers{}, []grid.Coordinate{grid.Coord(0, 0)})
		assert.Empty(t, p.Support())
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(0, 0)))
	})
}

func TestRadialPattern(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		_, err := NewRadialPattern(0, grid.Coord(0, 0), nil)
		assert.ErrorIs(t, err, ErrBadDims)

		_, err = NewRadialPattern(2, grid.Coord(0, 0, 5), nil)
		assert.ErrorIs(t, err, ErrBadDims)

		_, err = NewRadialPattern(2, grid.Coord(0, 0), []codec.Layers{{Activation: 64}})
		assert.ErrorIs(t, err, ErrRingRange)
	})

	t.Run("layers by chebyshev distance", func(t *testing.T) {
		p, err := NewRadialPattern(2, grid.Coord(0, 0), []codec.Layers{
			{Activation: 9},
			{Activation: 4},
		})
		require.NoError(t, err)

		assert.Equal(t, codec.Layers{Activation: 9}, p.At(grid.Coord(0, 0)))
		assert.Equal(t, codec.Layers{Activation: 4}, p.At(grid.Coord(1, 1)))
		assert.Equal(t, codec.Layers{Activation: 4}, p.At(grid.Coord(-1, 0)))
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(2, 0)))
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(0, 0, 3)))
	})

	t.Run("support covers the box in sorted order", func(t *testing.T) {
		p, err := NewRadialPattern(2, grid.Coord(0, 0), []codec.Layers{
			{Activation: 9},
			{Activation: 4},
		})
		require.NoError(t, err)

		got := p.Support()
		require.Len(t, got, 9)
		for i := 1; i < len(got); i++ {
			assert.Negative(t, got[i-1].Compare(got[i]))
		}
		assert.Equal(t, grid.Coord(-1, -1), got[0])
		assert.Equal(t, grid.Coord(1, 1), got[8])
	})

	t.Run("ground ring leaves a gap", func(t *testing.T) {
		p, err := NewRadialPattern(2, grid.Coord(0, 0), []codec.Layers{
			{},
			{Activation: 4},
		})
		require.NoError(t, err)

		got := p.Support()
		assert.Len(t, got, 8)
		assert.NotContains(t, got, grid.Coord(0, 0))
	})

	t.Run("empty rings", func(t *testing.T) {
		p, err := NewRadialPattern(3, grid.Coord(1, 2, 3), nil)
		require.NoError(t, err)
		assert.Empty(t, p.Support())
		assert.Equal(t, codec.Layers{}, p.At(grid.Coord(1, 2, 3)))
	})
}
