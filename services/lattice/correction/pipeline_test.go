// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package correction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/algebra"
	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// rogueStage inverts the whole payload while declaring only one layer,
// to prove the pipeline mask contains it.
type rogueStage struct {
	layers codec.LayerSet
}

func (r rogueStage) Name() string           { return "rogue" }
func (r rogueStage) Layers() codec.LayerSet { return r.layers }
func (r rogueStage) Apply(cell codec.Word, _ Syndrome) (codec.Word, error) {
	return codec.Word(^uint32(cell) & 0x00FFFFFF), nil
}

// mkResult wraps a candidate activation into a constraint result.
func mkResult(c grid.Coordinate, l codec.Layers) constraint.Result {
	return constraint.Result{
		Cand:   algebra.Candidate{Coord: c, Layers: l},
		Repair: constraint.RepairNone,
		Axis:   -1,
	}
}

func testShape(t *testing.T) *grid.Shape {
	t.Helper()
	shape, err := grid.VonNeumann(2)
	require.NoError(t, err)
	return shape
}

func TestBuildSyndrome(t *testing.T) {
	shape := testShape(t)
	center := grid.Coord(0, 0)

	results := map[grid.Coordinate]constraint.Result{
		center:            mkResult(center, codec.Layers{Activation: 1}),
		grid.Coord(1, 0):  mkResult(grid.Coord(1, 0), codec.Layers{Activation: 5, Information: 3}),
		grid.Coord(-1, 0): mkResult(grid.Coord(-1, 0), codec.Layers{}),
		grid.Coord(0, -1): mkResult(grid.Coord(0, -1), codec.Layers{Activation: 3}),
	}
	results[center] = func() constraint.Result {
		r := results[center]
		r.Axes = [constraint.AxisCount]int32{1, 2, 3}
		return r
	}()

	syn := BuildSyndrome(shape.Offsets(), results, center)

	// The ground result and the absent neighbor do not count.
	assert.Equal(t, uint16(2), syn.Neighbors)
	assert.Equal(t, [constraint.AxisCount]int32{1, 2, 3}, syn.Triad)
	assert.Equal(t, uint8(5^3), syn.Parity[codec.LayerActivation])
	assert.Equal(t, uint8(3), syn.Parity[codec.LayerInformation])
	assert.Equal(t, [6]uint16{2, 1, 1, 0, 0, 0}, syn.Support[codec.LayerActivation])
	assert.Equal(t, [6]uint16{1, 1, 0, 0, 0, 0}, syn.Support[codec.LayerInformation])
	assert.Equal(t, [6]uint16{}, syn.Support[codec.LayerReality])
}

func TestNewPipeline_Validation(t *testing.T) {
	shape := testShape(t)
	actSet := codec.NewLayerSet(codec.LayerActivation)
	infoSet := codec.NewLayerSet(codec.LayerInformation)

	t.Run("nil shape", func(t *testing.T) {
		_, err := NewPipeline(nil, nil)
		assert.ErrorIs(t, err, ErrNilShape)
	})

	t.Run("empty layer set", func(t *testing.T) {
		_, err := NewPipeline(shape, []Stage{NewParityStage("parity", 0)})
		assert.ErrorIs(t, err, ErrEmptyLayerSet)
	})

	t.Run("duplicate names", func(t *testing.T) {
		_, err := NewPipeline(shape, []Stage{
			NewParityStage("fix", actSet),
			NewMajorityStage("fix", infoSet),
		})
		assert.ErrorIs(t, err, ErrDuplicateStage)
	})

	t.Run("overlapping layer sets", func(t *testing.T) {
		_, err := NewPipeline(shape, []Stage{
			NewParityStage("parity", actSet),
			NewMajorityStage("majority", codec.NewLayerSet(codec.LayerActivation, codec.LayerReality)),
		})
		assert.ErrorIs(t, err, ErrOverlappingStages)
	})

	t.Run("disjoint stages are accepted in order", func(t *testing.T) {
		p, err := NewPipeline(shape, []Stage{
			NewParityStage("parity", actSet),
			NewMajorityStage("majority", infoSet),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"parity", "majority"}, p.Stages())
	})
}

func TestPipeline_CorrectCell(t *testing.T) {
	shape := testShape(t)

	t.Run("zero stages are the identity", func(t *testing.T) {
		p, err := NewPipeline(shape, nil)
		require.NoError(t, err)

		cell := mustWord(t, codec.Layers{Reality: 1, Information: 2, Activation: 3, Potential: 4})
		out, skips := p.CorrectCell(cell, Syndrome{})
		assert.Equal(t, cell, out)
		assert.Empty(t, skips)
	})

	t.Run("mask confines a stage to its declared layers", func(t *testing.T) {
		p, err := NewPipeline(shape, []Stage{
			rogueStage{layers: codec.NewLayerSet(codec.LayerInformation)},
		})
		require.NoError(t, err)

		cell := mustWord(t, codec.Layers{Reality: 1, Information: 2, Activation: 3, Potential: 4})
		out, skips := p.CorrectCell(cell, Syndrome{})
		assert.Empty(t, skips)
		assert.Equal(t, codec.Layers{
			Reality:     1,
			Information: ^uint8(2) & codec.MaxLayerValue,
			Activation:  3,
			Potential:   4,
		}, codec.Decode(out))
	})

	t.Run("failing stage skips and later stages still run", func(t *testing.T) {
		empty, err := NewLockStage("lock", codec.NewLayerSet(codec.LayerInformation), nil, nil)
		require.NoError(t, err)
		p, err := NewPipeline(shape, []Stage{
			empty,
			NewMajorityStage("majority", codec.NewLayerSet(codec.LayerActivation)),
		})
		require.NoError(t, err)

		cell := mustWord(t, codec.Layers{Information: 9, Activation: 0})
		syn := Syndrome{Neighbors: 3}
		syn.Support[codec.LayerActivation] = [6]uint16{3, 0, 0, 0, 0, 0}

		out, skips := p.CorrectCell(cell, syn)
		require.Len(t, skips, 1)
		assert.Equal(t, "lock", skips[0].Stage)
		assert.Equal(t, ErrNoCandidates.Error(), skips[0].Reason)
		assert.Equal(t, uint8(9), out.Information())
		assert.Equal(t, uint8(1), out.Activation())
	})
}

func TestPipeline_CorrectAll(t *testing.T) {
	shape := testShape(t)

	t.Run("majority over a row of cells", func(t *testing.T) {
		p, err := NewPipeline(shape, []Stage{
			NewMajorityStage("majority", codec.NewLayerSet(codec.LayerActivation)),
		})
		require.NoError(t, err)

		results := map[grid.Coordinate]constraint.Result{
			grid.Coord(0, 0): mkResult(grid.Coord(0, 0), codec.Layers{Activation: 5}),
			grid.Coord(1, 0): mkResult(grid.Coord(1, 0), codec.Layers{Activation: 9}),
			grid.Coord(2, 0): mkResult(grid.Coord(2, 0), codec.Layers{Activation: 5}),
		}

		words, skips, err := p.CorrectAll(context.Background(), results)
		require.NoError(t, err)
		assert.Empty(t, skips)
		require.Len(t, words, 3)

		// The middle cell sees two act-5 neighbors and conforms; the
		// edge cells each see only the act-9 middle and adopt it.
		assert.Equal(t, uint8(9), words[grid.Coord(0, 0)].Activation())
		assert.Equal(t, uint8(5), words[grid.Coord(1, 0)].Activation())
		assert.Equal(t, uint8(9), words[grid.Coord(2, 0)].Activation())
	})

	t.Run("ground results stay in the output", func(t *testing.T) {
		p, err := NewPipeline(shape, nil)
		require.NoError(t, err)

		results := map[grid.Coordinate]constraint.Result{
			grid.Coord(0, 0): mkResult(grid.Coord(0, 0), codec.Layers{}),
		}
		words, _, err := p.CorrectAll(context.Background(), results)
		require.NoError(t, err)
		w, ok := words[grid.Coord(0, 0)]
		require.True(t, ok)
		assert.True(t, w.IsGround())
	})

	t.Run("skips carry coordinates", func(t *testing.T) {
		empty, err := NewLockStage("lock", codec.NewLayerSet(codec.LayerActivation), nil, nil)
		require.NoError(t, err)
		p, err := NewPipeline(shape, []Stage{empty})
		require.NoError(t, err)

		results := map[grid.Coordinate]constraint.Result{
			grid.Coord(3, 4): mkResult(grid.Coord(3, 4), codec.Layers{Activation: 1}),
		}
		_, skips, err := p.CorrectAll(context.Background(), results)
		require.NoError(t, err)
		require.Len(t, skips, 1)
		assert.Equal(t, grid.Coord(3, 4), skips[0].Coord)
		assert.Equal(t, "lock", skips[0].Stage)
	})

	t.Run("cancelled context", func(t *testing.T) {
		p, err := NewPipeline(shape, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := map[grid.Coordinate]constraint.Result{
			grid.Coord(0, 0): mkResult(grid.Coord(0, 0), codec.Layers{Activation: 1}),
		}
		_, _, err = p.CorrectAll(ctx, results)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
