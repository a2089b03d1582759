// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package correction

import (
	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// Syndrome is the fixed-size neighborhood summary a stage corrects
// against. It is a deterministic function of the cell's post-constraint
// neighborhood, so stage application is reproducible from the syndrome
// alone.
//
// Counts are uint16 because a full Moore neighborhood in six dimensions
// has 728 offsets.
type Syndrome struct {
	// Neighbors is the number of occupied neighbor cells.
	Neighbors uint16

	// Support counts, per layer and per bit position, how many occupied
	// neighbors have that bit set.
	Support [codec.LayerCount][codec.LayerWidth]uint16

	// Parity is the XOR fold of the occupied neighbors' layer values.
	Parity [codec.LayerCount]uint8

	// Triad is the cell's axis record from the constraint layer.
	Triad [constraint.AxisCount]int32
}

// BuildSyndrome summarizes the post-constraint neighborhood of one
// cell. Neighbors without a result, or whose result is ground, do not
// contribute. Offsets are folded in declaration order, though every
// field of the summary is order-independent.
func BuildSyndrome(offsets []grid.Offset, results map[grid.Coordinate]constraint.Result, at grid.Coordinate) Syndrome {
	var syn Syndrome
	if res, ok := results[at]; ok {
		syn.Triad = res.Axes
	}
	for _, o := range offsets {
		nb, ok := results[at.Add(o)]
		if !ok || nb.Cand.Layers.IsZero() {
			continue
		}
		syn.Neighbors++
		for _, id := range codec.AllLayers() {
			v := nb.Cand.Layers.Layer(id)
			syn.Parity[id] ^= v
			for b := 0; b < codec.LayerWidth; b++ {
				if v>>b&1 == 1 {
					syn.Support[id][b]++
				}
			}
		}
	}
	return syn
}
