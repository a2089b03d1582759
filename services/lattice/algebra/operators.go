// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package algebra

import (
	"math"
	"math/bits"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// Alignment measures bitwise agreement between two layer values.
//
// Description:
//
//	Counts the bit positions where a and b agree across the layer
//	width and maps the count onto [-1, 1]. Identical values score 1,
//	complementary values score -1, and half agreement scores 0.
//
// Inputs:
//   - a: first layer value, only the low layer-width bits are read
//   - b: second layer value, only the low layer-width bits are read
//
// Outputs:
//   - float64: alignment in [-1, 1]
func Alignment(a, b uint8) float64 {
	diff := bits.OnesCount8((a ^ b) & codec.MaxLayerValue)
	return float64(codec.LayerWidth-2*diff) / float64(codec.LayerWidth)
}

// ResonanceTerm is one neighbor's contribution to a cell's activation
// drive: the offset weight times the activation alignment times the
// neighbor's activation magnitude. A silent neighbor contributes
// nothing regardless of alignment.
func ResonanceTerm(weight float64, self, neighbor uint8) float64 {
	return weight * Alignment(self, neighbor) * float64(neighbor)
}

// EntanglementTerm is one neighbor's contribution to a cell's
// information drive: half the signed information difference, scaled by
// the offset weight. The half factor makes a symmetric weight table
// conserve the pair sum: what one side gains the other loses.
func EntanglementTerm(weight float64, self, neighbor uint8) float64 {
	return weight * (float64(neighbor) - float64(self)) / 2
}

// Saturate folds a real-valued layer drive back into the field range.
// Rounding is half away from zero, then the result is clamped to
// [0, 63]. NaN saturates to zero.
func Saturate(x float64) uint8 {
	v := math.Round(x)
	if !(v > 0) {
		return 0
	}
	if v > float64(codec.MaxLayerValue) {
		return codec.MaxLayerValue
	}
	return uint8(v)
}
