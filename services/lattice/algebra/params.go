// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package algebra

import (
	"fmt"

	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// Params holds the operator weight tables and relaxation rates for one
// evaluator. Weight tables are indexed by shape offset position, so
// ResonanceWeights[i] applies to the neighbor at shape offset i.
//
// Thread Safety: Params is treated as immutable after construction.
// Callers must not mutate the weight slices once an Evaluator holds
// them.
type Params struct {
	// ResonanceWeights scales the activation alignment contribution of
	// each neighbor offset. Zero disables resonance for that offset.
	ResonanceWeights []float64

	// EntanglementWeights scales the information coupling of each
	// neighbor offset. Pair symmetry (equal weight for an offset and
	// its negation) is a configuration concern, not enforced here.
	EntanglementWeights []float64

	// RealizationRate moves the reality layer toward the pre-step
	// activation value each step. Must be in [0,1].
	RealizationRate float64

	// PotentialRecovery moves the potential layer toward the
	// unactivated remainder of the field range each step. Must be in
	// [0,1].
	PotentialRecovery float64
}

// validate checks the weight tables against the shape and the rates
// against their ranges.
func (p Params) validate(shape *grid.Shape) error {
	if shape == nil {
		return ErrNilShape
	}
	if len(p.ResonanceWeights) != shape.Len() {
		return fmt.Errorf("%w: resonance has %d weights for %d offsets",
			ErrWeightCount, len(p.ResonanceWeights), shape.Len())
	}
	if len(p.EntanglementWeights) != shape.Len() {
		return fmt.Errorf("%w: entanglement has %d weights for %d offsets",
			ErrWeightCount, len(p.EntanglementWeights), shape.Len())
	}
	if p.RealizationRate < 0 || p.RealizationRate > 1 {
		return fmt.Errorf("%w: realization rate %v not in [0,1]",
			ErrParamRange, p.RealizationRate)
	}
	if p.PotentialRecovery < 0 || p.PotentialRecovery > 1 {
		return fmt.Errorf("%w: potential recovery %v not in [0,1]",
			ErrParamRange, p.PotentialRecovery)
	}
	return nil
}

// Quiescent reports whether the parameters produce no state change on
// any cell. All-zero weights and rates leave every candidate equal to
// its pre-step cell.
func (p Params) Quiescent() bool {
	for _, w := range p.ResonanceWeights {
		if w != 0 {
			return false
		}
	}
	for _, w := range p.EntanglementWeights {
		if w != 0 {
			return false
		}
	}
	return p.RealizationRate == 0 && p.PotentialRecovery == 0
}
