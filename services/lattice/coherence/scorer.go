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
	"math"
	"slices"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// Weights scales each layer's contribution to the mismatch. Index by
// codec.LayerID.
type Weights [codec.LayerCount]float64

// UniformWeights returns equal weight w on every layer.
func UniformWeights(w float64) Weights {
	var out Weights
	for i := range out {
		out[i] = w
	}
	return out
}

// Scorer computes coherence scores under a fixed layer weighting.
//
// Thread Safety: a Scorer is immutable after construction and safe for
// concurrent use.
type Scorer struct {
	weights Weights
	worst   float64
}

// NewScorer validates the weights and builds a scorer. All-zero
// weights are legal; every snapshot then scores 1.0.
func NewScorer(weights Weights) (*Scorer, error) {
	var worst float64
	for _, id := range codec.AllLayers() {
		w := weights[id]
		if w < 0 {
			return nil, fmt.Errorf("%w: %s is %v", ErrNegativeWeight, id, w)
		}
		worst += w * float64(codec.MaxLayerValue)
	}
	return &Scorer{weights: weights, worst: worst}, nil
}

// Weights returns the scorer's layer weighting.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score measures how closely a snapshot matches the reference.
//
// Description:
//
//	The comparison domain is the union of the snapshot's occupied
//	coordinates and the reference support. Each domain cell
//	contributes its weighted absolute layer deviation; the total is
//	normalized by the worst possible deviation across the domain and
//	subtracted from one. An exact match scores exactly 1.0, an empty
//	domain scores 1.0, and any perturbation of a positively weighted
//	layer scores strictly below 1.0.
//
// Inputs:
//   - view: Snapshot to score.
//   - ref: Reference pattern; nil compares against the empty pattern.
//
// Outputs:
//   - float64: Coherence in [0,1].
func (s *Scorer) Score(view *grid.Snapshot, ref ReferencePattern) float64 {
	if ref == nil {
		ref = emptyPattern{}
	}
	domain := unionDomain(view, ref)
	if len(domain) == 0 || s.worst == 0 {
		return 1.0
	}

	var total float64
	for _, c := range domain {
		total += s.mismatch(codec.Decode(view.Get(c)), ref.At(c))
	}
	score := 1.0 - total/(s.worst*float64(len(domain)))
	if score < 0 {
		return 0
	}
	return score
}

// mismatch is the weighted absolute layer deviation of one cell.
func (s *Scorer) mismatch(actual, ref codec.Layers) float64 {
	var m float64
	for _, id := range codec.AllLayers() {
		d := int(actual.Layer(id)) - int(ref.Layer(id))
		if d < 0 {
			d = -d
		}
		m += s.weights[id] * float64(d)
	}
	return m
}

// NRCI is the normalized root coherence index over the activation
// layer: one minus the ratio of the actual-versus-reference RMSE to
// the reference's standard deviation, clamped to [0,1].
//
// A uniform reference has zero deviation; NRCI is then 1.0 on an exact
// match and 0.0 otherwise. NRCI is a per-step diagnostic only and
// never drives termination.
func NRCI(view *grid.Snapshot, ref ReferencePattern) float64 {
	if ref == nil {
		ref = emptyPattern{}
	}
	domain := unionDomain(view, ref)
	if len(domain) == 0 {
		return 1.0
	}

	n := float64(len(domain))
	var mean float64
	for _, c := range domain {
		mean += float64(ref.At(c).Activation)
	}
	mean /= n

	var sqErr, sqDev float64
	for _, c := range domain {
		r := float64(ref.At(c).Activation)
		a := float64(view.Get(c).Activation())
		sqErr += (a - r) * (a - r)
		sqDev += (r - mean) * (r - mean)
	}

	if sqDev == 0 {
		if sqErr == 0 {
			return 1.0
		}
		return 0.0
	}
	nrci := 1.0 - math.Sqrt(sqErr/n)/math.Sqrt(sqDev/n)
	if nrci < 0 {
		return 0
	}
	if nrci > 1 {
		return 1
	}
	return nrci
}

// unionDomain merges the snapshot's occupied coordinates with the
// reference support, sorted and deduplicated.
func unionDomain(view *grid.Snapshot, ref ReferencePattern) []grid.Coordinate {
	actual := view.Coords()
	support := ref.Support()
	out := make([]grid.Coordinate, 0, len(actual)+len(support))
	out = append(out, actual...)
	out = append(out, support...)
	slices.SortFunc(out, grid.Coordinate.Compare)
	return slices.CompactFunc(out, func(a, b grid.Coordinate) bool {
		return a == b
	})
}

// emptyPattern is the nil reference: no support, ground everywhere.
type emptyPattern struct{}

func (emptyPattern) At(grid.Coordinate) codec.Layers { return codec.Layers{} }
func (emptyPattern) Support() []grid.Coordinate      { return nil }
