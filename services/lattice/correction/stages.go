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
	"fmt"
	"math"
	"math/bits"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// Stage is one correction step. Implementations must be pure: the same
// cell and syndrome always produce the same output.
type Stage interface {
	// Name identifies the stage instance in skip reports and events.
	Name() string

	// Layers declares the layer fields the stage may modify. The
	// pipeline discards changes outside this set.
	Layers() codec.LayerSet

	// Apply corrects one cell against its neighborhood syndrome. An
	// error skips the stage for this cell.
	Apply(cell codec.Word, syn Syndrome) (codec.Word, error)
}

// Stage kinds recognized by Build.
const (
	KindParity   = "parity"
	KindMajority = "majority"
	KindLock     = "lock"
)

// StageSpec describes one stage instance for Build. Name defaults to
// the kind; Candidates and Weights apply to lock stages only.
type StageSpec struct {
	Kind       string
	Name       string
	Layers     codec.LayerSet
	Candidates []uint8
	Weights    []float64
}

// Build constructs a built-in stage from its spec.
func Build(spec StageSpec) (Stage, error) {
	name := spec.Name
	if name == "" {
		name = spec.Kind
	}
	switch spec.Kind {
	case KindParity:
		return NewParityStage(name, spec.Layers), nil
	case KindMajority:
		return NewMajorityStage(name, spec.Layers), nil
	case KindLock:
		return NewLockStage(name, spec.Layers, spec.Candidates, spec.Weights)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, spec.Kind)
	}
}

// -----------------------------------------------------------------------------
// Parity
// -----------------------------------------------------------------------------

// ParityStage restores per-layer parity agreement with the
// neighborhood. When the layer's bit parity disagrees with the parity
// of the neighborhood XOR fold, it flips the lowest bit that differs
// from the strict per-bit majority. With no unambiguous bit to flip,
// the layer is left alone.
type ParityStage struct {
	name   string
	layers codec.LayerSet
}

// NewParityStage builds a parity smoother over the given layers.
func NewParityStage(name string, layers codec.LayerSet) *ParityStage {
	return &ParityStage{name: name, layers: layers}
}

// Name implements Stage.
func (s *ParityStage) Name() string { return s.name }

// Layers implements Stage.
func (s *ParityStage) Layers() codec.LayerSet { return s.layers }

// Apply implements Stage.
func (s *ParityStage) Apply(cell codec.Word, syn Syndrome) (codec.Word, error) {
	out := cell
	for _, id := range codec.AllLayers() {
		if !s.layers.Has(id) {
			continue
		}
		v := out.Layer(id)
		if bits.OnesCount8(v)&1 == bits.OnesCount8(syn.Parity[id])&1 {
			continue
		}
		for b := 0; b < codec.LayerWidth; b++ {
			maj, ok := majorityBit(syn.Support[id][b], syn.Neighbors)
			if !ok {
				continue
			}
			if v>>b&1 != maj {
				fixed, err := out.WithLayer(id, v^(1<<b))
				if err != nil {
					return cell, err
				}
				out = fixed
				break
			}
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Majority
// -----------------------------------------------------------------------------

// MajorityStage moves each bit of the declared layers to the strict
// neighborhood majority. Ties and isolated cells keep their bits.
type MajorityStage struct {
	name   string
	layers codec.LayerSet
}

// NewMajorityStage builds a per-bit majority filter over the given
// layers.
func NewMajorityStage(name string, layers codec.LayerSet) *MajorityStage {
	return &MajorityStage{name: name, layers: layers}
}

// Name implements Stage.
func (s *MajorityStage) Name() string { return s.name }

// Layers implements Stage.
func (s *MajorityStage) Layers() codec.LayerSet { return s.layers }

// Apply implements Stage.
func (s *MajorityStage) Apply(cell codec.Word, syn Syndrome) (codec.Word, error) {
	out := cell
	for _, id := range codec.AllLayers() {
		if !s.layers.Has(id) {
			continue
		}
		v := out.Layer(id)
		for b := 0; b < codec.LayerWidth; b++ {
			maj, ok := majorityBit(syn.Support[id][b], syn.Neighbors)
			if !ok {
				continue
			}
			if v>>b&1 != maj {
				v ^= 1 << b
			}
		}
		fixed, err := out.WithLayer(id, v)
		if err != nil {
			return cell, err
		}
		out = fixed
	}
	return out, nil
}

// majorityBit returns the strict majority value of one bit position, or
// ok=false on an exact tie or an empty neighborhood.
func majorityBit(support, neighbors uint16) (uint8, bool) {
	switch {
	case 2*support > neighbors:
		return 1, true
	case 2*support < neighbors:
		return 0, true
	default:
		return 0, false
	}
}

// -----------------------------------------------------------------------------
// Lock
// -----------------------------------------------------------------------------

// LockStage snaps each declared layer to the candidate value with the
// smallest weighted absolute error. Ties resolve to the lowest-indexed
// candidate.
type LockStage struct {
	name       string
	layers     codec.LayerSet
	candidates []uint8
	weights    []float64
}

// NewLockStage builds a lock stage. Weights may be nil for uniform
// weighting; otherwise they must pair one-to-one with candidates.
func NewLockStage(name string, layers codec.LayerSet, candidates []uint8, weights []float64) (*LockStage, error) {
	if len(weights) > 0 && len(weights) != len(candidates) {
		return nil, fmt.Errorf("%w: %d weights for %d candidates",
			ErrWeightMismatch, len(weights), len(candidates))
	}
	s := &LockStage{
		name:       name,
		layers:     layers,
		candidates: append([]uint8(nil), candidates...),
		weights:    append([]float64(nil), weights...),
	}
	return s, nil
}

// Name implements Stage.
func (s *LockStage) Name() string { return s.name }

// Layers implements Stage.
func (s *LockStage) Layers() codec.LayerSet { return s.layers }

// Apply implements Stage.
func (s *LockStage) Apply(cell codec.Word, syn Syndrome) (codec.Word, error) {
	if len(s.candidates) == 0 {
		return cell, ErrNoCandidates
	}
	out := cell
	for _, id := range codec.AllLayers() {
		if !s.layers.Has(id) {
			continue
		}
		v := out.Layer(id)
		best := 0
		bestErr := math.Inf(1)
		for i, cand := range s.candidates {
			w := 1.0
			if len(s.weights) > 0 {
				w = s.weights[i]
			}
			e := w * math.Abs(float64(v)-float64(cand))
			if e < bestErr {
				best = i
				bestErr = e
			}
		}
		fixed, err := out.WithLayer(id, s.candidates[best])
		if err != nil {
			return cell, err
		}
		out = fixed
	}
	return out, nil
}
