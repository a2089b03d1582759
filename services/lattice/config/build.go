// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/AleutianAI/AleutianLattice/pkg/logging"
	"github.com/AleutianAI/AleutianLattice/services/lattice/algebra"
	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/coherence"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/correction"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// BuildShape converts the offset list into a neighborhood shape.
func (d *Document) BuildShape() (*grid.Shape, error) {
	offsets := make([]grid.Offset, len(d.Shape.Offsets))
	for i, o := range d.Shape.Offsets {
		offsets[i] = grid.Coord(o.Axes...)
	}
	return grid.NewShape(d.Dims, offsets)
}

// BuildParams converts the per-offset weights and relaxation rates
// into operator parameters. Weight order follows offset order.
func (d *Document) BuildParams() algebra.Params {
	res := make([]float64, len(d.Shape.Offsets))
	ent := make([]float64, len(d.Shape.Offsets))
	for i, o := range d.Shape.Offsets {
		res[i] = o.Resonance
		ent[i] = o.Entanglement
	}
	return algebra.Params{
		ResonanceWeights:    res,
		EntanglementWeights: ent,
		RealizationRate:     d.Algebra.RealizationRate,
		PotentialRecovery:   d.Algebra.PotentialRecovery,
	}
}

// BuildTriad converts the triad section into a balance triad. Nil face
// weights become ones and a nil pair matrix becomes the identity.
func (d *Document) BuildTriad() constraint.Triad {
	t := constraint.Triad{
		Tolerance:          d.Triad.Tolerance,
		AxisBound:          d.Triad.AxisBound,
		MaxActivationShift: d.Triad.MaxActivationShift,
	}

	for g := 0; g < constraint.AxisCount && g < len(d.Triad.AxisGroups); g++ {
		t.AxisGroups[g] = append([]int(nil), d.Triad.AxisGroups[g]...)
	}

	if d.Triad.FaceWeights == nil {
		for f := range t.FaceWeights {
			t.FaceWeights[f] = 1
		}
	} else {
		for f := 0; f < constraint.FaceCount && f < len(d.Triad.FaceWeights); f++ {
			t.FaceWeights[f] = d.Triad.FaceWeights[f]
		}
	}

	if d.Triad.PairWeights == nil {
		for a := 0; a < constraint.AxisCount; a++ {
			t.PairWeights[a][a] = 1
		}
	} else {
		for a := 0; a < constraint.AxisCount && a < len(d.Triad.PairWeights); a++ {
			for b := 0; b < constraint.AxisCount && b < len(d.Triad.PairWeights[a]); b++ {
				t.PairWeights[a][b] = d.Triad.PairWeights[a][b]
			}
		}
	}

	return t
}

// BuildStages constructs the ordered correction stages.
func (d *Document) BuildStages() ([]correction.Stage, error) {
	stages := make([]correction.Stage, 0, len(d.Correction.Stages))
	for i, st := range d.Correction.Stages {
		ids := make([]codec.LayerID, 0, len(st.Layers))
		for _, ln := range st.Layers {
			id, err := codec.ParseLayerID(ln)
			if err != nil {
				return nil, fmt.Errorf("correction.stages[%d].layers: %w", i, err)
			}
			ids = append(ids, id)
		}
		stage, err := correction.Build(correction.StageSpec{
			Kind:       st.Kind,
			Name:       st.Name,
			Layers:     codec.NewLayerSet(ids...),
			Candidates: append([]uint8(nil), st.Candidates...),
			Weights:    append([]float64(nil), st.Weights...),
		})
		if err != nil {
			return nil, fmt.Errorf("correction.stages[%d]: %w", i, err)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// BuildWeights converts the score weights. Nil means all ones.
func (d *Document) BuildWeights() coherence.Weights {
	if d.Coherence.Weights == nil {
		return coherence.UniformWeights(1)
	}
	var w coherence.Weights
	for i := 0; i < len(w) && i < len(d.Coherence.Weights); i++ {
		w[i] = d.Coherence.Weights[i]
	}
	return w
}

// BuildReference constructs the reference pattern, or nil when the
// document scores against vacuum.
func (d *Document) BuildReference() (coherence.ReferencePattern, error) {
	r := d.Coherence.Reference
	if r == nil {
		return nil, nil
	}

	switch r.Source {
	case SourceExact:
		cells := make(map[grid.Coordinate]codec.Layers, len(r.Cells))
		for _, cell := range r.Cells {
			cells[grid.Coord(cell.Axes...)] = cell.Layers
		}
		return coherence.NewExactPattern(cells), nil

	case SourceConstant:
		support := make([]grid.Coordinate, len(r.Support))
		for i, axes := range r.Support {
			support[i] = grid.Coord(axes...)
		}
		return coherence.NewConstantPattern(r.Layers, support), nil

	case SourceRadial:
		var origin grid.Coordinate
		if len(r.Origin) > 0 {
			origin = grid.Coord(r.Origin...)
		}
		return coherence.NewRadialPattern(d.Dims, origin, append([]codec.Layers(nil), r.Rings...))

	default:
		return nil, fmt.Errorf("coherence.reference.source: unknown source %q", r.Source)
	}
}

// BuildLogging converts the logging section for the given service name.
func (d *Document) BuildLogging(service string) logging.Config {
	level, _ := logging.ParseLevel(d.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  d.Logging.Dir,
		Service: service,
		JSON:    d.Logging.JSON,
		Quiet:   d.Logging.Quiet,
	}
}

// Coordinate returns the cell's location.
func (c SeedCell) Coordinate() grid.Coordinate {
	return grid.Coord(c.Axes...)
}

// Word encodes the cell's layer tuple.
func (c SeedCell) Word() (codec.Word, error) {
	return codec.Encode(c.Layers)
}

// SeedWords converts the seed list into coordinate and word pairs.
func (d *Document) SeedWords() (map[grid.Coordinate]codec.Word, error) {
	cells := make(map[grid.Coordinate]codec.Word, len(d.Seed))
	for i, cell := range d.Seed {
		w, err := cell.Word()
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		cells[cell.Coordinate()] = w
	}
	return cells, nil
}
