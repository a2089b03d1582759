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
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
	"github.com/AleutianAI/AleutianLattice/services/lattice/correction"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// configValidate is the validator instance for run documents.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
}

// Validate checks the document.
//
// Description:
//
//	Runs the per-field tag validation first and returns immediately on
//	tag failures, so the cross-field pass can rely on field ranges
//	already holding. Cross-field failures are aggregated so a rejected
//	document reports every problem at once. Every failure wraps
//	ErrInvalidConfig and names the offending field.
//
// Outputs:
//
//	error - Nil if the document is valid.
func (d *Document) Validate() error {
	if err := configValidate.Struct(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var errs []error
	errs = append(errs, d.validateShape()...)
	errs = append(errs, d.validateTriad()...)
	errs = append(errs, d.validateCorrection()...)
	errs = append(errs, d.validateCoherence()...)
	errs = append(errs, d.validateStore()...)
	errs = append(errs, d.validateSeed()...)
	return errors.Join(errs...)
}

// validateShape checks offsets for range, duplicates, and mirror
// symmetry of entanglement weights.
func (d *Document) validateShape() []error {
	var errs []error
	seen := make(map[grid.Coordinate]int, len(d.Shape.Offsets))
	for i, o := range d.Shape.Offsets {
		c := grid.Coord(o.Axes...)
		if c.IsZero() {
			errs = append(errs, fmt.Errorf("%w: shape.offsets[%d]: zero offset", ErrInvalidConfig, i))
			continue
		}
		if !c.InDims(d.Dims) {
			errs = append(errs, fmt.Errorf("%w: shape.offsets[%d]: %s outside dims=%d", ErrInvalidConfig, i, c, d.Dims))
		}
		if j, dup := seen[c]; dup {
			errs = append(errs, fmt.Errorf("%w: shape.offsets[%d]: duplicate of offsets[%d]", ErrInvalidConfig, i, j))
			continue
		}
		seen[c] = i
	}

	// Information moved from a cell must be matched by information
	// received, so a non-zero entanglement weight needs its mirror.
	for i, o := range d.Shape.Offsets {
		if o.Entanglement == 0 {
			continue
		}
		c := grid.Coord(o.Axes...)
		j, ok := seen[c.Neg()]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: shape.offsets[%d]: entanglement weight set but mirror offset %s missing", ErrInvalidConfig, i, c.Neg()))
			continue
		}
		if d.Shape.Offsets[j].Entanglement != o.Entanglement {
			errs = append(errs, fmt.Errorf("%w: shape.offsets[%d]: entanglement weight %v differs from mirror offsets[%d] weight %v",
				ErrInvalidConfig, i, o.Entanglement, j, d.Shape.Offsets[j].Entanglement))
		}
	}
	return errs
}

// validateTriad checks that the axis groups partition the offset list
// exactly.
func (d *Document) validateTriad() []error {
	var errs []error
	n := len(d.Shape.Offsets)
	assigned := make(map[int]int, n)
	for g, group := range d.Triad.AxisGroups {
		for _, idx := range group {
			if idx < 0 || idx >= n {
				errs = append(errs, fmt.Errorf("%w: triad.axis_groups[%d]: offset index %d out of range [0,%d)", ErrInvalidConfig, g, idx, n))
				continue
			}
			if prev, dup := assigned[idx]; dup {
				errs = append(errs, fmt.Errorf("%w: triad.axis_groups[%d]: offset index %d already in group %d", ErrInvalidConfig, g, idx, prev))
				continue
			}
			assigned[idx] = g
		}
	}
	if len(assigned) != n {
		errs = append(errs, fmt.Errorf("%w: triad.axis_groups: cover %d of %d offsets", ErrInvalidConfig, len(assigned), n))
	}
	return errs
}

// validateCorrection checks stage names, layer claims, and lock
// parameters.
func (d *Document) validateCorrection() []error {
	var errs []error
	names := make(map[string]int, len(d.Correction.Stages))
	claimed := make(map[codec.LayerID]int)
	for i, st := range d.Correction.Stages {
		name := st.Name
		if name == "" {
			name = st.Kind
		}
		if prev, dup := names[name]; dup {
			errs = append(errs, fmt.Errorf("%w: correction.stages[%d]: name %q already used by stages[%d]", ErrInvalidConfig, i, name, prev))
		} else {
			names[name] = i
		}

		for _, ln := range st.Layers {
			id, err := codec.ParseLayerID(ln)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: correction.stages[%d].layers: %v", ErrInvalidConfig, i, err))
				continue
			}
			if prev, dup := claimed[id]; dup {
				errs = append(errs, fmt.Errorf("%w: correction.stages[%d].layers: %s already claimed by stages[%d]", ErrInvalidConfig, i, id, prev))
				continue
			}
			claimed[id] = i
		}

		switch st.Kind {
		case correction.KindLock:
			if len(st.Candidates) == 0 {
				errs = append(errs, fmt.Errorf("%w: correction.stages[%d].candidates: required for lock stages", ErrInvalidConfig, i))
			}
			if len(st.Weights) > 0 && len(st.Weights) != len(st.Candidates) {
				errs = append(errs, fmt.Errorf("%w: correction.stages[%d].weights: %d weights do not pair with %d candidates",
					ErrInvalidConfig, i, len(st.Weights), len(st.Candidates)))
			}
		default:
			if len(st.Candidates) > 0 || len(st.Weights) > 0 {
				errs = append(errs, fmt.Errorf("%w: correction.stages[%d]: candidates and weights apply to lock stages only", ErrInvalidConfig, i))
			}
		}
	}
	return errs
}

// validateCoherence checks the reference parameters for the selected
// source.
func (d *Document) validateCoherence() []error {
	r := d.Coherence.Reference
	if r == nil {
		return nil
	}

	var errs []error
	switch r.Source {
	case SourceExact:
		if len(r.Cells) == 0 {
			errs = append(errs, fmt.Errorf("%w: coherence.reference.cells: required for exact references", ErrInvalidConfig))
		}
		for i, cell := range r.Cells {
			errs = append(errs, d.checkCell("coherence.reference.cells", i, cell)...)
		}
	case SourceConstant:
		if len(r.Support) == 0 {
			errs = append(errs, fmt.Errorf("%w: coherence.reference.support: required for constant references", ErrInvalidConfig))
		}
		if _, err := codec.Encode(r.Layers); err != nil {
			errs = append(errs, fmt.Errorf("%w: coherence.reference.layers: %v", ErrInvalidConfig, err))
		}
		for i, axes := range r.Support {
			if len(axes) == 0 || len(axes) > grid.MaxDims {
				errs = append(errs, fmt.Errorf("%w: coherence.reference.support[%d]: need 1 to %d axes", ErrInvalidConfig, i, grid.MaxDims))
				continue
			}
			if c := grid.Coord(axes...); !c.InDims(d.Dims) {
				errs = append(errs, fmt.Errorf("%w: coherence.reference.support[%d]: %s outside dims=%d", ErrInvalidConfig, i, c, d.Dims))
			}
		}
	case SourceRadial:
		if len(r.Rings) == 0 {
			errs = append(errs, fmt.Errorf("%w: coherence.reference.rings: required for radial references", ErrInvalidConfig))
		}
		for i, ring := range r.Rings {
			if _, err := codec.Encode(ring); err != nil {
				errs = append(errs, fmt.Errorf("%w: coherence.reference.rings[%d]: %v", ErrInvalidConfig, i, err))
			}
		}
		if len(r.Origin) > 0 {
			if len(r.Origin) > grid.MaxDims {
				errs = append(errs, fmt.Errorf("%w: coherence.reference.origin: need at most %d axes", ErrInvalidConfig, grid.MaxDims))
			} else if c := grid.Coord(r.Origin...); !c.InDims(d.Dims) {
				errs = append(errs, fmt.Errorf("%w: coherence.reference.origin: %s outside dims=%d", ErrInvalidConfig, c, d.Dims))
			}
		}
	}
	return errs
}

// validateStore checks backend-specific requirements.
func (d *Document) validateStore() []error {
	var errs []error
	switch d.Store.Backend {
	case BackendBadger, BackendFile:
		if d.Store.Path == "" {
			errs = append(errs, fmt.Errorf("%w: store.path: required for %s backend", ErrInvalidConfig, d.Store.Backend))
		}
	}
	return errs
}

// validateSeed checks seed cells for range, encodability, and
// duplicates.
func (d *Document) validateSeed() []error {
	var errs []error
	seen := make(map[grid.Coordinate]int, len(d.Seed))
	for i, cell := range d.Seed {
		errs = append(errs, d.checkCell("seed", i, cell)...)
		if len(cell.Axes) == 0 || len(cell.Axes) > grid.MaxDims {
			continue
		}
		c := grid.Coord(cell.Axes...)
		if j, dup := seen[c]; dup {
			errs = append(errs, fmt.Errorf("%w: seed[%d]: duplicate of seed[%d]", ErrInvalidConfig, i, j))
			continue
		}
		seen[c] = i
	}
	return errs
}

// checkCell validates one coordinate and layer tuple under the named
// field.
func (d *Document) checkCell(field string, i int, cell SeedCell) []error {
	var errs []error
	if len(cell.Axes) == 0 || len(cell.Axes) > grid.MaxDims {
		errs = append(errs, fmt.Errorf("%w: %s[%d].axes: need 1 to %d axes", ErrInvalidConfig, field, i, grid.MaxDims))
		return errs
	}
	if c := grid.Coord(cell.Axes...); !c.InDims(d.Dims) {
		errs = append(errs, fmt.Errorf("%w: %s[%d].axes: %s outside dims=%d", ErrInvalidConfig, field, i, c, d.Dims))
	}
	if _, err := codec.Encode(cell.Layers); err != nil {
		errs = append(errs, fmt.Errorf("%w: %s[%d].layers: %v", ErrInvalidConfig, field, i, err))
	}
	return errs
}
