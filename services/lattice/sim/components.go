// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sim

import (
	"fmt"

	"github.com/AleutianAI/AleutianLattice/services/lattice/algebra"
	"github.com/AleutianAI/AleutianLattice/services/lattice/coherence"
	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
	"github.com/AleutianAI/AleutianLattice/services/lattice/correction"
	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// Components bundles the kernel stages a Runner drives. All fields are
// required; the Runner takes exclusive write ownership of the store for
// the duration of a run.
type Components struct {
	// Store holds the live grid.
	Store *grid.Store

	// Evaluator computes per-cell candidates from the pre-step view.
	Evaluator *algebra.Evaluator

	// Checker enforces the triad balance predicate on candidates.
	Checker *constraint.Checker

	// Correction runs the ordered correction stages before commit.
	Correction *correction.Pipeline

	// Scorer computes the coherence score after commit.
	Scorer *coherence.Scorer

	// Reference is the pattern the score is computed against.
	Reference coherence.ReferencePattern
}

// validate reports the first missing component.
func (c Components) validate() error {
	switch {
	case c.Store == nil:
		return fmt.Errorf("%w: grid store", ErrNilComponent)
	case c.Evaluator == nil:
		return fmt.Errorf("%w: evaluator", ErrNilComponent)
	case c.Checker == nil:
		return fmt.Errorf("%w: constraint checker", ErrNilComponent)
	case c.Correction == nil:
		return fmt.Errorf("%w: correction pipeline", ErrNilComponent)
	case c.Scorer == nil:
		return fmt.Errorf("%w: coherence scorer", ErrNilComponent)
	case c.Reference == nil:
		return fmt.Errorf("%w: reference pattern", ErrNilComponent)
	}
	return nil
}

// BuildComponents constructs the kernel stages from a validated
// document and seeds the grid.
//
// Description:
//
//	Builds the neighborhood shape once and shares it across the
//	evaluator, checker, and correction pipeline. Seed cells are applied
//	as a step-zero commit, so an invalid seed leaves the store empty.
//	The document should have passed Validate; construction still
//	re-checks the cross-field rules the validator cannot express.
//
// Inputs:
//   - doc: The run document to build from.
//
// Outputs:
//   - Components: The assembled kernel stages.
//   - error: The first construction failure, wrapped with its stage.
func BuildComponents(doc *config.Document) (Components, error) {
	if doc == nil {
		return Components{}, fmt.Errorf("%w: document", ErrNilComponent)
	}

	shape, err := doc.BuildShape()
	if err != nil {
		return Components{}, fmt.Errorf("build shape: %w", err)
	}

	eval, err := algebra.NewEvaluator(shape, doc.BuildParams(),
		algebra.WithMaxWorkers(doc.Run.MaxWorkers))
	if err != nil {
		return Components{}, fmt.Errorf("build evaluator: %w", err)
	}

	checker, err := constraint.NewChecker(shape, doc.BuildTriad(),
		constraint.WithMaxWorkers(doc.Run.MaxWorkers))
	if err != nil {
		return Components{}, fmt.Errorf("build checker: %w", err)
	}

	stages, err := doc.BuildStages()
	if err != nil {
		return Components{}, fmt.Errorf("build stages: %w", err)
	}
	pipe, err := correction.NewPipeline(shape, stages)
	if err != nil {
		return Components{}, fmt.Errorf("build correction: %w", err)
	}

	scorer, err := coherence.NewScorer(doc.BuildWeights())
	if err != nil {
		return Components{}, fmt.Errorf("build scorer: %w", err)
	}

	ref, err := doc.BuildReference()
	if err != nil {
		return Components{}, fmt.Errorf("build reference: %w", err)
	}

	store, err := grid.NewStore(doc.Dims)
	if err != nil {
		return Components{}, fmt.Errorf("build store: %w", err)
	}
	seeds, err := doc.SeedWords()
	if err != nil {
		return Components{}, fmt.Errorf("build seed: %w", err)
	}
	if len(seeds) > 0 {
		if err := store.Commit(0, seeds); err != nil {
			return Components{}, fmt.Errorf("seed grid: %w", err)
		}
	}

	return Components{
		Store:      store,
		Evaluator:  eval,
		Checker:    checker,
		Correction: pipe,
		Scorer:     scorer,
		Reference:  ref,
	}, nil
}
