// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package correction runs ordered error-correction stages over
// post-constraint cell words before commit.
//
// Each stage declares the layer fields it may modify. The pipeline
// masks every stage's output so bits outside the declared set pass
// through unchanged, and rejects stage lists whose declared sets
// overlap. Stages see a Syndrome, a fixed-size deterministic summary of
// the cell's post-constraint neighborhood, never the grid itself.
//
// # Fail-Closed
//
// A stage that returns an error, or whose masked output fails word
// validation, is skipped for that cell: the stage's input passes
// through unchanged, the skip is reported, and later stages still run.
// Correction can therefore degrade but never abort a step.
//
// # Built-in Stages
//
//   - parity: restores per-layer parity agreement with the
//     neighborhood by flipping the lowest bit that also agrees with the
//     per-bit majority.
//   - majority: moves each bit of the declared layers to the strict
//     neighborhood majority.
//   - lock: snaps the declared layers to the nearest entry of a
//     configured candidate list by weighted absolute error.
package correction

import "errors"

// Sentinel errors for pipeline construction and stage application.
var (
	// ErrNilShape is returned when constructing a Pipeline without a shape.
	ErrNilShape = errors.New("nil shape")

	// ErrEmptyLayerSet is returned when a stage declares no layers.
	ErrEmptyLayerSet = errors.New("stage declares no layers")

	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrOverlappingStages is returned when two stages declare
	// overlapping layer sets.
	ErrOverlappingStages = errors.New("stage layer sets overlap")

	// ErrUnknownStage is returned by Build for an unrecognized kind.
	ErrUnknownStage = errors.New("unknown stage kind")

	// ErrNoCandidates is returned by a lock stage with an empty
	// candidate list.
	ErrNoCandidates = errors.New("lock stage has no candidates")

	// ErrWeightMismatch is returned when lock weights do not pair with
	// candidates.
	ErrWeightMismatch = errors.New("lock weights do not match candidates")
)
