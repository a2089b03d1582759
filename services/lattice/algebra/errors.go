// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package algebra evaluates per-cell interaction operators over a grid
// snapshot.
//
// Three operator classes drive a cell's next state, each a total
// function of decoded layer values and a per-offset weight table:
//
//   - Resonance: bit-alignment of the cell's activation field with each
//     neighbor's, weighted per offset. Drives the activation layer.
//   - Entanglement: symmetric pairwise coupling on the information
//     field. Each side of a pair receives half the signed difference,
//     so evaluating (a,b) and (b,a) yields the same combined effect as
//     one symmetric application.
//   - Superposition: the saturating combinator. Folds operator sums and
//     relaxation terms into the candidate layers, clamped to the field
//     range with half-away-from-zero rounding.
//
// # Determinism
//
// EvaluateCell reads only the immutable pre-step snapshot and folds
// neighbors in shape declaration order on a single goroutine, so a
// cell's candidate is bit-identical regardless of how cells are
// scheduled across workers. EvaluateAll may therefore run any degree of
// parallelism and produce the same candidate map as a sequential pass.
//
// # Ground Cells
//
// A ground cell with zero operator drive stays ground. Without this
// rule, relaxation terms would spontaneously generate potential in
// empty cells at the boundary of the active set.
package algebra

import "errors"

// Sentinel errors for evaluator construction and evaluation.
var (
	// ErrNilShape is returned when constructing an Evaluator without a shape.
	ErrNilShape = errors.New("nil shape")

	// ErrWeightCount is returned when a weight table's length does not
	// match the shape's offset count.
	ErrWeightCount = errors.New("weight count does not match shape")

	// ErrParamRange is returned when a relaxation rate is outside [0,1].
	ErrParamRange = errors.New("parameter out of range")

	// ErrIncomplete is returned by EvaluateAll when not every requested
	// cell produced a candidate. A partial candidate set must never
	// reach the constraint layer.
	ErrIncomplete = errors.New("incomplete evaluation")
)
