// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package constraint enforces the triad balance predicate on candidate
// cell states after operator evaluation.
//
// The shape's offsets are partitioned into three axis groups. Each
// group derives an axis value from the candidate activations of the
// cell's neighbors, weighted per face and coupled through a 3x3 pair
// matrix. A candidate is balanced when the three axis values sum to its
// own activation within a configured tolerance.
//
// # Repair Policy
//
// Unbalanced candidates are repaired minimally and deterministically:
//
//  1. Axis-record repair: absorb the residual into the axis with the
//     smallest magnitude (lowest index on ties) when the adjusted value
//     stays within the axis bound. No word bit-field changes.
//  2. Activation repair: move the candidate's activation to the axis
//     sum, clamped to the field range, when the shift is within the
//     configured limit and the result satisfies the predicate. One word
//     bit-field changes.
//  3. Hold: the cell keeps its pre-step word and the violation is
//     reported. Never fatal.
//
// # Determinism
//
// Axis derivation folds neighbors in shape declaration order and
// repairs follow a total order, so per-cell outcomes are bit-identical
// regardless of evaluation parallelism.
package constraint

import "errors"

// Sentinel errors for checker construction and application.
var (
	// ErrNilShape is returned when constructing a Checker without a shape.
	ErrNilShape = errors.New("nil shape")

	// ErrIndexOutOfRange is returned when an axis group references an
	// offset index the shape does not have.
	ErrIndexOutOfRange = errors.New("axis group index out of range")

	// ErrDuplicateIndex is returned when an offset index appears in more
	// than one axis group.
	ErrDuplicateIndex = errors.New("offset index in multiple axis groups")

	// ErrPartialCover is returned when the axis groups do not cover
	// every shape offset.
	ErrPartialCover = errors.New("axis groups do not cover all offsets")

	// ErrNegativeBound is returned for a negative axis bound.
	ErrNegativeBound = errors.New("axis bound must be non-negative")

	// ErrIncomplete is returned by Apply when not every candidate
	// produced a result.
	ErrIncomplete = errors.New("incomplete constraint pass")
)
