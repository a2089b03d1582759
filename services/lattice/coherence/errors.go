// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coherence scores a grid snapshot against a reference pattern.
//
// The score is 1 minus the weighted per-layer mismatch, normalized by
// the worst possible mismatch over the comparison domain. The domain is
// the union of the snapshot's occupied coordinates and the reference
// pattern's support, so missing cells on either side count as full
// deviations from ground. A snapshot that matches the reference exactly
// scores exactly 1.0, and an empty domain scores 1.0 by definition.
//
// Scoring is pure: it folds the sorted domain in a fixed order and
// never mutates its inputs.
package coherence

import "errors"

// Sentinel errors for scorer and pattern construction.
var (
	// ErrNegativeWeight is returned when a layer weight is negative.
	ErrNegativeWeight = errors.New("layer weight must be non-negative")

	// ErrBadDims is returned when a radial pattern's dimensionality is
	// out of range.
	ErrBadDims = errors.New("pattern dims out of range")

	// ErrRingRange is returned when a radial ring holds a layer value
	// outside the field range.
	ErrRingRange = errors.New("ring layer value out of range")
)
