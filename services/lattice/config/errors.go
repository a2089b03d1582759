// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates run documents.
//
// A run document is a YAML (or JSON) file describing one simulation run:
// the lattice dimensionality, the neighborhood shape with per-offset
// operator weights, the balance triad, the correction stages, the
// coherence reference, seed cells, and the ambient run settings (store,
// telemetry, logging).
//
// Validation happens in two passes. Struct tags catch per-field range
// errors through go-playground/validator. Cross-field rules that tags
// cannot express, such as the triad axis groups partitioning the offset
// list exactly, run afterwards and name the offending field in their
// error message. All validation failures wrap ErrInvalidConfig.
//
// # Build Helpers
//
// A validated Document converts into the domain types the kernel
// consumes (grid.Shape, algebra.Params, constraint.Triad, correction
// stages, coherence scorer and reference) through its Build* methods.
// Build methods assume Validate has passed and return errors only for
// conditions validation cannot see, such as shape construction limits.
package config

import "errors"

// ErrInvalidConfig is the sentinel wrapped by every validation failure.
//
// Use errors.Is(err, config.ErrInvalidConfig) to distinguish a rejected
// document from an I/O failure while reading it.
var ErrInvalidConfig = errors.New("invalid config")
