// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codec packs and unpacks lattice cell state.
//
// A cell is a single 32-bit word carrying four 6-bit layer fields in the
// low 24 bits. The high 8 bits are reserved and must always be zero.
//
// # Word Layout
//
//	bit  31      24 23      18 17      12 11       6 5        0
//	     ┌─────────┬──────────┬──────────┬──────────┬──────────┐
//	     │ reserved│ potential│activation│information│  reality │
//	     │  (zero) │   0..63  │   0..63  │   0..63   │   0..63  │
//	     └─────────┴──────────┴──────────┴──────────┴──────────┘
//
// # Contracts
//
// Encode is the only constructor for non-ground words and can never
// produce reserved bits. Decode is total: it masks each field and
// ignores reserved bits, so it accepts any Word. Validate is the strict
// path used at commit and snapshot-load boundaries where foreign words
// enter the system.
//
// Decode(Encode(l)) == l holds for every in-range Layers value.
//
// # Thread Safety
//
// All types in this package are immutable values. Every function is
// pure and safe for unsynchronized concurrent use.
package codec

import "errors"

// Sentinel errors for codec operations.
var (
	// ErrLayerOutOfRange is returned by Encode and WithLayer when a layer
	// value exceeds MaxLayerValue. The word is not modified.
	ErrLayerOutOfRange = errors.New("layer value out of range")

	// ErrReservedBits is returned by Validate when any of the reserved
	// high bits (24-31) are set. Words with reserved bits must never be
	// committed to a grid or written to a snapshot.
	ErrReservedBits = errors.New("reserved bits set")

	// ErrUnknownLayer is returned when a LayerID outside the four defined
	// layers is passed to a checked accessor.
	ErrUnknownLayer = errors.New("unknown layer")
)
