// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapstore provides content-addressed storage for lattice snapshots.
//
// Snapshots are stored as opaque blobs keyed by the SHA-256 digest of
// their encoded bytes. Identical snapshots share one entry, so persisting
// a run that has reached a fixed point costs nothing after the first
// write. Three backends implement the Store interface:
//
//   - Memory: map-backed, for tests and ephemeral runs
//   - BadgerStore: durable local storage on BadgerDB
//   - FileStore: one file per snapshot, layout suited to external watchers
//
// # Integrity
//
// Keys are derived from content, so a blob read back under its key is
// either the exact bytes written or a storage-level corruption that
// surfaces when the snapshot is decoded. Stores do not verify digests
// on read.
//
// # Errors
//
// Lookups of unknown keys return ErrNotFound, which callers should test
// with errors.Is. Malformed keys are rejected with ErrBadKey before any
// backend access.
package snapstore

import "errors"

var (
	// ErrNotFound is returned when no blob exists under the requested key.
	ErrNotFound = errors.New("snapshot not found")

	// ErrBadKey is returned when a key is not a lowercase SHA-256 hex digest.
	ErrBadKey = errors.New("malformed snapshot key")
)
