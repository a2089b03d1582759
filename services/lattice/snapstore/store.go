// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapstore

import "context"

// Store is content-addressed storage for snapshot blobs.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines. The runner persists snapshots from a background worker
// while CLI commands may read concurrently.
type Store interface {
	// Put stores a blob and returns its content-derived key.
	//
	// Put is idempotent: storing the same bytes twice returns the same
	// key and occupies storage once. Implementations short-circuit when
	// the key already exists.
	Put(ctx context.Context, blob []byte) (Key, error)

	// Get returns the blob stored under key.
	//
	// Returns ErrNotFound if no blob exists under key and ErrBadKey if
	// the key is malformed. The returned slice is the caller's to keep.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Has reports whether a blob exists under key.
	//
	// Returns ErrBadKey for malformed keys. A missing key is (false, nil),
	// not an error.
	Has(ctx context.Context, key Key) (bool, error)

	// Keys returns all stored keys in lexicographic order.
	Keys(ctx context.Context) ([]Key, error)

	// Len returns the number of stored blobs.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources. Safe to call once.
	Close() error
}
