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

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLen is the length of a Key in characters (SHA-256 as hex).
const KeyLen = sha256.Size * 2

// Key identifies a stored snapshot blob.
//
// A Key is the lowercase hexadecimal SHA-256 digest of the blob's bytes.
// Two blobs with the same content always map to the same Key.
type Key string

// KeyFor computes the storage key for a blob.
//
// Inputs:
//
//	blob - Encoded snapshot bytes. May be empty.
//
// Outputs:
//
//	Key - Lowercase SHA-256 hex digest of blob.
func KeyFor(blob []byte) Key {
	sum := sha256.Sum256(blob)
	return Key(hex.EncodeToString(sum[:]))
}

// Valid reports whether k is a well-formed key.
//
// Keys reaching a store from outside (CLI arguments, file names) must be
// validated before use. FileStore in particular derives paths from keys,
// so a malformed key must never touch the filesystem.
func (k Key) Valid() bool {
	if len(k) != KeyLen {
		return false
	}
	for _, c := range []byte(k) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// Short returns the first 12 characters of the key for display.
//
// Returns the full key if it is shorter than 12 characters.
func (k Key) Short() string {
	if len(k) < 12 {
		return string(k)
	}
	return string(k[:12])
}

func (k Key) String() string {
	return string(k)
}
