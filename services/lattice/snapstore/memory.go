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
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Store for tests and ephemeral runs.
//
// Blobs are copied on Put and Get so callers cannot alias the stored
// bytes. Data is lost when the store is garbage collected.
//
// # Thread Safety
//
// Safe for concurrent use via RWMutex.
type Memory struct {
	mu    sync.RWMutex
	blobs map[Key][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[Key][]byte),
	}
}

// Put stores a blob and returns its key. Re-storing identical bytes
// returns the existing key without copying again.
func (m *Memory) Put(ctx context.Context, blob []byte) (Key, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}
	key := KeyFor(blob)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[key]; ok {
		return key, nil
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.blobs[key] = stored
	return key, nil
}

// Get returns a copy of the blob stored under key.
func (m *Memory) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Short())
	}
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, nil
}

// Has reports whether a blob exists under key.
func (m *Memory) Has(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}
	if !key.Valid() {
		return false, fmt.Errorf("%w: %q", ErrBadKey, key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[key]
	return ok, nil
}

// Keys returns all stored keys in lexicographic order.
func (m *Memory) Keys(ctx context.Context) ([]Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	m.mu.RLock()
	keys := make([]Key, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context cancelled: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs), nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}
