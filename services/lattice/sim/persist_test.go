// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sim

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/events"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
)

// recordingStore notes the first byte of every blob in write order.
// Reads happen after close, which waits for the worker.
type recordingStore struct {
	*snapstore.Memory
	order []byte
}

func (rs *recordingStore) Put(ctx context.Context, blob []byte) (snapstore.Key, error) {
	if len(blob) > 0 {
		rs.order = append(rs.order, blob[0])
	}
	return rs.Memory.Put(ctx, blob)
}

func TestPersister_OrderedWrites(t *testing.T) {
	rs := &recordingStore{Memory: snapstore.NewMemory()}
	mock := events.NewMockEmitter()
	p := newPersister(rs, mock, slog.Default())

	var want []byte
	for i := 0; i < 20; i++ {
		blob := []byte{byte(i)}
		want = append(want, byte(i))
		p.enqueue(persistJob{step: uint64(i + 1), key: snapstore.KeyFor(blob), blob: blob, cells: 1})
	}
	p.close()

	assert.Equal(t, want, rs.order)
	assert.Zero(t, p.failureCount())
	assert.Equal(t, snapstore.KeyFor([]byte{19}), p.lastPersistedKey())

	persisted := mock.GetEventsByType(events.TypeSnapshotPersisted)
	require.Len(t, persisted, 20)
	data, ok := persisted[0].Data.(events.SnapshotPersistedData)
	require.True(t, ok)
	assert.Equal(t, 1, data.StepNumber)
	assert.Equal(t, snapstore.KeyFor([]byte{0}).String(), data.Key)
}

func TestPersister_FailuresCounted(t *testing.T) {
	mock := events.NewMockEmitter()
	p := newPersister(failStore{}, mock, slog.Default())

	for i := 0; i < 3; i++ {
		blob := []byte{byte(i)}
		p.enqueue(persistJob{step: uint64(i + 1), key: snapstore.KeyFor(blob), blob: blob, cells: 1})
	}
	p.close()

	assert.Equal(t, 3, p.failureCount())
	assert.Equal(t, snapstore.Key(""), p.lastPersistedKey())

	failed := mock.GetEventsByType(events.TypePersistFailed)
	require.Len(t, failed, 3)
	data, ok := failed[2].Data.(events.PersistFailedData)
	require.True(t, ok)
	assert.Equal(t, 3, data.StepNumber)
	assert.Contains(t, data.Error, "disk full")
	assert.Empty(t, mock.GetEventsByType(events.TypeSnapshotPersisted))
}

func TestPersister_CloseIdempotent(t *testing.T) {
	p := newPersister(snapstore.NewMemory(), events.NewMockEmitter(), slog.Default())
	p.close()
	p.close()
}

func TestPersister_DeduplicatesIdenticalBlobs(t *testing.T) {
	mem := snapstore.NewMemory()
	p := newPersister(mem, events.NewMockEmitter(), slog.Default())

	blob := []byte("same bytes")
	p.enqueue(persistJob{step: 1, key: snapstore.KeyFor(blob), blob: blob, cells: 1})
	p.enqueue(persistJob{step: 2, key: snapstore.KeyFor(blob), blob: blob, cells: 1})
	p.close()

	n, err := mem.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, p.failureCount())
}
