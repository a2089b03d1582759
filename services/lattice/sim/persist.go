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
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianLattice/services/lattice/events"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
)

// persistQueueDepth bounds the snapshot write queue. Enqueue blocks
// once the store falls this many snapshots behind the loop.
const persistQueueDepth = 16

// persistJob is one snapshot write. The content key is derived before
// enqueue so the step record carries it without waiting for the store.
type persistJob struct {
	step  uint64
	key   snapstore.Key
	blob  []byte
	cells int
}

// persister issues snapshot writes behind the step loop.
//
// A single worker consumes the queue, so writes reach the store in
// enqueue order. Failed writes are reported as PersistFailed events and
// log warnings; they never stop the worker or the run.
type persister struct {
	store  snapstore.Store
	sink   events.Sink
	logger *slog.Logger

	jobs      chan persistJob
	g         errgroup.Group
	closeOnce sync.Once

	mu       sync.Mutex
	failures int
	lastKey  snapstore.Key
}

// newPersister starts the write worker.
func newPersister(store snapstore.Store, sink events.Sink, logger *slog.Logger) *persister {
	p := &persister{
		store:  store,
		sink:   sink,
		logger: logger,
		jobs:   make(chan persistJob, persistQueueDepth),
	}
	p.g.Go(p.run)
	return p
}

// enqueue hands a snapshot to the worker. Blocks while the queue is
// full; the step loop is the only producer, so blocking preserves step
// order.
func (p *persister) enqueue(job persistJob) {
	p.jobs <- job
}

// close drains the queue and stops the worker. Idempotent.
func (p *persister) close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
		// Failures surface as events; the worker never returns an error.
		_ = p.g.Wait()
	})
}

// run is the worker loop. It uses a background context so queued
// snapshots still land after the run context is cancelled.
func (p *persister) run() error {
	ctx := context.Background()
	for job := range p.jobs {
		if _, err := p.store.Put(ctx, job.blob); err != nil {
			p.mu.Lock()
			p.failures++
			p.mu.Unlock()
			recordPersistMetrics(ctx, false)
			p.logger.Warn("snapshot persist failed",
				"step", job.step,
				"key", job.key.Short(),
				"error", err)
			p.sink.Emit(events.TypePersistFailed, events.PersistFailedData{
				Key:        job.key.String(),
				StepNumber: int(job.step),
				Error:      err.Error(),
			})
			continue
		}

		p.mu.Lock()
		p.lastKey = job.key
		p.mu.Unlock()
		recordPersistMetrics(ctx, true)
		p.logger.Debug("snapshot persisted",
			"step", job.step,
			"key", job.key.Short(),
			"cells", job.cells)
		p.sink.Emit(events.TypeSnapshotPersisted, events.SnapshotPersistedData{
			Key:        job.key.String(),
			StepNumber: int(job.step),
			Cells:      job.cells,
		})
	}
	return nil
}

// failureCount returns the number of failed writes so far.
func (p *persister) failureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// lastPersistedKey returns the key of the most recent successful write,
// or the empty key when nothing has been stored.
func (p *persister) lastPersistedKey() snapstore.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKey
}
