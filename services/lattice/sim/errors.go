// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sim drives the step loop that sequences the lattice kernel.
//
// A Runner owns the grid store for the duration of a run and executes
// discrete global steps. Each step reads an immutable pre-step snapshot,
// evaluates the interaction operators over the active set, applies the
// constraint and correction layers behind two full-step barriers, and
// commits the surviving words as one transaction. After commit the
// coherence score and NRCI are computed on the new state and the step is
// reported through events, metrics, and a StepRecord.
//
// # Lifecycle
//
// A run moves through a string-typed state machine:
//
//	IDLE → RUNNING               : Run invoked
//	RUNNING → COMPLETED          : termination condition holds
//	RUNNING → ABORTED            : commit rejected a word
//
// COMPLETED and ABORTED are terminal. A commit-time codec violation is
// the only fatal condition; constraint holds and correction skips are
// aggregated into per-step counts and never abort the run. Stop
// requests and context cancellation are honored at step boundaries
// only, so the grid is always left fully committed.
//
// # Persistence
//
// On the configured cadence the committed snapshot is encoded and its
// content key derived synchronously; the write itself is handed to a
// background worker that issues puts in step order. Store failures
// surface as PersistFailed events and warnings, never as run errors.
// The queue is drained before Run returns.
package sim

import "errors"

// Sentinel errors for runner construction and the run lifecycle.
var (
	// ErrNilContext is returned when Run is called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilComponent is returned when a required kernel stage is missing
	// from the Components bundle.
	ErrNilComponent = errors.New("missing kernel component")

	// ErrBadRunConfig is returned when the run configuration cannot
	// drive a loop, such as a zero step budget.
	ErrBadRunConfig = errors.New("invalid run configuration")

	// ErrInvalidTransition is returned for a lifecycle transition the
	// state machine does not allow, including a second Run call on the
	// same Runner.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCommitOutOfRange wraps a commit rejection. The upstream layers
	// validate every word they emit, so a rejected commit means a stage
	// produced a value outside the representable domain. The run aborts
	// with the grid at its last committed state.
	ErrCommitOutOfRange = errors.New("commit rejected out-of-range cell")
)
