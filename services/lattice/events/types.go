// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides event types and handling for the simulation loop.
//
// Events allow external systems to observe run progress, collect metrics,
// and implement logging without coupling to the runner implementation.
//
// Thread Safety:
//
//	All types in this package are designed for concurrent use.
package events

import (
	"time"

	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

// Type identifies the kind of event.
type Type string

const (
	// TypeRunStarted is emitted when a run begins stepping.
	TypeRunStarted Type = "run_started"

	// TypeStateChanged is emitted when the run changes lifecycle state.
	TypeStateChanged Type = "state_changed"

	// TypeStepCompleted is emitted after each committed step.
	TypeStepCompleted Type = "step_completed"

	// TypeConstraintUnsatisfied is emitted when a cell cannot be repaired
	// and is held at its pre-step state.
	TypeConstraintUnsatisfied Type = "constraint_unsatisfied"

	// TypeCorrectionSkipped is emitted when a correction stage declines
	// a cell and its output is discarded.
	TypeCorrectionSkipped Type = "correction_skipped"

	// TypeSnapshotPersisted is emitted after a snapshot is durably stored.
	TypeSnapshotPersisted Type = "snapshot_persisted"

	// TypePersistFailed is emitted when storing a snapshot fails.
	TypePersistFailed Type = "persist_failed"

	// TypeRunCompleted is emitted when a run reaches a terminal state.
	TypeRunCompleted Type = "run_completed"
)

// Event represents a simulation event.
//
// Description:
//
//	Events are the primary mechanism for observing run behavior.
//	Each event has a type that determines the structure of its Data field.
//	Use the appropriate typed data struct (RunStartedData, StepCompletedData,
//	etc.) when setting the Data field.
//
// Thread Safety:
//
//	Event structs should be treated as immutable after creation.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Type identifies the kind of event.
	Type Type `json:"type"`

	// RunID links the event to a run.
	RunID string `json:"run_id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Step is the step number when this event occurred.
	Step int `json:"step"`

	// Data contains event-specific data. Should be one of the typed
	// data structs: RunStartedData, StateChangedData, StepCompletedData,
	// ConstraintUnsatisfiedData, CorrectionSkippedData, SnapshotPersistedData,
	// PersistFailedData, or RunCompletedData.
	Data any `json:"data,omitempty"`

	// Metadata contains typed additional context for the event.
	Metadata *EventMetadata `json:"metadata,omitempty"`
}

// RunStartedData is the data for run start events.
type RunStartedData struct {
	// Dims is the lattice dimensionality.
	Dims int `json:"dims"`

	// Neighborhood names the neighborhood shape in use.
	Neighborhood string `json:"neighborhood"`

	// MaxSteps is the configured step budget.
	MaxSteps int `json:"max_steps"`

	// SeededCells is the number of cells occupied at step zero.
	SeededCells int `json:"seeded_cells"`
}

// StateChangedData is the data for lifecycle state change events.
type StateChangedData struct {
	// FromState is the previous state.
	FromState string `json:"from_state"`

	// ToState is the new state.
	ToState string `json:"to_state"`

	// Reason explains why the transition occurred.
	Reason string `json:"reason,omitempty"`
}

// StepCompletedData is the data for step completion events.
type StepCompletedData struct {
	// StepNumber is the step that completed.
	StepNumber int `json:"step_number"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`

	// ActiveCells is the size of the active set this step.
	ActiveCells int `json:"active_cells"`

	// ChangedCells is the number of cells whose word changed.
	ChangedCells int `json:"changed_cells"`

	// AxisRepairs is the number of cells repaired by axis adjustment.
	AxisRepairs int `json:"axis_repairs"`

	// ActivationRepairs is the number of cells repaired by activation shift.
	ActivationRepairs int `json:"activation_repairs"`

	// Holds is the number of cells held at their pre-step state.
	Holds int `json:"holds"`

	// CorrectionSkips is the number of correction stage outputs discarded.
	CorrectionSkips int `json:"correction_skips"`

	// Score is the coherence score after commit.
	Score float64 `json:"score"`

	// NRCI is the non-random coherence index after commit.
	NRCI float64 `json:"nrci"`
}

// ConstraintUnsatisfiedData is the data for unrepairable constraint events.
type ConstraintUnsatisfiedData struct {
	// Coord is the held cell.
	Coord grid.Coordinate `json:"coord"`

	// StepNumber is the step where the hold occurred.
	StepNumber int `json:"step_number"`

	// Magnitude is the residual imbalance after repair was abandoned.
	Magnitude int32 `json:"magnitude"`

	// Activation is the candidate activation that could not be balanced.
	Activation uint8 `json:"activation"`
}

// CorrectionSkippedData is the data for correction skip events.
type CorrectionSkippedData struct {
	// Coord is the affected cell.
	Coord grid.Coordinate `json:"coord"`

	// Stage is the name of the stage that declined.
	Stage string `json:"stage"`

	// Reason explains why the stage output was discarded.
	Reason string `json:"reason,omitempty"`

	// StepNumber is the step where the skip occurred.
	StepNumber int `json:"step_number"`
}

// SnapshotPersistedData is the data for snapshot persistence events.
type SnapshotPersistedData struct {
	// Key is the content-addressed snapshot key.
	Key string `json:"key"`

	// StepNumber is the step the snapshot captures.
	StepNumber int `json:"step_number"`

	// Cells is the number of occupied cells in the snapshot.
	Cells int `json:"cells"`
}

// PersistFailedData is the data for snapshot persistence failures.
type PersistFailedData struct {
	// Key is the snapshot key, if it was computed before the failure.
	Key string `json:"key,omitempty"`

	// StepNumber is the step whose snapshot could not be stored.
	StepNumber int `json:"step_number"`

	// Error is the failure message.
	Error string `json:"error"`
}

// RunCompletedData is the data for run completion events.
type RunCompletedData struct {
	// FinalState is the terminal lifecycle state.
	FinalState string `json:"final_state"`

	// TotalSteps is the number of steps committed.
	TotalSteps int `json:"total_steps"`

	// TotalDuration is how long the run lasted.
	TotalDuration time.Duration `json:"total_duration"`

	// FinalScore is the coherence score of the final state.
	FinalScore float64 `json:"final_score"`

	// FinalNRCI is the non-random coherence index of the final state.
	FinalNRCI float64 `json:"final_nrci"`

	// Reason explains why the run stopped.
	Reason string `json:"reason,omitempty"`

	// Error is set if the run ended with an error.
	Error string `json:"error,omitempty"`
}
