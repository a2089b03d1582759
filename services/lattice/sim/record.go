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

import "time"

// StepRecord summarizes one committed step. Records are appended to the
// RunResult in step order; the same data is streamed through the event
// sink as the run progresses.
type StepRecord struct {
	// Step is the committed step index.
	Step uint64 `json:"step"`

	// Score is the coherence score of the committed state.
	Score float64 `json:"score"`

	// NRCI is the non-random coherence index of the committed state.
	NRCI float64 `json:"nrci"`

	// ActiveCells is the number of cells evaluated this step.
	ActiveCells int `json:"active_cells"`

	// ChangedCells is the number of cells whose committed word differs
	// from their pre-step word.
	ChangedCells int `json:"changed_cells"`

	// AxisRepairs counts cells repaired by axis adjustment.
	AxisRepairs int `json:"axis_repairs"`

	// ActivationRepairs counts cells repaired by activation shift.
	ActivationRepairs int `json:"activation_repairs"`

	// Holds counts cells the constraint layer could not repair. Held
	// cells keep their pre-step word.
	Holds int `json:"holds"`

	// CorrectionSkips counts correction stage outputs that were
	// discarded.
	CorrectionSkips int `json:"correction_skips"`

	// Duration is the wall time of the step, including commit and
	// scoring but not persistence.
	Duration time.Duration `json:"duration"`

	// SnapshotKey is the content key of the snapshot enqueued for this
	// step, empty when the step was not on the persist cadence.
	SnapshotKey string `json:"snapshot_key,omitempty"`
}

// RunResult is the outcome of a run.
//
// Run returns a result for every terminal state. Aborted runs carry the
// records of the steps that committed before the failure; the grid
// itself stays at the last committed state.
type RunResult struct {
	// RunID identifies the run across logs, events, and traces.
	RunID string `json:"run_id"`

	// State is the terminal lifecycle state.
	State RunState `json:"state"`

	// Steps holds one record per committed step, in step order.
	Steps []StepRecord `json:"steps"`

	// TotalSteps is the number of steps committed by this run.
	TotalSteps int `json:"total_steps"`

	// FinalScore is the coherence score of the final committed state.
	FinalScore float64 `json:"final_score"`

	// FinalNRCI is the non-random coherence index of the final state.
	FinalNRCI float64 `json:"final_nrci"`

	// FinalSnapshotKey is the content key of the last persisted
	// snapshot, empty when no snapshot store was configured.
	FinalSnapshotKey string `json:"final_snapshot_key,omitempty"`

	// PersistFailures counts snapshot writes that failed. Failures are
	// warnings; they never terminate a run.
	PersistFailures int `json:"persist_failures"`

	// Duration is the wall time of the whole run.
	Duration time.Duration `json:"duration"`

	// Reason explains why the run stopped.
	Reason string `json:"reason,omitempty"`
}
