// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the lattice kernel.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for runs, steps,
//	constraint repairs, correction, and snapshot persistence. All metrics
//	use the "lattice_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- Run Metrics ---

	// RunsTotal counts completed runs by outcome.
	RunsTotal metric.Int64Counter

	// RunDuration records full run duration in seconds.
	RunDuration metric.Float64Histogram

	// --- Step Metrics ---

	// StepsTotal counts committed steps.
	StepsTotal metric.Int64Counter

	// StepDuration records per-step duration in seconds.
	StepDuration metric.Float64Histogram

	// ActiveCells records the active set size per step.
	ActiveCells metric.Int64Histogram

	// ChangedCells records how many cells changed per step.
	ChangedCells metric.Int64Histogram

	// --- Constraint Metrics ---

	// ConstraintRepairsTotal counts triad repairs by kind.
	ConstraintRepairsTotal metric.Int64Counter

	// ConstraintHoldsTotal counts cells held unchanged by the checker.
	ConstraintHoldsTotal metric.Int64Counter

	// --- Correction Metrics ---

	// CorrectionRepairsTotal counts stage repairs by stage name.
	CorrectionRepairsTotal metric.Int64Counter

	// CorrectionSkipsTotal counts skipped corrections by stage and reason.
	CorrectionSkipsTotal metric.Int64Counter

	// --- Persistence Metrics ---

	// SnapshotsPersistedTotal counts snapshots written to the store.
	SnapshotsPersistedTotal metric.Int64Counter

	// PersistFailuresTotal counts snapshot writes that failed.
	PersistFailuresTotal metric.Int64Counter

	// --- Coherence Metrics ---

	// CoherenceScore reports the latest coherence score (0.0-1.0).
	// Registered via RegisterCoherenceGauges.
	CoherenceScore metric.Float64ObservableGauge

	// NRCI reports the latest NRCI value (0.0-1.0).
	// Registered via RegisterCoherenceGauges.
	NRCI metric.Float64ObservableGauge

	// --- Error Metrics ---

	// ErrorsTotal counts errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Example:
//
//	meter := otel.Meter("lattice")
//	metrics, err := telemetry.NewMetrics(meter)
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
//	metrics.StepsTotal.Add(ctx, 1)
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- Run Metrics ---
	m.RunsTotal, err = meter.Int64Counter(
		"lattice_runs_total",
		metric.WithDescription("Total simulation runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram(
		"lattice_run_duration_seconds",
		metric.WithDescription("Full run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900),
	)
	if err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	// --- Step Metrics ---
	m.StepsTotal, err = meter.Int64Counter(
		"lattice_steps_total",
		metric.WithDescription("Total committed steps"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create steps_total: %w", err)
	}

	m.StepDuration, err = meter.Float64Histogram(
		"lattice_step_duration_seconds",
		metric.WithDescription("Per-step duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create step_duration: %w", err)
	}

	m.ActiveCells, err = meter.Int64Histogram(
		"lattice_active_cells",
		metric.WithDescription("Active set size per step"),
		metric.WithUnit("{cell}"),
		metric.WithExplicitBucketBoundaries(1, 10, 100, 1000, 10000, 100000, 1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("create active_cells: %w", err)
	}

	m.ChangedCells, err = meter.Int64Histogram(
		"lattice_changed_cells",
		metric.WithDescription("Cells changed per step"),
		metric.WithUnit("{cell}"),
		metric.WithExplicitBucketBoundaries(1, 10, 100, 1000, 10000, 100000, 1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("create changed_cells: %w", err)
	}

	// --- Constraint Metrics ---
	m.ConstraintRepairsTotal, err = meter.Int64Counter(
		"lattice_constraint_repairs_total",
		metric.WithDescription("Triad repairs by kind"),
		metric.WithUnit("{repair}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create constraint_repairs_total: %w", err)
	}

	m.ConstraintHoldsTotal, err = meter.Int64Counter(
		"lattice_constraint_holds_total",
		metric.WithDescription("Cells held unchanged by the constraint checker"),
		metric.WithUnit("{cell}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create constraint_holds_total: %w", err)
	}

	// --- Correction Metrics ---
	m.CorrectionRepairsTotal, err = meter.Int64Counter(
		"lattice_correction_repairs_total",
		metric.WithDescription("Correction stage repairs by stage"),
		metric.WithUnit("{repair}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create correction_repairs_total: %w", err)
	}

	m.CorrectionSkipsTotal, err = meter.Int64Counter(
		"lattice_correction_skips_total",
		metric.WithDescription("Skipped corrections by stage and reason"),
		metric.WithUnit("{skip}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create correction_skips_total: %w", err)
	}

	// --- Persistence Metrics ---
	m.SnapshotsPersistedTotal, err = meter.Int64Counter(
		"lattice_snapshots_persisted_total",
		metric.WithDescription("Snapshots written to the store"),
		metric.WithUnit("{snapshot}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshots_persisted_total: %w", err)
	}

	m.PersistFailuresTotal, err = meter.Int64Counter(
		"lattice_persist_failures_total",
		metric.WithDescription("Snapshot writes that failed"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create persist_failures_total: %w", err)
	}

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"lattice_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RegisterCoherenceGauges registers callbacks for the score and NRCI gauges.
//
// Description:
//
//	Sets up observable gauges that report the latest coherence score and
//	NRCI. The callbacks are invoked each time metrics are scraped, so
//	they must be cheap and safe to call from any goroutine.
//
// Inputs:
//
//	meter - The OTel meter to use for registration.
//	scoreFunc - Returns the latest coherence score (0.0-1.0).
//	nrciFunc - Returns the latest NRCI (0.0-1.0).
//
// Outputs:
//
//	metric.Registration - Registration handle for cleanup.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterCoherenceGauges(meter metric.Meter, scoreFunc, nrciFunc func() float64) (metric.Registration, error) {
	var err error
	m.CoherenceScore, err = meter.Float64ObservableGauge(
		"lattice_coherence_score",
		metric.WithDescription("Latest coherence score against the reference pattern"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create coherence_score: %w", err)
	}

	m.NRCI, err = meter.Float64ObservableGauge(
		"lattice_nrci",
		metric.WithDescription("Latest non-random coherence index"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create nrci: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveFloat64(m.CoherenceScore, scoreFunc())
		o.ObserveFloat64(m.NRCI, nrciFunc())
		return nil
	}, m.CoherenceScore, m.NRCI)
}
