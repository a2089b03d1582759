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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for the step loop.
var (
	tracer = otel.Tracer("lattice.sim")
	meter  = otel.Meter("lattice.sim")
)

// Metrics for run and step execution.
var (
	stepLatency   metric.Float64Histogram
	stepsTotal    metric.Int64Counter
	runLatency    metric.Float64Histogram
	runsTotal     metric.Int64Counter
	activeCells   metric.Int64Histogram
	holdsTotal    metric.Int64Counter
	skipsTotal    metric.Int64Counter
	persistsTotal metric.Int64Counter
	scoreGauge    metric.Float64Gauge
	nrciGauge     metric.Float64Gauge

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		stepLatency, err = meter.Float64Histogram(
			"sim_step_duration_seconds",
			metric.WithDescription("Duration of committed steps"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stepsTotal, err = meter.Int64Counter(
			"sim_steps_total",
			metric.WithDescription("Total number of committed steps"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runLatency, err = meter.Float64Histogram(
			"sim_run_duration_seconds",
			metric.WithDescription("Duration of runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runsTotal, err = meter.Int64Counter(
			"sim_runs_total",
			metric.WithDescription("Total number of runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		activeCells, err = meter.Int64Histogram(
			"sim_active_cells",
			metric.WithDescription("Cells evaluated per step"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		holdsTotal, err = meter.Int64Counter(
			"sim_constraint_holds_total",
			metric.WithDescription("Cells held at their pre-step state"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		skipsTotal, err = meter.Int64Counter(
			"sim_correction_skips_total",
			metric.WithDescription("Correction stage outputs discarded"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		persistsTotal, err = meter.Int64Counter(
			"sim_snapshot_writes_total",
			metric.WithDescription("Snapshot store writes by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		scoreGauge, err = meter.Float64Gauge(
			"sim_coherence_score",
			metric.WithDescription("Coherence score of the last committed step"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nrciGauge, err = meter.Float64Gauge(
			"sim_nrci",
			metric.WithDescription("Non-random coherence index of the last committed step"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordStepMetrics records metrics for one committed step.
func recordStepMetrics(ctx context.Context, rec StepRecord) {
	if err := initMetrics(); err != nil {
		return
	}

	stepLatency.Record(ctx, rec.Duration.Seconds())
	stepsTotal.Add(ctx, 1)
	activeCells.Record(ctx, int64(rec.ActiveCells))
	if rec.Holds > 0 {
		holdsTotal.Add(ctx, int64(rec.Holds))
	}
	if rec.CorrectionSkips > 0 {
		skipsTotal.Add(ctx, int64(rec.CorrectionSkips))
	}
	scoreGauge.Record(ctx, rec.Score)
	nrciGauge.Record(ctx, rec.NRCI)
}

// recordRunMetrics records metrics for a finished run.
func recordRunMetrics(ctx context.Context, outcome string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runsTotal.Add(ctx, 1, attrs)
}

// recordPersistMetrics records one snapshot store write.
func recordPersistMetrics(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	persistsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("success", success)),
	)
}

// startRunSpan creates the span covering a whole run.
func startRunSpan(ctx context.Context, runID string, maxSteps int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("run.max_steps", maxSteps),
		),
	)
}

// startStepSpan creates the span for one step.
func startStepSpan(ctx context.Context, step uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.step",
		trace.WithAttributes(
			attribute.Int64("step.index", int64(step)),
		),
	)
}

// setStepSpanResult sets the outcome attributes on a step span.
func setStepSpanResult(span trace.Span, rec StepRecord) {
	span.SetAttributes(
		attribute.Int("step.active_cells", rec.ActiveCells),
		attribute.Int("step.changed_cells", rec.ChangedCells),
		attribute.Int("step.holds", rec.Holds),
		attribute.Int("step.correction_skips", rec.CorrectionSkips),
		attribute.Float64("step.score", rec.Score),
	)
}
