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
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNewMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	// Verify all metrics are created
	if metrics.RunsTotal == nil {
		t.Error("RunsTotal is nil")
	}
	if metrics.RunDuration == nil {
		t.Error("RunDuration is nil")
	}
	if metrics.StepsTotal == nil {
		t.Error("StepsTotal is nil")
	}
	if metrics.StepDuration == nil {
		t.Error("StepDuration is nil")
	}
	if metrics.ActiveCells == nil {
		t.Error("ActiveCells is nil")
	}
	if metrics.ChangedCells == nil {
		t.Error("ChangedCells is nil")
	}
	if metrics.ConstraintRepairsTotal == nil {
		t.Error("ConstraintRepairsTotal is nil")
	}
	if metrics.ConstraintHoldsTotal == nil {
		t.Error("ConstraintHoldsTotal is nil")
	}
	if metrics.CorrectionRepairsTotal == nil {
		t.Error("CorrectionRepairsTotal is nil")
	}
	if metrics.CorrectionSkipsTotal == nil {
		t.Error("CorrectionSkipsTotal is nil")
	}
	if metrics.SnapshotsPersistedTotal == nil {
		t.Error("SnapshotsPersistedTotal is nil")
	}
	if metrics.PersistFailuresTotal == nil {
		t.Error("PersistFailuresTotal is nil")
	}
	if metrics.ErrorsTotal == nil {
		t.Error("ErrorsTotal is nil")
	}
}

func TestMetrics_RecordStepMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_step_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	// Should not panic
	metrics.StepsTotal.Add(ctx, 1)
	metrics.StepDuration.Record(ctx, 0.0023)
	metrics.ActiveCells.Record(ctx, 128)
	metrics.ChangedCells.Record(ctx, 17)

	metrics.ConstraintRepairsTotal.Add(ctx, 3, metric.WithAttributes(
		attribute.String("kind", "axis"),
	))
	metrics.ConstraintRepairsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", "activation"),
	))
	metrics.ConstraintHoldsTotal.Add(ctx, 2)

	metrics.CorrectionRepairsTotal.Add(ctx, 5, metric.WithAttributes(
		attribute.String("stage", "majority"),
	))
	metrics.CorrectionSkipsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", "parity"),
		attribute.String("reason", "range"),
	))
}

func TestMetrics_RecordRunMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_run_metrics")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	metrics.RunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "completed"),
	))
	metrics.RunDuration.Record(ctx, 12.5)
	metrics.SnapshotsPersistedTotal.Add(ctx, 10)
	metrics.PersistFailuresTotal.Add(ctx, 0)
	metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", "persist"),
		attribute.String("component", "runner"),
	))
}

func TestMetrics_RegisterCoherenceGauges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	meter := otel.Meter("test_coherence_gauges")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	score := 0.95
	nrci := 0.999
	reg, err := metrics.RegisterCoherenceGauges(meter,
		func() float64 { return score },
		func() float64 { return nrci },
	)
	if err != nil {
		t.Fatalf("RegisterCoherenceGauges() error = %v", err)
	}
	defer reg.Unregister()

	if metrics.CoherenceScore == nil {
		t.Error("CoherenceScore is nil after registration")
	}
	if metrics.NRCI == nil {
		t.Error("NRCI is nil after registration")
	}
}
