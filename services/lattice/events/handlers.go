// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LoggingHandler creates a handler that logs events.
//
// Inputs:
//
//	logger - The slog logger to use.
//	level - The log level for events.
//
// Outputs:
//
//	Handler - A handler function that logs events.
func LoggingHandler(logger *slog.Logger, level slog.Level) Handler {
	return func(event *Event) {
		attrs := []any{
			slog.String("event_id", event.ID),
			slog.String("event_type", string(event.Type)),
			slog.String("run_id", event.RunID),
			slog.Int("step", event.Step),
			slog.Time("timestamp", event.Timestamp),
		}

		// Payloads are emitted by value, so the cases match value types.
		switch data := event.Data.(type) {
		case RunStartedData:
			attrs = append(attrs,
				slog.Int("dims", data.Dims),
				slog.String("neighborhood", data.Neighborhood),
				slog.Int("max_steps", data.MaxSteps),
				slog.Int("seeded_cells", data.SeededCells),
			)

		case StateChangedData:
			attrs = append(attrs,
				slog.String("from_state", data.FromState),
				slog.String("to_state", data.ToState),
			)
			if data.Reason != "" {
				attrs = append(attrs, slog.String("reason", data.Reason))
			}

		case StepCompletedData:
			attrs = append(attrs,
				slog.Int("step_number", data.StepNumber),
				slog.Duration("duration", data.Duration),
				slog.Int("active_cells", data.ActiveCells),
				slog.Int("changed_cells", data.ChangedCells),
				slog.Int("holds", data.Holds),
				slog.Float64("score", data.Score),
				slog.Float64("nrci", data.NRCI),
			)

		case ConstraintUnsatisfiedData:
			attrs = append(attrs,
				slog.String("coord", data.Coord.String()),
				slog.Int("magnitude", int(data.Magnitude)),
				slog.Int("activation", int(data.Activation)),
			)

		case CorrectionSkippedData:
			attrs = append(attrs,
				slog.String("coord", data.Coord.String()),
				slog.String("stage", data.Stage),
			)
			if data.Reason != "" {
				attrs = append(attrs, slog.String("reason", data.Reason))
			}

		case SnapshotPersistedData:
			attrs = append(attrs,
				slog.String("key", data.Key),
				slog.Int("step_number", data.StepNumber),
				slog.Int("cells", data.Cells),
			)

		case PersistFailedData:
			attrs = append(attrs,
				slog.Int("step_number", data.StepNumber),
				slog.String("error", data.Error),
			)
			if data.Key != "" {
				attrs = append(attrs, slog.String("key", data.Key))
			}

		case RunCompletedData:
			attrs = append(attrs,
				slog.String("final_state", data.FinalState),
				slog.Int("total_steps", data.TotalSteps),
				slog.Duration("total_duration", data.TotalDuration),
				slog.Float64("final_score", data.FinalScore),
			)
			if data.Error != "" {
				attrs = append(attrs, slog.String("error", data.Error))
			}
		}

		logger.Log(context.Background(), level, "lattice event", attrs...)
	}
}

// RunCollector collects aggregate counters from events.
//
// Thread Safety: RunCollector is safe for concurrent use.
type RunCollector struct {
	mu sync.RWMutex

	// Counters
	runCount        int64
	stepCount       int64
	holdCount       int64
	correctionSkips int64
	persistCount    int64
	persistFailures int64

	// Gauges
	activeRun  string
	lastScore  float64
	lastNRCI   float64

	// Histograms (simple approximation - use proper histogram for production)
	stepDurations []time.Duration
	runDurations  []time.Duration
}

// NewRunCollector creates a new run collector.
func NewRunCollector() *RunCollector {
	return &RunCollector{
		stepDurations: make([]time.Duration, 0),
		runDurations:  make([]time.Duration, 0),
	}
}

// Handler returns an event handler for the collector.
func (c *RunCollector) Handler() Handler {
	return func(event *Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		switch data := event.Data.(type) {
		case RunStartedData:
			c.runCount++
			c.activeRun = event.RunID

		case StepCompletedData:
			c.stepCount++
			c.stepDurations = append(c.stepDurations, data.Duration)
			c.lastScore = data.Score
			c.lastNRCI = data.NRCI

		case ConstraintUnsatisfiedData:
			c.holdCount++

		case CorrectionSkippedData:
			c.correctionSkips++

		case SnapshotPersistedData:
			c.persistCount++

		case PersistFailedData:
			c.persistFailures++

		case RunCompletedData:
			c.runDurations = append(c.runDurations, data.TotalDuration)
			if c.activeRun == event.RunID {
				c.activeRun = ""
			}
		}
	}
}

// RunMetrics is a snapshot of collected counters.
type RunMetrics struct {
	RunCount        int64         `json:"run_count"`
	StepCount       int64         `json:"step_count"`
	HoldCount       int64         `json:"hold_count"`
	CorrectionSkips int64         `json:"correction_skips"`
	PersistCount    int64         `json:"persist_count"`
	PersistFailures int64         `json:"persist_failures"`
	LastScore       float64       `json:"last_score"`
	LastNRCI        float64       `json:"last_nrci"`
	AvgStepDuration time.Duration `json:"avg_step_duration"`
	AvgRunDuration  time.Duration `json:"avg_run_duration"`
	ActiveRun       string        `json:"active_run,omitempty"`
}

// GetMetrics returns a snapshot of collected counters.
func (c *RunCollector) GetMetrics() RunMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return RunMetrics{
		RunCount:        c.runCount,
		StepCount:       c.stepCount,
		HoldCount:       c.holdCount,
		CorrectionSkips: c.correctionSkips,
		PersistCount:    c.persistCount,
		PersistFailures: c.persistFailures,
		LastScore:       c.lastScore,
		LastNRCI:        c.lastNRCI,
		AvgStepDuration: c.avgDuration(c.stepDurations),
		AvgRunDuration:  c.avgDuration(c.runDurations),
		ActiveRun:       c.activeRun,
	}
}

// avgDuration calculates the average duration. Caller must hold lock.
func (c *RunCollector) avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// Reset clears all collected counters.
func (c *RunCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.runCount = 0
	c.stepCount = 0
	c.holdCount = 0
	c.correctionSkips = 0
	c.persistCount = 0
	c.persistFailures = 0
	c.lastScore = 0
	c.lastNRCI = 0
	c.stepDurations = make([]time.Duration, 0)
	c.runDurations = make([]time.Duration, 0)
	c.activeRun = ""
}

// ChannelHandler creates a handler that sends events to a channel.
//
// Inputs:
//
//	ch - The channel to send events to.
//	dropOnFull - If true, drops events when channel is full; if false, blocks.
//
// Outputs:
//
//	Handler - A handler function that sends events to the channel.
func ChannelHandler(ch chan<- Event, dropOnFull bool) Handler {
	return func(event *Event) {
		if dropOnFull {
			select {
			case ch <- *event:
			default:
				// Channel full, drop event
			}
		} else {
			ch <- *event
		}
	}
}

// MultiHandler creates a handler that calls multiple handlers.
//
// Inputs:
//
//	handlers - The handlers to call.
//
// Outputs:
//
//	Handler - A handler that calls all provided handlers.
func MultiHandler(handlers ...Handler) Handler {
	return func(event *Event) {
		for _, h := range handlers {
			h(event)
		}
	}
}

// FilteredHandler creates a handler that only processes events matching a filter.
//
// Inputs:
//
//	handler - The underlying handler.
//	filter - The filter function.
//
// Outputs:
//
//	Handler - A handler that filters events before processing.
func FilteredHandler(handler Handler, filter Filter) Handler {
	return func(event *Event) {
		if filter(event) {
			handler(event)
		}
	}
}

// TypeFilter creates a filter that matches specific event types.
func TypeFilter(types ...Type) Filter {
	typeSet := make(map[Type]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event *Event) bool {
		return typeSet[event.Type]
	}
}

// RunFilter creates a filter that matches a specific run.
func RunFilter(runID string) Filter {
	return func(event *Event) bool {
		return event.RunID == runID
	}
}

// AnomalyFilter creates a filter for events that indicate trouble.
func AnomalyFilter() Filter {
	return TypeFilter(TypeConstraintUnsatisfied, TypeCorrectionSkipped, TypePersistFailed)
}

// ProgressFilter creates a filter for run progress events.
func ProgressFilter() Filter {
	return TypeFilter(TypeRunStarted, TypeStepCompleted, TypeRunCompleted)
}
