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
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianLattice/services/lattice/grid"
)

func TestEmitter_Subscribe(t *testing.T) {
	emitter := NewEmitter()

	var received []Event
	subID := emitter.Subscribe(func(e *Event) {
		received = append(received, *e)
	})

	if subID == "" {
		t.Error("expected non-empty subscription ID")
	}
	if emitter.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount = %d, want 1", emitter.SubscriptionCount())
	}

	// Emit an event
	emitter.Emit(TypeRunStarted, RunStartedData{
		Dims:     2,
		MaxSteps: 100,
	})

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != TypeRunStarted {
		t.Errorf("Type = %s, want %s", received[0].Type, TypeRunStarted)
	}
}

func TestEmitter_SubscribeWithFilter(t *testing.T) {
	emitter := NewEmitter()

	var received []Event
	emitter.SubscribeWithFilter(func(e *Event) {
		received = append(received, *e)
	}, func(e *Event) bool {
		return e.Step > 5
	})

	emitter.SetStep(3)
	emitter.Emit(TypeStepCompleted, nil) // Should be filtered out

	emitter.SetStep(10)
	emitter.Emit(TypeSnapshotPersisted, nil) // Should pass filter

	if len(received) != 1 {
		t.Fatalf("expected 1 event, got %d", len(received))
	}
	if received[0].Type != TypeSnapshotPersisted {
		t.Errorf("Type = %s, want %s", received[0].Type, TypeSnapshotPersisted)
	}
}

func TestEmitter_SubscribeByType(t *testing.T) {
	emitter := NewEmitter()

	var received []Event
	emitter.Subscribe(func(e *Event) {
		received = append(received, *e)
	}, TypeConstraintUnsatisfied, TypePersistFailed)

	emitter.Emit(TypeRunStarted, nil) // Should be filtered
	emitter.Emit(TypeConstraintUnsatisfied, ConstraintUnsatisfiedData{Magnitude: 9})
	emitter.Emit(TypeStepCompleted, nil) // Should be filtered
	emitter.Emit(TypePersistFailed, PersistFailedData{Error: "disk full"})

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if received[0].Type != TypeConstraintUnsatisfied {
		t.Errorf("received[0].Type = %s, want %s", received[0].Type, TypeConstraintUnsatisfied)
	}
	if received[1].Type != TypePersistFailed {
		t.Errorf("received[1].Type = %s, want %s", received[1].Type, TypePersistFailed)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	emitter := NewEmitter()

	callCount := 0
	subID := emitter.Subscribe(func(e *Event) {
		callCount++
	})

	emitter.Emit(TypeStepCompleted, nil)
	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}

	if !emitter.Unsubscribe(subID) {
		t.Error("Unsubscribe should return true for existing subscription")
	}

	emitter.Emit(TypeStepCompleted, nil)
	if callCount != 1 {
		t.Errorf("callCount after unsubscribe = %d, want 1", callCount)
	}

	if emitter.Unsubscribe(subID) {
		t.Error("Unsubscribe should return false for already removed subscription")
	}
}

func TestEmitter_RunID(t *testing.T) {
	emitter := NewEmitter(WithRunID("run-123"))

	var received *Event
	emitter.Subscribe(func(e *Event) {
		received = e
	})

	emitter.Emit(TypeRunStarted, nil)

	if received.RunID != "run-123" {
		t.Errorf("RunID = %s, want run-123", received.RunID)
	}

	// Update run ID
	emitter.SetRunID("run-456")
	emitter.Emit(TypeRunStarted, nil)

	if received.RunID != "run-456" {
		t.Errorf("RunID after update = %s, want run-456", received.RunID)
	}
}

func TestEmitter_Step(t *testing.T) {
	emitter := NewEmitter()

	var received *Event
	emitter.Subscribe(func(e *Event) {
		received = e
	})

	emitter.SetStep(5)
	emitter.Emit(TypeStepCompleted, nil)
	if received.Step != 5 {
		t.Errorf("Step = %d, want 5", received.Step)
	}

	step := emitter.IncrementStep()
	if step != 6 {
		t.Errorf("IncrementStep returned %d, want 6", step)
	}

	emitter.Emit(TypeStepCompleted, nil)
	if received.Step != 6 {
		t.Errorf("Step after increment = %d, want 6", received.Step)
	}
}

func TestEmitter_Buffer(t *testing.T) {
	emitter := NewEmitter(WithBufferSize(5))

	for i := 0; i < 10; i++ {
		emitter.Emit(TypeStepCompleted, nil)
	}

	buffer := emitter.GetBuffer()
	if len(buffer) != 5 {
		t.Errorf("buffer size = %d, want 5", len(buffer))
	}
}

func TestEmitter_GetBufferSince(t *testing.T) {
	emitter := NewEmitter()

	emitter.Emit(TypeRunStarted, nil)
	time.Sleep(10 * time.Millisecond)
	midpoint := time.Now()
	time.Sleep(10 * time.Millisecond)
	emitter.Emit(TypeStepCompleted, nil)
	emitter.Emit(TypeSnapshotPersisted, nil)

	events := emitter.GetBufferSince(midpoint)
	if len(events) != 2 {
		t.Errorf("events since midpoint = %d, want 2", len(events))
	}
}

func TestEmitter_GetBufferByType(t *testing.T) {
	emitter := NewEmitter()

	emitter.Emit(TypeStepCompleted, nil)
	emitter.Emit(TypeSnapshotPersisted, nil)
	emitter.Emit(TypeStepCompleted, nil)
	emitter.Emit(TypeRunCompleted, nil)

	steps := emitter.GetBufferByType(TypeStepCompleted)
	if len(steps) != 2 {
		t.Errorf("step events = %d, want 2", len(steps))
	}
}

func TestEmitter_ClearBuffer(t *testing.T) {
	emitter := NewEmitter()

	emitter.Emit(TypeRunStarted, nil)
	emitter.Emit(TypeStepCompleted, nil)

	emitter.ClearBuffer()

	if len(emitter.GetBuffer()) != 0 {
		t.Error("buffer should be empty after clear")
	}
}

func TestEmitter_Reset(t *testing.T) {
	emitter := NewEmitter()

	emitter.Subscribe(func(e *Event) {})
	emitter.SetRunID("test")
	emitter.SetStep(10)
	emitter.Emit(TypeStepCompleted, nil)

	emitter.Reset()

	if emitter.SubscriptionCount() != 0 {
		t.Error("subscriptions should be cleared")
	}
	if len(emitter.GetBuffer()) != 0 {
		t.Error("buffer should be cleared")
	}
}

func TestEmitter_PanicRecovery(t *testing.T) {
	emitter := NewEmitter()

	emitter.Subscribe(func(e *Event) {
		panic("handler bug")
	})

	callCount := 0
	emitter.Subscribe(func(e *Event) {
		callCount++
	})

	emitter.Emit(TypeStepCompleted, nil)

	if callCount != 1 {
		t.Errorf("second handler callCount = %d, want 1", callCount)
	}
	if len(emitter.GetBuffer()) != 1 {
		t.Errorf("buffer size = %d, want 1", len(emitter.GetBuffer()))
	}
}

func TestEmitter_ConcurrentAccess(t *testing.T) {
	emitter := NewEmitter()

	var wg sync.WaitGroup
	var mu sync.Mutex
	received := make([]Event, 0)

	// Subscribe
	emitter.Subscribe(func(e *Event) {
		mu.Lock()
		received = append(received, *e)
		mu.Unlock()
	})

	// Concurrent emits
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitter.Emit(TypeStepCompleted, nil)
		}()
	}

	wg.Wait()

	mu.Lock()
	count := len(received)
	mu.Unlock()

	if count != 100 {
		t.Errorf("received %d events, want 100", count)
	}
}

func TestEmitter_Metadata(t *testing.T) {
	emitter := NewEmitter()

	var received *Event
	emitter.Subscribe(func(e *Event) {
		received = e
	})

	emitter.EmitWithMetadata(TypeStepCompleted, nil, &EventMetadata{
		TraceID:  "trace123",
		Source:   "test",
		Priority: 5,
		Tags: map[string]string{
			"key1": "value1",
		},
	})

	if received.Metadata == nil {
		t.Fatal("expected metadata")
	}
	if received.Metadata.TraceID != "trace123" {
		t.Errorf("Metadata.TraceID = %v, want trace123", received.Metadata.TraceID)
	}
	if received.Metadata.Source != "test" {
		t.Errorf("Metadata.Source = %v, want test", received.Metadata.Source)
	}
	if received.Metadata.Priority != 5 {
		t.Errorf("Metadata.Priority = %v, want 5", received.Metadata.Priority)
	}
	if received.Metadata.Tags["key1"] != "value1" {
		t.Errorf("Metadata.Tags[key1] = %v, want value1", received.Metadata.Tags["key1"])
	}
}

func TestMockEmitter(t *testing.T) {
	mock := NewMockEmitter()

	mock.Emit(TypeRunStarted, nil)
	mock.SetStep(4)
	mock.Emit(TypePersistFailed, PersistFailedData{Error: "test"})
	mock.Emit(TypeRunStarted, nil)

	if mock.EventCount() != 3 {
		t.Errorf("EventCount = %d, want 3", mock.EventCount())
	}

	starts := mock.GetEventsByType(TypeRunStarted)
	if len(starts) != 2 {
		t.Errorf("run started events = %d, want 2", len(starts))
	}

	failures := mock.GetEventsByType(TypePersistFailed)
	if len(failures) != 1 {
		t.Fatalf("persist failures = %d, want 1", len(failures))
	}
	if failures[0].Step != 4 {
		t.Errorf("failure Step = %d, want 4", failures[0].Step)
	}

	mock.Clear()
	if mock.EventCount() != 0 {
		t.Error("events should be cleared")
	}
}

func TestRunCollector(t *testing.T) {
	collector := NewRunCollector()
	emitter := NewEmitter(WithRunID("run-1"))
	emitter.Subscribe(collector.Handler())

	// Emit various events
	emitter.Emit(TypeRunStarted, RunStartedData{Dims: 2, MaxSteps: 50})
	emitter.Emit(TypeStepCompleted, StepCompletedData{
		StepNumber: 1,
		Duration:   100 * time.Millisecond,
		Score:      0.75,
		NRCI:       0.5,
	})
	emitter.Emit(TypeConstraintUnsatisfied, ConstraintUnsatisfiedData{
		Coord:     grid.Coord(1, 2),
		Magnitude: 9,
	})
	emitter.Emit(TypeCorrectionSkipped, CorrectionSkippedData{Stage: "lock"})
	emitter.Emit(TypeSnapshotPersisted, SnapshotPersistedData{Key: "abc", Cells: 3})
	emitter.Emit(TypePersistFailed, PersistFailedData{Error: "disk full"})

	metrics := collector.GetMetrics()

	if metrics.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", metrics.RunCount)
	}
	if metrics.StepCount != 1 {
		t.Errorf("StepCount = %d, want 1", metrics.StepCount)
	}
	if metrics.HoldCount != 1 {
		t.Errorf("HoldCount = %d, want 1", metrics.HoldCount)
	}
	if metrics.CorrectionSkips != 1 {
		t.Errorf("CorrectionSkips = %d, want 1", metrics.CorrectionSkips)
	}
	if metrics.PersistCount != 1 {
		t.Errorf("PersistCount = %d, want 1", metrics.PersistCount)
	}
	if metrics.PersistFailures != 1 {
		t.Errorf("PersistFailures = %d, want 1", metrics.PersistFailures)
	}
	if metrics.LastScore != 0.75 {
		t.Errorf("LastScore = %v, want 0.75", metrics.LastScore)
	}
	if metrics.ActiveRun != "run-1" {
		t.Errorf("ActiveRun = %s, want run-1", metrics.ActiveRun)
	}

	emitter.Emit(TypeRunCompleted, RunCompletedData{
		TotalSteps:    1,
		TotalDuration: 200 * time.Millisecond,
	})
	metrics = collector.GetMetrics()
	if metrics.ActiveRun != "" {
		t.Errorf("ActiveRun after completion = %s, want empty", metrics.ActiveRun)
	}

	collector.Reset()
	metrics = collector.GetMetrics()
	if metrics.RunCount != 0 {
		t.Error("counters should be reset")
	}
}

func TestChannelHandler(t *testing.T) {
	t.Run("non-blocking", func(t *testing.T) {
		ch := make(chan Event, 2)
		handler := ChannelHandler(ch, false)

		handler(&Event{Type: TypeRunStarted})
		handler(&Event{Type: TypeStepCompleted})

		if len(ch) != 2 {
			t.Errorf("channel has %d events, want 2", len(ch))
		}
	})

	t.Run("drop on full", func(t *testing.T) {
		ch := make(chan Event, 1)
		handler := ChannelHandler(ch, true)

		handler(&Event{Type: TypeRunStarted})
		handler(&Event{Type: TypeStepCompleted}) // Should be dropped

		if len(ch) != 1 {
			t.Errorf("channel has %d events, want 1", len(ch))
		}
	})
}

func TestMultiHandler(t *testing.T) {
	callCount1 := 0
	callCount2 := 0

	handler := MultiHandler(
		func(e *Event) { callCount1++ },
		func(e *Event) { callCount2++ },
	)

	handler(&Event{Type: TypeStepCompleted})

	if callCount1 != 1 || callCount2 != 1 {
		t.Errorf("callCount1=%d, callCount2=%d, want 1,1", callCount1, callCount2)
	}
}

func TestFilteredHandler(t *testing.T) {
	callCount := 0
	handler := FilteredHandler(
		func(e *Event) { callCount++ },
		TypeFilter(TypePersistFailed),
	)

	handler(&Event{Type: TypeRunStarted})
	handler(&Event{Type: TypePersistFailed})
	handler(&Event{Type: TypeStepCompleted})

	if callCount != 1 {
		t.Errorf("callCount = %d, want 1", callCount)
	}
}

func TestTypeFilter(t *testing.T) {
	filter := TypeFilter(TypeConstraintUnsatisfied, TypeCorrectionSkipped)

	if !filter(&Event{Type: TypeConstraintUnsatisfied}) {
		t.Error("should pass TypeConstraintUnsatisfied")
	}
	if !filter(&Event{Type: TypeCorrectionSkipped}) {
		t.Error("should pass TypeCorrectionSkipped")
	}
	if filter(&Event{Type: TypeRunStarted}) {
		t.Error("should not pass TypeRunStarted")
	}
}

func TestRunFilter(t *testing.T) {
	filter := RunFilter("run-123")

	if !filter(&Event{RunID: "run-123"}) {
		t.Error("should pass matching run")
	}
	if filter(&Event{RunID: "run-456"}) {
		t.Error("should not pass different run")
	}
}

func TestAnomalyFilter(t *testing.T) {
	filter := AnomalyFilter()

	if !filter(&Event{Type: TypePersistFailed}) {
		t.Error("should pass TypePersistFailed")
	}
	if filter(&Event{Type: TypeStepCompleted}) {
		t.Error("should not pass TypeStepCompleted")
	}
}

func TestProgressFilter(t *testing.T) {
	filter := ProgressFilter()

	for _, typ := range []Type{TypeRunStarted, TypeStepCompleted, TypeRunCompleted} {
		if !filter(&Event{Type: typ}) {
			t.Errorf("should pass %s", typ)
		}
	}
	if filter(&Event{Type: TypeConstraintUnsatisfied}) {
		t.Error("should not pass TypeConstraintUnsatisfied")
	}
}

func TestLoggingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := LoggingHandler(logger, slog.LevelInfo)

	emitter := NewEmitter(WithRunID("run-log"))
	emitter.Subscribe(handler, TypeStepCompleted)
	emitter.Emit(TypeStepCompleted, StepCompletedData{
		StepNumber: 4,
		Score:      0.5,
		NRCI:       0.25,
	})

	out := buf.String()
	if !strings.Contains(out, string(TypeStepCompleted)) {
		t.Errorf("log output missing event type: %s", out)
	}
	// Payload attributes only appear when the value-typed case matched.
	if !strings.Contains(out, `"step_number":4`) {
		t.Errorf("log output missing payload attributes: %s", out)
	}
	if !strings.Contains(out, `"run_id":"run-log"`) {
		t.Errorf("log output missing run id: %s", out)
	}
}
