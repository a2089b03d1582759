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
	"sync"
	"testing"
)

func TestStateMachine_ValidTransitions(t *testing.T) {
	sm := NewStateMachine()

	validTransitions := []struct {
		from RunState
		to   RunState
	}{
		{StateIdle, StateRunning},
		{StateRunning, StateCompleted},
		{StateRunning, StateAborted},
	}

	for _, tt := range validTransitions {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if !sm.CanTransition(tt.from, tt.to) {
				t.Errorf("expected transition %s -> %s to be valid", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_InvalidTransitions(t *testing.T) {
	sm := NewStateMachine()

	invalidTransitions := []struct {
		from RunState
		to   RunState
	}{
		// Terminal states accept nothing
		{StateCompleted, StateIdle},
		{StateCompleted, StateRunning},
		{StateCompleted, StateAborted},
		{StateAborted, StateIdle},
		{StateAborted, StateRunning},
		{StateAborted, StateCompleted},

		// Cannot reach a terminal state without running
		{StateIdle, StateCompleted},
		{StateIdle, StateAborted},

		// Cannot return to idle or re-enter running
		{StateRunning, StateIdle},
		{StateRunning, StateRunning},

		// No self-loops
		{StateIdle, StateIdle},
		{StateCompleted, StateCompleted},
		{StateAborted, StateAborted},
	}

	for _, tt := range invalidTransitions {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if sm.CanTransition(tt.from, tt.to) {
				t.Errorf("expected transition %s -> %s to be invalid", tt.from, tt.to)
			}
		})
	}
}

func TestStateMachine_ValidTransitionsFrom(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from     RunState
		expected int
	}{
		{StateIdle, 1},      // -> RUNNING
		{StateRunning, 2},   // -> COMPLETED, ABORTED
		{StateCompleted, 0}, // terminal
		{StateAborted, 0},   // terminal
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			transitions := sm.ValidTransitionsFrom(tt.from)
			if len(transitions) != tt.expected {
				t.Errorf("expected %d transitions from %s, got %d: %v",
					tt.expected, tt.from, len(transitions), transitions)
			}
		})
	}
}

func TestStateMachine_TransitionReason(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from RunState
		to   RunState
	}{
		{StateIdle, StateRunning},
		{StateRunning, StateCompleted},
		{StateRunning, StateAborted},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			reason := sm.TransitionReason(tt.from, tt.to)
			if reason == "" || reason == "Unknown transition" {
				t.Errorf("expected a specific reason for %s -> %s, got %q", tt.from, tt.to, reason)
			}
		})
	}

	t.Run("unknown transition", func(t *testing.T) {
		reason := sm.TransitionReason(StateCompleted, StateIdle)
		if reason != "Unknown transition" {
			t.Errorf("expected Unknown transition, got %q", reason)
		}
	})
}

func TestStateMachine_ConcurrentAccess(t *testing.T) {
	sm := NewStateMachine()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, from := range AllStates() {
				for _, to := range AllStates() {
					sm.CanTransition(from, to)
				}
				sm.ValidTransitionsFrom(from)
			}
		}()
	}
	wg.Wait()
}

func TestRunState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{StateIdle, false},
		{StateRunning, false},
		{StateCompleted, true},
		{StateAborted, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if tt.state.IsTerminal() != tt.terminal {
				t.Errorf("expected IsTerminal=%v for %s", tt.terminal, tt.state)
			}
		})
	}
}

func TestRunState_String(t *testing.T) {
	tests := []struct {
		state    RunState
		expected string
	}{
		{StateIdle, "IDLE"},
		{StateRunning, "RUNNING"},
		{StateCompleted, "COMPLETED"},
		{StateAborted, "ABORTED"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if tt.state.String() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tt.state.String())
			}
		})
	}
}

func TestDefaultStateMachine(t *testing.T) {
	if DefaultStateMachine == nil {
		t.Fatal("DefaultStateMachine is nil")
	}

	if !CanTransition(StateIdle, StateRunning) {
		t.Error("CanTransition failed for IDLE -> RUNNING")
	}
	if CanTransition(StateCompleted, StateRunning) {
		t.Error("CanTransition allowed COMPLETED -> RUNNING")
	}
}

func TestAllStates(t *testing.T) {
	states := AllStates()

	expected := 4 // IDLE, RUNNING, COMPLETED, ABORTED
	if len(states) != expected {
		t.Errorf("expected %d states, got %d", expected, len(states))
	}

	stateSet := make(map[RunState]bool)
	for _, s := range states {
		stateSet[s] = true
	}

	for _, s := range []RunState{StateIdle, StateRunning, StateCompleted, StateAborted} {
		if !stateSet[s] {
			t.Errorf("missing state: %s", s)
		}
	}
}
