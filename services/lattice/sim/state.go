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

import "sync"

// RunState represents a state in the run lifecycle state machine.
type RunState string

const (
	// StateIdle is the initial state: configuration bound, grid seeded,
	// no step executed yet.
	StateIdle RunState = "IDLE"

	// StateRunning means the loop is executing steps.
	StateRunning RunState = "RUNNING"

	// StateCompleted means the run terminated normally: step budget
	// exhausted, score threshold reached, or a stop observed at a
	// boundary.
	StateCompleted RunState = "COMPLETED"

	// StateAborted means a commit was rejected and the run stopped with
	// the grid at its last committed state.
	StateAborted RunState = "ABORTED"
)

// String returns the state name.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true for COMPLETED and ABORTED. Terminal runners
// accept no further steps.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

// AllStates returns all valid run states.
func AllStates() []RunState {
	return []RunState{
		StateIdle,
		StateRunning,
		StateCompleted,
		StateAborted,
	}
}

// StateMachine manages valid lifecycle transitions for a run.
//
// The state machine enforces the following transition graph:
//
//	IDLE → RUNNING        : Run invoked
//	RUNNING → COMPLETED   : termination condition holds
//	RUNNING → ABORTED     : commit rejected a word
//
// Thread Safety:
//
//	StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps (from, to) pairs that are valid.
	transitions map[RunState]map[RunState]bool
}

// NewStateMachine creates a new state machine with all valid transitions.
//
// Outputs:
//
//	*StateMachine - Configured state machine
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[RunState]map[RunState]bool),
	}

	for _, state := range AllStates() {
		sm.transitions[state] = make(map[RunState]bool)
	}

	sm.addTransition(StateIdle, StateRunning)
	sm.addTransition(StateRunning, StateCompleted)
	sm.addTransition(StateRunning, StateAborted)

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to RunState) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition from one state to another is valid.
//
// Inputs:
//
//	from - Current state
//	to - Target state
//
// Outputs:
//
//	bool - True if the transition is valid
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to RunState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// ValidTransitionsFrom returns all valid transitions from a given state.
//
// Inputs:
//
//	from - The source state
//
// Outputs:
//
//	[]RunState - All valid target states
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) ValidTransitionsFrom(from RunState) []RunState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []RunState
	if toMap, ok := sm.transitions[from]; ok {
		for state, valid := range toMap {
			if valid {
				result = append(result, state)
			}
		}
	}
	return result
}

// TransitionReason provides a human-readable description of a transition.
//
// Inputs:
//
//	from - Source state
//	to - Target state
//
// Outputs:
//
//	string - Description of why this transition occurs
func (sm *StateMachine) TransitionReason(from, to RunState) string {
	key := from.String() + "->" + to.String()

	reasons := map[string]string{
		"IDLE->RUNNING":      "Run invoked",
		"RUNNING->COMPLETED": "Termination condition reached",
		"RUNNING->ABORTED":   "Commit rejected an out-of-range cell",
	}

	if reason, ok := reasons[key]; ok {
		return reason
	}
	return "Unknown transition"
}

// DefaultStateMachine is the shared state machine instance.
var DefaultStateMachine = NewStateMachine()

// CanTransition is a convenience function using the default state machine.
func CanTransition(from, to RunState) bool {
	return DefaultStateMachine.CanTransition(from, to)
}
