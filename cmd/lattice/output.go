// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0 // Operation completed successfully
	CLIExitFindings = 1 // Operation completed with findings/violations
	CLIExitError    = 2 // Operation failed
)

// CommandResult wraps command output with metadata.
type CommandResult struct {
	APIVersion string      `json:"api_version"`
	Command    string      `json:"command"`
	Timestamp  time.Time   `json:"timestamp"`
	DurationMs int64       `json:"duration_ms"`
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// OutputJSON writes structured data as JSON to stdout.
//
// # Inputs
//
//   - data: The data to encode. Must be JSON-serializable.
//   - compact: If true, output without indentation.
//
// # Outputs
//
//   - error: Non-nil if encoding fails.
func OutputJSON(data interface{}, compact bool) error {
	encoder := json.NewEncoder(os.Stdout)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// OutputError writes an error in the appropriate format.
//
// # Inputs
//
//   - jsonMode: If true, output as JSON to stdout.
//   - msg: Human-readable error message.
//   - err: The underlying error.
func OutputError(jsonMode bool, msg string, err error) {
	if jsonMode {
		result := CommandResult{
			APIVersion: "1.0",
			Timestamp:  time.Now(),
			Success:    false,
			Error:      fmt.Sprintf("%s: %v", msg, err),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	}
}

// RunSummaryResult holds run command output.
type RunSummaryResult struct {
	RunID            string  `json:"run_id"`
	State            string  `json:"state"`
	TotalSteps       int     `json:"total_steps"`
	FinalScore       float64 `json:"final_score"`
	FinalNRCI        float64 `json:"final_nrci"`
	FinalSnapshotKey string  `json:"final_snapshot_key,omitempty"`
	PersistFailures  int     `json:"persist_failures,omitempty"`
	DurationMs       int64   `json:"duration_ms"`
	Reason           string  `json:"reason"`
}

// ValidateResult holds validate command output.
type ValidateResult struct {
	Valid     bool   `json:"valid"`
	Source    string `json:"source"`
	Dims      int    `json:"dims,omitempty"`
	Offsets   int    `json:"offsets,omitempty"`
	Stages    int    `json:"stages,omitempty"`
	SeedCells int    `json:"seed_cells,omitempty"`
	MaxSteps  int    `json:"max_steps,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SnapshotListResult holds snapshot list output.
type SnapshotListResult struct {
	Backend string   `json:"backend"`
	Keys    []string `json:"keys"`
	Count   int      `json:"count"`
}

// SnapshotShowResult holds snapshot show output.
type SnapshotShowResult struct {
	Key      string         `json:"key"`
	Dims     int            `json:"dims"`
	Step     uint64         `json:"step"`
	Cells    int            `json:"cells"`
	ByteSize int            `json:"byte_size"`
	CellList []SnapshotCell `json:"cell_list,omitempty"`
}

// SnapshotCell represents one cell in snapshot show output.
type SnapshotCell struct {
	Axes        []int32 `json:"axes"`
	Reality     uint8   `json:"reality"`
	Information uint8   `json:"information"`
	Activation  uint8   `json:"activation"`
	Potential   uint8   `json:"potential"`
}

// VersionResult holds version command output.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
