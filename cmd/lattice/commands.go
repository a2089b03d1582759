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
	"time"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string

	runJSON         bool
	runMaxSteps     int
	runThreshold    float64
	runPersistEvery int
	runRate         float64
	runWorkers      int
	runMetricsAddr  string

	validateJSON bool

	snapshotListJSON  bool
	snapshotShowJSON  bool
	snapshotShowCells bool
	watchDebounce     time.Duration

	versionJSON bool

	rootCmd = &cobra.Command{
		Use:   "lattice",
		Short: "A cli to run and inspect Aleutian lattice simulations",
		Long: `Lattice steps a sparse cell grid through resonance and entanglement
				coupling, triad constraint repair, and error correction, scoring
				each committed state against a reference pattern. Runs are driven
				by a run document (YAML or JSON); without one the built-in
				default document is used.`,
	}

	// --- Run / Validate ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a simulation to completion",
		Run:   runRun, // Defined in cmd_run.go
	}
	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Validate a run document without executing it",
		Run:   runValidate, // Defined in cmd_validate.go
	}

	// --- Snapshot Store ---
	snapshotsCmd = &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect the snapshot store of a run document",
	}
	snapshotListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored snapshot keys",
		Run:   runSnapshotList, // Defined in cmd_snapshots.go
	}
	snapshotShowCmd = &cobra.Command{
		Use:   "show [key]",
		Short: "Decode and display one stored snapshot",
		Long: `show decodes the snapshot stored under the given content key and
				prints its header. Keys may be abbreviated to any unique prefix.`,
		Args: cobra.ExactArgs(1),
		Run:  runSnapshotShow, // Defined in cmd_snapshots.go
	}
	snapshotWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow a file-backed store for incoming snapshots",
		Long: `watch observes the store directory of a file-backed snapshot store
				and reports snapshots as another process persists them. Only the
				file backend supports watching.`,
		Run: runSnapshotWatch, // Defined in cmd_snapshots.go
	}

	// --- Version ---
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run:   runVersion, // Defined in cmd_version.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a run document (YAML or JSON). Empty uses the built-in default document")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run summary as JSON")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Override the document's step budget")
	runCmd.Flags().Float64Var(&runThreshold, "score-threshold", 0, "Override the document's score threshold (0 disables)")
	runCmd.Flags().IntVar(&runPersistEvery, "persist-every", 0, "Override the document's snapshot cadence (0 persists only the final state)")
	runCmd.Flags().Float64Var(&runRate, "steps-per-second", 0, "Override the document's pacing rate (0 runs unpaced)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Override the document's worker cap (0 picks automatically)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", ":9464",
		"Listen address for the Prometheus endpoint when the document enables prometheus metrics")

	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the validation result as JSON")

	// snapshot store commands
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotListCmd)
	snapshotListCmd.Flags().BoolVar(&snapshotListJSON, "json", false, "Print the key list as JSON")
	snapshotsCmd.AddCommand(snapshotShowCmd)
	snapshotShowCmd.Flags().BoolVar(&snapshotShowJSON, "json", false, "Print the snapshot as JSON")
	snapshotShowCmd.Flags().BoolVar(&snapshotShowCells, "cells", false, "Include per-cell contents")
	snapshotsCmd.AddCommand(snapshotWatchCmd)
	snapshotWatchCmd.Flags().DurationVar(&watchDebounce, "debounce", 100*time.Millisecond,
		"Batch window for change notifications")

	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}
