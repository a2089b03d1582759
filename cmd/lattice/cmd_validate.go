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
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/sim"
	"github.com/spf13/cobra"
)

// runValidate is the CLI handler for the "lattice validate" command.
//
// It loads the run document and builds the simulation components
// without stepping, so documents can be checked before committing to a
// long run.
//
// # Exit Codes
//
//   - 0: Document is valid and buildable
//   - 1: Document failed validation or component construction
//   - 2: Document could not be read
func runValidate(cmd *cobra.Command, args []string) {
	doc, source, err := loadDocument()
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			reportInvalid(source, err)
			os.Exit(CLIExitFindings)
		}
		OutputError(validateJSON, "Failed to read run document", err)
		os.Exit(CLIExitError)
	}

	// A valid document can still fail to build, for example when a
	// reference pattern references coordinates outside its dims.
	if _, err := sim.BuildComponents(&doc); err != nil {
		reportInvalid(source, err)
		os.Exit(CLIExitFindings)
	}

	if validateJSON {
		result := ValidateResult{
			Valid:     true,
			Source:    source,
			Dims:      doc.Dims,
			Offsets:   len(doc.Shape.Offsets),
			Stages:    len(doc.Correction.Stages),
			SeedCells: len(doc.Seed),
			MaxSteps:  doc.Run.MaxSteps,
		}
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Println("--- Document Validation ---")
	fmt.Printf("Document:   %s\n", source)
	fmt.Printf("Dims:       %d\n", doc.Dims)
	fmt.Printf("Offsets:    %d\n", len(doc.Shape.Offsets))
	fmt.Printf("Stages:     %d\n", len(doc.Correction.Stages))
	fmt.Printf("Seed cells: %d\n", len(doc.Seed))
	fmt.Printf("Max steps:  %d\n", doc.Run.MaxSteps)
	fmt.Println("Document is valid.")
	fmt.Println("---------------------------")
}

// reportInvalid prints validation findings in the selected format.
// Joined validation errors arrive newline-separated.
func reportInvalid(source string, err error) {
	if validateJSON {
		result := ValidateResult{Valid: false, Source: source, Error: err.Error()}
		if encErr := OutputJSON(result, false); encErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", encErr)
		}
		return
	}

	fmt.Printf("Document %s is invalid:\n", source)
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Printf("  - %s\n", line)
	}
}
