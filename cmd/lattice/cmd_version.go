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
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, overridden at release time via
// -ldflags "-X main.version=v0.1.0 -X main.commit=<sha>".
var (
	version = "dev"
	commit  = "none"
)

// runVersion is the CLI handler for the "lattice version" command.
//
// # Exit Codes
//
//   - 0: Success
//   - 2: Output encoding failed
func runVersion(cmd *cobra.Command, args []string) {
	result := VersionResult{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if versionJSON {
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		return
	}

	fmt.Println("--- Lattice Version ---")
	fmt.Printf("Version:  %s\n", result.Version)
	fmt.Printf("Commit:   %s\n", result.Commit)
	fmt.Printf("Go:       %s\n", result.GoVersion)
	fmt.Printf("Platform: %s\n", result.Platform)
	fmt.Println("-----------------------")
}
