// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command lattice runs and inspects lattice simulations.
//
// Usage:
//
//	lattice run                        Run the built-in default document
//	lattice run -c doc.yaml --json     Run a document, print a JSON summary
//	lattice validate -c doc.yaml       Validate a document without running
//	lattice snapshots list -c doc.yaml List stored snapshot keys
//	lattice snapshots show [key]       Decode one snapshot (unique prefixes ok)
//	lattice snapshots watch            Follow a file-backed store
//	lattice version                    Print version and build information
package main

import "log"

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
