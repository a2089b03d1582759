// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load loads a run document with priority: env > file > defaults.
//
// Description:
//
//	Starts from Default(), overlays the file if a path is given, then
//	applies LATTICE_* environment overrides, and finally validates.
//	Fields absent from the file keep their defaults; list fields present
//	in the file replace their defaults wholesale. An explicit path must
//	exist.
//
// Inputs:
//
//	path - Path to a YAML or JSON run document (empty = defaults only).
//
// Outputs:
//
//	Document - The merged document.
//	error - Non-nil if the file cannot be read or the result is invalid.
func Load(path string) (Document, error) {
	doc := Default()

	if path != "" {
		if err := loadFile(path, &doc); err != nil {
			return doc, fmt.Errorf("load config file: %w", err)
		}
	}

	loadFromEnv(&doc)

	if err := doc.Validate(); err != nil {
		return doc, err
	}

	return doc, nil
}

func loadFile(path string, doc *Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, doc); err != nil {
		if jsonErr := json.Unmarshal(data, doc); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}

	return nil
}

func loadFromEnv(doc *Document) {
	// Run
	if v := os.Getenv("LATTICE_MAX_STEPS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			doc.Run.MaxSteps = i
		}
	}
	if v := os.Getenv("LATTICE_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			doc.Run.ScoreThreshold = f
		}
	}
	if v := os.Getenv("LATTICE_PERSIST_EVERY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			doc.Run.PersistEvery = i
		}
	}
	if v := os.Getenv("LATTICE_STEPS_PER_SEC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			doc.Run.StepsPerSecond = f
		}
	}
	if v := os.Getenv("LATTICE_MAX_WORKERS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			doc.Run.MaxWorkers = i
		}
	}

	// Store
	if v := os.Getenv("LATTICE_STORE_BACKEND"); v != "" {
		doc.Store.Backend = v
	}
	if v := os.Getenv("LATTICE_STORE_PATH"); v != "" {
		doc.Store.Path = v
	}

	// Telemetry
	if v := os.Getenv("LATTICE_TRACES"); v != "" {
		doc.Telemetry.Traces = v
	}
	if v := os.Getenv("LATTICE_METRICS"); v != "" {
		doc.Telemetry.Metrics = v
	}
	if v := os.Getenv("LATTICE_OTLP_ENDPOINT"); v != "" {
		doc.Telemetry.Endpoint = v
	}
	if v := os.Getenv("LATTICE_TRACE_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			doc.Telemetry.SampleRate = f
		}
	}

	// Logging
	if v := os.Getenv("LATTICE_LOG_LEVEL"); v != "" {
		doc.Logging.Level = v
	}
	if v := os.Getenv("LATTICE_LOG_JSON"); v != "" {
		doc.Logging.JSON = v == "true" || v == "1"
	}
	if v := os.Getenv("LATTICE_LOG_DIR"); v != "" {
		doc.Logging.Dir = v
	}
}
