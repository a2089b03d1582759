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

	"github.com/AleutianAI/AleutianLattice/pkg/logging"
	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
	"github.com/AleutianAI/AleutianLattice/services/lattice/telemetry"
	"github.com/mattn/go-isatty"
)

// documentSource names the document in output when no file was given.
const defaultDocumentSource = "built-in default"

// loadDocument loads and validates the run document for this
// invocation. The returned source string names where it came from for
// display.
func loadDocument() (config.Document, string, error) {
	source := configPath
	if source == "" {
		source = defaultDocumentSource
	}
	doc, err := config.Load(configPath)
	if err != nil {
		return doc, source, err
	}
	return doc, source, nil
}

// isTerminal reports whether f is attached to an interactive terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogger builds the process logger from the document's logging
// section. Output switches to JSON when stderr is not a terminal, so
// piped logs stay machine-readable without configuration.
func newLogger(doc *config.Document, service string) *logging.Logger {
	cfg := doc.BuildLogging(service)
	if !isTerminal(os.Stderr) {
		cfg.JSON = true
	}
	return logging.New(cfg)
}

// openSnapStore opens the snapshot store backend the document selects.
func openSnapStore(cfg config.StoreConfig) (snapstore.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return snapstore.NewMemory(), nil
	case config.BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("store backend %q requires store.path", cfg.Backend)
		}
		return snapstore.NewFileStore(cfg.Path)
	case config.BackendBadger:
		if cfg.Path == "" {
			return snapstore.OpenBadgerStoreInMemory()
		}
		return snapstore.OpenBadgerStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// telemetryConfig maps the document's telemetry section onto the
// exporter configuration, keeping environment-driven defaults for
// anything the document leaves unset.
func telemetryConfig(cfg config.TelemetryConfig) telemetry.Config {
	tc := telemetry.DefaultConfig()
	if cfg.Traces != "" {
		tc.TraceExporter = cfg.Traces
	}
	if cfg.Metrics != "" {
		tc.MetricExporter = cfg.Metrics
	}
	if cfg.Endpoint != "" {
		tc.OTLPEndpoint = cfg.Endpoint
	}
	if cfg.SampleRate > 0 {
		tc.SampleRate = cfg.SampleRate
	}
	return tc
}
