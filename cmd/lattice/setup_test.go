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
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/AleutianLattice/services/lattice/config"
	"github.com/AleutianAI/AleutianLattice/services/lattice/snapstore"
	"github.com/AleutianAI/AleutianLattice/services/lattice/telemetry"
)

// withConfigPath swaps the global config path for one test.
func withConfigPath(t *testing.T, path string) {
	t.Helper()
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
}

// TestLoadDocument_DefaultSource tests the source name without a file.
func TestLoadDocument_DefaultSource(t *testing.T) {
	withConfigPath(t, "")

	doc, source, err := loadDocument()
	if err != nil {
		t.Fatalf("loadDocument() error = %v", err)
	}
	if source != defaultDocumentSource {
		t.Errorf("source = %q, want %q", source, defaultDocumentSource)
	}
	if doc.Dims != 2 {
		t.Errorf("Dims = %d, want 2", doc.Dims)
	}
}

// TestLoadDocument_FileSource tests that the source names the file.
func TestLoadDocument_FileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("run:\n  max_steps: 5\n"), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	withConfigPath(t, path)

	doc, source, err := loadDocument()
	if err != nil {
		t.Fatalf("loadDocument() error = %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if doc.Run.MaxSteps != 5 {
		t.Errorf("MaxSteps = %d, want 5", doc.Run.MaxSteps)
	}
}

// TestOpenSnapStore tests backend selection.
func TestOpenSnapStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, err := openSnapStore(config.StoreConfig{Backend: config.BackendMemory})
		if err != nil {
			t.Fatalf("openSnapStore() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*snapstore.Memory); !ok {
			t.Errorf("store type = %T, want *snapstore.Memory", store)
		}
	})

	t.Run("empty backend falls back to memory", func(t *testing.T) {
		store, err := openSnapStore(config.StoreConfig{})
		if err != nil {
			t.Fatalf("openSnapStore() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*snapstore.Memory); !ok {
			t.Errorf("store type = %T, want *snapstore.Memory", store)
		}
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := openSnapStore(config.StoreConfig{Backend: config.BackendFile, Path: dir})
		if err != nil {
			t.Fatalf("openSnapStore() error = %v", err)
		}
		defer store.Close()
		fs, ok := store.(*snapstore.FileStore)
		if !ok {
			t.Fatalf("store type = %T, want *snapstore.FileStore", store)
		}
		if fs.Dir() != dir {
			t.Errorf("Dir() = %q, want %q", fs.Dir(), dir)
		}
	})

	t.Run("file without path", func(t *testing.T) {
		if _, err := openSnapStore(config.StoreConfig{Backend: config.BackendFile}); err == nil {
			t.Error("expected error for file backend without path")
		}
	})

	t.Run("badger without path is ephemeral", func(t *testing.T) {
		store, err := openSnapStore(config.StoreConfig{Backend: config.BackendBadger})
		if err != nil {
			t.Fatalf("openSnapStore() error = %v", err)
		}
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := openSnapStore(config.StoreConfig{Backend: "tape"}); err == nil {
			t.Error("expected error for unknown backend")
		}
	})
}

// TestTelemetryConfig tests the document to exporter config mapping.
func TestTelemetryConfig(t *testing.T) {
	t.Run("empty keeps defaults", func(t *testing.T) {
		got := telemetryConfig(config.TelemetryConfig{})
		want := telemetry.DefaultConfig()
		if got != want {
			t.Errorf("telemetryConfig() = %+v, want %+v", got, want)
		}
	})

	t.Run("document values override", func(t *testing.T) {
		got := telemetryConfig(config.TelemetryConfig{
			Traces:     "stdout",
			Metrics:    "prometheus",
			Endpoint:   "collector:4317",
			SampleRate: 0.5,
		})
		if got.TraceExporter != "stdout" {
			t.Errorf("TraceExporter = %q, want %q", got.TraceExporter, "stdout")
		}
		if got.MetricExporter != "prometheus" {
			t.Errorf("MetricExporter = %q, want %q", got.MetricExporter, "prometheus")
		}
		if got.OTLPEndpoint != "collector:4317" {
			t.Errorf("OTLPEndpoint = %q, want %q", got.OTLPEndpoint, "collector:4317")
		}
		if got.SampleRate != 0.5 {
			t.Errorf("SampleRate = %v, want 0.5", got.SampleRate)
		}
	})

	t.Run("zero sample rate keeps default", func(t *testing.T) {
		got := telemetryConfig(config.TelemetryConfig{SampleRate: 0})
		if got.SampleRate != telemetry.DefaultConfig().SampleRate {
			t.Errorf("SampleRate = %v, want %v", got.SampleRate, telemetry.DefaultConfig().SampleRate)
		}
	})
}

// TestExitCodeConstants tests exit code constant values.
func TestExitCodeConstants(t *testing.T) {
	if CLIExitSuccess != 0 {
		t.Errorf("CLIExitSuccess = %d, want 0", CLIExitSuccess)
	}
	if CLIExitFindings != 1 {
		t.Errorf("CLIExitFindings = %d, want 1", CLIExitFindings)
	}
	if CLIExitError != 2 {
		t.Errorf("CLIExitError = %d, want 2", CLIExitError)
	}
}
