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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianLattice/services/lattice/algebra"
	"github.com/AleutianAI/AleutianLattice/services/lattice/constraint"
)

func TestDefault_IsValid(t *testing.T) {
	doc := Default()
	require.NoError(t, doc.Validate())

	assert.Equal(t, 2, doc.Dims)
	assert.Len(t, doc.Shape.Offsets, 4)
	assert.Len(t, doc.Seed, 5)
	assert.Equal(t, BackendMemory, doc.Store.Backend)
}

func TestDefault_Builds(t *testing.T) {
	doc := Default()
	require.NoError(t, doc.Validate())

	shape, err := doc.BuildShape()
	require.NoError(t, err)
	assert.Equal(t, 2, shape.Dims())
	assert.Equal(t, 4, shape.Len())

	_, err = algebra.NewEvaluator(shape, doc.BuildParams())
	require.NoError(t, err)

	_, err = constraint.NewChecker(shape, doc.BuildTriad())
	require.NoError(t, err)

	stages, err := doc.BuildStages()
	require.NoError(t, err)
	assert.Len(t, stages, 2)

	ref, err := doc.BuildReference()
	require.NoError(t, err)
	assert.Nil(t, ref)

	seeds, err := doc.SeedWords()
	require.NoError(t, err)
	assert.Len(t, seeds, 5)
}

func TestLoad_Defaults(t *testing.T) {
	doc, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Run.MaxSteps, doc.Run.MaxSteps)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	body := `
run:
  max_steps: 250
  persist_every: 25
store:
  backend: file
  path: ` + t.TempDir() + `
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)

	// Overridden sections
	assert.Equal(t, 250, doc.Run.MaxSteps)
	assert.Equal(t, 25, doc.Run.PersistEvery)
	assert.Equal(t, BackendFile, doc.Store.Backend)

	// Untouched sections keep their defaults
	assert.Equal(t, 2, doc.Dims)
	assert.Len(t, doc.Shape.Offsets, 4)
}

func TestLoad_JSONOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	body := `{"run": {"max_steps": 9, "score_threshold": 0.9, "persist_every": 10}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, doc.Run.MaxSteps)
	assert.InDelta(t, 0.9, doc.Run.ScoreThreshold, 1e-12)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  max_steps: 0\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  max_steps: 250\n"), 0o600))

	t.Setenv("LATTICE_MAX_STEPS", "7")
	t.Setenv("LATTICE_STORE_BACKEND", "badger")
	t.Setenv("LATTICE_STORE_PATH", t.TempDir())
	t.Setenv("LATTICE_LOG_LEVEL", "debug")

	doc, err := Load(path)
	require.NoError(t, err)

	// Environment beats the file
	assert.Equal(t, 7, doc.Run.MaxSteps)
	assert.Equal(t, BackendBadger, doc.Store.Backend)
	assert.Equal(t, "debug", doc.Logging.Level)
}
