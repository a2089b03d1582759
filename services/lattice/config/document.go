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
	"github.com/AleutianAI/AleutianLattice/services/lattice/codec"
)

// Reference pattern sources accepted by ReferenceConfig.Source.
const (
	SourceExact    = "exact"
	SourceConstant = "constant"
	SourceRadial   = "radial"
)

// Snapshot store backends accepted by StoreConfig.Backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendFile   = "file"
)

// Document is a complete run description.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// validation.
type Document struct {
	// Dims is the lattice dimensionality.
	Dims int `json:"dims" yaml:"dims" validate:"required,min=1,max=6"`

	// Shape describes the neighborhood and per-offset operator weights.
	Shape ShapeConfig `json:"shape" yaml:"shape"`

	// Algebra holds the per-cell relaxation rates.
	Algebra AlgebraConfig `json:"algebra" yaml:"algebra"`

	// Triad configures the balance constraint.
	Triad TriadConfig `json:"triad" yaml:"triad"`

	// Correction configures the ordered correction stages.
	Correction CorrectionConfig `json:"correction" yaml:"correction"`

	// Coherence configures scoring weights and the reference pattern.
	Coherence CoherenceConfig `json:"coherence" yaml:"coherence"`

	// Run holds the stepping and termination settings.
	Run RunConfig `json:"run" yaml:"run"`

	// Store selects the snapshot store backend.
	Store StoreConfig `json:"store" yaml:"store"`

	// Telemetry configures traces and metrics export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Seed lists the cells occupied before step zero.
	Seed []SeedCell `json:"seed" yaml:"seed" validate:"dive"`
}

// OffsetConfig is one neighborhood offset with its operator weights.
type OffsetConfig struct {
	// Axes are the per-axis displacements. Entries beyond the document
	// dimensionality must be zero or absent.
	Axes []int32 `json:"axes" yaml:"axes" validate:"required,min=1,max=6"`

	// Resonance is the activation alignment weight for this offset.
	Resonance float64 `json:"resonance" yaml:"resonance"`

	// Entanglement is the information coupling weight for this offset.
	// Non-zero weights must be mirrored by the negated offset.
	Entanglement float64 `json:"entanglement" yaml:"entanglement"`
}

// ShapeConfig lists the neighborhood offsets. Offset order is
// significant: triad axis groups reference offsets by index.
type ShapeConfig struct {
	Offsets []OffsetConfig `json:"offsets" yaml:"offsets" validate:"required,min=1,dive"`
}

// AlgebraConfig holds the per-cell relaxation rates.
type AlgebraConfig struct {
	// RealizationRate moves reality toward activation each step.
	RealizationRate float64 `json:"realization_rate" yaml:"realization_rate" validate:"gte=0,lte=1"`

	// PotentialRecovery moves potential toward the activation headroom.
	PotentialRecovery float64 `json:"potential_recovery" yaml:"potential_recovery" validate:"gte=0,lte=1"`
}

// TriadConfig configures the balance constraint.
type TriadConfig struct {
	// AxisGroups assigns each offset index to one of the three axes.
	// Together the groups must cover every offset exactly once.
	AxisGroups [][]int `json:"axis_groups" yaml:"axis_groups" validate:"required,len=3"`

	// FaceWeights scales contributions per axis face, ordered
	// x+, x-, y+, y-, z+, z-. Nil means all ones.
	FaceWeights []float64 `json:"face_weights,omitempty" yaml:"face_weights,omitempty" validate:"omitempty,len=6"`

	// PairWeights couples raw axis values into the recorded ones.
	// Nil means the identity coupling.
	PairWeights [][]float64 `json:"pair_weights,omitempty" yaml:"pair_weights,omitempty" validate:"omitempty,len=3,dive,len=3"`

	// Tolerance is the allowed deviation between the axis sum and the
	// cell's activation before repair runs.
	Tolerance uint8 `json:"tolerance" yaml:"tolerance"`

	// AxisBound caps axis value magnitude after axis repair.
	AxisBound int32 `json:"axis_bound" yaml:"axis_bound" validate:"gte=0"`

	// MaxActivationShift caps how far activation repair may move a
	// candidate's activation.
	MaxActivationShift uint8 `json:"max_activation_shift" yaml:"max_activation_shift"`
}

// StageConfig describes one correction stage.
type StageConfig struct {
	// Kind selects the stage implementation.
	Kind string `json:"kind" yaml:"kind" validate:"required,oneof=parity majority lock"`

	// Name overrides the stage name in skip reports. Defaults to Kind.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Layers names the layer fields the stage may modify. Layer claims
	// must be disjoint across stages.
	Layers []string `json:"layers" yaml:"layers" validate:"required,min=1"`

	// Candidates are the lock values for lock stages.
	Candidates []uint8 `json:"candidates,omitempty" yaml:"candidates,omitempty" validate:"omitempty,dive,lte=63"`

	// Weights pair with Candidates for lock stages. Nil means uniform.
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// CorrectionConfig configures the ordered correction stages. An empty
// stage list disables correction.
type CorrectionConfig struct {
	Stages []StageConfig `json:"stages" yaml:"stages" validate:"dive"`
}

// ReferenceConfig selects and parameterizes the coherence reference.
type ReferenceConfig struct {
	// Source selects the pattern family.
	Source string `json:"source" yaml:"source" validate:"required,oneof=exact constant radial"`

	// Cells lists coordinate and layer tuples for exact references.
	Cells []SeedCell `json:"cells,omitempty" yaml:"cells,omitempty" validate:"omitempty,dive"`

	// Layers is the uniform tuple for constant references.
	Layers codec.Layers `json:"layers,omitempty" yaml:"layers,omitempty"`

	// Support lists the coordinates a constant reference covers.
	Support [][]int32 `json:"support,omitempty" yaml:"support,omitempty"`

	// Origin is the center of a radial reference. Nil means the origin.
	Origin []int32 `json:"origin,omitempty" yaml:"origin,omitempty"`

	// Rings are the per-distance tuples of a radial reference, nearest
	// first.
	Rings []codec.Layers `json:"rings,omitempty" yaml:"rings,omitempty"`
}

// CoherenceConfig configures scoring.
type CoherenceConfig struct {
	// Weights are the per-layer score weights, ordered reality,
	// information, activation, potential. Nil means all ones.
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty" validate:"omitempty,len=4,dive,gte=0"`

	// Reference is the pattern runs are scored against. Nil scores
	// against vacuum.
	Reference *ReferenceConfig `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// RunConfig holds stepping and termination settings.
type RunConfig struct {
	// MaxSteps is the step budget.
	MaxSteps int `json:"max_steps" yaml:"max_steps" validate:"required,min=1"`

	// ScoreThreshold stops the run once the coherence score reaches it.
	// Zero disables score-based termination.
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold" validate:"gte=0,lte=1"`

	// PersistEvery stores a snapshot every N committed steps. Zero
	// persists only the final state.
	PersistEvery int `json:"persist_every" yaml:"persist_every" validate:"gte=0"`

	// StepsPerSecond paces the loop. Zero runs unpaced.
	StepsPerSecond float64 `json:"steps_per_second" yaml:"steps_per_second" validate:"gte=0"`

	// MaxWorkers caps evaluation parallelism. Zero picks automatically.
	MaxWorkers int `json:"max_workers" yaml:"max_workers" validate:"gte=0"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	// Backend is one of memory, badger, or file.
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=memory badger file"`

	// Path is the data directory for badger and file backends.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TelemetryConfig configures traces and metrics export.
type TelemetryConfig struct {
	// Traces selects the span exporter.
	Traces string `json:"traces" yaml:"traces" validate:"omitempty,oneof=otlp stdout none"`

	// Metrics selects the metrics exporter.
	Metrics string `json:"metrics" yaml:"metrics" validate:"omitempty,oneof=prometheus stdout none"`

	// Endpoint is the OTLP collector address for otlp traces.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// SampleRate is the trace sampling ratio.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, or error.
	Level string `json:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables file logging to the given directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON format.
	JSON bool `json:"json" yaml:"json"`

	// Quiet disables stderr output.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// SeedCell is one coordinate and layer tuple.
type SeedCell struct {
	// Axes locate the cell. Entries beyond the document dimensionality
	// must be zero or absent.
	Axes []int32 `json:"axes" yaml:"axes" validate:"required,min=1,max=6"`

	// Layers is the cell's initial state.
	Layers codec.Layers `json:"layers" yaml:"layers"`
}

// Default returns a runnable two-dimensional document.
//
// Description:
//
//	The default document steps a von Neumann neighborhood with mild
//	symmetric operator weights, a uniform triad, majority correction on
//	activation with parity correction on information, and a small
//	cross-shaped seed at the origin. It validates cleanly and is the
//	document `lattice run` uses when no file is given.
//
// Outputs:
//
//	Document - A complete document ready for Validate and Build.
func Default() Document {
	return Document{
		Dims: 2,
		Shape: ShapeConfig{
			Offsets: []OffsetConfig{
				{Axes: []int32{1, 0}, Resonance: 0.15, Entanglement: 0.05},
				{Axes: []int32{-1, 0}, Resonance: 0.15, Entanglement: 0.05},
				{Axes: []int32{0, 1}, Resonance: 0.15, Entanglement: 0.05},
				{Axes: []int32{0, -1}, Resonance: 0.15, Entanglement: 0.05},
			},
		},
		Algebra: AlgebraConfig{
			RealizationRate:   0.25,
			PotentialRecovery: 0.10,
		},
		Triad: TriadConfig{
			AxisGroups:         [][]int{{0, 1}, {2, 3}, {}},
			FaceWeights:        []float64{1, 1, 1, 1, 1, 1},
			PairWeights:        [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
			Tolerance:          6,
			AxisBound:          256,
			MaxActivationShift: 8,
		},
		Correction: CorrectionConfig{
			Stages: []StageConfig{
				{Kind: "majority", Layers: []string{"activation"}},
				{Kind: "parity", Layers: []string{"information"}},
			},
		},
		Coherence: CoherenceConfig{
			Weights: []float64{1, 1, 1, 1},
		},
		Run: RunConfig{
			MaxSteps:     100,
			PersistEvery: 10,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Telemetry: TelemetryConfig{
			Traces:     "none",
			Metrics:    "none",
			SampleRate: 1.0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Seed: []SeedCell{
			{Axes: []int32{0, 0}, Layers: codec.Layers{Reality: 10, Information: 20, Activation: 40, Potential: 20}},
			{Axes: []int32{1, 0}, Layers: codec.Layers{Activation: 20, Potential: 40}},
			{Axes: []int32{-1, 0}, Layers: codec.Layers{Activation: 20, Potential: 40}},
			{Axes: []int32{0, 1}, Layers: codec.Layers{Activation: 20, Potential: 40}},
			{Axes: []int32{0, -1}, Layers: codec.Layers{Activation: 20, Potential: 40}},
		},
	}
}
